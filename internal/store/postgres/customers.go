package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"posledger/backend/internal/domain"
	"posledger/backend/internal/loyalty"
	"posledger/backend/internal/store"
)

const customerColumns = `id, name, phone, email, address, date_of_birth, notes, total_purchases, points,
	membership_level, last_purchase, is_active, created_at, updated_at`

func scanCustomer(row rowScanner) (*domain.Customer, error) {
	var c domain.Customer
	var dob, lastPurchase sql.NullTime
	var level string
	if err := row.Scan(
		&c.ID, &c.Name, &c.Phone, &c.Email, &c.Address, &dob, &c.Notes, &c.TotalPurchases, &c.Points,
		&level, &lastPurchase, &c.IsActive, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	c.MembershipLevel = domain.Tier(level)
	c.DateOfBirth = fromNullTime(dob)
	c.LastPurchase = fromNullTime(lastPurchase)
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.ID == "" || customer.Phone == "" {
		return nil, store.ErrValidation
	}
	if err := insertCustomer(ctx, s.db, customer); err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicatePhone
		}
		return nil, store.Persistence("create customer", err)
	}
	return &customer, nil
}

func insertCustomer(ctx context.Context, q querier, c domain.Customer) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO customers (
			id, name, phone, email, address, date_of_birth, notes, total_purchases, points,
			membership_level, last_purchase, is_active, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, c.ID, c.Name, c.Phone, c.Email, c.Address, nullTime(c.DateOfBirth), c.Notes, c.TotalPurchases, c.Points,
		string(c.MembershipLevel), nullTime(c.LastPurchase), c.IsActive, c.CreatedAt, c.UpdatedAt)
	return err
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	return getCustomer(ctx, s.db, `WHERE id = $1`, id)
}

func (s *Store) FindCustomerByPhone(ctx context.Context, phone string) (*domain.Customer, error) {
	return getCustomer(ctx, s.db, `WHERE phone = $1 AND is_active = true`, phone)
}

func getCustomer(ctx context.Context, q querier, where string, arg any) (*domain.Customer, error) {
	c, err := scanCustomer(q.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, store.Persistence("get customer", err)
	}
	return c, nil
}

func (s *Store) SearchCustomers(ctx context.Context, query string, limit int) ([]domain.Customer, error) {
	if limit < 1 {
		limit = 50
	}
	needle := "%" + escapeLike(strings.ToLower(strings.TrimSpace(query))) + "%"

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		WHERE is_active = true
			AND (lower(name) LIKE $1 OR phone LIKE $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, needle, limit)
	if err != nil {
		return nil, store.Persistence("search customers", err)
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, limit)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, store.Persistence("search customers", err)
		}
		customers = append(customers, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Persistence("search customers", err)
	}
	return customers, nil
}

func escapeLike(val string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(val)
}

func (s *Store) UpdateCustomer(ctx context.Context, id string, update domain.CustomerUpdate) (*domain.Customer, error) {
	if update.Increment.TotalPurchases.IsNegative() {
		return nil, store.ErrValidation
	}

	var updated *domain.Customer
	err := s.withTx(ctx, "update customer", func(tx *sql.Tx) error {
		c, err := updateCustomer(ctx, tx, id, update, time.Now().UTC())
		if err != nil {
			return err
		}
		updated = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// updateCustomer turns a CustomerUpdate into one UPDATE statement and, when
// lifetime spend grew, re-derives the membership tier from the new total.
func updateCustomer(ctx context.Context, tx *sql.Tx, id string, update domain.CustomerUpdate, now time.Time) (*domain.Customer, error) {
	sets := make([]string, 0, 10)
	args := []any{id}
	add := func(column string, val any) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	set := update.Set
	if set.Name != nil {
		add("name", *set.Name)
	}
	if set.Phone != nil {
		add("phone", *set.Phone)
	}
	if set.Email != nil {
		add("email", *set.Email)
	}
	if set.Address != nil {
		add("address", *set.Address)
	}
	if set.DateOfBirth != nil {
		add("date_of_birth", *set.DateOfBirth)
	}
	if set.Notes != nil {
		add("notes", *set.Notes)
	}
	if set.IsActive != nil {
		add("is_active", *set.IsActive)
	}
	if set.LastPurchase != nil {
		add("last_purchase", *set.LastPurchase)
	}
	if !update.Increment.TotalPurchases.IsZero() {
		args = append(args, update.Increment.TotalPurchases)
		sets = append(sets, fmt.Sprintf("total_purchases = total_purchases + $%d", len(args)))
	}
	add("updated_at", now)

	c, err := scanCustomer(tx.QueryRowContext(ctx,
		`UPDATE customers SET `+strings.Join(sets, ", ")+` WHERE id = $1 RETURNING `+customerColumns,
		args...,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicatePhone
		}
		return nil, err
	}

	if update.Increment.TotalPurchases.IsZero() {
		return c, nil
	}
	if tier := loyalty.TierFor(c.TotalPurchases); tier != c.MembershipLevel {
		if _, err := tx.ExecContext(ctx, `UPDATE customers SET membership_level = $2 WHERE id = $1`, id, string(tier)); err != nil {
			return nil, err
		}
		c.MembershipLevel = tier
	}
	return c, nil
}
