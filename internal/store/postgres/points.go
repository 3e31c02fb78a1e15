package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"posledger/backend/internal/domain"
	"posledger/backend/internal/store"
)

const pointsColumns = `id, customer_id, kind, points, description, sale_id, source_id, created_at, expires_at`

func scanPoints(row rowScanner) (*domain.PointsTransaction, error) {
	var entry domain.PointsTransaction
	var kind string
	var saleID, sourceID sql.NullString
	var expiresAt sql.NullTime
	if err := row.Scan(&entry.ID, &entry.CustomerID, &kind, &entry.Points, &entry.Description, &saleID, &sourceID, &entry.CreatedAt, &expiresAt); err != nil {
		return nil, err
	}
	entry.Kind = domain.PointsKind(kind)
	entry.SaleID = saleID.String
	entry.SourceID = sourceID.String
	entry.CreatedAt = entry.CreatedAt.UTC()
	entry.ExpiresAt = fromNullTime(expiresAt)
	return &entry, nil
}

func (s *Store) AppendPoints(ctx context.Context, entry domain.PointsTransaction) (*domain.Customer, error) {
	if entry.ID == "" || entry.Points == 0 {
		return nil, store.ErrValidation
	}

	var customer *domain.Customer
	err := s.withTx(ctx, "append points", func(tx *sql.Tx) error {
		c, err := appendPoints(ctx, tx, entry)
		if err != nil {
			return err
		}
		customer = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return customer, nil
}

// appendPoints moves the cached balance with a guarded UPDATE first, so a
// debit larger than the balance touches no row and nothing is written.
func appendPoints(ctx context.Context, tx *sql.Tx, entry domain.PointsTransaction) (*domain.Customer, error) {
	c, err := scanCustomer(tx.QueryRowContext(ctx, `
		UPDATE customers
		SET points = points + $2, updated_at = $3
		WHERE id = $1 AND points + $2 >= 0
		RETURNING `+customerColumns,
		entry.CustomerID, entry.Points, entry.CreatedAt,
	))
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM customers WHERE id = $1)`, entry.CustomerID).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			return nil, store.ErrNotFound
		}
		return nil, store.ErrInsufficientPoints
	}
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO points_transactions (`+pointsColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, entry.ID, entry.CustomerID, string(entry.Kind), entry.Points, entry.Description,
		nullIfEmpty(entry.SaleID), nullIfEmpty(entry.SourceID), entry.CreatedAt, nullTime(entry.ExpiresAt)); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Store) ListPoints(ctx context.Context, customerID string, after *domain.PointsCursor, limit int) ([]domain.PointsTransaction, error) {
	if limit < 1 {
		limit = 50
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM customers WHERE id = $1)`, customerID).Scan(&exists); err != nil {
		return nil, store.Persistence("list points", err)
	}
	if !exists {
		return nil, store.ErrNotFound
	}

	query := `SELECT ` + pointsColumns + ` FROM points_transactions WHERE customer_id = $1`
	args := []any{customerID}
	if after != nil {
		query += ` AND (created_at, id) < ($2, $3)`
		args = append(args, after.CreatedAt, after.ID)
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d`, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.Persistence("list points", err)
	}
	defer rows.Close()

	entries := make([]domain.PointsTransaction, 0, limit)
	for rows.Next() {
		entry, err := scanPoints(rows)
		if err != nil {
			return nil, store.Persistence("list points", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Persistence("list points", err)
	}
	return entries, nil
}

func (s *Store) SumPoints(ctx context.Context, customerID string) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(points), 0)::BIGINT
		FROM points_transactions
		WHERE customer_id = $1
	`, customerID).Scan(&total)
	if err != nil {
		return 0, store.Persistence("sum points", err)
	}
	return total, nil
}

func (s *Store) ListDueEarnings(ctx context.Context, now time.Time, limit int) ([]domain.PointsTransaction, error) {
	if limit < 1 {
		limit = 500
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+pointsColumns+`
		FROM points_transactions e
		WHERE e.kind = 'earn'
			AND e.expires_at <= $1
			AND NOT EXISTS (
				SELECT 1 FROM points_transactions x WHERE x.source_id = e.id
			)
		ORDER BY e.expires_at ASC, e.id ASC
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, store.Persistence("list due earnings", err)
	}
	defer rows.Close()

	due := make([]domain.PointsTransaction, 0, 32)
	for rows.Next() {
		entry, err := scanPoints(rows)
		if err != nil {
			return nil, store.Persistence("list due earnings", err)
		}
		due = append(due, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Persistence("list due earnings", err)
	}
	return due, nil
}

func (s *Store) ExpireEarning(ctx context.Context, earn domain.PointsTransaction, id string, at time.Time) (*domain.PointsTransaction, error) {
	var expired *domain.PointsTransaction
	err := s.withTx(ctx, "expire earning", func(tx *sql.Tx) error {
		var done bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM points_transactions WHERE source_id = $1)`, earn.ID).Scan(&done); err != nil {
			return err
		}
		if done {
			return store.ErrNotFound
		}

		var balance int64
		err := tx.QueryRowContext(ctx, `SELECT points FROM customers WHERE id = $1 FOR UPDATE`, earn.CustomerID).Scan(&balance)
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		if err != nil {
			return err
		}

		entry := domain.PointsTransaction{
			ID:          id,
			CustomerID:  earn.CustomerID,
			Kind:        domain.PointsExpire,
			Points:      -min(earn.Points, max(balance, 0)),
			Description: fmt.Sprintf("expired points from %s", earn.ID),
			SourceID:    earn.ID,
			CreatedAt:   at,
		}
		// A zero-point expire row still marks the earning as processed.
		if _, err := tx.ExecContext(ctx, `
			UPDATE customers SET points = points + $2, updated_at = $3 WHERE id = $1
		`, entry.CustomerID, entry.Points, at); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO points_transactions (`+pointsColumns+`)
			VALUES ($1,$2,$3,$4,$5,NULL,$6,$7,NULL)
		`, entry.ID, entry.CustomerID, string(entry.Kind), entry.Points, entry.Description, entry.SourceID, entry.CreatedAt); err != nil {
			if isUniqueViolation(err) {
				return store.ErrNotFound
			}
			return err
		}
		expired = &entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	return expired, nil
}
