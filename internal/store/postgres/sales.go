package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	"posledger/backend/internal/domain"
	"posledger/backend/internal/store"
)

const saleColumns = `id, customer_id, customer_name, customer_phone, subtotal, discount_amount, points_used,
	points_earned, total_amount, payment_method, payment_reference, time_zone, created_at`

func scanSale(row rowScanner) (*domain.Sale, error) {
	var sale domain.Sale
	var customerID, reference sql.NullString
	if err := row.Scan(
		&sale.ID, &customerID, &sale.CustomerName, &sale.CustomerPhone, &sale.Subtotal, &sale.DiscountAmount, &sale.PointsUsed,
		&sale.PointsEarned, &sale.TotalAmount, &sale.PaymentMethod, &reference, &sale.TimeZone, &sale.CreatedAt,
	); err != nil {
		return nil, err
	}
	sale.CustomerID = customerID.String
	sale.PaymentReference = reference.String
	sale.CreatedAt = sale.CreatedAt.UTC()
	return &sale, nil
}

func (s *Store) RecordSale(ctx context.Context, record domain.SaleRecord) (*domain.Sale, *domain.Customer, error) {
	if record.Sale.ID == "" || len(record.Sale.Items) == 0 {
		return nil, nil, store.ErrValidation
	}

	var (
		recorded *domain.Sale
		customer *domain.Customer
	)
	err := s.withTx(ctx, "record sale", func(tx *sql.Tx) error {
		sale := record.Sale
		sale.Items = slices.Clone(record.Sale.Items)

		c, err := resolveSaleCustomer(ctx, tx, record)
		if err != nil {
			return err
		}
		if c == nil {
			if sale.PointsUsed > 0 {
				return fmt.Errorf("%w: redeeming points requires a customer", store.ErrValidation)
			}
			sale.PointsEarned = 0
		} else {
			if err := store.CheckPointsEarned(sale, c.MembershipLevel); err != nil {
				return err
			}
			sale.CustomerID = c.ID
			sale.CustomerName = c.Name
			sale.CustomerPhone = c.Phone
		}

		if err := insertSale(ctx, tx, sale); err != nil {
			return err
		}
		if err := decrementStock(ctx, tx, sale); err != nil {
			return err
		}

		if c != nil {
			if sale.PointsEarned > 0 {
				expiry := record.EarnExpiry
				if c, err = appendPoints(ctx, tx, domain.PointsTransaction{
					ID:          record.EarnID,
					CustomerID:  c.ID,
					Kind:        domain.PointsEarn,
					Points:      sale.PointsEarned,
					Description: fmt.Sprintf("earned from sale %s", sale.ID),
					SaleID:      sale.ID,
					CreatedAt:   sale.CreatedAt,
					ExpiresAt:   &expiry,
				}); err != nil {
					return err
				}
			}
			if sale.PointsUsed > 0 {
				if c, err = appendPoints(ctx, tx, domain.PointsTransaction{
					ID:          record.RedeemID,
					CustomerID:  c.ID,
					Kind:        domain.PointsRedeem,
					Points:      -sale.PointsUsed,
					Description: fmt.Sprintf("redeemed on sale %s", sale.ID),
					SaleID:      sale.ID,
					CreatedAt:   sale.CreatedAt,
				}); err != nil {
					return err
				}
			}
			if sale.TotalAmount.IsPositive() {
				at := sale.CreatedAt
				if c, err = updateCustomer(ctx, tx, c.ID, domain.CustomerUpdate{
					Set:       domain.CustomerSet{LastPurchase: &at},
					Increment: domain.CustomerIncrement{TotalPurchases: sale.TotalAmount},
				}, sale.CreatedAt); err != nil {
					return err
				}
			}
		}

		recorded = &sale
		customer = c
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return recorded, customer, nil
}

// resolveSaleCustomer locks the buyer row for the rest of the transaction.
// An unknown phone creates a Bronze customer; a known but deactivated one
// is reactivated.
func resolveSaleCustomer(ctx context.Context, tx *sql.Tx, record domain.SaleRecord) (*domain.Customer, error) {
	ref := record.Customer
	switch {
	case ref.ID != "":
		c, err := scanCustomer(tx.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1 FOR UPDATE`, ref.ID))
		if errors.Is(err, sql.ErrNoRows) || (err == nil && !c.IsActive) {
			return nil, fmt.Errorf("%w: customer %s", store.ErrNotFound, ref.ID)
		}
		return c, err
	case ref.Phone != "":
		c, err := scanCustomer(tx.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE phone = $1 FOR UPDATE`, ref.Phone))
		if err == nil {
			if !c.IsActive {
				active := true
				return updateCustomer(ctx, tx, c.ID, domain.CustomerUpdate{Set: domain.CustomerSet{IsActive: &active}}, record.Sale.CreatedAt)
			}
			return c, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		name := ref.Name
		if name == "" {
			name = ref.Phone
		}
		created := domain.Customer{
			ID:              record.NewID,
			Name:            name,
			Phone:           ref.Phone,
			MembershipLevel: domain.TierBronze,
			IsActive:        true,
			CreatedAt:       record.Sale.CreatedAt,
			UpdatedAt:       record.Sale.CreatedAt,
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO customers (id, name, phone, membership_level, is_active, created_at, updated_at)
			VALUES ($1,$2,$3,$4,true,$5,$5)
			ON CONFLICT (phone) DO NOTHING
		`, created.ID, created.Name, created.Phone, string(created.MembershipLevel), created.CreatedAt)
		if err != nil {
			return nil, err
		}
		if n, err := res.RowsAffected(); err != nil {
			return nil, err
		} else if n == 0 {
			return nil, errConcurrentInsert
		}
		return &created, nil
	}
	return nil, nil
}

func insertSale(ctx context.Context, tx *sql.Tx, sale domain.Sale) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sales (`+saleColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, sale.ID, nullIfEmpty(sale.CustomerID), sale.CustomerName, sale.CustomerPhone, sale.Subtotal, sale.DiscountAmount, sale.PointsUsed,
		sale.PointsEarned, sale.TotalAmount, sale.PaymentMethod, nullIfEmpty(sale.PaymentReference), sale.TimeZone, sale.CreatedAt); err != nil {
		return err
	}

	for i, item := range sale.Items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sale_items (sale_id, line_no, product_id, name, price, quantity)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, sale.ID, i+1, item.ProductID, item.Name, item.Price, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// decrementStock walks products in id order so concurrent checkouts lock
// rows in the same sequence.
func decrementStock(ctx context.Context, tx *sql.Tx, sale domain.Sale) error {
	need := make(map[string]int, len(sale.Items))
	for _, item := range sale.Items {
		need[item.ProductID] += item.Quantity
	}
	ids := make([]string, 0, len(need))
	for id := range need {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		res, err := tx.ExecContext(ctx, `
			UPDATE products
			SET stock = stock - $2, updated_at = $3
			WHERE id = $1 AND stock >= $2
		`, id, need[id], sale.CreatedAt)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected > 0 {
			continue
		}

		var stock int
		err = tx.QueryRowContext(ctx, `SELECT stock FROM products WHERE id = $1`, id).Scan(&stock)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: product %s", store.ErrNotFound, id)
		}
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: %s has %d, need %d", store.ErrInsufficientStock, id, stock, need[id])
	}
	return nil
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	sale, err := scanSale(s.db.QueryRowContext(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, store.Persistence("get sale", err)
	}

	sales := []domain.Sale{*sale}
	if err := s.attachItems(ctx, sales); err != nil {
		return nil, store.Persistence("get sale", err)
	}
	return &sales[0], nil
}

func (s *Store) ListSales(ctx context.Context, filter store.SaleFilter) ([]domain.Sale, error) {
	where := make([]string, 0, 4)
	args := make([]any, 0, 5)
	cond := func(clause string, val any) {
		args = append(args, val)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.From != nil {
		cond("created_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		cond("created_at < $%d", *filter.To)
	}
	if filter.CustomerID != "" {
		cond("customer_id = $%d", filter.CustomerID)
	}
	if filter.ProductName != "" {
		cond("EXISTS (SELECT 1 FROM sale_items i WHERE i.sale_id = sales.id AND i.name = $%d)", filter.ProductName)
	}

	query := `SELECT ` + saleColumns + ` FROM sales`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	if filter.Descending {
		query += ` ORDER BY created_at DESC, id DESC`
	} else {
		query += ` ORDER BY created_at ASC, id ASC`
	}
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.Persistence("list sales", err)
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 64)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, store.Persistence("list sales", err)
		}
		sales = append(sales, *sale)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Persistence("list sales", err)
	}

	if err := s.attachItems(ctx, sales); err != nil {
		return nil, store.Persistence("list sales", err)
	}
	return sales, nil
}

// attachItems loads the lines of every sale in one round trip.
func (s *Store) attachItems(ctx context.Context, sales []domain.Sale) error {
	if len(sales) == 0 {
		return nil
	}
	ids := make([]string, len(sales))
	index := make(map[string]int, len(sales))
	for i, sale := range sales {
		ids[i] = sale.ID
		index[sale.ID] = i
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT sale_id, product_id, name, price, quantity
		FROM sale_items
		WHERE sale_id = ANY($1)
		ORDER BY sale_id, line_no
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var saleID string
		var item domain.SaleItem
		if err := rows.Scan(&saleID, &item.ProductID, &item.Name, &item.Price, &item.Quantity); err != nil {
			return err
		}
		i := index[saleID]
		sales[i].Items = append(sales[i].Items, item)
	}
	return rows.Err()
}
