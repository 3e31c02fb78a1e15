package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"posledger/backend/internal/domain"
	"posledger/backend/internal/loyalty"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation failed")
	ErrInsufficientPoints = errors.New("insufficient points")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrDuplicatePhone     = errors.New("phone already registered")
)

// PersistenceError wraps a failure of the storage collaborator itself.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Persistence wraps err unless it is nil or already one of the sentinels
// above, which callers match with errors.Is.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{ErrNotFound, ErrValidation, ErrInsufficientPoints, ErrInsufficientStock, ErrDuplicatePhone} {
		if errors.Is(err, known) {
			return err
		}
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// CheckPointsEarned rejects a sale crediting more than the buyer's tier
// yields on its total.
func CheckPointsEarned(sale domain.Sale, tier domain.Tier) error {
	if limit := loyalty.EarnedPoints(sale.TotalAmount, tier); sale.PointsEarned > limit {
		return fmt.Errorf("%w: points earned %d exceed %d for this sale", ErrValidation, sale.PointsEarned, limit)
	}
	return nil
}

// SaleFilter selects sales created in [From, To). Nil bounds are open.
type SaleFilter struct {
	From        *time.Time
	To          *time.Time
	CustomerID  string
	ProductName string
	Descending  bool
	Limit       int
}

type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)
	FindProductByName(ctx context.Context, name string) (*domain.Product, error)

	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	FindCustomerByPhone(ctx context.Context, phone string) (*domain.Customer, error)
	SearchCustomers(ctx context.Context, query string, limit int) ([]domain.Customer, error)
	UpdateCustomer(ctx context.Context, id string, update domain.CustomerUpdate) (*domain.Customer, error)

	// AppendPoints writes one ledger row and moves the balance by its delta
	// atomically. A negative delta that would take the balance below zero
	// fails with ErrInsufficientPoints and writes nothing.
	AppendPoints(ctx context.Context, entry domain.PointsTransaction) (*domain.Customer, error)
	ListPoints(ctx context.Context, customerID string, after *domain.PointsCursor, limit int) ([]domain.PointsTransaction, error)
	SumPoints(ctx context.Context, customerID string) (int64, error)
	ListDueEarnings(ctx context.Context, now time.Time, limit int) ([]domain.PointsTransaction, error)
	// ExpireEarning appends the expire row for one earn row, clamped to the
	// current balance. A second call for the same earn row is a no-op
	// returning ErrNotFound.
	ExpireEarning(ctx context.Context, earn domain.PointsTransaction, id string, at time.Time) (*domain.PointsTransaction, error)

	// RecordSale applies every step of a checkout or none of them.
	RecordSale(ctx context.Context, record domain.SaleRecord) (*domain.Sale, *domain.Customer, error)
	GetSale(ctx context.Context, id string) (*domain.Sale, error)
	ListSales(ctx context.Context, filter SaleFilter) ([]domain.Sale, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
