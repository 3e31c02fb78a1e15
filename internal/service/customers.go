package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"posledger/backend/internal/domain"
	"posledger/backend/internal/store"
	"posledger/backend/internal/xid"
)

const defaultCustomerLimit = 50

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (domain.Customer, error) {
	name := strings.TrimSpace(req.Name)
	phone := strings.TrimSpace(req.Phone)
	if name == "" {
		return domain.Customer{}, fmt.Errorf("%w: name is required", store.ErrValidation)
	}
	if !validPhone(phone) {
		return domain.Customer{}, fmt.Errorf("%w: phone must be 10 digits starting with 0", store.ErrValidation)
	}

	now := s.now()
	created, err := s.repo.CreateCustomer(ctx, domain.Customer{
		ID:              xid.New("cus"),
		Name:            name,
		Phone:           phone,
		Email:           strings.TrimSpace(req.Email),
		Address:         strings.TrimSpace(req.Address),
		DateOfBirth:     req.DateOfBirth,
		Notes:           strings.TrimSpace(req.Notes),
		TotalPurchases:  decimal.Zero,
		MembershipLevel: domain.TierBronze,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		return domain.Customer{}, err
	}

	s.logAudit(ctx, "customer_create", "customer", created.ID, fmt.Sprintf("phone=%s", created.Phone))
	return *created, nil
}

func (s *Service) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	customer, err := s.repo.GetCustomer(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Customer{}, err
	}
	if !customer.IsActive {
		return domain.Customer{}, fmt.Errorf("%w: customer %s", store.ErrNotFound, id)
	}
	return *customer, nil
}

// ListCustomers returns active customers, newest first.
func (s *Service) ListCustomers(ctx context.Context, limit int) ([]domain.Customer, error) {
	return s.SearchCustomers(ctx, "", limit)
}

func (s *Service) SearchCustomers(ctx context.Context, query string, limit int) ([]domain.Customer, error) {
	if limit < 1 {
		limit = defaultCustomerLimit
	}
	return s.repo.SearchCustomers(ctx, strings.TrimSpace(query), limit)
}

func (s *Service) FindCustomerByPhone(ctx context.Context, phone string) (domain.Customer, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return domain.Customer{}, fmt.Errorf("%w: phone is required", store.ErrValidation)
	}
	customer, err := s.repo.FindCustomerByPhone(ctx, phone)
	if err != nil {
		return domain.Customer{}, err
	}
	return *customer, nil
}

func (s *Service) UpdateCustomer(ctx context.Context, id string, req domain.CustomerUpdateRequest) (domain.Customer, error) {
	var update domain.CustomerUpdate
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Customer{}, fmt.Errorf("%w: name must not be empty", store.ErrValidation)
		}
		update.Set.Name = &name
	}
	if req.Phone != nil {
		phone := strings.TrimSpace(*req.Phone)
		if !validPhone(phone) {
			return domain.Customer{}, fmt.Errorf("%w: phone must be 10 digits starting with 0", store.ErrValidation)
		}
		update.Set.Phone = &phone
	}
	if req.Email != nil {
		email := strings.TrimSpace(*req.Email)
		update.Set.Email = &email
	}
	if req.Address != nil {
		address := strings.TrimSpace(*req.Address)
		update.Set.Address = &address
	}
	if req.Notes != nil {
		notes := strings.TrimSpace(*req.Notes)
		update.Set.Notes = &notes
	}
	update.Set.DateOfBirth = req.DateOfBirth
	if update.IsZero() {
		return domain.Customer{}, fmt.Errorf("%w: nothing to update", store.ErrValidation)
	}

	if _, err := s.GetCustomer(ctx, id); err != nil {
		return domain.Customer{}, err
	}
	updated, err := s.repo.UpdateCustomer(ctx, strings.TrimSpace(id), update)
	if err != nil {
		return domain.Customer{}, err
	}

	s.logAudit(ctx, "customer_update", "customer", updated.ID, fmt.Sprintf("name=%s,phone=%s", updated.Name, updated.Phone))
	return *updated, nil
}

// DeleteCustomer deactivates the customer. The ledger and sales stay.
func (s *Service) DeleteCustomer(ctx context.Context, id string) error {
	if _, err := s.GetCustomer(ctx, id); err != nil {
		return err
	}
	inactive := false
	deleted, err := s.repo.UpdateCustomer(ctx, strings.TrimSpace(id), domain.CustomerUpdate{
		Set: domain.CustomerSet{IsActive: &inactive},
	})
	if err != nil {
		return err
	}

	s.logAudit(ctx, "customer_delete", "customer", deleted.ID, fmt.Sprintf("phone=%s", deleted.Phone))
	return nil
}

// UpdatePurchaseAmount grows lifetime spend outside of a checkout. The store
// re-derives the tier from the new total.
func (s *Service) UpdatePurchaseAmount(ctx context.Context, id string, amount decimal.Decimal) (domain.Customer, error) {
	if !amount.IsPositive() {
		return domain.Customer{}, fmt.Errorf("%w: purchase amount must be positive", store.ErrValidation)
	}
	now := s.now()
	updated, err := s.repo.UpdateCustomer(ctx, strings.TrimSpace(id), domain.CustomerUpdate{
		Set:       domain.CustomerSet{LastPurchase: &now},
		Increment: domain.CustomerIncrement{TotalPurchases: amount},
	})
	if err != nil {
		return domain.Customer{}, err
	}
	return *updated, nil
}

func (s *Service) PurchaseHistory(ctx context.Context, id string, limit int) ([]domain.Sale, error) {
	customer, err := s.repo.GetCustomer(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = defaultCustomerLimit
	}

	sales, err := s.repo.ListSales(ctx, store.SaleFilter{CustomerID: customer.ID, Descending: true, Limit: limit})
	if err != nil {
		return nil, err
	}
	for i := range sales {
		s.localize(&sales[i])
	}
	return sales, nil
}

func validPhone(phone string) bool {
	if len(phone) != 10 || phone[0] != '0' {
		return false
	}
	for _, r := range phone {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
