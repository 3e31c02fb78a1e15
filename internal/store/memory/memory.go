package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"posledger/backend/internal/domain"
	"posledger/backend/internal/loyalty"
	"posledger/backend/internal/store"
	"posledger/backend/internal/xid"
)

// Store keeps every aggregate behind one mutex, so each mutation, RecordSale
// included, is a single critical section.
type Store struct {
	mu                sync.RWMutex
	products          map[string]domain.Product
	customers         map[string]domain.Customer
	customerIDByPhone map[string]string
	pointsByCustomer  map[string][]domain.PointsTransaction
	expiredSources    map[string]bool
	sales             []domain.Sale
	saleIndex         map[string]int
	auditLogs         []domain.AuditLog
	usersByUsername   map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD
// environment variables. If unset, hardcoded dev defaults are used with a
// warning printed to stdout.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"cashier", cashierPwd, "cashier"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func New() *Store {
	return &Store{
		products:          make(map[string]domain.Product),
		customers:         make(map[string]domain.Customer),
		customerIDByPhone: make(map[string]string),
		pointsByCustomer:  make(map[string][]domain.PointsTransaction),
		expiredSources:    make(map[string]bool),
		sales:             make([]domain.Sale, 0, 256),
		saleIndex:         make(map[string]int),
		auditLogs:         make([]domain.AuditLog, 0, 128),
		usersByUsername:   make(map[string]domain.UserAccount),
	}
}

func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()
	for _, p := range []domain.Product{
		{ID: "prd-rice-5kg", Name: "Jasmine Rice 5kg", Category: "grocery", Price: decimal.NewFromInt(185), Cost: decimal.NewFromInt(150), Stock: 80},
		{ID: "prd-fish-sauce", Name: "Fish Sauce 700ml", Category: "grocery", Price: decimal.NewFromInt(45), Cost: decimal.NewFromInt(32), Stock: 120},
		{ID: "prd-instant-noodle", Name: "Instant Noodles", Category: "grocery", Price: decimal.NewFromInt(7), Cost: decimal.RequireFromString("5.5"), Stock: 500},
		{ID: "prd-coffee", Name: "Iced Coffee", Category: "beverage", Price: decimal.NewFromInt(55), Cost: decimal.NewFromInt(20), Stock: 200},
		{ID: "prd-green-tea", Name: "Green Tea Bottle", Category: "beverage", Price: decimal.NewFromInt(20), Cost: decimal.NewFromInt(12), Stock: 240},
		{ID: "prd-water", Name: "Drinking Water 1.5L", Category: "beverage", Price: decimal.NewFromInt(14), Cost: decimal.NewFromInt(8), Stock: 300},
		{ID: "prd-soap", Name: "Bar Soap", Category: "household", Price: decimal.NewFromInt(25), Cost: decimal.NewFromInt(15), Stock: 150},
		{ID: "prd-detergent", Name: "Laundry Detergent 1kg", Category: "household", Price: decimal.NewFromInt(89), Cost: decimal.NewFromInt(60), Stock: 90},
		{ID: "prd-chips", Name: "Potato Chips", Category: "snack", Price: decimal.NewFromInt(30), Cost: decimal.NewFromInt(18), Stock: 180},
		{ID: "prd-wafer", Name: "Chocolate Wafer", Category: "snack", Price: decimal.NewFromInt(15), Cost: decimal.NewFromInt(9), Stock: 220},
	} {
		p.Active = true
		p.CreatedAt = now
		p.UpdatedAt = now
		s.products[p.ID] = p
	}
	s.usersByUsername = seedUsers()
	return s
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if p.Active {
			products = append(products, p)
		}
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Category != b.Category {
			return cmpString(a.Category, b.Category)
		}
		return cmpString(a.Name, b.Name)
	})
	return products, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.Category == "" || product.Price.IsNegative() || product.Stock < 0 {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	if _, exists := s.products[product.ID]; exists {
		return nil, fmt.Errorf("%w: product %s exists", store.ErrValidation, product.ID)
	}
	s.products[product.ID] = product
	return &product, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[product.ID]; !exists {
		return nil, store.ErrNotFound
	}
	s.products[product.ID] = product
	return &product, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) GetProductsByIDs(_ context.Context, ids []string) (map[string]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			result[id] = p
		}
	}
	return result, nil
}

func (s *Store) FindProductByName(_ context.Context, name string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.products {
		if p.Name == name {
			return &p, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	created, err := s.insertCustomerLocked(customer)
	if err != nil {
		return nil, err
	}
	return cloneCustomer(&created), nil
}

func (s *Store) insertCustomerLocked(customer domain.Customer) (domain.Customer, error) {
	if customer.ID == "" || customer.Phone == "" {
		return domain.Customer{}, store.ErrValidation
	}
	if _, taken := s.customerIDByPhone[customer.Phone]; taken {
		return domain.Customer{}, store.ErrDuplicatePhone
	}
	s.customers[customer.ID] = customer
	s.customerIDByPhone[customer.Phone] = customer.ID
	return customer, nil
}

func (s *Store) GetCustomer(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneCustomer(&c), nil
}

func (s *Store) FindCustomerByPhone(_ context.Context, phone string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.customerIDByPhone[phone]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := s.customers[id]
	if !c.IsActive {
		return nil, store.ErrNotFound
	}
	return cloneCustomer(&c), nil
}

func (s *Store) SearchCustomers(_ context.Context, query string, limit int) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(query))
	result := make([]domain.Customer, 0, 32)
	for _, c := range s.customers {
		if !c.IsActive {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(c.Name), needle) && !strings.Contains(c.Phone, needle) {
			continue
		}
		result = append(result, *cloneCustomer(&c))
	}
	slices.SortFunc(result, func(a, b domain.Customer) int {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return b.CreatedAt.Compare(a.CreatedAt)
		}
		return cmpString(b.ID, a.ID)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) UpdateCustomer(_ context.Context, id string, update domain.CustomerUpdate) (*domain.Customer, error) {
	if update.Increment.TotalPurchases.IsNegative() {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.customers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if update.Set.Phone != nil && *update.Set.Phone != c.Phone {
		if _, taken := s.customerIDByPhone[*update.Set.Phone]; taken {
			return nil, store.ErrDuplicatePhone
		}
		delete(s.customerIDByPhone, c.Phone)
		s.customerIDByPhone[*update.Set.Phone] = c.ID
	}
	applyCustomerUpdate(&c, update, time.Now().UTC())
	s.customers[id] = c
	return cloneCustomer(&c), nil
}

// applyCustomerUpdate mirrors the SQL update: set fields, add increments,
// then re-derive the tier from the new lifetime spend.
func applyCustomerUpdate(c *domain.Customer, update domain.CustomerUpdate, now time.Time) {
	set := update.Set
	if set.Name != nil {
		c.Name = *set.Name
	}
	if set.Phone != nil {
		c.Phone = *set.Phone
	}
	if set.Email != nil {
		c.Email = *set.Email
	}
	if set.Address != nil {
		c.Address = *set.Address
	}
	if set.DateOfBirth != nil {
		dob := *set.DateOfBirth
		c.DateOfBirth = &dob
	}
	if set.Notes != nil {
		c.Notes = *set.Notes
	}
	if set.IsActive != nil {
		c.IsActive = *set.IsActive
	}
	if set.LastPurchase != nil {
		at := *set.LastPurchase
		c.LastPurchase = &at
	}
	if !update.Increment.TotalPurchases.IsZero() {
		c.TotalPurchases = c.TotalPurchases.Add(update.Increment.TotalPurchases)
		if tier := loyalty.TierFor(c.TotalPurchases); tier != c.MembershipLevel {
			c.MembershipLevel = tier
		}
	}
	c.UpdatedAt = now
}

func (s *Store) AppendPoints(_ context.Context, entry domain.PointsTransaction) (*domain.Customer, error) {
	if entry.ID == "" || entry.Points == 0 {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.customers[entry.CustomerID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if c.Points+entry.Points < 0 {
		return nil, store.ErrInsufficientPoints
	}
	s.appendPointsLocked(&c, entry)
	s.customers[c.ID] = c
	return cloneCustomer(&c), nil
}

func (s *Store) appendPointsLocked(c *domain.Customer, entry domain.PointsTransaction) {
	c.Points += entry.Points
	c.UpdatedAt = entry.CreatedAt
	s.pointsByCustomer[c.ID] = append(s.pointsByCustomer[c.ID], entry)
}

func (s *Store) ListPoints(_ context.Context, customerID string, after *domain.PointsCursor, limit int) ([]domain.PointsTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.customers[customerID]; !ok {
		return nil, store.ErrNotFound
	}

	entries := slices.Clone(s.pointsByCustomer[customerID])
	slices.SortFunc(entries, newestFirst)

	result := make([]domain.PointsTransaction, 0, min(len(entries), max(limit, 0)))
	for _, entry := range entries {
		if after != nil && !olderThan(entry, *after) {
			continue
		}
		result = append(result, clonePoints(entry))
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

func (s *Store) SumPoints(_ context.Context, customerID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := int64(0)
	for _, entry := range s.pointsByCustomer[customerID] {
		total += entry.Points
	}
	return total, nil
}

func (s *Store) ListDueEarnings(_ context.Context, now time.Time, limit int) ([]domain.PointsTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	due := make([]domain.PointsTransaction, 0, 32)
	for _, entries := range s.pointsByCustomer {
		for _, entry := range entries {
			if entry.Kind != domain.PointsEarn || entry.ExpiresAt == nil || entry.ExpiresAt.After(now) {
				continue
			}
			if s.expiredSources[entry.ID] {
				continue
			}
			due = append(due, clonePoints(entry))
		}
	}
	slices.SortFunc(due, func(a, b domain.PointsTransaction) int {
		if !a.ExpiresAt.Equal(*b.ExpiresAt) {
			return a.ExpiresAt.Compare(*b.ExpiresAt)
		}
		return cmpString(a.ID, b.ID)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *Store) ExpireEarning(_ context.Context, earn domain.PointsTransaction, id string, at time.Time) (*domain.PointsTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.expiredSources[earn.ID] {
		return nil, store.ErrNotFound
	}
	c, ok := s.customers[earn.CustomerID]
	if !ok {
		return nil, store.ErrNotFound
	}

	amount := min(earn.Points, max(c.Points, 0))
	entry := domain.PointsTransaction{
		ID:          id,
		CustomerID:  c.ID,
		Kind:        domain.PointsExpire,
		Points:      -amount,
		Description: fmt.Sprintf("expired points from %s", earn.ID),
		SourceID:    earn.ID,
		CreatedAt:   at,
	}
	s.appendPointsLocked(&c, entry)
	s.customers[c.ID] = c
	s.expiredSources[earn.ID] = true
	return &entry, nil
}

func (s *Store) RecordSale(_ context.Context, record domain.SaleRecord) (*domain.Sale, *domain.Customer, error) {
	sale := record.Sale
	if sale.ID == "" || len(sale.Items) == 0 {
		return nil, nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Check everything first; nothing below the commit line can fail.
	need := make(map[string]int, len(sale.Items))
	for _, item := range sale.Items {
		need[item.ProductID] += item.Quantity
	}
	for productID, qty := range need {
		p, ok := s.products[productID]
		if !ok {
			return nil, nil, fmt.Errorf("%w: product %s", store.ErrNotFound, productID)
		}
		if p.Stock < qty {
			return nil, nil, fmt.Errorf("%w: %s has %d, need %d", store.ErrInsufficientStock, p.Name, p.Stock, qty)
		}
	}

	var customer *domain.Customer
	isNew := false
	switch {
	case record.Customer.ID != "":
		c, ok := s.customers[record.Customer.ID]
		if !ok || !c.IsActive {
			return nil, nil, fmt.Errorf("%w: customer %s", store.ErrNotFound, record.Customer.ID)
		}
		customer = &c
	case record.Customer.Phone != "":
		if id, ok := s.customerIDByPhone[record.Customer.Phone]; ok {
			c := s.customers[id]
			customer = &c
		} else {
			customer = newCustomer(record.NewID, record.Customer, sale.CreatedAt)
			isNew = true
		}
	}

	if customer == nil {
		if sale.PointsUsed > 0 {
			return nil, nil, fmt.Errorf("%w: redeeming points requires a customer", store.ErrValidation)
		}
		sale.PointsEarned = 0
	} else {
		if err := store.CheckPointsEarned(sale, customer.MembershipLevel); err != nil {
			return nil, nil, err
		}
		if sale.PointsUsed > customer.Points+sale.PointsEarned {
			return nil, nil, store.ErrInsufficientPoints
		}
	}

	// Commit.
	if customer != nil {
		if isNew {
			if _, err := s.insertCustomerLocked(*customer); err != nil {
				return nil, nil, err
			}
		}
		if !customer.IsActive {
			active := true
			applyCustomerUpdate(customer, domain.CustomerUpdate{Set: domain.CustomerSet{IsActive: &active}}, sale.CreatedAt)
		}
		sale.CustomerID = customer.ID
		sale.CustomerName = customer.Name
		sale.CustomerPhone = customer.Phone
	}

	for productID, qty := range need {
		p := s.products[productID]
		p.Stock -= qty
		p.UpdatedAt = sale.CreatedAt
		s.products[productID] = p
	}

	if customer != nil {
		if sale.PointsEarned > 0 {
			expiry := record.EarnExpiry
			s.appendPointsLocked(customer, domain.PointsTransaction{
				ID:          record.EarnID,
				CustomerID:  customer.ID,
				Kind:        domain.PointsEarn,
				Points:      sale.PointsEarned,
				Description: fmt.Sprintf("earned from sale %s", sale.ID),
				SaleID:      sale.ID,
				CreatedAt:   sale.CreatedAt,
				ExpiresAt:   &expiry,
			})
		}
		if sale.PointsUsed > 0 {
			s.appendPointsLocked(customer, domain.PointsTransaction{
				ID:          record.RedeemID,
				CustomerID:  customer.ID,
				Kind:        domain.PointsRedeem,
				Points:      -sale.PointsUsed,
				Description: fmt.Sprintf("redeemed on sale %s", sale.ID),
				SaleID:      sale.ID,
				CreatedAt:   sale.CreatedAt,
			})
		}
		if sale.TotalAmount.IsPositive() {
			at := sale.CreatedAt
			applyCustomerUpdate(customer, domain.CustomerUpdate{
				Set:       domain.CustomerSet{LastPurchase: &at},
				Increment: domain.CustomerIncrement{TotalPurchases: sale.TotalAmount},
			}, sale.CreatedAt)
		}
		s.customers[customer.ID] = *customer
	}

	sale.Items = slices.Clone(sale.Items)
	s.saleIndex[sale.ID] = len(s.sales)
	s.sales = append(s.sales, sale)

	out := sale
	out.Items = slices.Clone(sale.Items)
	return &out, cloneCustomer(customer), nil
}

func newCustomer(id string, ref domain.CustomerRef, at time.Time) *domain.Customer {
	name := ref.Name
	if name == "" {
		name = ref.Phone
	}
	return &domain.Customer{
		ID:              id,
		Name:            name,
		Phone:           ref.Phone,
		TotalPurchases:  decimal.Zero,
		MembershipLevel: domain.TierBronze,
		IsActive:        true,
		CreatedAt:       at,
		UpdatedAt:       at,
	}
}

func (s *Store) GetSale(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.saleIndex[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	sale := s.sales[idx]
	sale.Items = slices.Clone(sale.Items)
	return &sale, nil
}

func (s *Store) ListSales(_ context.Context, filter store.SaleFilter) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Sale, 0, 64)
	for _, sale := range s.sales {
		if filter.From != nil && sale.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !sale.CreatedAt.Before(*filter.To) {
			continue
		}
		if filter.CustomerID != "" && sale.CustomerID != filter.CustomerID {
			continue
		}
		if filter.ProductName != "" && !slices.ContainsFunc(sale.Items, func(item domain.SaleItem) bool {
			return item.Name == filter.ProductName
		}) {
			continue
		}
		sale.Items = slices.Clone(sale.Items)
		result = append(result, sale)
	}

	slices.SortStableFunc(result, func(a, b domain.Sale) int {
		if filter.Descending {
			return b.CreatedAt.Compare(a.CreatedAt)
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, 64)
	for _, entry := range s.auditLogs {
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		result = append(result, entry)
	}

	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrValidation
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrValidation
	}
	user.Username = username
	if user.Role == "" {
		user.Role = "cashier"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrValidation
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func newestFirst(a, b domain.PointsTransaction) int {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return b.CreatedAt.Compare(a.CreatedAt)
	}
	return cmpString(b.ID, a.ID)
}

func olderThan(entry domain.PointsTransaction, cursor domain.PointsCursor) bool {
	if entry.CreatedAt.Equal(cursor.CreatedAt) {
		return entry.ID < cursor.ID
	}
	return entry.CreatedAt.Before(cursor.CreatedAt)
}

func cmpString(a string, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

func cloneCustomer(src *domain.Customer) *domain.Customer {
	if src == nil {
		return nil
	}
	dst := *src
	if src.DateOfBirth != nil {
		dob := *src.DateOfBirth
		dst.DateOfBirth = &dob
	}
	if src.LastPurchase != nil {
		at := *src.LastPurchase
		dst.LastPurchase = &at
	}
	return &dst
}

func clonePoints(src domain.PointsTransaction) domain.PointsTransaction {
	if src.ExpiresAt != nil {
		at := *src.ExpiresAt
		src.ExpiresAt = &at
	}
	return src
}
