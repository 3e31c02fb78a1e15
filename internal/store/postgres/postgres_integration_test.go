package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"posledger/backend/internal/domain"
	"posledger/backend/internal/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	databaseURL := os.Getenv("POSLEDGER_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set POSLEDGER_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func seedProduct(t *testing.T, s *Store, id string, stock int) {
	t.Helper()
	now := time.Now().UTC()
	if _, err := s.CreateProduct(context.Background(), domain.Product{
		ID: id, Name: "IT " + id, Category: "snack",
		Price: decimal.NewFromInt(100), Cost: decimal.NewFromInt(60), Stock: stock,
		Active: true, CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("create product: %v", err)
	}
}

func cleanup(t *testing.T, s *Store, productID string, phone string) {
	t.Cleanup(func() {
		ctx := context.Background()
		_, _ = s.db.ExecContext(ctx, `DELETE FROM points_transactions WHERE customer_id IN (SELECT id FROM customers WHERE phone = $1) AND source_id IS NOT NULL`, phone)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM points_transactions WHERE customer_id IN (SELECT id FROM customers WHERE phone = $1)`, phone)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sale_items WHERE product_id = $1`, productID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sales WHERE customer_phone = $1`, phone)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM customers WHERE phone = $1`, phone)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID)
	})
}

func TestRecordSaleCreatesCustomerAndMovesPoints(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	stamp := time.Now().UnixNano()
	productID := fmt.Sprintf("prd-it-%d", stamp)
	phone := fmt.Sprintf("09%08d", stamp%100000000)
	seedProduct(t, s, productID, 10)
	cleanup(t, s, productID, phone)

	at := time.Now().UTC()
	sale, customer, err := s.RecordSale(ctx, domain.SaleRecord{
		Sale: domain.Sale{
			ID:             fmt.Sprintf("sale-it-%d", stamp),
			Items:          []domain.SaleItem{{ProductID: productID, Name: "IT " + productID, Price: decimal.NewFromInt(100), Quantity: 3}},
			Subtotal:       decimal.NewFromInt(300),
			DiscountAmount: decimal.Zero,
			PointsEarned:   30,
			TotalAmount:    decimal.NewFromInt(300),
			PaymentMethod:  domain.PaymentCash,
			TimeZone:       "UTC",
			CreatedAt:      at,
		},
		Customer:   domain.CustomerRef{Phone: phone, Name: "Integration"},
		NewID:      fmt.Sprintf("cus-it-%d", stamp),
		EarnID:     fmt.Sprintf("pts-it-earn-%d", stamp),
		RedeemID:   fmt.Sprintf("pts-it-redeem-%d", stamp),
		EarnExpiry: at.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("record sale: %v", err)
	}
	if sale.CustomerID == "" || customer == nil {
		t.Fatalf("expected customer to be created")
	}
	if customer.Points != 30 || !customer.TotalPurchases.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("unexpected customer state: points=%d spend=%s", customer.Points, customer.TotalPurchases)
	}

	sum, err := s.SumPoints(ctx, customer.ID)
	if err != nil {
		t.Fatalf("sum points: %v", err)
	}
	if sum != customer.Points {
		t.Fatalf("ledger sum %d does not match balance %d", sum, customer.Points)
	}

	product, err := s.GetProduct(ctx, productID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Stock != 7 {
		t.Fatalf("expected stock 7, got %d", product.Stock)
	}

	stored, err := s.GetSale(ctx, sale.ID)
	if err != nil {
		t.Fatalf("get sale: %v", err)
	}
	if len(stored.Items) != 1 || stored.Items[0].Quantity != 3 {
		t.Fatalf("unexpected stored items: %+v", stored.Items)
	}
}

func TestRecordSaleRollsBackOnInsufficientStock(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	stamp := time.Now().UnixNano()
	productID := fmt.Sprintf("prd-it-%d", stamp)
	phone := fmt.Sprintf("08%08d", stamp%100000000)
	seedProduct(t, s, productID, 1)
	cleanup(t, s, productID, phone)

	_, _, err := s.RecordSale(ctx, domain.SaleRecord{
		Sale: domain.Sale{
			ID:            fmt.Sprintf("sale-it-%d", stamp),
			Items:         []domain.SaleItem{{ProductID: productID, Name: "IT", Price: decimal.NewFromInt(100), Quantity: 2}},
			Subtotal:      decimal.NewFromInt(200),
			TotalAmount:   decimal.NewFromInt(200),
			PointsEarned:  20,
			PaymentMethod: domain.PaymentCash,
			TimeZone:      "UTC",
			CreatedAt:     time.Now().UTC(),
		},
		Customer: domain.CustomerRef{Phone: phone},
		NewID:    fmt.Sprintf("cus-it-%d", stamp),
		EarnID:   fmt.Sprintf("pts-it-earn-%d", stamp),
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if _, err := s.FindCustomerByPhone(ctx, phone); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected customer creation to roll back, got %v", err)
	}
}

func TestConcurrentRedeemNeverOverdraws(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	stamp := time.Now().UnixNano()
	phone := fmt.Sprintf("07%08d", stamp%100000000)
	cleanup(t, s, "", phone)

	now := time.Now().UTC()
	customer, err := s.CreateCustomer(ctx, domain.Customer{
		ID: fmt.Sprintf("cus-it-%d", stamp), Name: "Race", Phone: phone,
		MembershipLevel: domain.TierBronze, IsActive: true, CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	if _, err := s.AppendPoints(ctx, domain.PointsTransaction{
		ID: fmt.Sprintf("pts-it-seed-%d", stamp), CustomerID: customer.ID, Kind: domain.PointsAdjust,
		Points: 100, Description: "seed", CreatedAt: now,
	}); err != nil {
		t.Fatalf("seed points: %v", err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.AppendPoints(ctx, domain.PointsTransaction{
				ID: fmt.Sprintf("pts-it-race-%d-%d", stamp, i), CustomerID: customer.ID, Kind: domain.PointsRedeem,
				Points: -40, Description: "race", CreatedAt: time.Now().UTC(),
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if succeeded != 2 {
		t.Fatalf("expected exactly 2 redemptions to succeed, got %d", succeeded)
	}
	got, err := s.GetCustomer(ctx, customer.ID)
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	if got.Points != 20 {
		t.Fatalf("expected balance 20, got %d", got.Points)
	}
}
