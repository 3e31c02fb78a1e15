package reporting

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"posledger/backend/internal/cache"
	"posledger/backend/internal/domain"
	"posledger/backend/internal/store"
	"posledger/backend/internal/store/memory"
)

var bangkok = time.FixedZone("ICT", 7*3600)

type mapCache struct {
	items map[string]domain.SalesReport
	sets  int
}

func (c *mapCache) Get(_ context.Context, key string) (*domain.SalesReport, bool, error) {
	r, ok := c.items[key]
	if !ok {
		return nil, false, nil
	}
	return &r, true, nil
}

func (c *mapCache) Set(_ context.Context, key string, value *domain.SalesReport, _ time.Duration) error {
	c.items[key] = *value
	c.sets++
	return nil
}

func record(t *testing.T, s *memory.Store, id string, at time.Time, items ...domain.SaleItem) {
	t.Helper()
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal())
	}
	if _, _, err := s.RecordSale(context.Background(), domain.SaleRecord{
		Sale: domain.Sale{
			ID:            id,
			Items:         items,
			Subtotal:      subtotal,
			TotalAmount:   subtotal,
			PaymentMethod: domain.PaymentCash,
			TimeZone:      "Asia/Bangkok",
			CreatedAt:     at.UTC(),
		},
	}); err != nil {
		t.Fatalf("record %s: %v", id, err)
	}
}

func coffee(qty int) domain.SaleItem {
	return domain.SaleItem{ProductID: "prd-coffee", Name: "Iced Coffee", Price: decimal.NewFromInt(55), Quantity: qty}
}

func chips(qty int) domain.SaleItem {
	return domain.SaleItem{ProductID: "prd-chips", Name: "Potato Chips", Price: decimal.NewFromInt(30), Quantity: qty}
}

func newTestEngine(s *memory.Store, c *mapCache) *Engine {
	var rc cache.ReportCache
	if c != nil {
		rc = c
	}
	e := NewEngine(s, rc, time.Minute, bangkok)
	e.now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, bangkok) }
	return e
}

func TestWindowCoversWholeLocalDays(t *testing.T) {
	e := newTestEngine(memory.New(), nil)

	from, to, err := e.Window("2026-03-01", "2026-03-02")
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	if want := time.Date(2026, 3, 1, 0, 0, 0, 0, bangkok); !from.Equal(want) {
		t.Fatalf("expected start %s, got %s", want, from)
	}
	if want := time.Date(2026, 3, 3, 0, 0, 0, 0, bangkok); !to.Equal(want) {
		t.Fatalf("expected end %s, got %s", want, to)
	}

	from, to, err = e.Window("", "")
	if err != nil {
		t.Fatalf("default window: %v", err)
	}
	if from.Format(dateLayout) != "2026-02-08" || to.Format(dateLayout) != "2026-03-11" {
		t.Fatalf("unexpected default window %s..%s", from, to)
	}

	if _, _, err := e.Window("2026-03-05", "2026-03-01"); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for inverted window, got %v", err)
	}
	if _, _, err := e.Window("03/01/2026", ""); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for bad date, got %v", err)
	}
}

func TestSalesReportIncludesLastMillisecondOfEndDay(t *testing.T) {
	s := memory.NewSeeded()
	record(t, s, "s-in", time.Date(2026, 3, 2, 23, 59, 59, 999000000, bangkok), coffee(1))
	record(t, s, "s-out", time.Date(2026, 3, 3, 0, 0, 0, 0, bangkok), coffee(1))
	record(t, s, "s-before", time.Date(2026, 2, 28, 23, 59, 59, 0, bangkok), coffee(1))

	report, err := newTestEngine(s, &mapCache{items: map[string]domain.SalesReport{}}).SalesReport(context.Background(), domain.ReportQuery{
		StartDate: "2026-03-01",
		EndDate:   "2026-03-02",
	})
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if report.TotalTransactions != 1 {
		t.Fatalf("expected exactly the boundary sale, got %d", report.TotalTransactions)
	}
	if len(report.DailySales) != 1 || report.DailySales[0].Date != "2026-03-02" {
		t.Fatalf("expected the sale on its local day, got %+v", report.DailySales)
	}
}

func TestSalesReportAggregates(t *testing.T) {
	s := memory.NewSeeded()
	day := time.Date(2026, 3, 5, 9, 0, 0, 0, bangkok)
	record(t, s, "s1", day, coffee(2), chips(1))
	record(t, s, "s2", day.Add(2*time.Hour), coffee(1))
	record(t, s, "s3", day.AddDate(0, 0, 1), chips(4))

	report, err := newTestEngine(s, &mapCache{items: map[string]domain.SalesReport{}}).SalesReport(context.Background(), domain.ReportQuery{
		StartDate: "2026-03-01",
		EndDate:   "2026-03-10",
	})
	if err != nil {
		t.Fatalf("report: %v", err)
	}

	// coffee: 3 x 55 = 165 revenue, cost 60. chips: 5 x 30 = 150 revenue, cost 90.
	if !report.TotalSales.Equal(decimal.NewFromInt(315)) {
		t.Fatalf("expected total sales 315, got %s", report.TotalSales)
	}
	if !report.TotalCost.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("expected total cost 150, got %s", report.TotalCost)
	}
	if !report.TotalProfit.Equal(decimal.NewFromInt(165)) {
		t.Fatalf("expected total profit 165, got %s", report.TotalProfit)
	}
	if !report.ProfitMargin.Equal(decimal.RequireFromString("52.38")) {
		t.Fatalf("expected margin 52.38, got %s", report.ProfitMargin)
	}
	if report.TotalTransactions != 3 || !report.AverageTransaction.Equal(decimal.NewFromInt(105)) {
		t.Fatalf("unexpected count/average %d/%s", report.TotalTransactions, report.AverageTransaction)
	}

	if len(report.TopProducts) != 2 || report.TopProducts[0].Name != "Iced Coffee" {
		t.Fatalf("expected coffee first by profit, got %+v", report.TopProducts)
	}
	if len(report.CategoryReport) != 2 || report.CategoryReport[0].Category != "beverage" {
		t.Fatalf("expected beverage first by revenue, got %+v", report.CategoryReport)
	}
	if report.CategoryReport[0].Transactions != 2 {
		t.Fatalf("category transactions count line items, got %d", report.CategoryReport[0].Transactions)
	}

	if len(report.DailySales) != 2 || report.DailySales[0].Date != "2026-03-05" {
		t.Fatalf("unexpected daily series %+v", report.DailySales)
	}
	first := report.DailySales[0]
	if !first.Sales.Equal(decimal.NewFromInt(195)) || !first.Cost.Equal(decimal.NewFromInt(78)) || !first.Profit.Equal(decimal.NewFromInt(117)) {
		t.Fatalf("unexpected first day %+v", first)
	}
	if report.TimeZone != "ICT" || report.ReportType != domain.ReportStandard {
		t.Fatalf("unexpected metadata %s/%s", report.TimeZone, report.ReportType)
	}
}

func TestTotalProfitMatchesDailySeriesWithDiscounts(t *testing.T) {
	s := memory.NewSeeded()
	day := time.Date(2026, 3, 5, 9, 0, 0, 0, bangkok)
	// coffee x10: 550 less a 55 discount, cost 200.
	if _, _, err := s.RecordSale(context.Background(), domain.SaleRecord{
		Sale: domain.Sale{
			ID:             "d1",
			Items:          []domain.SaleItem{coffee(10)},
			Subtotal:       decimal.NewFromInt(550),
			DiscountAmount: decimal.NewFromInt(55),
			TotalAmount:    decimal.NewFromInt(495),
			PaymentMethod:  domain.PaymentCash,
			TimeZone:       "Asia/Bangkok",
			CreatedAt:      day.UTC(),
		},
	}); err != nil {
		t.Fatalf("record d1: %v", err)
	}
	record(t, s, "d2", day.AddDate(0, 0, 1), chips(2))

	report, err := newTestEngine(s, nil).SalesReport(context.Background(), domain.ReportQuery{StartDate: "2026-03-05", EndDate: "2026-03-06"})
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if !report.TotalProfit.Equal(decimal.NewFromInt(319)) {
		t.Fatalf("expected net profit 319, got %s", report.TotalProfit)
	}
	daily := decimal.Zero
	for _, ds := range report.DailySales {
		daily = daily.Add(ds.Profit)
	}
	if !daily.Equal(report.TotalProfit) {
		t.Fatalf("daily profit %s does not add up to total %s", daily, report.TotalProfit)
	}
}

func TestNonStandardReportTypesRankByRevenue(t *testing.T) {
	s := memory.NewSeeded()
	day := time.Date(2026, 3, 5, 9, 0, 0, 0, bangkok)
	// chips: revenue 300 profit 120. coffee: revenue 275 profit 175.
	record(t, s, "s1", day, chips(10), coffee(5))

	e := newTestEngine(s, &mapCache{items: map[string]domain.SalesReport{}})
	standard, err := e.SalesReport(context.Background(), domain.ReportQuery{StartDate: "2026-03-05", EndDate: "2026-03-05"})
	if err != nil {
		t.Fatalf("standard report: %v", err)
	}
	if standard.TopProducts[0].Name != "Iced Coffee" {
		t.Fatalf("expected profit leader first, got %s", standard.TopProducts[0].Name)
	}

	for _, kind := range []string{domain.ReportRevenue, "category", "weekly"} {
		report, err := e.SalesReport(context.Background(), domain.ReportQuery{StartDate: "2026-03-05", EndDate: "2026-03-05", ReportType: kind})
		if err != nil {
			t.Fatalf("%s report: %v", kind, err)
		}
		if report.ReportType != kind {
			t.Fatalf("expected report type %q echoed, got %q", kind, report.ReportType)
		}
		if report.TopProducts[0].Name != "Potato Chips" {
			t.Fatalf("%s report: expected revenue leader first, got %s", kind, report.TopProducts[0].Name)
		}
	}
}

func TestSubMillisecondSaleBeforeMidnightStaysOnItsDay(t *testing.T) {
	s := memory.NewSeeded()
	ctx := context.Background()
	record(t, s, "s-late", time.Date(2026, 3, 2, 23, 59, 59, 999500000, bangkok), coffee(1))

	e := newTestEngine(s, &mapCache{items: map[string]domain.SalesReport{}})
	same, err := e.SalesReport(ctx, domain.ReportQuery{StartDate: "2026-03-02", EndDate: "2026-03-02"})
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if same.TotalTransactions != 1 {
		t.Fatalf("expected the late sale in its own day, got %d", same.TotalTransactions)
	}
	if same.DateRange.EndDate != "2026-03-02T23:59:59.999+07:00" {
		t.Fatalf("unexpected displayed end %s", same.DateRange.EndDate)
	}

	next, err := e.SalesReport(ctx, domain.ReportQuery{StartDate: "2026-03-03", EndDate: "2026-03-03"})
	if err != nil {
		t.Fatalf("next day report: %v", err)
	}
	if next.TotalTransactions != 0 {
		t.Fatalf("expected nothing on the next day, got %d", next.TotalTransactions)
	}

	dd, err := e.DateDrillDown(ctx, "2026-03-02")
	if err != nil {
		t.Fatalf("drill down: %v", err)
	}
	if len(dd.Transactions) != 1 || dd.Transactions[0].Time != "23:59" {
		t.Fatalf("unexpected drill down rows %+v", dd.Transactions)
	}
}

func TestTopProductsCappedAtFive(t *testing.T) {
	s := memory.NewSeeded()
	day := time.Date(2026, 3, 5, 9, 0, 0, 0, bangkok)
	for i, id := range []string{"prd-rice-5kg", "prd-fish-sauce", "prd-instant-noodle", "prd-coffee", "prd-green-tea", "prd-water", "prd-soap"} {
		p, _ := s.GetProduct(context.Background(), id)
		record(t, s, fmt.Sprintf("s%d", i), day, domain.SaleItem{ProductID: id, Name: p.Name, Price: p.Price, Quantity: 1})
	}

	report, err := newTestEngine(s, &mapCache{items: map[string]domain.SalesReport{}}).SalesReport(context.Background(), domain.ReportQuery{StartDate: "2026-03-05", EndDate: "2026-03-05"})
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if len(report.TopProducts) != 5 {
		t.Fatalf("expected 5 top products, got %d", len(report.TopProducts))
	}
}

func TestSalesReportServedFromCache(t *testing.T) {
	s := memory.NewSeeded()
	c := &mapCache{items: map[string]domain.SalesReport{}}
	e := newTestEngine(s, c)
	query := domain.ReportQuery{StartDate: "2026-03-05", EndDate: "2026-03-05"}

	if _, err := e.SalesReport(context.Background(), query); err != nil {
		t.Fatalf("first report: %v", err)
	}
	record(t, s, "s1", time.Date(2026, 3, 5, 9, 0, 0, 0, bangkok), coffee(1))
	cached, err := e.SalesReport(context.Background(), query)
	if err != nil {
		t.Fatalf("second report: %v", err)
	}
	if c.sets != 1 || cached.TotalTransactions != 0 {
		t.Fatalf("expected cached report, sets=%d transactions=%d", c.sets, cached.TotalTransactions)
	}
}

func TestDateDrillDown(t *testing.T) {
	s := memory.NewSeeded()
	ctx := context.Background()
	record(t, s, "s2", time.Date(2026, 3, 5, 14, 30, 0, 0, bangkok), chips(2))
	record(t, s, "s1", time.Date(2026, 3, 5, 8, 5, 0, 0, bangkok), coffee(2), chips(1))
	record(t, s, "s3", time.Date(2026, 3, 6, 0, 0, 0, 0, bangkok), coffee(1))

	dd, err := newTestEngine(s, nil).DateDrillDown(ctx, "2026-03-05")
	if err != nil {
		t.Fatalf("drill down: %v", err)
	}
	if dd.Type != domain.DrillDownDate || len(dd.Transactions) != 2 {
		t.Fatalf("unexpected drill down %+v", dd)
	}
	first := dd.Transactions[0]
	if first.ID != "s1" || first.Time != "08:05" {
		t.Fatalf("expected s1 at 08:05 first, got %s at %s", first.ID, first.Time)
	}
	if first.Items[0] != "Iced Coffee (2)" || first.Customer != WalkIn || first.PaymentMethod != domain.PaymentCash {
		t.Fatalf("unexpected row %+v", first)
	}
	if !first.Cost.Equal(decimal.NewFromInt(58)) || !first.Profit.Equal(decimal.NewFromInt(82)) {
		t.Fatalf("unexpected cost/profit %s/%s", first.Cost, first.Profit)
	}
	if dd.Summary.TotalTransactions != 2 || !dd.Summary.TotalSales.Equal(decimal.NewFromInt(200)) || !dd.Summary.AverageTransaction.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("unexpected summary %+v", dd.Summary)
	}

	if _, err := newTestEngine(s, nil).DateDrillDown(ctx, "yesterday"); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestProductDrillDown(t *testing.T) {
	s := memory.NewSeeded()
	ctx := context.Background()
	record(t, s, "s1", time.Date(2026, 3, 5, 8, 0, 0, 0, bangkok), coffee(2))
	record(t, s, "s2", time.Date(2026, 3, 5, 18, 0, 0, 0, bangkok), coffee(1), chips(1))
	record(t, s, "s3", time.Date(2026, 3, 7, 10, 0, 0, 0, bangkok), domain.SaleItem{ProductID: "prd-coffee", Name: "Iced Coffee", Price: decimal.NewFromInt(50), Quantity: 1})

	e := newTestEngine(s, nil)
	dd, err := e.ProductDrillDown(ctx, "Iced Coffee", "", "")
	if err != nil {
		t.Fatalf("drill down: %v", err)
	}
	if len(dd.DailyData) != 2 || dd.DailyData[0].Date != "2026-03-05" {
		t.Fatalf("unexpected daily data %+v", dd.DailyData)
	}
	day := dd.DailyData[0]
	if day.Quantity != 3 || day.Transactions != 2 || !day.Revenue.Equal(decimal.NewFromInt(165)) || !day.Cost.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("unexpected first day %+v", day)
	}
	if !dd.Summary.AvgPrice.Equal(decimal.NewFromInt(55)) || dd.Summary.TotalQuantity != 4 || dd.Summary.TotalTransactions != 3 {
		t.Fatalf("unexpected summary %+v", dd.Summary)
	}
	if dd.ProductInfo.Category != "beverage" || !dd.Summary.CostPerUnit.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("unexpected product info %+v", dd.ProductInfo)
	}

	windowed, err := e.ProductDrillDown(ctx, "Iced Coffee", "2026-03-07", "2026-03-07")
	if err != nil {
		t.Fatalf("windowed drill down: %v", err)
	}
	if len(windowed.DailyData) != 1 || windowed.Summary.TotalQuantity != 1 {
		t.Fatalf("window not applied: %+v", windowed.DailyData)
	}

	unknown, err := e.ProductDrillDown(ctx, "Discontinued", "", "")
	if err != nil {
		t.Fatalf("unknown product: %v", err)
	}
	if unknown.ProductInfo.Category != Uncategorised || len(unknown.DailyData) != 0 {
		t.Fatalf("unexpected unknown product result %+v", unknown)
	}
}
