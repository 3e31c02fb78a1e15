package reporting

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"posledger/backend/internal/cache"
	"posledger/backend/internal/domain"
	"posledger/backend/internal/store"
)

const (
	dateLayout = "2006-01-02"
	// Uncategorised is reported for items whose product no longer exists.
	Uncategorised = "unspecified"
	WalkIn        = "walk-in"
)

// Source is the read side of the repository the engine aggregates over.
type Source interface {
	ListSales(ctx context.Context, filter store.SaleFilter) ([]domain.Sale, error)
	GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)
	FindProductByName(ctx context.Context, name string) (*domain.Product, error)
}

type Engine struct {
	source   Source
	cache    cache.ReportCache
	cacheTTL time.Duration
	loc      *time.Location
	topN     int
	now      func() time.Time
}

func NewEngine(source Source, cacheStore cache.ReportCache, cacheTTL time.Duration, loc *time.Location) *Engine {
	if cacheStore == nil {
		cacheStore = cache.NoopReportCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	if loc == nil {
		loc = time.UTC
	}

	return &Engine{
		source:   source,
		cache:    cacheStore,
		cacheTTL: cacheTTL,
		loc:      loc,
		topN:     5,
		now:      time.Now,
	}
}

func (e *Engine) Location() *time.Location {
	return e.loc
}

// Window turns two local civil dates into the half-open span
// [start of first day, start of the day after the last) in the shop time
// zone. Missing dates default to the thirty days ending today.
func (e *Engine) Window(startDate string, endDate string) (time.Time, time.Time, error) {
	today := e.now().In(e.loc)
	end := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, e.loc)
	if strings.TrimSpace(endDate) != "" {
		parsed, err := time.ParseInLocation(dateLayout, strings.TrimSpace(endDate), e.loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: end date must be YYYY-MM-DD", store.ErrValidation)
		}
		end = parsed
	}

	start := end.AddDate(0, 0, -30)
	if strings.TrimSpace(startDate) != "" {
		parsed, err := time.ParseInLocation(dateLayout, strings.TrimSpace(startDate), e.loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: start date must be YYYY-MM-DD", store.ErrValidation)
		}
		start = parsed
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start date after end date", store.ErrValidation)
	}

	return start, nextDay(end), nil
}

func nextDay(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day()+1, 0, 0, 0, 0, day.Location())
}

// lastMillisecond is the inclusive end shown to clients for a window ending at to.
func lastMillisecond(to time.Time) time.Time {
	return to.Add(-time.Millisecond)
}

func (e *Engine) SalesReport(ctx context.Context, query domain.ReportQuery) (domain.SalesReport, error) {
	reportType := query.ReportType
	if reportType == "" {
		reportType = domain.ReportStandard
	}

	from, to, err := e.Window(query.StartDate, query.EndDate)
	if err != nil {
		return domain.SalesReport{}, err
	}

	cacheKey := buildCacheKey(from, to, reportType, e.loc)
	if cached, ok, err := e.cache.Get(ctx, cacheKey); err == nil && ok {
		return *cached, nil
	} else if err != nil {
		log.Printf("[report] WARN: cache read failed: %v", err)
	}

	sales, err := e.source.ListSales(ctx, store.SaleFilter{From: &from, To: &to})
	if err != nil {
		return domain.SalesReport{}, err
	}
	products, err := e.source.GetProductsByIDs(ctx, productIDs(sales))
	if err != nil {
		return domain.SalesReport{}, err
	}

	report := e.aggregate(sales, products, reportType)
	report.DateRange = domain.DateRange{
		StartDate: from.Format(rangeLayout),
		EndDate:   lastMillisecond(to).Format(rangeLayout),
	}

	if err := e.cache.Set(ctx, cacheKey, &report, e.cacheTTL); err != nil {
		log.Printf("[report] WARN: cache write failed: %v", err)
	}
	return report, nil
}

const rangeLayout = "2006-01-02T15:04:05.000Z07:00"

func (e *Engine) aggregate(sales []domain.Sale, products map[string]domain.Product, reportType string) domain.SalesReport {
	totalSales := decimal.Zero
	totalCost := decimal.Zero

	byProduct := make(map[string]*domain.ProductSales)
	byCategory := make(map[string]*domain.CategorySales)
	byDay := make(map[string]*domain.DailySales)

	for _, sale := range sales {
		totalSales = totalSales.Add(sale.TotalAmount)
		saleCost := decimal.Zero

		for _, item := range sale.Items {
			product, known := products[item.ProductID]
			qty := decimal.NewFromInt(int64(item.Quantity))
			revenue := item.LineTotal()
			cost := decimal.Zero
			category := Uncategorised
			if known {
				cost = product.Cost.Mul(qty)
				category = product.Category
			}
			profit := revenue.Sub(cost)

			totalCost = totalCost.Add(cost)
			saleCost = saleCost.Add(cost)

			name := item.Name
			if name == "" {
				name = "Product " + item.ProductID
			}
			ps, ok := byProduct[name]
			if !ok {
				ps = &domain.ProductSales{Name: name, Category: category}
				byProduct[name] = ps
			}
			ps.Quantity += int64(item.Quantity)
			ps.Revenue = ps.Revenue.Add(revenue)
			ps.Cost = ps.Cost.Add(cost)
			ps.Profit = ps.Profit.Add(profit)

			cs, ok := byCategory[category]
			if !ok {
				cs = &domain.CategorySales{Category: category}
				byCategory[category] = cs
			}
			cs.Quantity += int64(item.Quantity)
			cs.Revenue = cs.Revenue.Add(revenue)
			cs.Cost = cs.Cost.Add(cost)
			cs.Profit = cs.Profit.Add(profit)
			cs.Transactions++
		}

		day := sale.CreatedAt.In(e.loc).Format(dateLayout)
		ds, ok := byDay[day]
		if !ok {
			ds = &domain.DailySales{Date: day}
			byDay[day] = ds
		}
		ds.Sales = ds.Sales.Add(sale.TotalAmount)
		ds.Cost = ds.Cost.Add(saleCost)
		ds.Profit = ds.Sales.Sub(ds.Cost)
		ds.Transactions++
	}

	// Sale-level profit is net of discounts, like the daily series. Product
	// and category rows stay at line price.
	totalProfit := totalSales.Sub(totalCost)

	topProducts := make([]domain.ProductSales, 0, len(byProduct))
	for _, ps := range byProduct {
		topProducts = append(topProducts, *ps)
	}
	sort.Slice(topProducts, func(i, j int) bool {
		a, b := topProducts[i], topProducts[j]
		key := func(p domain.ProductSales) decimal.Decimal {
			if reportType == domain.ReportStandard {
				return p.Profit
			}
			return p.Revenue
		}
		if c := key(a).Cmp(key(b)); c != 0 {
			return c > 0
		}
		return a.Name < b.Name
	})
	if len(topProducts) > e.topN {
		topProducts = topProducts[:e.topN]
	}

	categories := make([]domain.CategorySales, 0, len(byCategory))
	for _, cs := range byCategory {
		categories = append(categories, *cs)
	}
	sort.Slice(categories, func(i, j int) bool {
		if c := categories[i].Revenue.Cmp(categories[j].Revenue); c != 0 {
			return c > 0
		}
		return categories[i].Category < categories[j].Category
	})

	daily := make([]domain.DailySales, 0, len(byDay))
	for _, ds := range byDay {
		daily = append(daily, *ds)
	}
	sort.Slice(daily, func(i, j int) bool { return daily[i].Date < daily[j].Date })

	return domain.SalesReport{
		TotalSales:         round2(totalSales),
		TotalCost:          round2(totalCost),
		TotalProfit:        round2(totalProfit),
		ProfitMargin:       percentOf(totalProfit, totalSales),
		TotalTransactions:  len(sales),
		AverageTransaction: average(totalSales, len(sales)),
		TopProducts:        topProducts,
		CategoryReport:     categories,
		DailySales:         daily,
		ReportType:         reportType,
		TimeZone:           e.loc.String(),
	}
}

func (e *Engine) DateDrillDown(ctx context.Context, date string) (domain.DateDrillDown, error) {
	day, err := time.ParseInLocation(dateLayout, strings.TrimSpace(date), e.loc)
	if err != nil {
		return domain.DateDrillDown{}, fmt.Errorf("%w: date must be YYYY-MM-DD", store.ErrValidation)
	}
	to := nextDay(day)

	sales, err := e.source.ListSales(ctx, store.SaleFilter{From: &day, To: &to})
	if err != nil {
		return domain.DateDrillDown{}, err
	}
	products, err := e.source.GetProductsByIDs(ctx, productIDs(sales))
	if err != nil {
		return domain.DateDrillDown{}, err
	}

	rows := make([]domain.DrillDownTransaction, 0, len(sales))
	summary := domain.DateDrillDownSummary{
		TotalSales:  decimal.Zero,
		TotalCost:   decimal.Zero,
		TotalProfit: decimal.Zero,
	}
	for _, sale := range sales {
		row := domain.DrillDownTransaction{
			ID:            sale.ID,
			Time:          sale.CreatedAt.In(e.loc).Format("15:04"),
			Items:         make([]string, 0, len(sale.Items)),
			ItemDetails:   make([]domain.DrillDownItem, 0, len(sale.Items)),
			Amount:        sale.TotalAmount,
			Cost:          decimal.Zero,
			Customer:      sale.CustomerName,
			PaymentMethod: sale.PaymentMethod,
		}
		if row.Customer == "" {
			row.Customer = WalkIn
		}
		if row.PaymentMethod == "" {
			row.PaymentMethod = domain.PaymentCash
		}

		for _, item := range sale.Items {
			detail := domain.DrillDownItem{
				Name:     item.Name,
				Quantity: item.Quantity,
				Price:    item.Price,
				Cost:     decimal.Zero,
				Category: Uncategorised,
			}
			if product, ok := products[item.ProductID]; ok {
				detail.Cost = product.Cost
				detail.Category = product.Category
				if detail.Name == "" {
					detail.Name = product.Name
				}
			}
			if detail.Name == "" {
				detail.Name = "Product " + item.ProductID
			}
			row.Items = append(row.Items, fmt.Sprintf("%s (%d)", detail.Name, detail.Quantity))
			row.ItemDetails = append(row.ItemDetails, detail)
			row.Cost = row.Cost.Add(detail.Cost.Mul(decimal.NewFromInt(int64(detail.Quantity))))
		}
		row.Profit = row.Amount.Sub(row.Cost)

		summary.TotalTransactions++
		summary.TotalSales = summary.TotalSales.Add(row.Amount)
		summary.TotalCost = summary.TotalCost.Add(row.Cost)
		summary.TotalProfit = summary.TotalProfit.Add(row.Profit)
		rows = append(rows, row)
	}
	summary.AverageTransaction = average(summary.TotalSales, summary.TotalTransactions)

	return domain.DateDrillDown{
		Type:         domain.DrillDownDate,
		Date:         day.Format(dateLayout),
		Summary:      summary,
		Transactions: rows,
	}, nil
}

// ProductDrillDown scans every sale containing the product unless a window
// is given. Costs come from the current catalog entry with that name.
func (e *Engine) ProductDrillDown(ctx context.Context, productName string, startDate string, endDate string) (domain.ProductDrillDown, error) {
	productName = strings.TrimSpace(productName)
	if productName == "" {
		return domain.ProductDrillDown{}, fmt.Errorf("%w: product name is required", store.ErrValidation)
	}

	filter := store.SaleFilter{ProductName: productName}
	if strings.TrimSpace(startDate) != "" || strings.TrimSpace(endDate) != "" {
		from, to, err := e.Window(startDate, endDate)
		if err != nil {
			return domain.ProductDrillDown{}, err
		}
		filter.From, filter.To = &from, &to
	}

	sales, err := e.source.ListSales(ctx, filter)
	if err != nil {
		return domain.ProductDrillDown{}, err
	}

	info := domain.ProductInfo{Name: productName, Category: Uncategorised, Cost: decimal.Zero}
	product, err := e.source.FindProductByName(ctx, productName)
	switch {
	case err == nil:
		info.Category = product.Category
		info.Cost = product.Cost
	case !errors.Is(err, store.ErrNotFound):
		return domain.ProductDrillDown{}, err
	}

	byDay := make(map[string]*domain.ProductDailySales)
	for _, sale := range sales {
		day := sale.CreatedAt.In(e.loc).Format(dateLayout)
		for _, item := range sale.Items {
			if item.Name != productName {
				continue
			}
			revenue := item.LineTotal()
			cost := info.Cost.Mul(decimal.NewFromInt(int64(item.Quantity)))

			ds, ok := byDay[day]
			if !ok {
				ds = &domain.ProductDailySales{Date: day, AvgPrice: item.Price}
				byDay[day] = ds
			}
			ds.Quantity += int64(item.Quantity)
			ds.Revenue = ds.Revenue.Add(revenue)
			ds.Cost = ds.Cost.Add(cost)
			ds.Profit = ds.Profit.Add(revenue.Sub(cost))
			ds.Transactions++
		}
	}

	daily := make([]domain.ProductDailySales, 0, len(byDay))
	for _, ds := range byDay {
		daily = append(daily, *ds)
	}
	sort.Slice(daily, func(i, j int) bool { return daily[i].Date < daily[j].Date })

	summary := domain.ProductDrillDownSummary{
		TotalRevenue: decimal.Zero,
		TotalCost:    decimal.Zero,
		TotalProfit:  decimal.Zero,
		AvgPrice:     decimal.Zero,
		Category:     info.Category,
		CostPerUnit:  info.Cost,
	}
	for _, ds := range daily {
		summary.TotalQuantity += ds.Quantity
		summary.TotalRevenue = summary.TotalRevenue.Add(ds.Revenue)
		summary.TotalCost = summary.TotalCost.Add(ds.Cost)
		summary.TotalProfit = summary.TotalProfit.Add(ds.Profit)
		summary.TotalTransactions += ds.Transactions
	}
	if len(daily) > 0 {
		summary.AvgPrice = daily[0].AvgPrice
	}

	return domain.ProductDrillDown{
		Type:        domain.DrillDownProduct,
		ProductName: productName,
		Summary:     summary,
		DailyData:   daily,
		ProductInfo: info,
	}, nil
}

func productIDs(sales []domain.Sale) []string {
	seen := make(map[string]struct{})
	ids := make([]string, 0, 32)
	for _, sale := range sales {
		for _, item := range sale.Items {
			if _, ok := seen[item.ProductID]; ok {
				continue
			}
			seen[item.ProductID] = struct{}{}
			ids = append(ids, item.ProductID)
		}
	}
	return ids
}

func buildCacheKey(from time.Time, to time.Time, reportType string, loc *time.Location) string {
	parts := []string{
		from.UTC().Format(time.RFC3339Nano),
		to.UTC().Format(time.RFC3339Nano),
		reportType,
		loc.String(),
	}
	hash := sha1.Sum([]byte(strings.Join(parts, "|")))
	return "pos:report:sales:" + hex.EncodeToString(hash[:])
}

func round2(val decimal.Decimal) decimal.Decimal {
	return val.Round(2)
}

func average(total decimal.Decimal, count int) decimal.Decimal {
	if count == 0 {
		return decimal.Zero
	}
	return total.Div(decimal.NewFromInt(int64(count))).Round(2)
}

func percentOf(part decimal.Decimal, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(decimal.NewFromInt(100)).Round(2)
}
