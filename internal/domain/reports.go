package domain

import "github.com/shopspring/decimal"

const (
	ReportStandard = "standard"
	ReportRevenue  = "revenue"

	DrillDownDate    = "date"
	DrillDownProduct = "product"
)

type ReportQuery struct {
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	ReportType string `json:"report_type"`
}

type DateRange struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type ProductSales struct {
	Name     string          `json:"name"`
	Quantity int64           `json:"quantity"`
	Revenue  decimal.Decimal `json:"revenue"`
	Cost     decimal.Decimal `json:"cost"`
	Profit   decimal.Decimal `json:"profit"`
	Category string          `json:"category"`
}

type CategorySales struct {
	Category     string          `json:"category"`
	Quantity     int64           `json:"quantity"`
	Revenue      decimal.Decimal `json:"revenue"`
	Cost         decimal.Decimal `json:"cost"`
	Profit       decimal.Decimal `json:"profit"`
	Transactions int             `json:"transactions"`
}

type DailySales struct {
	Date         string          `json:"date"`
	Sales        decimal.Decimal `json:"sales"`
	Cost         decimal.Decimal `json:"cost"`
	Profit       decimal.Decimal `json:"profit"`
	Transactions int             `json:"transactions"`
}

type SalesReport struct {
	TotalSales         decimal.Decimal `json:"total_sales"`
	TotalCost          decimal.Decimal `json:"total_cost"`
	TotalProfit        decimal.Decimal `json:"total_profit"`
	ProfitMargin       decimal.Decimal `json:"profit_margin"`
	TotalTransactions  int             `json:"total_transactions"`
	AverageTransaction decimal.Decimal `json:"average_transaction"`
	TopProducts        []ProductSales  `json:"top_products"`
	CategoryReport     []CategorySales `json:"category_report"`
	DailySales         []DailySales    `json:"daily_sales"`
	DateRange          DateRange       `json:"date_range"`
	ReportType         string          `json:"report_type"`
	TimeZone           string          `json:"time_zone"`
}

type DrillDownQuery struct {
	Type        string `json:"type"`
	Date        string `json:"date"`
	ProductName string `json:"product_name"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
}

type DrillDownItem struct {
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Cost     decimal.Decimal `json:"cost"`
	Category string          `json:"category"`
}

type DrillDownTransaction struct {
	ID            string          `json:"id"`
	Time          string          `json:"time"`
	Items         []string        `json:"items"`
	ItemDetails   []DrillDownItem `json:"item_details"`
	Amount        decimal.Decimal `json:"amount"`
	Cost          decimal.Decimal `json:"cost"`
	Profit        decimal.Decimal `json:"profit"`
	Customer      string          `json:"customer"`
	PaymentMethod string          `json:"payment_method"`
}

type DateDrillDownSummary struct {
	TotalTransactions  int             `json:"total_transactions"`
	TotalSales         decimal.Decimal `json:"total_sales"`
	TotalCost          decimal.Decimal `json:"total_cost"`
	TotalProfit        decimal.Decimal `json:"total_profit"`
	AverageTransaction decimal.Decimal `json:"average_transaction"`
}

type DateDrillDown struct {
	Type         string                 `json:"type"`
	Date         string                 `json:"date"`
	Summary      DateDrillDownSummary   `json:"summary"`
	Transactions []DrillDownTransaction `json:"transactions"`
}

type ProductDailySales struct {
	Date         string          `json:"date"`
	Quantity     int64           `json:"quantity"`
	Revenue      decimal.Decimal `json:"revenue"`
	Cost         decimal.Decimal `json:"cost"`
	Profit       decimal.Decimal `json:"profit"`
	Transactions int             `json:"transactions"`
	AvgPrice     decimal.Decimal `json:"avg_price"`
}

type ProductDrillDownSummary struct {
	TotalQuantity     int64           `json:"total_quantity"`
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	TotalCost         decimal.Decimal `json:"total_cost"`
	TotalProfit       decimal.Decimal `json:"total_profit"`
	TotalTransactions int             `json:"total_transactions"`
	AvgPrice          decimal.Decimal `json:"avg_price"`
	Category          string          `json:"category"`
	CostPerUnit       decimal.Decimal `json:"cost_per_unit"`
}

type ProductInfo struct {
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Cost     decimal.Decimal `json:"cost"`
}

type ProductDrillDown struct {
	Type        string                  `json:"type"`
	ProductName string                  `json:"product_name"`
	Summary     ProductDrillDownSummary `json:"summary"`
	DailyData   []ProductDailySales     `json:"daily_data"`
	ProductInfo ProductInfo             `json:"product_info"`
}
