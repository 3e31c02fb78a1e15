package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Money travels as plain JSON numbers, the way POS clients send it.
	decimal.MarshalJSONWithoutQuotes = true
}

type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Cost        decimal.Decimal `json:"cost"`
	Stock       int             `json:"stock"`
	Category    string          `json:"category"`
	Barcode     string          `json:"barcode,omitempty"`
	Description string          `json:"description,omitempty"`
	Active      bool            `json:"active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type ProductCreateRequest struct {
	Name        string          `json:"name" validate:"required,max=200"`
	Price       decimal.Decimal `json:"price"`
	Cost        decimal.Decimal `json:"cost"`
	Stock       int             `json:"stock" validate:"gte=0"`
	Category    string          `json:"category" validate:"required,max=100"`
	Barcode     string          `json:"barcode" validate:"omitempty,max=64"`
	Description string          `json:"description" validate:"max=1000"`
}

type ProductUpdateRequest struct {
	Name        *string          `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Cost        *decimal.Decimal `json:"cost,omitempty"`
	Stock       *int             `json:"stock,omitempty" validate:"omitempty,gte=0"`
	Category    *string          `json:"category,omitempty" validate:"omitempty,min=1,max=100"`
	Barcode     *string          `json:"barcode,omitempty" validate:"omitempty,max=64"`
	Description *string          `json:"description,omitempty" validate:"omitempty,max=1000"`
	Active      *bool            `json:"active,omitempty"`
}

type Tier string

const (
	TierBronze   Tier = "Bronze"
	TierSilver   Tier = "Silver"
	TierGold     Tier = "Gold"
	TierPlatinum Tier = "Platinum"
)

type Customer struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Phone           string          `json:"phone"`
	Email           string          `json:"email,omitempty"`
	Address         string          `json:"address,omitempty"`
	DateOfBirth     *time.Time      `json:"date_of_birth,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	TotalPurchases  decimal.Decimal `json:"total_purchases"`
	Points          int64           `json:"points"`
	MembershipLevel Tier            `json:"membership_level"`
	LastPurchase    *time.Time      `json:"last_purchase,omitempty"`
	IsActive        bool            `json:"is_active"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type CustomerCreateRequest struct {
	Name        string     `json:"name" validate:"required,max=200"`
	Phone       string     `json:"phone" validate:"required,len=10,numeric,startswith=0"`
	Email       string     `json:"email" validate:"omitempty,email"`
	Address     string     `json:"address" validate:"max=500"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	Notes       string     `json:"notes" validate:"max=1000"`
}

type CustomerUpdateRequest struct {
	Name        *string    `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Phone       *string    `json:"phone,omitempty" validate:"omitempty,len=10,numeric,startswith=0"`
	Email       *string    `json:"email,omitempty" validate:"omitempty,email"`
	Address     *string    `json:"address,omitempty" validate:"omitempty,max=500"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	Notes       *string    `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// CustomerUpdate is the only write shape the store accepts for customers.
// Set replaces fields, Increment adds to accumulators. Points and
// membership level are absent on purpose: points move through the ledger
// and the tier is derived from total purchases.
type CustomerUpdate struct {
	Set       CustomerSet
	Increment CustomerIncrement
}

type CustomerSet struct {
	Name         *string
	Phone        *string
	Email        *string
	Address      *string
	DateOfBirth  *time.Time
	Notes        *string
	IsActive     *bool
	LastPurchase *time.Time
}

type CustomerIncrement struct {
	TotalPurchases decimal.Decimal
}

func (u CustomerUpdate) IsZero() bool {
	s := u.Set
	return s.Name == nil && s.Phone == nil && s.Email == nil && s.Address == nil &&
		s.DateOfBirth == nil && s.Notes == nil && s.IsActive == nil && s.LastPurchase == nil &&
		u.Increment.TotalPurchases.IsZero()
}

type PointsKind string

const (
	PointsEarn   PointsKind = "earn"
	PointsRedeem PointsKind = "redeem"
	PointsAdjust PointsKind = "adjust"
	PointsExpire PointsKind = "expire"
)

type PointsTransaction struct {
	ID          string     `json:"id"`
	CustomerID  string     `json:"customer_id"`
	Kind        PointsKind `json:"type"`
	Points      int64      `json:"points"`
	Description string     `json:"description"`
	SaleID      string     `json:"sale_id,omitempty"`
	SourceID    string     `json:"source_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expiry_date,omitempty"`
}

// PointsCursor marks the last row of a history page. Pages continue with
// rows strictly older than it.
type PointsCursor struct {
	CreatedAt time.Time `json:"at"`
	ID        string    `json:"id"`
}

type PointsAdjustRequest struct {
	Points      int64  `json:"points" validate:"required"`
	Description string `json:"description" validate:"required,max=500"`
}

type PointsHistoryResponse struct {
	CustomerID   string              `json:"customer_id"`
	Balance      int64               `json:"balance"`
	Transactions []PointsTransaction `json:"transactions"`
	NextCursor   string              `json:"next_cursor,omitempty"`
}

type PointsAdjustResponse struct {
	Transaction PointsTransaction `json:"transaction"`
	Customer    Customer          `json:"customer"`
}

type PointsExpireResponse struct {
	Processed     int   `json:"processed"`
	PointsExpired int64 `json:"points_expired"`
}

const (
	PaymentCash          = "cash"
	PaymentCreditCard    = "credit_card"
	PaymentQRCode        = "qr_code"
	PaymentMobileBanking = "mobile_banking"
	PaymentEWallet       = "e_wallet"
)

type SaleItem struct {
	ProductID string          `json:"product_id" validate:"required"`
	Name      string          `json:"name" validate:"required"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity" validate:"gte=1"`
}

func (i SaleItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Sale struct {
	ID               string          `json:"id"`
	Items            []SaleItem      `json:"items"`
	CustomerID       string          `json:"customer_id,omitempty"`
	CustomerName     string          `json:"customer_name,omitempty"`
	CustomerPhone    string          `json:"customer_phone,omitempty"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	DiscountAmount   decimal.Decimal `json:"discount_amount"`
	PointsUsed       int64           `json:"points_used"`
	PointsEarned     int64           `json:"points_earned"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	PaymentMethod    string          `json:"payment_method"`
	PaymentReference string          `json:"payment_reference,omitempty"`
	TimeZone         string          `json:"time_zone"`
	CreatedAt        time.Time       `json:"created_at"`
	LocalCreatedAt   string          `json:"local_created_at,omitempty"`
}

type RecordSaleRequest struct {
	Items            []SaleItem      `json:"items" validate:"required,min=1,dive"`
	CustomerID       string          `json:"customer_id"`
	CustomerName     string          `json:"customer_name" validate:"max=200"`
	CustomerPhone    string          `json:"customer_phone" validate:"omitempty,len=10,numeric,startswith=0"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	DiscountAmount   decimal.Decimal `json:"discount_amount"`
	PointsUsed       int64           `json:"points_used" validate:"gte=0"`
	PointsEarned     int64           `json:"points_earned" validate:"gte=0"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	PaymentMethod    string          `json:"payment_method"`
	PaymentReference string          `json:"payment_reference" validate:"max=200"`
}

type RecordSaleResponse struct {
	SaleID     string `json:"sale_id"`
	CustomerID string `json:"customer_id,omitempty"`
}

// CustomerRef resolves the buyer inside the sale transaction: by id, or by
// phone with creation on first sighting.
type CustomerRef struct {
	ID    string
	Name  string
	Phone string
}

func (r CustomerRef) IsZero() bool {
	return r.ID == "" && r.Phone == ""
}

// SaleRecord is one checkout as the store applies it: persist the sale,
// decrement stock, resolve the customer, move points, grow spend and tier.
type SaleRecord struct {
	Sale       Sale
	Customer   CustomerRef
	NewID      string
	EarnID     string
	RedeemID   string
	EarnExpiry time.Time
}

type QuoteRequest struct {
	Items       []SaleItem `json:"items" validate:"required,min=1,dive"`
	CustomerID  string     `json:"customer_id"`
	PointsToUse int64      `json:"points_to_use" validate:"gte=0"`
}

type Quote struct {
	Subtotal           decimal.Decimal `json:"subtotal"`
	Tier               Tier            `json:"membership_level"`
	DiscountPercentage int             `json:"discount_percentage"`
	DiscountAmount     decimal.Decimal `json:"discount_amount"`
	MaxRedeemable      int64           `json:"max_redeemable_points"`
	PointsUsed         int64           `json:"points_used"`
	PointsEarned       int64           `json:"points_earned"`
	TotalAmount        decimal.Decimal `json:"total_amount"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type CashierCreateRequest struct {
	Username string `json:"username" validate:"required,min=4,max=32"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type CashierUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}
