package loyalty

import (
	"time"

	"github.com/shopspring/decimal"

	"posledger/backend/internal/domain"
)

const (
	MinRedeemPoints     = 10
	MaxRedeemPercentage = 50
	EarnExpiry          = 365 * 24 * time.Hour
)

var (
	// EarnRate is points per currency unit spent.
	EarnRate = decimal.RequireFromString("0.1")
	// RedeemRate is currency units per point.
	RedeemRate = decimal.NewFromInt(1)

	hundred = decimal.NewFromInt(100)
)

// SpendTierPercentage is the order-size discount: 10% from 1000, 5% from 500.
func SpendTierPercentage(subtotal decimal.Decimal) int {
	switch {
	case subtotal.GreaterThanOrEqual(decimal.NewFromInt(1000)):
		return 10
	case subtotal.GreaterThanOrEqual(decimal.NewFromInt(500)):
		return 5
	default:
		return 0
	}
}

// DiscountPercentage is the larger of the tier and spend-tier percentages.
// The two never stack.
func DiscountPercentage(subtotal decimal.Decimal, tier domain.Tier) int {
	return max(BenefitsOf(tier).DiscountPercentage, SpendTierPercentage(subtotal))
}

func DiscountAmount(subtotal decimal.Decimal, percentage int) decimal.Decimal {
	return subtotal.Mul(decimal.NewFromInt(int64(percentage))).Div(hundred).Round(2)
}

// MaxRedeemable caps redemption at half the subtotal and at the balance.
func MaxRedeemable(subtotal decimal.Decimal, balance int64) int64 {
	if balance <= 0 || !subtotal.IsPositive() {
		return 0
	}
	byPercentage := subtotal.
		Mul(decimal.NewFromInt(MaxRedeemPercentage)).
		Div(hundred).
		Div(RedeemRate).
		Floor().
		IntPart()
	return min(balance, byPercentage)
}

func PointsValue(points int64) decimal.Decimal {
	return decimal.NewFromInt(points).Mul(RedeemRate)
}

// EarnedPoints is floor(floor(amount * EarnRate) * multiplier).
func EarnedPoints(amount decimal.Decimal, tier domain.Tier) int64 {
	if !amount.IsPositive() {
		return 0
	}
	base := amount.Mul(EarnRate).Floor()
	return base.Mul(BenefitsOf(tier).PointsMultiplier).Floor().IntPart()
}

// Calculate prices a checkout. Requests below MinRedeemPoints, or whose cap
// falls below it, redeem nothing; larger requests are clamped to the cap.
func Calculate(subtotal decimal.Decimal, tier domain.Tier, requestedPoints int64, balance int64) domain.Quote {
	percentage := DiscountPercentage(subtotal, tier)
	discount := DiscountAmount(subtotal, percentage)
	maxRedeem := MaxRedeemable(subtotal, balance)

	used := int64(0)
	if requestedPoints >= MinRedeemPoints {
		used = min(requestedPoints, maxRedeem)
		if used < MinRedeemPoints {
			used = 0
		}
	}

	total := subtotal.Sub(discount).Sub(PointsValue(used))
	if total.IsNegative() {
		total = decimal.Zero
	}

	return domain.Quote{
		Subtotal:           subtotal,
		Tier:               tier,
		DiscountPercentage: percentage,
		DiscountAmount:     discount,
		MaxRedeemable:      maxRedeem,
		PointsUsed:         used,
		PointsEarned:       EarnedPoints(total, tier),
		TotalAmount:        total,
	}
}

func Subtotal(items []domain.SaleItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
	}
	return total
}
