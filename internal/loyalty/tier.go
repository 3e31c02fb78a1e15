package loyalty

import (
	"github.com/shopspring/decimal"

	"posledger/backend/internal/domain"
)

type Benefits struct {
	Tier               domain.Tier     `json:"name"`
	MinSpending        decimal.Decimal `json:"min_spending"`
	DiscountPercentage int             `json:"discount_percentage"`
	PointsMultiplier   decimal.Decimal `json:"points_multiplier"`
}

// tiers is ordered by ascending MinSpending.
var tiers = []Benefits{
	{Tier: domain.TierBronze, MinSpending: decimal.Zero, DiscountPercentage: 0, PointsMultiplier: decimal.NewFromInt(1)},
	{Tier: domain.TierSilver, MinSpending: decimal.NewFromInt(5000), DiscountPercentage: 5, PointsMultiplier: decimal.RequireFromString("1.2")},
	{Tier: domain.TierGold, MinSpending: decimal.NewFromInt(20000), DiscountPercentage: 10, PointsMultiplier: decimal.RequireFromString("1.5")},
	{Tier: domain.TierPlatinum, MinSpending: decimal.NewFromInt(50000), DiscountPercentage: 15, PointsMultiplier: decimal.NewFromInt(2)},
}

func Tiers() []Benefits {
	out := make([]Benefits, len(tiers))
	copy(out, tiers)
	return out
}

// TierFor returns the highest tier whose threshold is <= spend.
func TierFor(spend decimal.Decimal) domain.Tier {
	best := tiers[0].Tier
	for _, t := range tiers {
		if spend.GreaterThanOrEqual(t.MinSpending) {
			best = t.Tier
		}
	}
	return best
}

// BenefitsOf falls back to Bronze for unknown tier names.
func BenefitsOf(tier domain.Tier) Benefits {
	for _, t := range tiers {
		if t.Tier == tier {
			return t
		}
	}
	return tiers[0]
}

// Rank orders tiers; unknown names rank as Bronze.
func Rank(tier domain.Tier) int {
	for i, t := range tiers {
		if t.Tier == tier {
			return i
		}
	}
	return 0
}
