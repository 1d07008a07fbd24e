package assets

import (
	"math"
	"time"
)

// MonthStart normalizes a date to the first instant of its calendar month in UTC.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// monthIndex counts calendar months from the purchase month to asOf. An
// asset purchased in January has index 1 in February: depreciation starts
// the month after the asset enters service.
func monthIndex(purchase, asOf time.Time) int {
	p := MonthStart(purchase)
	m := MonthStart(asOf)
	return (m.Year()-p.Year())*12 + int(m.Month()) - int(p.Month())
}

// MonthlyAmount computes the depreciation to recognize for the asset in the
// month containing asOf, given the amount accumulated so far. It returns 0
// before the asset is in service and once book value has reached salvage.
//
// Straight line divides (cost - salvage) evenly with floor rounding; the
// final month absorbs the remainder so the lifetime total is exact.
// Declining balance applies the constant monthly rate
// 1 - (salvage/cost)^(1/life) to net book value, clamped at salvage, with
// the final month forcing book value onto salvage exactly.
func MonthlyAmount(a Asset, asOf time.Time, accumulatedCents int64) int64 {
	month := MonthStart(asOf)
	if !a.PurchaseDate.Before(month) {
		return 0
	}
	life := int64(a.UsefulLifeMonths)
	if life <= 0 {
		return 0
	}
	base := a.CostCents - a.SalvageCents
	if base <= 0 || accumulatedCents >= base {
		return 0
	}
	idx := int64(monthIndex(a.PurchaseDate, month))
	if idx <= 0 || idx > life {
		return 0
	}

	switch a.Method {
	case MethodStraightLine:
		per := base / life
		if idx < life {
			return per
		}
		// Final month: whatever remains of the depreciable base.
		return base - per*(life-1)
	case MethodDecliningBalance:
		nbv := a.CostCents - accumulatedCents
		remaining := nbv - a.SalvageCents
		if remaining <= 0 {
			return 0
		}
		if idx >= life {
			return remaining
		}
		rate := 1 - math.Pow(float64(a.SalvageCents)/float64(a.CostCents), 1/float64(life))
		amount := int64(math.Floor(float64(nbv) * rate))
		if amount > remaining {
			amount = remaining
		}
		if amount < 0 {
			return 0
		}
		return amount
	default:
		return 0
	}
}
