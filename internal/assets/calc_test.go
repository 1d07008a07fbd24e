package assets

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func straightLineAsset() Asset {
	return Asset{
		ID:               1,
		TenantID:         1,
		Name:             "Ultrasound scanner",
		PurchaseDate:     time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		CostCents:        100_000,
		SalvageCents:     10_000,
		UsefulLifeMonths: 120,
		Method:           MethodStraightLine,
	}
}

func TestStraightLineMonthly(t *testing.T) {
	asset := straightLineAsset()

	// (100000 - 10000) / 120 = 750 cents per month.
	amount := MonthlyAmount(asset, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), 0)
	require.Equal(t, int64(750), amount)
}

func TestStraightLineBeforeInService(t *testing.T) {
	asset := straightLineAsset()

	// Nothing in the purchase month or earlier.
	require.Zero(t, MonthlyAmount(asset, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 0))
	require.Zero(t, MonthlyAmount(asset, time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC), 0))
}

func TestStraightLineLifetimeTotal(t *testing.T) {
	asset := straightLineAsset()

	var accumulated int64
	month := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < asset.UsefulLifeMonths; i++ {
		accumulated += MonthlyAmount(asset, month, accumulated)
		month = month.AddDate(0, 1, 0)
	}
	require.Equal(t, asset.CostCents-asset.SalvageCents, accumulated)

	// Fully depreciated: subsequent months recognize nothing.
	require.Zero(t, MonthlyAmount(asset, month, accumulated))
}

func TestStraightLineFinalMonthRemainder(t *testing.T) {
	asset := straightLineAsset()
	asset.CostCents = 100_000
	asset.SalvageCents = 0
	asset.UsefulLifeMonths = 7 // 100000/7 = 14285 floor, remainder lands in month 7

	var accumulated int64
	month := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	var amounts []int64
	for i := 0; i < 7; i++ {
		amount := MonthlyAmount(asset, month, accumulated)
		amounts = append(amounts, amount)
		accumulated += amount
		month = month.AddDate(0, 1, 0)
	}
	require.Equal(t, int64(14_285), amounts[0])
	require.Equal(t, int64(14_290), amounts[6])
	require.Equal(t, int64(100_000), accumulated)
}

func TestDecliningBalanceNeverBelowSalvage(t *testing.T) {
	asset := straightLineAsset()
	asset.Method = MethodDecliningBalance
	asset.UsefulLifeMonths = 36

	var accumulated int64
	month := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < asset.UsefulLifeMonths+6; i++ {
		amount := MonthlyAmount(asset, month, accumulated)
		require.GreaterOrEqual(t, amount, int64(0))
		accumulated += amount
		nbv := asset.CostCents - accumulated
		require.GreaterOrEqual(t, nbv, asset.SalvageCents)
		month = month.AddDate(0, 1, 0)
	}
	// The final life month forces book value onto salvage exactly.
	require.Equal(t, asset.SalvageCents, asset.CostCents-accumulated)
}

func TestDecliningBalanceFrontLoaded(t *testing.T) {
	asset := straightLineAsset()
	asset.Method = MethodDecliningBalance

	first := MonthlyAmount(asset, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), 0)
	second := MonthlyAmount(asset, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), first)
	require.Greater(t, first, int64(0))
	require.GreaterOrEqual(t, first, second)
}

func TestMonthlyAmountZeroBase(t *testing.T) {
	asset := straightLineAsset()
	asset.SalvageCents = asset.CostCents

	require.Zero(t, MonthlyAmount(asset, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), 0))
}

func TestMonthStart(t *testing.T) {
	require.Equal(t,
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		MonthStart(time.Date(2024, 3, 17, 13, 45, 0, 0, time.FixedZone("X", 7*3600))))
}
