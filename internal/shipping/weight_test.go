package shipping

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sahilarora/merakart-backend/pkg/types"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestPackageWeight(t *testing.T) {
	defaultKG := dec("0.5")

	items := []types.CartItem{
		{ID: "a", Quantity: 2, WeightKG: decPtr("1.25")},
		{ID: "b", Quantity: 1},
		{ID: "c", Quantity: 3, WeightKG: decPtr("0.2")},
	}

	// 2*1.25 + 1*0.5 + 3*0.2 = 3.60
	got := PackageWeight(items, defaultKG)
	assert.True(t, got.Equal(dec("3.60")), "got %s", got)
}

func TestPackageWeightOrderIndependent(t *testing.T) {
	defaultKG := dec("0.5")
	items := []types.CartItem{
		{ID: "a", Quantity: 2, WeightKG: decPtr("1.333")},
		{ID: "b", Quantity: 5},
		{ID: "c", Quantity: 1, WeightKG: decPtr("0.007")},
	}
	forward := PackageWeight(items, defaultKG)

	reversed := []types.CartItem{items[2], items[1], items[0]}
	backward := PackageWeight(reversed, defaultKG)

	assert.True(t, forward.Equal(backward), "forward %s backward %s", forward, backward)
}

func TestPackageWeightSkipsNonPositiveQuantities(t *testing.T) {
	items := []types.CartItem{
		{ID: "a", Quantity: 0, WeightKG: decPtr("9.99")},
		{ID: "b", Quantity: -1},
		{ID: "c", Quantity: 1, WeightKG: decPtr("2")},
	}
	got := PackageWeight(items, dec("0.5"))
	assert.True(t, got.Equal(dec("2")), "got %s", got)
}

func TestPackageWeightIgnoresNonPositiveItemWeight(t *testing.T) {
	items := []types.CartItem{
		{ID: "a", Quantity: 2, WeightKG: decPtr("0")},
	}
	got := PackageWeight(items, dec("0.5"))
	assert.True(t, got.Equal(dec("1")), "got %s", got)
}

func TestVolumetricWeight(t *testing.T) {
	// 50*40*30 / 5000 = 12
	got := VolumetricWeight(dec("50"), dec("40"), dec("30"), DefaultVolumetricDivisor)
	assert.True(t, got.Equal(dec("12")), "got %s", got)

	// zero divisor falls back to default
	fallback := VolumetricWeight(dec("50"), dec("40"), dec("30"), 0)
	assert.True(t, fallback.Equal(dec("12")), "got %s", fallback)

	rounded := VolumetricWeight(dec("33"), dec("21"), dec("17"), DefaultVolumetricDivisor)
	assert.True(t, rounded.Equal(dec("2.36")), "got %s", rounded)
}

func TestChargeableWeight(t *testing.T) {
	assert.True(t, ChargeableWeight(dec("3"), dec("12")).Equal(dec("12")))
	assert.True(t, ChargeableWeight(dec("15"), dec("12")).Equal(dec("15")))
	assert.True(t, ChargeableWeight(dec("5"), dec("5")).Equal(dec("5")))
}

func TestValidateDimensions(t *testing.T) {
	require.NoError(t, ValidateDimensions(dec("50"), dec("40"), dec("30"), 0, 0))

	err := ValidateDimensions(dec("0"), dec("40"), dec("30"), 0, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "length must be positive")

	err = ValidateDimensions(dec("151"), dec("10"), dec("10"), 0, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "length exceeds")

	err = ValidateDimensions(dec("10"), dec("200"), dec("10"), 0, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "width exceeds")

	// 140 + 2*(50+40) = 320 > 300
	err = ValidateDimensions(dec("140"), dec("50"), dec("40"), 0, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "girth exceeds")

	// exactly at the girth bound is allowed: 100 + 2*(60+40) = 300
	require.NoError(t, ValidateDimensions(dec("100"), dec("60"), dec("40"), 0, 0))
}

func TestValidateDimensionsConfiguredLimits(t *testing.T) {
	// wider limits admit what the defaults reject
	require.NoError(t, ValidateDimensions(dec("180"), dec("10"), dec("10"), 200, 400))

	// tighter edge limit rejects what the defaults allow
	err := ValidateDimensions(dec("120"), dec("10"), dec("10"), 100, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "length exceeds 100 cm")

	// tighter girth limit: 100 + 2*(50+40) = 280 > 250
	err = ValidateDimensions(dec("100"), dec("50"), dec("40"), 150, 250)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "girth exceeds 250 cm")
}
