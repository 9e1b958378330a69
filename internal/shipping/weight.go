package shipping

import (
	"fmt"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/sahilarora/merakart-backend/pkg/errors"
	"github.com/sahilarora/merakart-backend/pkg/types"
)

const (
	// DefaultVolumetricDivisor is the industry-standard cm^3 per kg divisor.
	DefaultVolumetricDivisor = 5000
	// MaxEdgeCM caps any single parcel dimension.
	MaxEdgeCM = 150
	// MaxGirthCM caps length + 2*(width+height).
	MaxGirthCM = 300
)

// PackageWeight sums item weights across the cart, substituting defaultKG for
// items without a recorded weight. The result is rounded to 2 decimal places
// and does not depend on item order.
func PackageWeight(items []types.CartItem, defaultKG decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		if item.Quantity <= 0 {
			continue
		}
		weight := defaultKG
		if item.WeightKG != nil && item.WeightKG.IsPositive() {
			weight = *item.WeightKG
		}
		total = total.Add(weight.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total.Round(2)
}

// VolumetricWeight converts parcel dimensions in cm to kg using the divisor.
// A non-positive divisor falls back to the default.
func VolumetricWeight(lengthCM, widthCM, heightCM decimal.Decimal, divisor int) decimal.Decimal {
	if divisor <= 0 {
		divisor = DefaultVolumetricDivisor
	}
	volume := lengthCM.Mul(widthCM).Mul(heightCM)
	return volume.Div(decimal.NewFromInt(int64(divisor))).Round(2)
}

// ChargeableWeight returns the greater of actual and volumetric weight.
func ChargeableWeight(actual, volumetric decimal.Decimal) decimal.Decimal {
	if volumetric.GreaterThan(actual) {
		return volumetric
	}
	return actual
}

// ValidateDimensions checks carrier parcel constraints: positive edges, a max
// edge length and a max girth. Non-positive limits fall back to the package
// defaults. The returned error names the violated bound.
func ValidateDimensions(lengthCM, widthCM, heightCM decimal.Decimal, maxEdgeCM, maxGirthCM int) error {
	if maxEdgeCM <= 0 {
		maxEdgeCM = MaxEdgeCM
	}
	if maxGirthCM <= 0 {
		maxGirthCM = MaxGirthCM
	}

	edges := map[string]decimal.Decimal{
		"length": lengthCM,
		"width":  widthCM,
		"height": heightCM,
	}
	for _, name := range []string{"length", "width", "height"} {
		edge := edges[name]
		if !edge.IsPositive() {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s must be positive", name))
		}
		if edge.GreaterThan(decimal.NewFromInt(int64(maxEdgeCM))) {
			return pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("%s exceeds %d cm limit", name, maxEdgeCM))
		}
	}

	girth := lengthCM.Add(widthCM.Add(heightCM).Mul(decimal.NewFromInt(2)))
	if girth.GreaterThan(decimal.NewFromInt(int64(maxGirthCM))) {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("girth exceeds %d cm limit", maxGirthCM))
	}
	return nil
}
