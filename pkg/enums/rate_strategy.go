package enums

import "fmt"

// RateStrategy selects which quoted rate becomes the default at checkout.
type RateStrategy string

const (
	RateStrategyCheapest RateStrategy = "cheapest"
	RateStrategyFastest  RateStrategy = "fastest"
	RateStrategyBalanced RateStrategy = "balanced"
	RateStrategyPriority RateStrategy = "priority"
)

var validRateStrategies = []RateStrategy{
	RateStrategyCheapest,
	RateStrategyFastest,
	RateStrategyBalanced,
	RateStrategyPriority,
}

// String implements fmt.Stringer.
func (r RateStrategy) String() string {
	return string(r)
}

// IsValid reports whether the value is a known RateStrategy.
func (r RateStrategy) IsValid() bool {
	for _, candidate := range validRateStrategies {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRateStrategy converts raw input into a RateStrategy. Empty input
// falls back to priority order.
func ParseRateStrategy(value string) (RateStrategy, error) {
	if value == "" {
		return RateStrategyPriority, nil
	}
	for _, candidate := range validRateStrategies {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid rate strategy %q", value)
}
