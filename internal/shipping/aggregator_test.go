package shipping

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sahilarora/merakart-backend/pkg/config"
	"github.com/sahilarora/merakart-backend/pkg/enums"
	pkgerrors "github.com/sahilarora/merakart-backend/pkg/errors"
	"github.com/sahilarora/merakart-backend/pkg/logger"
)

type stubAdapter struct {
	code      string
	rates     []Rate
	err       error
	delay     time.Duration
	called    chan struct{}
	calls     int
	gotParams QuoteParams
}

func (s *stubAdapter) Code() string { return s.code }

func (s *stubAdapter) QuoteRates(ctx context.Context, params QuoteParams) ([]Rate, error) {
	s.calls++
	s.gotParams = params
	if s.called != nil {
		close(s.called)
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.rates, nil
}

func (s *stubAdapter) CreateShipment(context.Context, CreateShipmentParams) (*ShipmentResult, error) {
	return nil, ErrNotServiceable
}

type stubSource struct {
	adapters []Adapter
	err      error
}

func (s *stubSource) ActiveAdapters(context.Context) ([]Adapter, error) {
	return s.adapters, s.err
}

type stubQuoteCache struct {
	entries map[string]string
	getErr  error
	setErr  error
	sets    int
}

func (s *stubQuoteCache) Get(_ context.Context, key string) (string, error) {
	if s.getErr != nil {
		return "", s.getErr
	}
	if val, ok := s.entries[key]; ok {
		return val, nil
	}
	return "", goredis.Nil
}

func (s *stubQuoteCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	if s.setErr != nil {
		return s.setErr
	}
	s.sets++
	if s.entries == nil {
		s.entries = map[string]string{}
	}
	s.entries[key] = value.(string)
	return nil
}

func (s *stubQuoteCache) QuoteCacheKey(fingerprint string) string {
	return "mk:quote:" + fingerprint
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func rate(provider, courier string, cost string, days int) Rate {
	return Rate{
		ProviderCode:  provider,
		CourierCode:   courier,
		CourierName:   courier,
		Cost:          decimal.RequireFromString(cost),
		Currency:      enums.CurrencyINR,
		EstimatedDays: days,
	}
}

func newTestAggregator(t *testing.T, source AdapterSource, timeout time.Duration) *Aggregator {
	t.Helper()
	return newTestAggregatorCfg(t, source, config.ShippingConfig{QuoteTimeout: timeout})
}

func newTestAggregatorCfg(t *testing.T, source AdapterSource, cfg config.ShippingConfig) *Aggregator {
	t.Helper()
	agg, err := NewAggregator(source, nil, cfg, testLogger(), nil)
	require.NoError(t, err)
	return agg
}

func validRequest() QuoteRequest {
	return QuoteRequest{
		FromPincode: "110001",
		ToPincode:   "560001",
		WeightKG:    decimal.RequireFromString("1.5"),
	}
}

func TestGetRatesAggregatesAllProviders(t *testing.T) {
	source := &stubSource{adapters: []Adapter{
		&stubAdapter{code: "alpha", rates: []Rate{rate("alpha", "xpress", "120.00", 3)}},
		&stubAdapter{code: "beta", rates: []Rate{
			rate("beta", "surface", "80.00", 6),
			rate("beta", "air", "150.00", 2),
		}},
	}}
	agg := newTestAggregator(t, source, time.Second)

	result, err := agg.GetRates(context.Background(), validRequest())
	require.NoError(t, err)
	assert.True(t, result.Serviceable)
	require.Len(t, result.Rates, 3)

	// sorted by cost ascending
	assert.Equal(t, "surface", result.Rates[0].CourierCode)
	assert.Equal(t, "xpress", result.Rates[1].CourierCode)
	assert.Equal(t, "air", result.Rates[2].CourierCode)
}

func TestGetRatesPartialFailure(t *testing.T) {
	source := &stubSource{adapters: []Adapter{
		&stubAdapter{code: "alpha", err: assertAnError()},
		&stubAdapter{code: "beta", rates: []Rate{rate("beta", "surface", "80.00", 6)}},
	}}
	agg := newTestAggregator(t, source, time.Second)

	result, err := agg.GetRates(context.Background(), validRequest())
	require.NoError(t, err)
	assert.True(t, result.Serviceable)
	require.Len(t, result.Rates, 1)
	assert.Equal(t, "beta", result.Rates[0].ProviderCode)
}

func TestGetRatesSlowProviderExcluded(t *testing.T) {
	source := &stubSource{adapters: []Adapter{
		&stubAdapter{code: "slow", delay: 500 * time.Millisecond, rates: []Rate{rate("slow", "x", "10", 1)}},
		&stubAdapter{code: "fast", rates: []Rate{rate("fast", "surface", "80.00", 6)}},
	}}
	agg := newTestAggregator(t, source, 50*time.Millisecond)

	started := time.Now()
	result, err := agg.GetRates(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Less(t, time.Since(started), 400*time.Millisecond)

	assert.True(t, result.Serviceable)
	require.Len(t, result.Rates, 1)
	assert.Equal(t, "fast", result.Rates[0].ProviderCode)
}

func TestGetRatesNotServiceable(t *testing.T) {
	source := &stubSource{adapters: []Adapter{
		&stubAdapter{code: "alpha", err: ErrNotServiceable},
		&stubAdapter{code: "beta", err: ErrNotServiceable},
	}}
	agg := newTestAggregator(t, source, time.Second)

	result, err := agg.GetRates(context.Background(), validRequest())
	require.NoError(t, err)
	assert.False(t, result.Serviceable)
	assert.Empty(t, result.Rates)
	assert.Nil(t, result.DefaultRate)
}

func TestGetRatesNoProviders(t *testing.T) {
	agg := newTestAggregator(t, &stubSource{}, time.Second)

	result, err := agg.GetRates(context.Background(), validRequest())
	require.NoError(t, err)
	assert.False(t, result.Serviceable)
}

func TestGetRatesValidation(t *testing.T) {
	agg := newTestAggregator(t, &stubSource{}, time.Second)

	cases := []QuoteRequest{
		{FromPincode: "1100", ToPincode: "560001", WeightKG: decimal.NewFromInt(1)},
		{FromPincode: "110001", ToPincode: "abc123", WeightKG: decimal.NewFromInt(1)},
		{FromPincode: "110001", ToPincode: "560001", WeightKG: decimal.Zero},
		{FromPincode: "110001", ToPincode: "560001", WeightKG: decimal.NewFromInt(1), Strategy: "nonsense"},
	}
	for _, req := range cases {
		_, err := agg.GetRates(context.Background(), req)
		require.Error(t, err)
		typed := pkgerrors.As(err)
		require.NotNil(t, typed)
		assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	}
}

func TestDefaultRateStrategies(t *testing.T) {
	// priority order: alpha first; alpha lists its standard rate before a
	// cheaper saver option, and the priority default must take the first
	source := &stubSource{adapters: []Adapter{
		&stubAdapter{code: "alpha", rates: []Rate{
			rate("alpha", "alpha-std", "120.00", 3),
			rate("alpha", "alpha-saver", "90.00", 6),
		}},
		&stubAdapter{code: "beta", rates: []Rate{
			rate("beta", "beta-cheap", "80.00", 7),
			rate("beta", "beta-fast", "200.00", 1),
		}},
	}}
	agg := newTestAggregator(t, source, time.Second)

	tests := []struct {
		strategy enums.RateStrategy
		courier  string
	}{
		{enums.RateStrategyCheapest, "beta-cheap"},
		{enums.RateStrategyFastest, "beta-fast"},
		{enums.RateStrategyPriority, "alpha-std"},
		{"", "alpha-std"},
	}
	for _, tc := range tests {
		req := validRequest()
		req.Strategy = tc.strategy
		result, err := agg.GetRates(context.Background(), req)
		require.NoError(t, err)
		require.NotNil(t, result.DefaultRate, "strategy %q", tc.strategy)
		assert.Equal(t, tc.courier, result.DefaultRate.CourierCode, "strategy %q", tc.strategy)
	}
}

func TestGetRatesAppliesChargeableWeight(t *testing.T) {
	adapter := &stubAdapter{code: "alpha", rates: []Rate{rate("alpha", "x", "100.00", 3)}}
	agg := newTestAggregator(t, &stubSource{adapters: []Adapter{adapter}}, time.Second)

	// volumetric 50*40*30/5000 = 12 kg beats the 1.5 kg actual weight
	req := validRequest()
	req.LengthCM, req.WidthCM, req.HeightCM = dec("50"), dec("40"), dec("30")
	_, err := agg.GetRates(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, adapter.gotParams.WeightKG.Equal(dec("12")), "got %s", adapter.gotParams.WeightKG)
}

func TestGetRatesUsesConfiguredDivisorAndLimits(t *testing.T) {
	adapter := &stubAdapter{code: "alpha", rates: []Rate{rate("alpha", "x", "100.00", 3)}}
	agg := newTestAggregatorCfg(t, &stubSource{adapters: []Adapter{adapter}}, config.ShippingConfig{
		QuoteTimeout:      time.Second,
		VolumetricDivisor: 6000,
		MaxEdgeCM:         40,
	})

	// 60 cm exceeds the configured 40 cm edge limit
	req := validRequest()
	req.LengthCM, req.WidthCM, req.HeightCM = dec("60"), dec("40"), dec("30")
	_, err := agg.GetRates(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
	assert.Contains(t, err.Error(), "40 cm")

	// 40*40*30/6000 = 8 kg under the configured divisor
	req.LengthCM = dec("40")
	_, err = agg.GetRates(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, adapter.gotParams.WeightKG.Equal(dec("8")), "got %s", adapter.gotParams.WeightKG)
}

func TestGetRatesRejectsPartialDimensions(t *testing.T) {
	agg := newTestAggregator(t, &stubSource{}, time.Second)

	req := validRequest()
	req.LengthCM = dec("50")
	_, err := agg.GetRates(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestGetRatesServedFromCache(t *testing.T) {
	adapter := &stubAdapter{code: "alpha", rates: []Rate{rate("alpha", "xpress", "120.00", 3)}}
	cache := &stubQuoteCache{}
	agg, err := NewAggregator(&stubSource{adapters: []Adapter{adapter}}, cache,
		config.ShippingConfig{QuoteTimeout: time.Second, QuoteCacheTTL: time.Minute}, testLogger(), nil)
	require.NoError(t, err)

	first, err := agg.GetRates(context.Background(), validRequest())
	require.NoError(t, err)
	require.True(t, first.Serviceable)
	assert.Equal(t, 1, cache.sets)

	second, err := agg.GetRates(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, 1, adapter.calls, "cached quote must not reach the provider")
	require.Len(t, second.Rates, 1)
	assert.Equal(t, "xpress", second.Rates[0].CourierCode)
	require.NotNil(t, second.DefaultRate)
}

func TestGetRatesCacheFailsOpen(t *testing.T) {
	adapter := &stubAdapter{code: "alpha", rates: []Rate{rate("alpha", "xpress", "120.00", 3)}}
	cache := &stubQuoteCache{getErr: errors.New("redis down"), setErr: errors.New("redis down")}
	agg, err := NewAggregator(&stubSource{adapters: []Adapter{adapter}}, cache,
		config.ShippingConfig{QuoteTimeout: time.Second, QuoteCacheTTL: time.Minute}, testLogger(), nil)
	require.NoError(t, err)

	result, err := agg.GetRates(context.Background(), validRequest())
	require.NoError(t, err)
	assert.True(t, result.Serviceable)
}

func TestDefaultRateBalanced(t *testing.T) {
	source := &stubSource{adapters: []Adapter{
		&stubAdapter{code: "alpha", rates: []Rate{
			rate("alpha", "cheap-slow", "50.00", 10),
			rate("alpha", "middle", "100.00", 3),
			rate("alpha", "fast-costly", "300.00", 1),
		}},
	}}
	agg := newTestAggregator(t, source, time.Second)

	req := validRequest()
	req.Strategy = enums.RateStrategyBalanced
	result, err := agg.GetRates(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, result.DefaultRate)
	// cheap-slow: 50/300 + 10/10 = 1.17; middle: 100/300 + 3/10 = 0.63; fast-costly: 1 + 0.1 = 1.1
	assert.Equal(t, "middle", result.DefaultRate.CourierCode)
}

func assertAnError() error {
	return pkgerrors.New(pkgerrors.CodeDependency, "provider unavailable")
}
