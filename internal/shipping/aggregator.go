package shipping

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/sahilarora/merakart-backend/pkg/config"
	"github.com/sahilarora/merakart-backend/pkg/enums"
	pkgerrors "github.com/sahilarora/merakart-backend/pkg/errors"
	"github.com/sahilarora/merakart-backend/pkg/logger"
	"github.com/sahilarora/merakart-backend/pkg/metrics"
	pkgredis "github.com/sahilarora/merakart-backend/pkg/redis"
)

var pincodePattern = regexp.MustCompile(`^[1-9][0-9]{5}$`)

// AdapterSource yields ready-to-call adapters for enabled provider accounts,
// ordered by descending provider priority.
type AdapterSource interface {
	ActiveAdapters(ctx context.Context) ([]Adapter, error)
}

// QuoteCache stores assembled quote results for a short window.
type QuoteCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	QuoteCacheKey(fingerprint string) string
}

// QuoteRequest is one rate lookup across all connected providers. Parcel
// dimensions are optional; when given, all three are required and the quoted
// weight becomes the chargeable weight.
type QuoteRequest struct {
	FromPincode   string
	ToPincode     string
	WeightKG      decimal.Decimal
	LengthCM      decimal.Decimal
	WidthCM       decimal.Decimal
	HeightCM      decimal.Decimal
	COD           bool
	DeclaredValue decimal.Decimal
	Strategy      enums.RateStrategy
}

// QuoteResult aggregates per-provider rates. Serviceable is false when no
// provider returned a usable rate; that is not an error.
type QuoteResult struct {
	Serviceable bool   `json:"serviceable"`
	Rates       []Rate `json:"rates"`
	DefaultRate *Rate  `json:"default_rate,omitempty"`
}

// Aggregator fans a quote request out to every connected provider.
type Aggregator struct {
	source            AdapterSource
	cache             QuoteCache
	cacheTTL          time.Duration
	timeout           time.Duration
	maxEdgeCM         int
	maxGirthCM        int
	volumetricDivisor int
	logg              *logger.Logger
	metrics           *metrics.ShippingMetrics
}

// NewAggregator builds the aggregator with its collaborators. A nil cache
// disables quote caching.
func NewAggregator(source AdapterSource, cache QuoteCache, cfg config.ShippingConfig, logg *logger.Logger, m *metrics.ShippingMetrics) (*Aggregator, error) {
	if source == nil {
		return nil, fmt.Errorf("adapter source required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	timeout := cfg.QuoteTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Aggregator{
		source:            source,
		cache:             cache,
		cacheTTL:          cfg.QuoteCacheTTL,
		timeout:           timeout,
		maxEdgeCM:         cfg.MaxEdgeCM,
		maxGirthCM:        cfg.MaxGirthCM,
		volumetricDivisor: cfg.VolumetricDivisor,
		logg:              logg,
		metrics:           m,
	}, nil
}

type quoteOutcome struct {
	providerIdx int
	code        string
	rates       []Rate
	err         error
}

// GetRates validates the request, queries every active provider concurrently
// and aggregates whatever arrived before each provider's deadline. A provider
// failure or timeout removes only that provider's rates from the result.
func (a *Aggregator) GetRates(ctx context.Context, req QuoteRequest) (*QuoteResult, error) {
	if err := a.validateQuoteRequest(&req); err != nil {
		return nil, err
	}

	fingerprint := quoteFingerprint(req)
	if cached := a.cachedResult(ctx, fingerprint); cached != nil {
		return cached, nil
	}

	adapters, err := a.source.ActiveAdapters(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading shipping providers")
	}
	if len(adapters) == 0 {
		return &QuoteResult{Serviceable: false, Rates: []Rate{}}, nil
	}

	params := QuoteParams{
		FromPincode:   req.FromPincode,
		ToPincode:     req.ToPincode,
		WeightKG:      req.WeightKG,
		COD:           req.COD,
		DeclaredValue: req.DeclaredValue,
	}

	outcomes := make(chan quoteOutcome, len(adapters))
	for idx, adapter := range adapters {
		go func(idx int, adapter Adapter) {
			quoteCtx, cancel := context.WithTimeout(ctx, a.timeout)
			defer cancel()

			started := time.Now()
			rates, err := adapter.QuoteRates(quoteCtx, params)
			a.metrics.ObserveQuote(adapter.Code(), time.Since(started), len(rates))

			outcomes <- quoteOutcome{providerIdx: idx, code: adapter.Code(), rates: rates, err: err}
		}(idx, adapter)
	}

	collected := make([]quoteOutcome, 0, len(adapters))
	var failures error
	for range adapters {
		outcome := <-outcomes
		switch {
		case outcome.err == nil:
			collected = append(collected, outcome)
		case isNotServiceable(outcome.err):
			// lane not served by this provider; nothing to report
		case isDeadline(outcome.err):
			a.metrics.IncTimeout(outcome.code)
			failures = multierr.Append(failures, fmt.Errorf("%s: %w", outcome.code, outcome.err))
		default:
			a.metrics.IncFailure(outcome.code)
			failures = multierr.Append(failures, fmt.Errorf("%s: %w", outcome.code, outcome.err))
		}
	}

	if failures != nil {
		a.logg.Warn(a.logg.WithField(ctx, "providers_failed", len(multierr.Errors(failures))),
			"partial provider failure during rate quote: "+failures.Error())
	}

	rates, defaultRate := assemble(collected, req.Strategy)
	if len(rates) == 0 {
		return &QuoteResult{Serviceable: false, Rates: []Rate{}}, nil
	}
	result := &QuoteResult{Serviceable: true, Rates: rates, DefaultRate: defaultRate}
	a.storeResult(ctx, fingerprint, result)
	return result, nil
}

// validateQuoteRequest normalizes the request in place: the default strategy
// is applied and, when dimensions are given, WeightKG becomes the chargeable
// weight under the configured divisor and limits.
func (a *Aggregator) validateQuoteRequest(req *QuoteRequest) error {
	if !pincodePattern.MatchString(req.FromPincode) {
		return pkgerrors.New(pkgerrors.CodeValidation, "from pincode must be a 6 digit code")
	}
	if !pincodePattern.MatchString(req.ToPincode) {
		return pkgerrors.New(pkgerrors.CodeValidation, "to pincode must be a 6 digit code")
	}
	if !req.WeightKG.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "weight must be positive")
	}

	provided := 0
	for _, dim := range []decimal.Decimal{req.LengthCM, req.WidthCM, req.HeightCM} {
		if !dim.IsZero() {
			provided++
		}
	}
	if provided > 0 {
		if provided < 3 {
			return pkgerrors.New(pkgerrors.CodeValidation,
				"length, width and height must be provided together")
		}
		if err := ValidateDimensions(req.LengthCM, req.WidthCM, req.HeightCM, a.maxEdgeCM, a.maxGirthCM); err != nil {
			return err
		}
		volumetric := VolumetricWeight(req.LengthCM, req.WidthCM, req.HeightCM, a.volumetricDivisor)
		req.WeightKG = ChargeableWeight(req.WeightKG, volumetric)
	}

	if req.Strategy == "" {
		req.Strategy = enums.RateStrategyPriority
	}
	if !req.Strategy.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown rate strategy %q", req.Strategy))
	}
	return nil
}

// quoteFingerprint keys the cache on every input that affects the result.
// It runs on the normalized request, so dimension-equivalent lookups share
// an entry.
func quoteFingerprint(req QuoteRequest) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%t|%s|%s",
		req.FromPincode, req.ToPincode, req.WeightKG.String(),
		req.COD, req.DeclaredValue.String(), req.Strategy)
	return hex.EncodeToString(h.Sum(nil))
}

// cachedResult returns the cached quote for the fingerprint, or nil on a
// miss. Cache errors degrade to a miss.
func (a *Aggregator) cachedResult(ctx context.Context, fingerprint string) *QuoteResult {
	if a.cache == nil || a.cacheTTL <= 0 {
		return nil
	}
	raw, err := a.cache.Get(ctx, a.cache.QuoteCacheKey(fingerprint))
	if err != nil {
		if !pkgredis.IsNil(err) {
			a.logg.Warn(ctx, "quote cache read failed: "+err.Error())
		}
		return nil
	}
	var result QuoteResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil
	}
	return &result
}

func (a *Aggregator) storeResult(ctx context.Context, fingerprint string, result *QuoteResult) {
	if a.cache == nil || a.cacheTTL <= 0 {
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := a.cache.Set(ctx, a.cache.QuoteCacheKey(fingerprint), string(raw), a.cacheTTL); err != nil {
		a.logg.Warn(ctx, "quote cache write failed: "+err.Error())
	}
}

func isNotServiceable(err error) bool {
	return errors.Is(err, ErrNotServiceable)
}

func isDeadline(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

// assemble flattens outcomes into a cost-sorted rate list and selects the
// default per strategy. The priority default is the first rate listed by the
// highest-priority provider that returned any.
func assemble(collected []quoteOutcome, strategy enums.RateStrategy) ([]Rate, *Rate) {
	sort.Slice(collected, func(i, j int) bool {
		return collected[i].providerIdx < collected[j].providerIdx
	})

	rates := make([]Rate, 0)
	var priorityDefault *Rate
	for _, outcome := range collected {
		for _, rate := range outcome.rates {
			if rate.ProviderCode == "" {
				rate.ProviderCode = outcome.code
			}
			rates = append(rates, rate)
			if priorityDefault == nil {
				chosen := rate
				priorityDefault = &chosen
			}
		}
	}
	if len(rates) == 0 {
		return rates, nil
	}

	sort.SliceStable(rates, func(i, j int) bool {
		if !rates[i].Cost.Equal(rates[j].Cost) {
			return rates[i].Cost.LessThan(rates[j].Cost)
		}
		return rates[i].EstimatedDays < rates[j].EstimatedDays
	})

	var def Rate
	switch strategy {
	case enums.RateStrategyCheapest:
		def = rates[0]
	case enums.RateStrategyFastest:
		def = rates[0]
		for _, rate := range rates[1:] {
			if rate.EstimatedDays < def.EstimatedDays {
				def = rate
			}
		}
	case enums.RateStrategyBalanced:
		def = pickBalanced(rates)
	default:
		if priorityDefault != nil {
			def = *priorityDefault
		} else {
			def = rates[0]
		}
	}
	return rates, &def
}

// pickBalanced minimizes normalized cost plus normalized delivery time.
func pickBalanced(rates []Rate) Rate {
	maxCost := rates[0].Cost
	maxDays := rates[0].EstimatedDays
	for _, rate := range rates[1:] {
		if rate.Cost.GreaterThan(maxCost) {
			maxCost = rate.Cost
		}
		if rate.EstimatedDays > maxDays {
			maxDays = rate.EstimatedDays
		}
	}

	best := rates[0]
	bestScore := balancedScore(rates[0], maxCost, maxDays)
	for _, rate := range rates[1:] {
		score := balancedScore(rate, maxCost, maxDays)
		if score.LessThan(bestScore) {
			best = rate
			bestScore = score
		}
	}
	return best
}

func balancedScore(rate Rate, maxCost decimal.Decimal, maxDays int) decimal.Decimal {
	costScore := decimal.Zero
	if maxCost.IsPositive() {
		costScore = rate.Cost.Div(maxCost)
	}
	daysScore := decimal.Zero
	if maxDays > 0 {
		daysScore = decimal.NewFromInt(int64(rate.EstimatedDays)).Div(decimal.NewFromInt(int64(maxDays)))
	}
	return costScore.Add(daysScore)
}
