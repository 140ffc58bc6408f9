// Package entity generates the customer and merchant populations that the
// transaction simulator draws from.
//
// Every draw comes from the caller's random source, so the same seed and
// counts always reproduce the same populations.
package entity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/stat/distmv"
	"gonum.org/v1/gonum/stat/distuv"

	"lumina/fraud-lab/internal/domain"
	"lumina/fraud-lab/internal/geo"
)

// ─── Configuration ────────────────────────────────────────────────────────────

// Config controls population sizes and placement radii.
type Config struct {
	Customers           int     `mapstructure:"customers"`
	Merchants           int     `mapstructure:"merchants"`
	CustomerRadiusMinKm float64 `mapstructure:"customer_radius_min_km"`
	CustomerRadiusMaxKm float64 `mapstructure:"customer_radius_max_km"`
	MerchantRadiusMinKm float64 `mapstructure:"merchant_radius_min_km"`
	MerchantRadiusMaxKm float64 `mapstructure:"merchant_radius_max_km"`
}

// DefaultConfig returns the population used for the reference dataset.
func DefaultConfig() Config {
	return Config{
		Customers:           5000,
		Merchants:           500,
		CustomerRadiusMinKm: 2,
		CustomerRadiusMaxKm: 15,
		MerchantRadiusMinKm: 0.5,
		MerchantRadiusMaxKm: 3,
	}
}

// Latent behavior parameters.
const (
	amountLogMean    = 6.5
	amountLogStd     = 0.6
	amountStdMinFrac = 0.2
	amountStdMaxFrac = 0.5
	dailyRateLambda  = 2.0
	activeHourDraws  = 10
	prefAlphaMin     = 0.5
	prefAlphaMax     = 2.0
)

// restrictedCities limits where high-value categories can be located.
// Categories not listed may be placed in any gazetteer city.
var restrictedCities = map[string][]string{
	domain.CategoryLuxuryGoods: {"Mumbai", "Delhi", "Bengaluru"},
	domain.CategoryJewelry:     {"Mumbai", "Delhi", "Bengaluru", "Chennai"},
}

// AllowedCities returns the cities a merchant of the given category may be in.
func AllowedCities(category string) []string {
	if cities, ok := restrictedCities[category]; ok {
		return cities
	}
	return geo.CityNames()
}

// ─── Generator ────────────────────────────────────────────────────────────────

// Generator produces populations from an explicit random source.
type Generator struct {
	cfg Config
	rng *rand.Rand

	hourDist distuv.Categorical
}

// New creates a Generator. The random source is shared with the rest of the
// run and must not be used concurrently.
func New(cfg Config, rng *rand.Rand) (*Generator, error) {
	if cfg.Customers <= 0 || cfg.Merchants <= 0 {
		return nil, fmt.Errorf("entity: customers and merchants must be positive (got %d, %d)",
			cfg.Customers, cfg.Merchants)
	}
	if cfg.CustomerRadiusMinKm < 0 || cfg.CustomerRadiusMaxKm < cfg.CustomerRadiusMinKm ||
		cfg.MerchantRadiusMinKm < 0 || cfg.MerchantRadiusMaxKm < cfg.MerchantRadiusMinKm {
		return nil, fmt.Errorf("entity: invalid radius band")
	}
	return &Generator{
		cfg:      cfg,
		rng:      rng,
		hourDist: distuv.NewCategorical(hourWeights(), rng),
	}, nil
}

// hourWeights favours morning (8-11h) and evening (18-22h) four to one.
func hourWeights() []float64 {
	w := make([]float64, 24)
	for h := range w {
		switch {
		case h >= 8 && h <= 11, h >= 18 && h <= 22:
			w[h] = 2
		default:
			w[h] = 0.5
		}
	}
	return w
}

// Customers generates the configured number of customers.
func (g *Generator) Customers() []domain.Customer {
	customers := make([]domain.Customer, g.cfg.Customers)
	for i := range customers {
		id := fmt.Sprintf("CUST_%05d", i)
		city := geo.Cities[g.rng.IntN(len(geo.Cities))]
		lat, lon := geo.SampleRing(g.rng, city.Lat, city.Lon,
			g.cfg.CustomerRadiusMinKm, g.cfg.CustomerRadiusMaxKm)

		customers[i] = domain.Customer{
			ID:         id,
			CardNumber: CardNumber(id),
			HomeCity:   city.Name,
			HomeLat:    lat,
			HomeLon:    lon,
			Behavior:   g.behavior(),
		}
	}
	return customers
}

func (g *Generator) behavior() domain.Behavior {
	avg := distuv.LogNormal{Mu: amountLogMean, Sigma: amountLogStd, Src: g.rng}.Rand()
	stdFrac := distuv.Uniform{Min: amountStdMinFrac, Max: amountStdMaxFrac, Src: g.rng}.Rand()
	rate := int(distuv.Poisson{Lambda: dailyRateLambda, Src: g.rng}.Rand()) + 1

	return domain.Behavior{
		AvgAmount:    avg,
		AmountStd:    avg * stdFrac,
		DailyRate:    rate,
		ActiveHours:  g.activeHours(),
		MerchantPref: g.merchantPreference(),
	}
}

func (g *Generator) activeHours() []int {
	hours := make([]int, 0, activeHourDraws)
	for i := 0; i < activeHourDraws; i++ {
		h := int(g.hourDist.Rand())
		if !slices.Contains(hours, h) {
			hours = append(hours, h)
		}
	}
	slices.Sort(hours)
	return hours
}

// merchantPreference draws a Dirichlet whose concentration differs per
// category, so customers lean towards some categories more than others.
func (g *Generator) merchantPreference() []float64 {
	pref := distmv.NewDirichlet(g.preferenceAlpha(), g.rng).Rand(nil)

	// Very small concentrations can underflow every gamma draw to zero.
	if !isSimplex(pref) {
		for i := range pref {
			pref[i] = 1 / float64(len(pref))
		}
	}
	return pref
}

// preferenceAlpha draws one concentration per category from U[0.5, 2).
func (g *Generator) preferenceAlpha() []float64 {
	alpha := make([]float64, len(domain.Categories))
	for i := range alpha {
		alpha[i] = distuv.Uniform{Min: prefAlphaMin, Max: prefAlphaMax, Src: g.rng}.Rand()
	}
	return alpha
}

// Merchants generates the configured number of merchants.
func (g *Generator) Merchants() []domain.Merchant {
	merchants := make([]domain.Merchant, g.cfg.Merchants)
	for i := range merchants {
		category := domain.Categories[g.rng.IntN(len(domain.Categories))]
		allowed := AllowedCities(category)
		city, _ := geo.LookupCity(allowed[g.rng.IntN(len(allowed))])
		lat, lon := geo.SampleRing(g.rng, city.Lat, city.Lon,
			g.cfg.MerchantRadiusMinKm, g.cfg.MerchantRadiusMaxKm)

		merchants[i] = domain.Merchant{
			ID:       fmt.Sprintf("MERCHANT_%05d", i),
			Category: category,
			City:     city.Name,
			Lat:      lat,
			Lon:      lon,
		}
	}
	return merchants
}

// CardNumber derives a stable card identifier from a customer ID.
func CardNumber(customerID string) string {
	sum := sha256.Sum256([]byte(customerID))
	return hex.EncodeToString(sum[:])[:16]
}

func isSimplex(p []float64) bool {
	var total float64
	for _, v := range p {
		if v < 0 || math.IsNaN(v) {
			return false
		}
		total += v
	}
	return math.Abs(total-1) < 1e-9
}
