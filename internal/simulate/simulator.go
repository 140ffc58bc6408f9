// Package simulate emits the baseline stream of legitimate transactions from a
// generated population.
package simulate

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat/distuv"

	"lumina/fraud-lab/internal/domain"
	"lumina/fraud-lab/internal/geo"
)

// ErrEmptyPopulation is returned when there are no customers or merchants to
// simulate with.
var ErrEmptyPopulation = errors.New("simulate: empty population")

// Config controls the size and shape of the simulated stream.
type Config struct {
	Transactions     int       `mapstructure:"transactions"`
	Days             int       `mapstructure:"days"`
	Start            time.Time `mapstructure:"-"`
	LocalProbability float64   `mapstructure:"local_probability"`
	MinAmount        float64   `mapstructure:"min_amount"`
}

// DefaultConfig returns the reference stream settings.
func DefaultConfig() Config {
	return Config{
		Transactions:     100_000,
		Days:             60,
		Start:            time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		LocalProbability: 0.92,
		MinAmount:        10,
	}
}

// End returns the inclusive end of the simulation horizon. Timestamps may
// fall exactly on End.
func (c Config) End() time.Time {
	return c.Start.Add(time.Duration(c.Days) * 24 * time.Hour)
}

// Simulator produces transactions for a fixed population.
type Simulator struct {
	cfg       Config
	rng       *rand.Rand
	customers []domain.Customer
	merchants []domain.Merchant

	// Merchant indexes per city, for the local-merchant bias.
	byCity map[string][]int
}

// New creates a Simulator over the given population.
func New(cfg Config, customers []domain.Customer, merchants []domain.Merchant, rng *rand.Rand) (*Simulator, error) {
	if len(customers) == 0 || len(merchants) == 0 {
		return nil, ErrEmptyPopulation
	}
	if cfg.Days <= 0 || cfg.Transactions < 0 {
		return nil, fmt.Errorf("simulate: invalid horizon (days=%d, transactions=%d)", cfg.Days, cfg.Transactions)
	}
	byCity := make(map[string][]int)
	for i, m := range merchants {
		byCity[m.City] = append(byCity[m.City], i)
	}
	return &Simulator{
		cfg:       cfg,
		rng:       rng,
		customers: customers,
		merchants: merchants,
		byCity:    byCity,
	}, nil
}

// Run emits cfg.Transactions unlabeled transactions in generation order.
func (s *Simulator) Run() []domain.Transaction {
	txns := make([]domain.Transaction, 0, s.cfg.Transactions)
	lastSeen := make(map[string]time.Time, len(s.customers))
	end := s.cfg.End()

	for i := 0; i < s.cfg.Transactions; i++ {
		c := &s.customers[s.rng.IntN(len(s.customers))]

		ts := s.nextTimestamp(c, lastSeen, end)
		lastSeen[c.ID] = ts

		m := s.pickMerchant(c)
		amount := distuv.Normal{Mu: c.Behavior.AvgAmount, Sigma: c.Behavior.AmountStd, Src: s.rng}.Rand()
		amount = math.Max(amount, s.cfg.MinAmount)

		tx := domain.Transaction{
			TransactionID:    fmt.Sprintf("TXN_%08d", i),
			CustomerID:       c.ID,
			CardNumber:       c.CardNumber,
			Amount:           round2(amount),
			MerchantID:       m.ID,
			MerchantCategory: m.Category,
			MerchantLat:      m.Lat,
			MerchantLong:     m.Lon,
			DistanceFromHome: round2(geo.Distance(c.HomeLat, c.HomeLon, m.Lat, m.Lon)),
		}
		tx.SetTimestamp(ts)
		tx.Label(domain.FraudNone)
		txns = append(txns, tx)
	}
	return txns
}

// nextTimestamp follows the customer's exponential inter-arrival process and
// falls back to a fresh uniform draw when it would leave the horizon.
func (s *Simulator) nextTimestamp(c *domain.Customer, lastSeen map[string]time.Time, end time.Time) time.Time {
	prev, seen := lastSeen[c.ID]
	if !seen {
		return s.uniformTimestamp()
	}

	meanMinutes := 1440 / float64(c.Behavior.DailyRate)
	gap := distuv.Exponential{Rate: 1 / meanMinutes, Src: s.rng}.Rand()
	ts := prev.Add(time.Duration(gap * float64(time.Minute))).Truncate(time.Second)
	if ts.After(end) {
		return s.uniformTimestamp()
	}
	return ts
}

func (s *Simulator) uniformTimestamp() time.Time {
	minutes := s.rng.IntN(s.cfg.Days*24*60 + 1)
	return s.cfg.Start.Add(time.Duration(minutes) * time.Minute)
}

func (s *Simulator) pickMerchant(c *domain.Customer) *domain.Merchant {
	if s.rng.Float64() < s.cfg.LocalProbability {
		if local := s.byCity[c.HomeCity]; len(local) > 0 {
			return &s.merchants[local[s.rng.IntN(len(local))]]
		}
	}
	return &s.merchants[s.rng.IntN(len(s.merchants))]
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
