// Package fraud labels a simulated transaction stream with three fraud
// archetypes: card cloning, account takeover and merchant collusion.
//
// Each archetype is a pure pass that maps the sorted stream and the labels so
// far to a new label slice. Passes run in a fixed order (cloning, takeover,
// collusion) and a later pass overwrites an earlier label on the same row, so
// the last applied archetype wins.
package fraud

import (
	"math/rand/v2"
	"slices"
	"sort"
	"time"

	"lumina/fraud-lab/internal/domain"
)

// ─── Configuration ────────────────────────────────────────────────────────────

// Config holds the thresholds of every archetype.
type Config struct {
	// Card cloning.
	CloningDistanceKm  float64       `mapstructure:"cloning_distance_km"`
	CloningWindow      time.Duration `mapstructure:"cloning_window"`
	CloningAmountRatio float64       `mapstructure:"cloning_amount_ratio"`

	// Account takeover.
	TakeoverWindowSize    int     `mapstructure:"takeover_window_size"`
	TakeoverDivergence    float64 `mapstructure:"takeover_divergence"`
	TakeoverNightIncrease float64 `mapstructure:"takeover_night_increase"`
	NightHourCutoff       int     `mapstructure:"night_hour_cutoff"`
	SmoothingEpsilon      float64 `mapstructure:"smoothing_epsilon"`

	// Merchant collusion.
	CollusionMinVolume    int     `mapstructure:"collusion_min_volume"`
	CollusionMaxMerchants int     `mapstructure:"collusion_max_merchants"`
	CollusionTargetCases  int     `mapstructure:"collusion_target_cases"`
	CollusionPercentile   float64 `mapstructure:"collusion_percentile"`
	CollusionSampleSeed   uint64  `mapstructure:"collusion_sample_seed"`
}

// DefaultConfig returns the thresholds used for the reference dataset.
func DefaultConfig() Config {
	return Config{
		CloningDistanceKm:  300,
		CloningWindow:      60 * time.Minute,
		CloningAmountRatio: 2.5,

		TakeoverWindowSize:    6,
		TakeoverDivergence:    0.8,
		TakeoverNightIncrease: 0.3,
		NightHourCutoff:       6,
		SmoothingEpsilon:      1e-6,

		CollusionMinVolume:    80,
		CollusionMaxMerchants: 7,
		CollusionTargetCases:  120,
		CollusionPercentile:   0.85,
		CollusionSampleSeed:   42,
	}
}

// ─── Passes ───────────────────────────────────────────────────────────────────

// PassFunc computes new labels for txns given the labels produced so far.
// txns must be sorted by customer and timestamp. Implementations never modify
// their inputs.
type PassFunc func(txns []domain.Transaction, labels []domain.FraudType) []domain.FraudType

// Pass is a named archetype pass.
type Pass struct {
	Type  domain.FraudType
	Apply PassFunc
}

// Report summarises one injection run.
type Report struct {
	// Counts holds the final number of rows per label, including none.
	Counts map[domain.FraudType]int
	// Flagged holds how many rows each pass labelled, before any overwrite.
	Flagged map[domain.FraudType]int
	// Overwritten counts rows whose earlier fraud label was replaced by a
	// later pass.
	Overwritten int
}

// FraudRate returns the share of labelled rows among total.
func (r Report) FraudRate() float64 {
	total := 0
	for _, n := range r.Counts {
		total += n
	}
	if total == 0 {
		return 0
	}
	return float64(total-r.Counts[domain.FraudNone]) / float64(total)
}

// Injector composes the archetype passes.
type Injector struct {
	cfg Config
	rng *rand.Rand
}

// New creates an Injector. rng is used for colluding-merchant selection.
func New(cfg Config, rng *rand.Rand) *Injector {
	return &Injector{cfg: cfg, rng: rng}
}

// Passes returns the archetype passes in application order.
func (in *Injector) Passes() []Pass {
	return []Pass{
		{Type: domain.CardCloning, Apply: CardCloningPass(in.cfg)},
		{Type: domain.AccountTakeover, Apply: AccountTakeoverPass(in.cfg)},
		{Type: domain.MerchantCollusion, Apply: MerchantCollusionPass(in.cfg, in.rng)},
	}
}

// Inject sorts txns by customer and timestamp, runs every pass and writes the
// resulting labels back. Rows already labelled on entry keep their label
// unless a pass overwrites it.
func (in *Injector) Inject(txns []domain.Transaction) Report {
	SortByCustomerTime(txns)

	labels := make([]domain.FraudType, len(txns))
	for i := range txns {
		labels[i] = txns[i].FraudType
		if labels[i] == "" {
			labels[i] = domain.FraudNone
		}
	}

	report := Report{
		Counts:  make(map[domain.FraudType]int),
		Flagged: make(map[domain.FraudType]int),
	}
	for _, p := range in.Passes() {
		next := p.Apply(txns, labels)
		for i := range next {
			if next[i] == labels[i] {
				continue
			}
			if next[i] == p.Type {
				report.Flagged[p.Type]++
			}
			if labels[i] != domain.FraudNone {
				report.Overwritten++
			}
		}
		labels = next
	}

	for i := range txns {
		txns[i].Label(labels[i])
		report.Counts[labels[i]]++
	}
	return report
}

// ─── Sequence helpers ─────────────────────────────────────────────────────────

// SortByCustomerTime orders txns by customer ID then timestamp, keeping the
// generation order of ties.
func SortByCustomerTime(txns []domain.Transaction) {
	sort.SliceStable(txns, func(i, j int) bool {
		if txns[i].CustomerID != txns[j].CustomerID {
			return txns[i].CustomerID < txns[j].CustomerID
		}
		return txns[i].Timestamp.Before(txns[j].Timestamp)
	})
}

// span is a half-open index range [start, end) of one customer's rows.
type span struct{ start, end int }

// customerSpans splits a customer-sorted slice into per-customer ranges.
func customerSpans(txns []domain.Transaction) []span {
	var spans []span
	for i := 0; i < len(txns); {
		j := i + 1
		for j < len(txns) && txns[j].CustomerID == txns[i].CustomerID {
			j++
		}
		spans = append(spans, span{i, j})
		i = j
	}
	return spans
}

func cloneLabels(labels []domain.FraudType) []domain.FraudType {
	return slices.Clone(labels)
}
