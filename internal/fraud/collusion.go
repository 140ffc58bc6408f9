package fraud

import (
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/stat"

	"lumina/fraud-lab/internal/domain"
)

// MerchantCollusionPass picks up to CollusionMaxMerchants high-volume
// merchants with rng and flags a sample of each one's high-value
// transactions. The per-merchant sample uses its own fixed-seed source, so
// the flagged rows of a chosen merchant do not depend on the run's seed.
func MerchantCollusionPass(cfg Config, rng *rand.Rand) PassFunc {
	return func(txns []domain.Transaction, labels []domain.FraudType) []domain.FraudType {
		out := cloneLabels(labels)

		byMerchant := make(map[string][]int)
		for i := range txns {
			byMerchant[txns[i].MerchantID] = append(byMerchant[txns[i].MerchantID], i)
		}

		colluding := ColludingMerchants(cfg, byMerchant, rng)
		if len(colluding) == 0 {
			return out
		}
		perMerchant := cfg.CollusionTargetCases / len(colluding)

		for _, id := range colluding {
			pool := highValueRows(txns, byMerchant[id], cfg.CollusionPercentile)
			n := min(len(pool), perMerchant)
			if n == 0 {
				continue
			}
			sampler := rand.New(rand.NewPCG(cfg.CollusionSampleSeed, cfg.CollusionSampleSeed))
			for _, k := range sampler.Perm(len(pool))[:n] {
				out[pool[k]] = domain.MerchantCollusion
			}
		}
		return out
	}
}

// ColludingMerchants selects merchants whose volume exceeds the configured
// floor. Candidates are ordered by ID before the random draw so the choice
// depends only on rng.
func ColludingMerchants(cfg Config, byMerchant map[string][]int, rng *rand.Rand) []string {
	var candidates []string
	for id, rows := range byMerchant {
		if len(rows) > cfg.CollusionMinVolume {
			candidates = append(candidates, id)
		}
	}
	slices.Sort(candidates)

	rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	n := min(cfg.CollusionMaxMerchants, len(candidates))
	if n <= 0 {
		return nil
	}
	return candidates[:n]
}

// highValueRows returns the row indexes whose amount is strictly above the
// p-quantile of the merchant's amounts.
func highValueRows(txns []domain.Transaction, rows []int, p float64) []int {
	if len(rows) == 0 {
		return nil
	}
	amounts := make([]float64, len(rows))
	for i, r := range rows {
		amounts[i] = txns[r].Amount
	}
	slices.Sort(amounts)
	cut := stat.Quantile(p, stat.LinInterp, amounts, nil)

	var pool []int
	for _, r := range rows {
		if txns[r].Amount > cut {
			pool = append(pool, r)
		}
	}
	return pool
}
