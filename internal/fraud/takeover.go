package fraud

import (
	"math"
	"sort"

	"lumina/fraud-lab/internal/domain"
)

// AccountTakeoverPass compares consecutive windows of a customer's history and
// flags the later window when the merchant-category mix drifts and night
// activity jumps. A customer needs more than two full windows of history.
func AccountTakeoverPass(cfg Config) PassFunc {
	return func(txns []domain.Transaction, labels []domain.FraudType) []domain.FraudType {
		out := cloneLabels(labels)
		for _, w := range TakeoverWindows(cfg, txns) {
			for i := w.Start; i < w.End; i++ {
				out[i] = domain.AccountTakeover
			}
		}
		return out
	}
}

// Window is a half-open index range of a sorted transaction slice.
type Window struct {
	Start, End int
}

// TakeoverWindows returns every "after" window that satisfies the drift and
// night-increase conditions. txns must be sorted by customer and timestamp.
func TakeoverWindows(cfg Config, txns []domain.Transaction) []Window {
	w := cfg.TakeoverWindowSize
	if w <= 0 {
		return nil
	}

	var hits []Window
	for _, s := range customerSpans(txns) {
		if s.end-s.start <= 2*w {
			continue
		}
		// The after window never reaches the customer's last row.
		for i := s.start + w; i+w < s.end; i++ {
			before := txns[i-w : i]
			after := txns[i : i+w]

			kl := KLDivergence(CategoryFrequencies(before), CategoryFrequencies(after), cfg.SmoothingEpsilon)
			nightIncrease := nightRatio(after, cfg.NightHourCutoff) - nightRatio(before, cfg.NightHourCutoff)

			if kl > cfg.TakeoverDivergence && nightIncrease > cfg.TakeoverNightIncrease {
				hits = append(hits, Window{Start: i, End: i + w})
			}
		}
	}
	return hits
}

// CategoryFrequencies returns the normalised merchant-category counts of txns.
func CategoryFrequencies(txns []domain.Transaction) map[string]float64 {
	freq := make(map[string]float64)
	if len(txns) == 0 {
		return freq
	}
	for i := range txns {
		freq[txns[i].MerchantCategory]++
	}
	for k := range freq {
		freq[k] /= float64(len(txns))
	}
	return freq
}

// KLDivergence computes sum p(k) * log((p(k)+eps) / (q(k)+eps)) over the
// categories present in both p and q. Categories outside the shared support
// are ignored, so the result is not a full KL divergence and may be negative.
func KLDivergence(p, q map[string]float64, eps float64) float64 {
	shared := make([]string, 0, len(p))
	for k := range p {
		if _, ok := q[k]; ok {
			shared = append(shared, k)
		}
	}
	// Fixed summation order keeps results bit-identical between runs.
	sort.Strings(shared)

	var kl float64
	for _, k := range shared {
		kl += p[k] * math.Log((p[k]+eps)/(q[k]+eps))
	}
	return kl
}

func nightRatio(txns []domain.Transaction, cutoff int) float64 {
	if len(txns) == 0 {
		return 0
	}
	night := 0
	for i := range txns {
		if txns[i].Hour < cutoff {
			night++
		}
	}
	return float64(night) / float64(len(txns))
}
