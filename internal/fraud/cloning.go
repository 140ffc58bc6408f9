package fraud

import (
	"lumina/fraud-lab/internal/domain"
	"lumina/fraud-lab/internal/geo"
)

// CardCloningPass flags a transaction that follows the same customer's
// previous transaction too far away, too soon and with a much larger amount.
// All three conditions must hold.
func CardCloningPass(cfg Config) PassFunc {
	return func(txns []domain.Transaction, labels []domain.FraudType) []domain.FraudType {
		out := cloneLabels(labels)
		for _, s := range customerSpans(txns) {
			for j := s.start + 1; j < s.end; j++ {
				if isCloned(cfg, &txns[j-1], &txns[j]) {
					out[j] = domain.CardCloning
				}
			}
		}
		return out
	}
}

func isCloned(cfg Config, prev, cur *domain.Transaction) bool {
	gapMinutes := cur.Timestamp.Sub(prev.Timestamp).Minutes()
	distance := geo.Distance(prev.MerchantLat, prev.MerchantLong, cur.MerchantLat, cur.MerchantLong)
	amountSpike := cur.Amount > cfg.CloningAmountRatio*prev.Amount

	return distance > cfg.CloningDistanceKm &&
		gapMinutes < cfg.CloningWindow.Minutes() &&
		amountSpike
}
