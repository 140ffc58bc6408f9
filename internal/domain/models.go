// Package domain contains the core types shared by the generator, the fraud
// injector, the feature engine and the scoring service.
package domain

import "time"

// ─── Fraud labels ─────────────────────────────────────────────────────────────

// FraudType labels a transaction with the archetype that produced it.
type FraudType string

const (
	FraudNone         FraudType = "none"
	CardCloning       FraudType = "card_cloning"
	AccountTakeover   FraudType = "account_takeover"
	MerchantCollusion FraudType = "merchant_collusion"
)

// FraudTypes lists every label in reporting order.
var FraudTypes = []FraudType{FraudNone, CardCloning, AccountTakeover, MerchantCollusion}

// Valid reports whether t is one of the known labels.
func (t FraudType) Valid() bool {
	switch t {
	case FraudNone, CardCloning, AccountTakeover, MerchantCollusion:
		return true
	}
	return false
}

// ─── Merchant categories ──────────────────────────────────────────────────────

const (
	CategoryGrocery     = "grocery"
	CategoryElectronics = "electronics"
	CategoryGas         = "gas"
	CategoryRestaurant  = "restaurant"
	CategoryRetail      = "retail"
	CategoryJewelry     = "jewelry"
	CategoryLuxuryGoods = "luxury_goods"
)

// Categories is the fixed category set. Customer merchant preferences are
// aligned with this slice by index.
var Categories = []string{
	CategoryGrocery,
	CategoryElectronics,
	CategoryGas,
	CategoryRestaurant,
	CategoryRetail,
	CategoryJewelry,
	CategoryLuxuryGoods,
}

// ─── Entities ─────────────────────────────────────────────────────────────────

// Behavior holds the latent parameters that drive a customer's spending.
type Behavior struct {
	AvgAmount    float64   `json:"avg_amount"`
	AmountStd    float64   `json:"amount_std"`
	DailyRate    int       `json:"daily_rate"`    // expected transactions per day, >= 1
	ActiveHours  []int     `json:"active_hours"`  // sorted, deduplicated
	MerchantPref []float64 `json:"merchant_pref"` // simplex over Categories
}

// Customer is immutable after generation.
type Customer struct {
	ID         string   `json:"customer_id"`
	CardNumber string   `json:"card_number"`
	HomeCity   string   `json:"home_city"`
	HomeLat    float64  `json:"home_lat"`
	HomeLon    float64  `json:"home_lon"`
	Behavior   Behavior `json:"behavior"`
}

// Merchant is immutable after generation.
type Merchant struct {
	ID       string  `json:"merchant_id"`
	Category string  `json:"category"`
	City     string  `json:"city"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
}

// ─── Transactions ─────────────────────────────────────────────────────────────

// Transaction is one row of the generated dataset.
type Transaction struct {
	TransactionID    string    `json:"transaction_id"`
	CustomerID       string    `json:"customer_id"`
	CardNumber       string    `json:"card_number"`
	Timestamp        time.Time `json:"timestamp"`
	Amount           float64   `json:"amount"`
	MerchantID       string    `json:"merchant_id"`
	MerchantCategory string    `json:"merchant_category"`
	MerchantLat      float64   `json:"merchant_lat"`
	MerchantLong     float64   `json:"merchant_long"`
	DistanceFromHome float64   `json:"distance_from_home"`
	Hour             int       `json:"hour"`
	DayOfWeek        int       `json:"day_of_week"` // Monday = 0
	Month            int       `json:"month"`
	IsFraud          bool      `json:"is_fraud"`
	FraudType        FraudType `json:"fraud_type"`
}

// SetTimestamp stores ts and recomputes the derived calendar fields.
func (t *Transaction) SetTimestamp(ts time.Time) {
	t.Timestamp = ts
	t.Hour = ts.Hour()
	t.DayOfWeek = Weekday(ts)
	t.Month = int(ts.Month())
}

// Label sets the fraud type and keeps IsFraud consistent with it.
func (t *Transaction) Label(ft FraudType) {
	if ft == "" {
		ft = FraudNone
	}
	t.FraudType = ft
	t.IsFraud = ft != FraudNone
}

// Weekday returns the day of week with Monday as 0 and Sunday as 6.
func Weekday(ts time.Time) int {
	return (int(ts.Weekday()) + 6) % 7
}
