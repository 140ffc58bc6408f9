package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"lumina/fraud-lab/internal/api"
	"lumina/fraud-lab/internal/domain"
	"lumina/fraud-lab/internal/features"
	"lumina/fraud-lab/internal/geo"
	"lumina/fraud-lab/internal/scoring"
	"lumina/fraud-lab/internal/store"
	"lumina/fraud-lab/internal/webhook"
)

// ─── Test server setup ────────────────────────────────────────────────────────

func testManifest(threshold float64, names ...string) scoring.Manifest {
	if len(names) == 0 {
		names = features.Names
	}
	m := scoring.Manifest{
		Model:     "deviation",
		Version:   "test",
		Features:  names,
		Threshold: threshold,
		Direction: scoring.HigherIsAnomalous,
		Scaler: scoring.Scaler{
			Mean:  make([]float64, len(names)),
			Scale: make([]float64, len(names)),
		},
	}
	for i := range names {
		m.Scaler.Scale[i] = 1
	}
	return m
}

type testEnv struct {
	srv      *httptest.Server
	notifier *webhook.Notifier
}

func newTestEnv(t *testing.T, m scoring.Manifest, hooks ...string) *testEnv {
	t.Helper()
	s := store.NewMemory(store.Options{Lookback: features.Lookback, Retention: 72 * time.Hour})
	e, err := scoring.New(m, scoring.DeviationScorer{})
	if err != nil {
		t.Fatalf("scoring.New: %v", err)
	}
	n := webhook.New(hooks, time.Second)
	srv := httptest.NewServer(api.NewRouter(api.NewHandler(s, e, n)))
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, notifier: n}
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return newTestEnv(t, testManifest(1e12)).srv
}

func post(t *testing.T, srv *httptest.Server, path string, body any) *http.Response {
	t.Helper()
	b, _ := json.Marshal(body)
	resp, err := http.Post(srv.URL+path, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, srv *httptest.Server, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeInto(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(env.Data) == 0 {
		t.Fatalf("response has no 'data' key")
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

func decodeError(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var env map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	e, ok := env["error"].(map[string]any)
	if !ok {
		t.Fatalf("response has no 'error' key: %v", env)
	}
	return e
}

// 2024-03-04 is a Monday.
var base = time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)

func newTx(id, customer string, ts time.Time, amount float64, city string) domain.Transaction {
	c, _ := geo.LookupCity(city)
	tx := domain.Transaction{
		TransactionID:    id,
		CustomerID:       customer,
		CardNumber:       "abcd1234abcd1234",
		Amount:           amount,
		MerchantID:       "M_" + city,
		MerchantCategory: domain.CategoryGrocery,
		MerchantLat:      c.Lat,
		MerchantLong:     c.Lon,
		DistanceFromHome: 4.2,
	}
	tx.SetTimestamp(ts)
	tx.Label(domain.FraudNone)
	return tx
}

func payload(tx domain.Transaction) map[string]any {
	return map[string]any{
		"transaction_id":     tx.TransactionID,
		"customer_id":        tx.CustomerID,
		"card_number":        tx.CardNumber,
		"timestamp":          tx.Timestamp.Format(time.RFC3339Nano),
		"amount":             tx.Amount,
		"merchant_id":        tx.MerchantID,
		"merchant_category":  tx.MerchantCategory,
		"merchant_lat":       tx.MerchantLat,
		"merchant_long":      tx.MerchantLong,
		"distance_from_home": tx.DistanceFromHome,
	}
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("expected %d, got %d", want, resp.StatusCode)
	}
}

// ─── Health ───────────────────────────────────────────────────────────────────

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	resp := get(t, srv, "/health")
	expectStatus(t, resp, http.StatusOK)

	var body map[string]string
	decodeInto(t, resp, &body)
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %q", body["status"])
	}
	if body["model_version"] != "test" {
		t.Errorf("expected model_version test, got %q", body["model_version"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	post(t, srv, "/api/v1/score", payload(newTx("T_M", "C_M", base, 40, "Pune")))

	resp := get(t, srv, "/metrics")
	expectStatus(t, resp, http.StatusOK)
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	if !strings.Contains(buf.String(), "fraudlab_scores_total") {
		t.Error("expected fraudlab_scores_total in metrics output")
	}
}

// ─── POST /api/v1/score ───────────────────────────────────────────────────────

func TestScore_FirstTransaction_Returns201(t *testing.T) {
	srv := newTestServer(t)
	resp := post(t, srv, "/api/v1/score", payload(newTx("T1", "C1", base, 250, "Mumbai")))
	expectStatus(t, resp, http.StatusCreated)

	var out api.ScoreResponse
	decodeInto(t, resp, &out)
	if out.TransactionID != "T1" {
		t.Errorf("expected T1, got %s", out.TransactionID)
	}
	if out.HistorySize != 0 {
		t.Errorf("expected empty history, got %d", out.HistorySize)
	}
	if out.Features.TxnCount1h != 1 || out.Features.TxnCount24h != 1 {
		t.Errorf("first transaction should count itself only: %+v", out.Features)
	}
	if out.Features.TimeSinceLastSec != 0 || out.Features.SpeedKmh != 0 {
		t.Errorf("first transaction has no predecessor: %+v", out.Features)
	}
	if out.Result.IsAnomaly {
		t.Error("unexpected anomaly with an unreachable threshold")
	}
}

func TestScore_GeneratesTransactionID(t *testing.T) {
	srv := newTestServer(t)
	body := payload(newTx("", "C1", base, 20, "Delhi"))
	delete(body, "transaction_id")

	resp := post(t, srv, "/api/v1/score", body)
	expectStatus(t, resp, http.StatusCreated)

	var out api.ScoreResponse
	decodeInto(t, resp, &out)
	if out.TransactionID == "" {
		t.Error("expected a generated transaction id")
	}
}

func TestScore_StreamMatchesBatchFeatures(t *testing.T) {
	srv := newTestServer(t)

	cities := []string{"Mumbai", "Mumbai", "Pune", "Delhi", "Delhi", "Chennai", "Kolkata", "Mumbai"}
	gaps := []time.Duration{0, 10 * time.Minute, 35 * time.Minute, 20 * time.Hour, 2 * time.Minute, 5 * time.Hour, 26 * time.Hour, 30 * time.Second}
	var txns []domain.Transaction
	ts := base
	for i, city := range cities {
		ts = ts.Add(gaps[i])
		txns = append(txns, newTx(fmt.Sprintf("S%02d", i), "C_STREAM", ts, float64(20+37*i), city))
	}

	want := features.ComputeBatch(txns)
	for i, tx := range txns {
		resp := post(t, srv, "/api/v1/score", payload(tx))
		expectStatus(t, resp, http.StatusCreated)

		var out api.ScoreResponse
		decodeInto(t, resp, &out)
		if out.Features != want[i].Features {
			t.Fatalf("row %d: stream features differ from batch\n got  %+v\n want %+v", i, out.Features, want[i].Features)
		}
	}
}

func TestScore_VelocityBuildsUp(t *testing.T) {
	srv := newTestServer(t)
	var out api.ScoreResponse
	for i := 0; i < 4; i++ {
		tx := newTx(fmt.Sprintf("V%d", i), "C_VEL", base.Add(time.Duration(i)*5*time.Minute), 100, "Bengaluru")
		resp := post(t, srv, "/api/v1/score", payload(tx))
		expectStatus(t, resp, http.StatusCreated)
		decodeInto(t, resp, &out)
	}
	if out.Features.TxnCount1h != 4 {
		t.Errorf("expected 4 transactions in the hour, got %d", out.Features.TxnCount1h)
	}
	if out.Features.TimeSinceLastSec != 300 {
		t.Errorf("expected 300s since last, got %v", out.Features.TimeSinceLastSec)
	}
	if out.HistorySize != 3 {
		t.Errorf("expected 3 history rows, got %d", out.HistorySize)
	}
}

func TestScore_DuplicateID_Returns409(t *testing.T) {
	srv := newTestServer(t)
	tx := newTx("DUP", "C1", base, 10, "Jaipur")
	expectStatus(t, post(t, srv, "/api/v1/score", payload(tx)), http.StatusCreated)

	resp := post(t, srv, "/api/v1/score", payload(tx))
	expectStatus(t, resp, http.StatusConflict)
	e := decodeError(t, resp)
	if e["code"] != "CONFLICT" {
		t.Errorf("expected CONFLICT, got %v", e["code"])
	}
	if id, _ := e["request_id"].(string); id == "" {
		t.Error("error envelope should carry the request id")
	}
}

func TestErrorEnvelope_HasNoData(t *testing.T) {
	srv := newTestServer(t)
	resp := get(t, srv, "/api/v1/customers/C1/history?at=yesterday")
	expectStatus(t, resp, http.StatusBadRequest)
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("unexpected content type %q", ct)
	}

	var env map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, has := env["data"]; has {
		t.Errorf("error response must not carry data: %v", env)
	}
	e, _ := env["error"].(map[string]any)
	if e["code"] != "INVALID_PARAM" {
		t.Errorf("expected INVALID_PARAM, got %v", e["code"])
	}
	if _, has := e["missing"]; has {
		t.Errorf("missing is only set for feature errors: %v", e)
	}
}

func TestScore_MissingFeatures_Returns422(t *testing.T) {
	env := newTestEnv(t, testManifest(1, features.FeatAmount, "merchant_risk", "device_age"))

	resp := post(t, env.srv, "/api/v1/score", payload(newTx("T1", "C1", base, 10, "Pune")))
	expectStatus(t, resp, http.StatusUnprocessableEntity)

	e := decodeError(t, resp)
	if e["code"] != "MISSING_FEATURES" {
		t.Errorf("expected MISSING_FEATURES, got %v", e["code"])
	}
	if msg := e["message"].(string); !strings.Contains(msg, "device_age, merchant_risk") {
		t.Errorf("message should list every missing feature, got %q", msg)
	}
	missing, _ := e["missing"].([]any)
	if len(missing) != 2 || missing[0] != "device_age" || missing[1] != "merchant_risk" {
		t.Errorf("expected missing [device_age merchant_risk], got %v", e["missing"])
	}

	// Rejected transactions are not recorded.
	resp = get(t, env.srv, "/api/v1/customers/C1/history?at=2024-03-05T00:00:00Z")
	var h api.HistoryResponse
	decodeInto(t, resp, &h)
	if len(h.Transactions) != 0 {
		t.Errorf("expected empty history, got %d rows", len(h.Transactions))
	}
}

func TestScore_InvalidJSON_Returns400(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Post(srv.URL+"/api/v1/score", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusBadRequest)
	if code := decodeError(t, resp)["code"]; code != "INVALID_JSON" {
		t.Errorf("expected INVALID_JSON, got %v", code)
	}
}

func TestScore_Validation_Returns400(t *testing.T) {
	cases := []struct {
		name  string
		field string
		value any
	}{
		{"missing customer", "customer_id", ""},
		{"zero amount", "amount", 0},
		{"negative amount", "amount", -5},
		{"unknown category", "merchant_category", "casino"},
		{"latitude out of range", "merchant_lat", 91.0},
		{"longitude out of range", "merchant_long", -181.0},
		{"negative distance", "distance_from_home", -1.0},
		{"missing timestamp", "timestamp", nil},
	}
	srv := newTestServer(t)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body := payload(newTx("T_"+tc.field, "C1", base, 10, "Pune"))
			if tc.value == nil {
				delete(body, tc.field)
			} else {
				body[tc.field] = tc.value
			}
			resp := post(t, srv, "/api/v1/score", body)
			expectStatus(t, resp, http.StatusBadRequest)

			e := decodeError(t, resp)
			if e["code"] != "VALIDATION_ERROR" {
				t.Errorf("expected VALIDATION_ERROR, got %v", e["code"])
			}
			if msg := e["message"].(string); !strings.Contains(msg, tc.field) {
				t.Errorf("message should name %s, got %q", tc.field, msg)
			}
		})
	}
}

func TestScore_AnomalyTriggersWebhook(t *testing.T) {
	var (
		mu       sync.Mutex
		received []webhook.Payload
	)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p webhook.Payload
		if err := json.NewDecoder(r.Body).Decode(&p); err == nil {
			mu.Lock()
			received = append(received, p)
			mu.Unlock()
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer hook.Close()

	// Raw amounts are far above a zero mean, so this threshold is always met.
	env := newTestEnv(t, testManifest(1, features.FeatAmount), hook.URL)
	resp := post(t, env.srv, "/api/v1/score", payload(newTx("T_ALERT", "C1", base, 5000, "Mumbai")))
	expectStatus(t, resp, http.StatusCreated)

	var out api.ScoreResponse
	decodeInto(t, resp, &out)
	if !out.Result.IsAnomaly {
		t.Fatalf("expected anomaly, got %+v", out.Result)
	}

	env.notifier.Wait()
	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 {
		t.Fatalf("expected 1 webhook delivery, got %d", len(received))
	}
	if received[0].Transaction.TransactionID != "T_ALERT" {
		t.Errorf("unexpected payload transaction %s", received[0].Transaction.TransactionID)
	}
	if received[0].Event != webhook.EventAnomalousTransaction {
		t.Errorf("unexpected event %q", received[0].Event)
	}
}

// ─── POST /api/v1/features ────────────────────────────────────────────────────

func TestFeatures_DoesNotRecord(t *testing.T) {
	srv := newTestServer(t)
	first := newTx("F1", "C_F", base, 100, "Mumbai")
	expectStatus(t, post(t, srv, "/api/v1/score", payload(first)), http.StatusCreated)

	probe := newTx("F2", "C_F", base.Add(10*time.Minute), 300, "Mumbai")
	for i := 0; i < 2; i++ {
		resp := post(t, srv, "/api/v1/features", payload(probe))
		expectStatus(t, resp, http.StatusOK)

		var out api.FeaturesResponse
		decodeInto(t, resp, &out)
		if out.Features.TxnCount1h != 2 {
			t.Errorf("call %d: expected 2 transactions in the hour, got %d", i, out.Features.TxnCount1h)
		}
		if out.Features.AvgAmount24h != 200 {
			t.Errorf("call %d: expected 24h mean 200, got %v", i, out.Features.AvgAmount24h)
		}
	}

	// Scoring the probed transaction still succeeds: it was never stored.
	expectStatus(t, post(t, srv, "/api/v1/score", payload(probe)), http.StatusCreated)
}

// ─── GET /api/v1/customers/{id}/history ──────────────────────────────────────

func TestCustomerHistory(t *testing.T) {
	srv := newTestServer(t)
	for i := 0; i < 3; i++ {
		tx := newTx(fmt.Sprintf("H%d", i), "C_H", base.Add(time.Duration(i)*time.Hour), 50, "Chennai")
		expectStatus(t, post(t, srv, "/api/v1/score", payload(tx)), http.StatusCreated)
	}

	resp := get(t, srv, "/api/v1/customers/C_H/history?at=2024-03-04T10:30:00Z")
	expectStatus(t, resp, http.StatusOK)

	var h api.HistoryResponse
	decodeInto(t, resp, &h)
	if len(h.Transactions) != 2 {
		t.Fatalf("expected 2 rows visible at 10:30, got %d", len(h.Transactions))
	}
	if h.Transactions[0].TransactionID != "H0" || h.Transactions[1].TransactionID != "H1" {
		t.Errorf("unexpected order: %s, %s", h.Transactions[0].TransactionID, h.Transactions[1].TransactionID)
	}
}

func TestCustomerHistory_Unknown_ReturnsEmpty(t *testing.T) {
	srv := newTestServer(t)
	resp := get(t, srv, "/api/v1/customers/NOBODY/history")
	expectStatus(t, resp, http.StatusOK)

	var h api.HistoryResponse
	decodeInto(t, resp, &h)
	if h.Transactions == nil || len(h.Transactions) != 0 {
		t.Errorf("expected an empty list, got %v", h.Transactions)
	}
}

func TestCustomerHistory_InvalidAt_Returns400(t *testing.T) {
	srv := newTestServer(t)
	resp := get(t, srv, "/api/v1/customers/C1/history?at=yesterday")
	expectStatus(t, resp, http.StatusBadRequest)
}

// ─── Concurrency ──────────────────────────────────────────────────────────────

func TestScore_ConcurrentSameCustomer(t *testing.T) {
	srv := newTestServer(t)
	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tx := newTx(fmt.Sprintf("CC%02d", i), "C_CONC", base.Add(time.Duration(i)*time.Minute), 10, "Pune")
			b, _ := json.Marshal(payload(tx))
			resp, err := http.Post(srv.URL+"/api/v1/score", "application/json", bytes.NewReader(b))
			if err != nil {
				t.Error(err)
				return
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusCreated {
				t.Errorf("tx %d: expected 201, got %d", i, resp.StatusCode)
			}
		}(i)
	}
	wg.Wait()

	resp := get(t, srv, "/api/v1/customers/C_CONC/history?at=2024-03-04T10:00:00Z")
	var h api.HistoryResponse
	decodeInto(t, resp, &h)
	if len(h.Transactions) != n {
		t.Errorf("expected %d stored rows, got %d", n, len(h.Transactions))
	}
}
