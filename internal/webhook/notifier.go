// Package webhook notifies registered endpoints when a transaction scores as
// anomalous.
//
// Notifications are sent in a goroutine so they never block the HTTP response.
// Failed deliveries are logged and counted but not retried.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"lumina/fraud-lab/internal/domain"
	"lumina/fraud-lab/internal/features"
	"lumina/fraud-lab/internal/metrics"
	"lumina/fraud-lab/internal/scoring"
)

// EventAnomalousTransaction is the event name sent with every alert.
const EventAnomalousTransaction = "anomalous_transaction"

// Payload is the JSON body posted to each endpoint.
type Payload struct {
	Event       string             `json:"event"`
	TriggeredAt time.Time          `json:"triggered_at"`
	Transaction domain.Transaction `json:"transaction"`
	Features    features.Vector    `json:"features"`
	Result      scoring.Result     `json:"result"`
}

// Notifier sends alert payloads to a fixed set of endpoints.
type Notifier struct {
	urls    []string
	client  *http.Client
	timeout time.Duration

	wg sync.WaitGroup
}

// New creates a Notifier. A zero timeout defaults to five seconds.
func New(urls []string, timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Notifier{
		urls:    urls,
		timeout: timeout,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// NotifyAsync fires one delivery per endpoint in the background when the
// result is anomalous.
func (n *Notifier) NotifyAsync(tx domain.Transaction, v features.Vector, res scoring.Result) {
	if !res.IsAnomaly || len(n.urls) == 0 {
		return
	}
	payload := Payload{
		Event:       EventAnomalousTransaction,
		TriggeredAt: time.Now().UTC(),
		Transaction: tx,
		Features:    v,
		Result:      res,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		slog.Error("webhook: failed to marshal payload", "transaction_id", tx.TransactionID, "error", err)
		return
	}

	for _, url := range n.urls {
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			n.send(url, tx.TransactionID, res.Score, body)
		}()
	}
}

// Wait blocks until in-flight deliveries finish.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

// send delivers a single webhook call and logs the outcome.
func (n *Notifier) send(url, txID string, score float64, body []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		slog.Error("webhook: failed to build request", "url", url, "error", err)
		metrics.WebhookDeliveries.WithLabelValues("error").Inc()
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Fraudlab-Event", EventAnomalousTransaction)

	resp, err := n.client.Do(req)
	if err != nil {
		slog.Warn("webhook: delivery failed", "url", url, "error", err)
		metrics.WebhookDeliveries.WithLabelValues("error").Inc()
		return
	}
	defer resp.Body.Close()

	result := "delivered"
	if resp.StatusCode >= 300 {
		result = "rejected"
	}
	metrics.WebhookDeliveries.WithLabelValues(result).Inc()

	slog.Info("webhook: "+result,
		"url", url,
		"status", resp.StatusCode,
		"transaction_id", txID,
		"score", score,
	)
}
