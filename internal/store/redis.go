package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"lumina/fraud-lab/internal/domain"
)

// RedisConfig holds connection settings for the Redis backend.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Addr returns host:port.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("unable to connect to redis: %w", err)
	}
	return client, nil
}

// Redis is a HistoryStore backed by one sorted set per customer, scored by
// timestamp in microseconds. Members are JSON-encoded transactions. Rows with
// equal timestamps are returned in member order, not insertion order.
type Redis struct {
	client redis.Cmdable
	prefix string
	opts   Options
}

// NewRedis creates a Redis-backed store. Keys are namespaced by prefix.
func NewRedis(client redis.Cmdable, prefix string, opts Options) *Redis {
	return &Redis{client: client, prefix: prefix, opts: opts.normalized()}
}

// HistoryKey is the sorted set holding a customer's history.
func (r *Redis) HistoryKey(customerID string) string {
	return r.prefix + "history:" + customerID
}

// TransactionKey marks a transaction ID as seen.
func (r *Redis) TransactionKey(txID string) string {
	return r.prefix + "txn:" + txID
}

// History implements HistoryStore.
func (r *Redis) History(ctx context.Context, customerID string, at time.Time) ([]domain.Transaction, error) {
	key := r.HistoryKey(customerID)
	cutoff := Score(at.Add(-r.opts.Lookback))

	prev, err := r.client.ZRevRangeByScore(ctx, key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   cutoff,
		Count: 1,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("store: read previous transaction of %s: %w", customerID, err)
	}

	window, err := r.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: "(" + cutoff,
		Max: Score(at),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("store: read history of %s: %w", customerID, err)
	}

	out := make([]domain.Transaction, 0, len(prev)+len(window))
	for _, member := range append(prev, window...) {
		var tx domain.Transaction
		if err := json.Unmarshal([]byte(member), &tx); err != nil {
			return nil, fmt.Errorf("store: decode history of %s: %w", customerID, err)
		}
		out = append(out, tx)
	}
	return out, nil
}

// Append implements HistoryStore. The transaction ID is claimed with SETNX
// first; if the row cannot be written the claim is released so a retry is
// not mistaken for a duplicate. Once the row is stored, trim and TTL
// failures are logged and retried on the customer's next append.
func (r *Redis) Append(ctx context.Context, tx domain.Transaction) error {
	idKey := r.TransactionKey(tx.TransactionID)
	fresh, err := r.client.SetNX(ctx, idKey, tx.CustomerID, r.opts.Retention).Result()
	if err != nil {
		return fmt.Errorf("store: register transaction %s: %w", tx.TransactionID, err)
	}
	if !fresh {
		return ErrDuplicateTransaction
	}

	key := r.HistoryKey(tx.CustomerID)
	if err := r.addMember(ctx, key, tx); err != nil {
		if delErr := r.client.Del(context.WithoutCancel(ctx), idKey).Err(); delErr != nil {
			err = errors.Join(err, fmt.Errorf("store: release transaction %s: %w", tx.TransactionID, delErr))
		}
		return err
	}

	expired := Score(tx.Timestamp.Add(-r.opts.Retention))
	if err := r.client.ZRemRangeByScore(ctx, key, "-inf", expired).Err(); err != nil {
		slog.Warn("store: evict history failed", "customer_id", tx.CustomerID, "error", err)
	}
	if err := r.client.Expire(ctx, key, r.opts.Retention).Err(); err != nil {
		slog.Warn("store: refresh history ttl failed", "customer_id", tx.CustomerID, "error", err)
	}
	return nil
}

func (r *Redis) addMember(ctx context.Context, key string, tx domain.Transaction) error {
	payload, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("store: encode transaction %s: %w", tx.TransactionID, err)
	}
	score, _ := strconv.ParseFloat(Score(tx.Timestamp), 64)
	if err := r.client.ZAdd(ctx, key, redis.Z{Score: score, Member: string(payload)}).Err(); err != nil {
		return fmt.Errorf("store: append transaction %s: %w", tx.TransactionID, err)
	}
	return nil
}

// Ping implements HistoryStore.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("store: ping redis: %w", err)
	}
	return nil
}

// Score formats a timestamp as a sorted-set score in microseconds.
func Score(ts time.Time) string {
	return strconv.FormatInt(ts.UnixMicro(), 10)
}
