package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"market-rankings/ranking"
)

// Keys and channels written after each run
const (
	MomentumLatestKey = "momentum:latest"
	EventsChannel     = "rankings:events"
)

// RankingsKey is the latest-snapshot key for a granularity
func RankingsKey(g ranking.Granularity) string {
	return fmt.Sprintf("rankings:%s:latest", g)
}

// DistributionKey is the latest-result key for a symbol
func DistributionKey(symbol string) string {
	return "distribution:" + symbol
}

var errNotInitialized = errors.New("redis client not initialized")

// RedisClient wraps redis.Client. Writes go through a circuit breaker so an
// unhealthy cache stops costing a network round trip per run.
type RedisClient struct {
	client  *redis.Client
	breaker *gobreaker.CircuitBreaker
	ttl     time.Duration
}

// NewRedisClient creates a new Redis client, returning nil when Redis is unreachable
func NewRedisClient(host, port, password string, ttl time.Duration) *RedisClient {
	addr := fmt.Sprintf("%s:%s", host, port)
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0, // use default DB
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", addr).Msg("⚠️ Failed to connect to Redis, cache disabled")
		_ = client.Close()
		return nil
	}

	log.Info().Str("addr", addr).Msg("✅ Connected to Redis")
	return NewFromClient(client, ttl)
}

// NewFromClient wraps an existing client
func NewFromClient(client *redis.Client, ttl time.Duration) *RedisClient {
	return &RedisClient{
		client:  client,
		breaker: newBreaker("redis"),
		ttl:     ttl,
	}
}

func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Cache circuit state changed")
		},
	})
}

// SetJSON stores value as JSON under key with the configured TTL
func (r *RedisClient) SetJSON(ctx context.Context, key string, value interface{}) error {
	if r == nil || r.client == nil {
		return errNotInitialized
	}

	jsonBytes, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("SetJSON %s: %w", key, err)
	}

	_, err = r.breaker.Execute(func() (interface{}, error) {
		return nil, r.client.Set(ctx, key, string(jsonBytes), r.ttl).Err()
	})
	if err != nil {
		return fmt.Errorf("SetJSON %s: %w", key, err)
	}
	return nil
}

// Get decodes the JSON stored under key. A missing key returns redis.Nil.
func (r *RedisClient) Get(ctx context.Context, key string, dest interface{}) error {
	if r == nil || r.client == nil {
		return errNotInitialized
	}

	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		return err
	}

	return json.Unmarshal([]byte(val), dest)
}

// Publish sends a JSON message to a channel
func (r *RedisClient) Publish(ctx context.Context, channel string, message interface{}) error {
	if r == nil || r.client == nil {
		return errNotInitialized
	}

	jsonBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	_, err = r.breaker.Execute(func() (interface{}, error) {
		return nil, r.client.Publish(ctx, channel, string(jsonBytes)).Err()
	})
	return err
}

// Open reports whether the breaker is currently rejecting writes
func (r *RedisClient) Open() bool {
	return r != nil && r.breaker.State() == gobreaker.StateOpen
}

// Close closes the Redis connection
func (r *RedisClient) Close() error {
	if r != nil && r.client != nil {
		return r.client.Close()
	}
	return nil
}
