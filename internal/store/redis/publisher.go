// Package redis publishes verdicts for external consumers (dashboard,
// bots) and persists the watchlist so a restart resumes with the same
// desired pairs. Everything here is best-effort: Redis being down never
// stalls the signal pipeline.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"signals-systemv1/internal/model"
)

const (
	// Per-key history list length and latest-value TTL.
	historyMaxLen    = 200
	defaultLatestTTL = 30 * time.Minute

	watchlistKey = "signals:watchlist"
)

// Config configures the Redis connection.
type Config struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int
}

// Publisher writes verdicts to Redis behind a circuit breaker.
type Publisher struct {
	client  *goredis.Client
	breaker *CircuitBreaker
}

// New creates a Publisher and pings the server.
func New(cfg Config) (*Publisher, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Publisher{
		client:  client,
		breaker: NewCircuitBreaker(5, 10*time.Second),
	}, nil
}

// Client returns the underlying Redis client for health checks.
func (p *Publisher) Client() *goredis.Client { return p.client }

// OnSignal implements the engine's sink interface. Failures trip the
// breaker and are logged, never returned upstream.
func (p *Publisher) OnSignal(ctx context.Context, v model.Verdict) error {
	if err := p.publish(ctx, v); err != nil {
		log.Printf("[redis] publish %s/%d failed: %v", v.Asset, v.Period, err)
	}
	return nil
}

// publish performs the pipelined write for one verdict:
// LPUSH+LTRIM the per-key history, SET the latest value with TTL, and
// PUBLISH for live subscribers.
func (p *Publisher) publish(ctx context.Context, v model.Verdict) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal verdict: %w", err)
	}
	jsonData := string(data)

	return p.breaker.Execute(func() error {
		pipe := p.client.Pipeline()
		pipe.LPush(ctx, historyKey(v.Asset, v.Period), jsonData)
		pipe.LTrim(ctx, historyKey(v.Asset, v.Period), 0, historyMaxLen-1)
		pipe.Set(ctx, latestKey(v.Asset, v.Period), jsonData, defaultLatestTTL)
		pipe.Publish(ctx, pubsubChannel(v.Asset, v.Period), jsonData)
		_, err := pipe.Exec(ctx)
		return err
	})
}

// Recent returns up to n most recent verdicts for one pair, newest first.
func (p *Publisher) Recent(ctx context.Context, asset string, period int, n int) ([]model.Verdict, error) {
	raw, err := p.client.LRange(ctx, historyKey(asset, period), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis LRANGE: %w", err)
	}
	out := make([]model.Verdict, 0, len(raw))
	for _, item := range raw {
		var v model.Verdict
		if err := json.Unmarshal([]byte(item), &v); err != nil {
			log.Printf("[redis] skipping undecodable verdict entry: %v", err)
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// Close closes the Redis client.
func (p *Publisher) Close() error {
	return p.client.Close()
}

func historyKey(asset string, period int) string {
	return "signals:" + strconv.Itoa(period) + "s:" + asset
}

func latestKey(asset string, period int) string {
	return "signals:" + strconv.Itoa(period) + "s:latest:" + asset
}

func pubsubChannel(asset string, period int) string {
	return "pub:signals:" + strconv.Itoa(period) + "s:" + asset
}

// Watchlist is the persisted desired-pairs document.
type Watchlist struct {
	Assets  []string `json:"assets"`
	Periods []int    `json:"periods"`
}

// SaveWatchlist persists the desired pairs. Fire and forget from the
// caller's point of view; the config file stays the source of truth.
func (p *Publisher) SaveWatchlist(ctx context.Context, wl Watchlist) {
	data, err := json.Marshal(wl)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := p.client.Set(ctx, watchlistKey, data, 0).Err(); err != nil {
		log.Printf("[redis] WARNING: failed to persist watchlist: %v", err)
	}
}

// LoadWatchlist restores the persisted pairs. Returns false when the
// key is missing or undecodable.
func (p *Publisher) LoadWatchlist(ctx context.Context) (Watchlist, bool) {
	data, err := p.client.Get(ctx, watchlistKey).Result()
	if err != nil {
		return Watchlist{}, false
	}
	var wl Watchlist
	if json.Unmarshal([]byte(data), &wl) != nil {
		return Watchlist{}, false
	}
	log.Printf("[redis] restored watchlist: %d assets, %d periods", len(wl.Assets), len(wl.Periods))
	return wl, true
}
