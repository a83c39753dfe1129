package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"signals-systemv1/config"
	"signals-systemv1/internal/candlestore"
	"signals-systemv1/internal/feed"
	"signals-systemv1/internal/logger"
	"signals-systemv1/internal/metrics"
	"signals-systemv1/internal/model"
	"signals-systemv1/internal/notification"
	sigengine "signals-systemv1/internal/signal"
	redisstore "signals-systemv1/internal/store/redis"
	sqlitestore "signals-systemv1/internal/store/sqlite"
	"signals-systemv1/internal/subsync"
	"signals-systemv1/internal/tickagg"
)

// timedAnalyzer wraps the engine so every analysis run is observed.
type timedAnalyzer struct {
	engine *sigengine.Engine
	dur    prometheus.Histogram
}

func (t timedAnalyzer) ProcessCandle(ctx context.Context, key model.SubscriptionKey) model.Verdict {
	start := time.Now()
	v := t.engine.ProcessCandle(ctx, key)
	t.dur.Observe(time.Since(start).Seconds())
	return v
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[signalengine] starting...")

	cfg := config.Load()
	logger.Init("signalengine", slog.LevelInfo)

	assets := cfg.ParseAssets()
	periods := cfg.ParseTimeframes()
	log.Printf("[signalengine] watchlist: %v x %v seconds", assets, periods)

	// ---- Metrics & health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	health.SetWatchedAssets(assets)
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// ---- Graceful shutdown context ----
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- SQLite journal (off hot path) ----
	if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
		log.Fatalf("[signalengine] sqlite data dir: %v", err)
	}
	journal, err := sqlitestore.New(sqlitestore.Config{DBPath: cfg.SQLitePath})
	if err != nil {
		log.Fatalf("[signalengine] sqlite init failed: %v", err)
	}
	defer journal.Close()
	go journal.Run(ctx)
	log.Println("[signalengine] sqlite journal ready")

	// ---- Redis publisher (optional) ----
	publisher, err := redisstore.New(redisstore.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		log.Printf("[signalengine] WARNING: redis init failed: %v (continuing without redis)", err)
		publisher = nil
	} else {
		log.Println("[signalengine] redis publisher ready")
	}

	if publisher != nil {
		health.StartLivenessChecker(ctx, publisher.Client(), journal.DB(), 10*time.Second)
	} else {
		health.StartLivenessChecker(ctx, nil, journal.DB(), 10*time.Second)
	}

	// ---- Desired subscriptions ----
	desired := subsync.NewDesiredState()
	if publisher != nil {
		if wl, ok := publisher.LoadWatchlist(ctx); ok {
			assets, periods = wl.Assets, wl.Periods
			health.SetWatchedAssets(assets)
			log.Printf("[signalengine] restored watchlist: %v x %v", assets, periods)
		}
	}
	desired.Set(assets, periods)
	if publisher != nil {
		publisher.SaveWatchlist(ctx, redisstore.Watchlist{Assets: assets, Periods: periods})
	}

	// ---- Rolling candle windows ----
	store := candlestore.New(desired, candlestore.DefaultCap)
	store.OnAppend = func(model.SubscriptionKey) {
		prom.CandlesTotal.Inc()
	}

	// ---- Signal engine and sinks ----
	engine := sigengine.NewEngine(store)
	engine.OnVerdict = func(v model.Verdict) {
		prom.SignalsTotal.WithLabelValues(string(v.Direction)).Inc()
	}
	engine.AddSink(journal)
	if publisher != nil {
		engine.AddSink(publisher)
	}
	switch {
	case cfg.TelegramBotToken != "" && cfg.TelegramChatID != "":
		engine.AddSink(notification.NewSignalSink(
			notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID)))
		log.Println("[signalengine] telegram alerts enabled")
	case cfg.WebhookURL != "":
		engine.AddSink(notification.NewSignalSink(notification.NewWebhookNotifier(cfg.WebhookURL)))
		log.Println("[signalengine] webhook alerts enabled")
	default:
		engine.AddSink(notification.NewSignalSink(notification.NewLogNotifier()))
	}

	// ---- Feed client ----
	client := feed.New(cfg.Credentials(), cfg.ReconnectDelay)
	client.OnStateChange = func(s model.ConnState) {
		prom.ConnState.Set(float64(s))
		health.SetWSConnected(s == model.Authenticated)
	}
	client.OnReconnect = func() { prom.WSReconnects.Inc() }
	client.OnFrame = func() { prom.FramesTotal.Inc() }
	client.OnPong = func() { prom.PongsTotal.Inc() }
	client.OnMalformed = func() { prom.MalformedFrames.Inc() }
	client.Fanout().OnDrop = func(subscriberIdx int) {
		prom.FanoutDrops.WithLabelValues(strconv.Itoa(subscriberIdx)).Inc()
	}
	events := client.Events()

	// ---- Tick aggregation and event routing ----
	agg := tickagg.New(desired, periods)
	agg.OnStaleTick = func() { prom.StaleTicks.Inc() }

	router := feed.NewRouter(store, timedAnalyzer{engine: engine, dur: prom.AnalyzeDur}, agg)
	router.OnCandle = func(c model.Candle) {
		now := time.Now()
		health.SetLastCandleTime(now)
		prom.CandleLag.Set(now.Sub(time.Unix(c.TS, 0)).Seconds())
		journal.RecordCandle(c)
	}
	router.OnTick = func() { prom.TicksTotal.Inc() }

	// ---- Subscription synchronizer ----
	sync := subsync.New(desired, client, cfg.SyncInterval)
	sync.OnSubscribe = func(model.SubscriptionKey) {
		prom.SyncOpsTotal.WithLabelValues("subscribe").Inc()
		prom.ActiveSubscriptions.Inc()
	}
	sync.OnUnsubscribe = func(model.SubscriptionKey) {
		prom.SyncOpsTotal.WithLabelValues("unsubscribe").Inc()
		prom.ActiveSubscriptions.Dec()
	}

	go client.Run(ctx)
	go router.Run(ctx, events)
	go sync.Run(ctx)
	log.Println("[signalengine] pipeline ready")

	// ---- Wait for shutdown ----
	sig := <-sigCh
	log.Printf("[signalengine] received %v, shutting down...", sig)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Stop(shutdownCtx)
	client.Close()
	if publisher != nil {
		publisher.Close()
	}
	log.Println("[signalengine] shutdown complete")
}
