package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/nundapaulo885-rgb/Nund-Comercial/config"
	"github.com/nundapaulo885-rgb/Nund-Comercial/internal/advisory"
	"github.com/nundapaulo885-rgb/Nund-Comercial/internal/api"
	"github.com/nundapaulo885-rgb/Nund-Comercial/internal/engine"
	"github.com/nundapaulo885-rgb/Nund-Comercial/internal/indicator"
	"github.com/nundapaulo885-rgb/Nund-Comercial/internal/journal"
	"github.com/nundapaulo885-rgb/Nund-Comercial/internal/marketdata/deriv"
	"github.com/nundapaulo885-rgb/Nund-Comercial/internal/marketdata/sim"
	"github.com/nundapaulo885-rgb/Nund-Comercial/internal/metrics"
	"github.com/nundapaulo885-rgb/Nund-Comercial/internal/model"
	"github.com/nundapaulo885-rgb/Nund-Comercial/internal/notification"
	"github.com/nundapaulo885-rgb/Nund-Comercial/internal/publish"
	"github.com/nundapaulo885-rgb/Nund-Comercial/internal/settings"
	"github.com/nundapaulo885-rgb/Nund-Comercial/internal/strategy"
	"github.com/nundapaulo885-rgb/Nund-Comercial/internal/trade"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[bot] starting...")

	configPath := flag.String("config", "bot.yaml", "path to the YAML config file")
	autostart := flag.Bool("autostart", true, "start trading immediately (otherwise wait for /api/v1/start)")
	flag.Parse()

	// ---- Load config (defaults -> YAML -> .env -> env) ----
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[bot] config load failed: %v", err)
	}

	mode := "SIMULATED"
	if cfg.APIToken != "" {
		mode = "LIVE (Deriv)"
	}

	// ---- Metrics & health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)

	// ---- Setup context for graceful shutdown ----
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- Trade journal (optional, off hot path) ----
	var journ *journal.Journal
	if cfg.JournalPath != "" {
		os.MkdirAll(filepath.Dir(cfg.JournalPath), 0o755)
		journ, err = journal.Open(cfg.JournalPath)
		if err != nil {
			log.Printf("[bot] WARNING: journal init failed: %v (continuing without journal)", err)
		} else {
			defer journ.Close()
			health.SetJournalOK(true)
		}
	}

	// ---- Redis event publisher (optional) ----
	var publisher *publish.Publisher
	var eventCh chan publish.Event
	if cfg.RedisAddr != "" {
		publisher, err = publish.New(publish.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			log.Printf("[bot] WARNING: redis init failed: %v (continuing without event stream)", err)
			health.SetRedisOK(false)
		} else {
			defer publisher.Close()
			health.SetRedisOK(true)
			eventCh = make(chan publish.Event, 256)
			go publisher.Run(ctx, eventCh)
		}
	}

	// ---- Notifications ----
	var notifier notification.Notifier = notification.NewLogNotifier()
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		notifier = notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID)
		log.Println("[bot] telegram notifications enabled")
	}

	// ---- Core state ----
	store := settings.NewStore(cfg.Settings())
	cell := advisory.NewCell()

	// ---- Tick sources ----
	derivClient := deriv.New(deriv.Config{
		Token:  cfg.APIToken,
		Symbol: cfg.Symbol,
	})
	derivClient.OnReconnect = func() {
		prom.WSReconnects.Inc()
		health.SetFeedConnected(false)
	}
	derivClient.OnDrop = func() { prom.DroppedTicks.Inc() }

	simGen := sim.New(sim.Config{
		StartPrice: cfg.InitialPrice,
		Interval:   cfg.SimTickInterval,
		Amplitude:  cfg.SimAmplitude,
	})
	simGen.OnDrop = func() { prom.DroppedTicks.Inc() }

	// The live order path exists only when a token is configured.
	var submitter trade.OrderSubmitter
	if cfg.APIToken != "" {
		submitter = derivClient
	}
	trades := trade.NewManager(trade.ManagerConfig{
		HoldDuration:   cfg.HoldDuration,
		PayoutRatio:    cfg.PayoutRatio,
		InitialBalance: cfg.InitialBalance,
	}, submitter)
	prom.Balance.Set(cfg.InitialBalance)

	// ---- Engine ----
	eng := engine.New(engine.Config{
		BufferCapacity: cfg.BufferCapacity,
		Indicators: indicator.Config{
			RSIPeriod:  cfg.RSIPeriod,
			FastPeriod: cfg.SMAFastPeriod,
			SlowPeriod: cfg.SMASlowPeriod,
		},
		Thresholds: strategy.Thresholds{
			RSIUpper:   cfg.RSIUpper,
			RSILower:   cfg.RSILower,
			Confidence: cfg.ConfidenceThreshold,
		},
		InitialPrice:    cfg.InitialPrice,
		SimAmplitude:    cfg.SimAmplitude,
		SimTickInterval: cfg.SimTickInterval,
		Asset:           cfg.Asset,
	}, engine.Deps{
		Settings: store,
		Trades:   trades,
		Cell:     cell,
		Live:     derivClient,
		Sim:      simGen,
		Metrics:  prom,
		Health:   health,
		Journal:  journalOrNil(journ),
		Notifier: notifier,
		Events:   eventCh,
	})

	// ---- Advisory oracle (instrumented Gemini) ----
	oracle := &advisory.Instrumented{
		Oracle: advisory.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel, ""),
		OnRequest: func() {
			prom.AdvisoryRequests.Inc()
		},
		OnResult: func(a advisory.Advice, err error, elapsed time.Duration) {
			prom.AdvisoryLatency.Observe(elapsed.Seconds())
			if err != nil {
				prom.AdvisoryFailures.Inc()
				return
			}
			if eventCh != nil {
				select {
				case eventCh <- publish.Event{Kind: publish.EventAdvisory, Asset: cfg.Asset, Payload: a}:
				default:
				}
			}
		},
	}
	poller := advisory.NewPoller(advisory.PollerConfig{
		Interval: cfg.AdvisoryInterval,
		Window:   cfg.AdvisoryWindow,
		Timeout:  cfg.AdvisoryTimeout,
	}, oracle, cell, eng.PricesSnapshot)
	// Only burn oracle quota while the AI strategy is actually selected.
	poller.Gate = func() bool {
		return store.Get().Strategy == model.StrategyAIGemini
	}
	eng.AttachPoller(poller)

	// ---- HTTP API on the metrics listener ----
	api.NewServer(eng).Register(metricsSrv.Mux())
	metricsSrv.Start()

	log.Println("[bot] ╔════════════════════════════════════════════════════════╗")
	log.Println("[bot] ║  Nund Comercial — Binary Options Trading Bot           ║")
	log.Println("[bot] ║                                                        ║")
	log.Println("[bot] ║  [Ticks] → [Indicators] → [Strategy] → [Trades]        ║")
	log.Printf("[bot] ║  Mode: %-47s ║", mode)
	log.Printf("[bot] ║  Asset: %-24s Strategy: %-12s ║", cfg.Asset, cfg.Strategy)
	log.Printf("[bot] ║  Stake: %-8.2f TP: %-8.2f SL: %-8.2f Hold: %-5s ║",
		cfg.Stake, cfg.TakeProfit, cfg.StopLoss, cfg.HoldDuration)
	log.Println("[bot] ╚════════════════════════════════════════════════════════╝")

	if *autostart {
		if err := eng.Start(); err != nil {
			log.Fatalf("[bot] engine start failed: %v", err)
		}
	} else {
		log.Printf("[bot] waiting for POST %s/api/v1/start", cfg.MetricsAddr)
	}

	// ---- Wait for shutdown signal ----
	<-sigCh
	log.Println("[bot] shutdown signal received, cleaning up...")

	if err := eng.Stop(); err != nil && err != engine.ErrNotRunning {
		log.Printf("[bot] engine stop: %v", err)
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Stop(shutdownCtx)

	log.Println("[bot] shutdown complete.")
}

// journalOrNil keeps the engine's nil check honest: a nil *Journal inside a
// non-nil interface would dodge it.
func journalOrNil(j *journal.Journal) engine.TradeRecorder {
	if j == nil {
		return nil
	}
	return j
}
