package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"arbradar/internal/arbitrage"
	"arbradar/internal/config"
	"arbradar/internal/database"
	"arbradar/internal/events"
	"arbradar/internal/feed"
	"arbradar/internal/model"
	"arbradar/internal/notify"
	"arbradar/internal/radar"
	"arbradar/internal/session"
	"arbradar/internal/simulator"
	"arbradar/internal/stream"
)

const (
	smokeTicks      = 3
	shutdownTimeout = 5 * time.Second
	eventQueueSize  = 1024
	historyLimit    = 200
)

func main() {
	configPath := flag.String("config", "", "path to the JSON config file (default $ARBY_CONFIG_PATH or config.json)")
	smoke := flag.Bool("smoke", false, "run a few ticks headless and exit")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	if err != nil {
		logger.Warn("Using default configuration", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *smoke || os.Getenv("ARBY_SMOKE") == "1" {
		if err := runSmoke(ctx, logger, cfg); err != nil {
			logger.Error("Smoke run failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := run(ctx, logger, cfg, *configPath); err != nil {
		logger.Error("Radar stopped with error", "error", err)
		os.Exit(1)
	}
}

func newProvider(ctx context.Context, logger *slog.Logger, mode string) (*feed.Provider, error) {
	sim := simulator.New(logger)
	provider, err := feed.NewProvider(ctx, logger, sim, mode)
	if err == nil {
		return provider, nil
	}
	logger.Warn("Unusable data source, falling back to simulator", "mode", mode, "error", err)
	return feed.NewProvider(ctx, logger, sim, model.ModeSimulator)
}

func runSmoke(ctx context.Context, logger *slog.Logger, cfg config.Config) error {
	filters := cfg.Scanner
	filters.DataSource = model.ModeSimulator
	provider, err := newProvider(ctx, logger, filters.DataSource)
	if err != nil {
		return err
	}

	recorder := events.NewRecorder(0)
	var last arbitrage.Update
	ctrl := arbitrage.NewController(logger, provider, filters, arbitrage.Dependencies{
		Rows:      radar.NewTable(),
		Listener:  arbitrage.ListenerFunc(func(u arbitrage.Update) { last = u }),
		Events:    recorder,
		Favorites: radar.NewFavorites(cfg.Favorites),
	})
	for range smokeTicks {
		if err := ctrl.Tick(ctx); err != nil {
			return err
		}
	}

	fmt.Printf("smoke ok: ticks=%d pairs=%d rows=%d signals=%d alerts=%d\n",
		smokeTicks, last.PairCount, len(ctrl.Rows()), last.SignalCount, recorder.Count(model.LevelSignal))
	return nil
}

func run(ctx context.Context, logger *slog.Logger, cfg config.Config, configPath string) error {
	g, gctx := errgroup.WithContext(ctx)

	provider, err := newProvider(gctx, logger, cfg.Scanner.DataSource)
	if err != nil {
		return err
	}
	cfg.Scanner.DataSource = provider.Mode()

	recorder := events.NewRecorder(0)
	sinks := events.Fanout{events.NewLogSink(logger), recorder}
	history := func(ctx context.Context) ([]model.Event, error) {
		return recorder.Events(), nil
	}

	if cfg.Database.Enabled() {
		repo, err := database.NewPostgresRepository(gctx, cfg.Database.ConnString())
		if err != nil {
			return err
		}
		defer repo.Close()
		if err := repo.Migrate(gctx); err != nil {
			return err
		}
		store := events.NewAsync(events.NewRepositorySink(repo, logger), eventQueueSize)
		sinks = append(sinks, store)
		g.Go(func() error { return store.Run(gctx) })
		history = func(ctx context.Context) ([]model.Event, error) {
			return repo.RecentEvents(ctx, historyLimit)
		}
		logger.Info("Event log enabled", "host", cfg.Database.Host)
	}

	if cfg.Redis.Enabled() {
		pub, err := notify.NewRedisPublisher(gctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Channel, logger)
		if err != nil {
			return err
		}
		defer pub.Close()
		signals := events.NewAsync(pub, eventQueueSize)
		sinks = append(sinks, events.LevelFilter{Next: signals, Levels: []model.EventLevel{model.LevelSignal}})
		g.Go(func() error { return signals.Run(gctx) })
		logger.Info("Signal publishing enabled", "addr", cfg.Redis.Addr, "channel", pub.Channel())
	}

	favorites := radar.NewFavorites(cfg.Favorites)
	hub := stream.NewHub(logger, radar.NewTable(), nil)
	sinks = append(sinks, hub)

	ctrl := arbitrage.NewController(logger, provider, cfg.Scanner, arbitrage.Dependencies{
		Rows:      hub,
		Listener:  hub,
		Events:    sinks,
		Favorites: favorites,
	})
	sess := session.New(logger, ctrl, favorites, config.NewStore(configPath, cfg))
	hub.SetCommander(sess)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.HandleWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"status":  "ok",
			"mode":    ctrl.Mode(),
			"running": ctrl.Running(),
			"rows":    len(ctrl.Rows()),
		})
	})
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		evs, err := history(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, evs)
	})
	server := &http.Server{Addr: cfg.Server.Addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		ctrl.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := sess.Start(gctx); err != nil {
		logger.Warn("Scan not started", "error", err)
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("Radar stopped")
	return nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
