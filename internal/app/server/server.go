package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dougwithseismic/dotoro-ads-sub008/internal/api"
	"github.com/dougwithseismic/dotoro-ads-sub008/internal/cache"
	"github.com/dougwithseismic/dotoro-ads-sub008/internal/config"
	"github.com/dougwithseismic/dotoro-ads-sub008/internal/generator"
	"github.com/dougwithseismic/dotoro-ads-sub008/internal/listener"
	"github.com/dougwithseismic/dotoro-ads-sub008/internal/platform/memory"
	"github.com/dougwithseismic/dotoro-ads-sub008/internal/rules"
	"github.com/dougwithseismic/dotoro-ads-sub008/internal/storage"
	"github.com/dougwithseismic/dotoro-ads-sub008/internal/syncer"
)

func Run(cfg config.Config) {
	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ruleSet := &cache.Snapshot[[]rules.Rule]{}
	var store api.Store

	// Storage
	if cfg.PersistenceEnabled() {
		st, err := storage.New(rootCtx, cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("init storage")
		}
		defer st.Close()
		if err := st.EnsureSchema(rootCtx); err != nil {
			log.Fatal().Err(err).Msg("ensure schema")
		}

		refresh := RuleRefresher(st, ruleSet)
		if err := refresh(rootCtx); err != nil {
			log.Fatal().Err(err).Msg("initial rule load")
		}
		// Listener (LISTEN/NOTIFY)
		go listener.ListenAndRefresh(rootCtx, st, refresh, cfg.Listener.Channel, cfg.Backoff())
		store = st
	} else {
		log.Warn().Msg("postgres host not set; running without persistence")
	}

	// Platform
	adapter := memory.New("sandbox")
	log.Info().Msg("using in-memory sandbox platform")

	// HTTP
	h := NewHandler(cfg, store, ruleSet, adapter)
	r := api.Router(h, cfg.RequestTimeout())

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.RequestTimeout() + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Server goroutine
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("http server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server crashed")
		}
	}()

	// Wait for signal
	waitForSignal()
	log.Info().Msg("shutdown...")

	// Graceful shutdown
	shCtx, shCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shCancel()
	cancel() // stop background goroutines
	_ = srv.Shutdown(shCtx)
}

// NewHandler builds the API handler from configuration. store may be nil.
func NewHandler(cfg config.Config, store api.Store, ruleSet *cache.Snapshot[[]rules.Rule], adapter syncer.Adapter) *api.Handler {
	ruleEngine := rules.NewEngine(rules.WithCaseSensitive(cfg.Rules.CaseSensitive))
	return &api.Handler{
		Rules:     ruleEngine,
		Generator: generator.New(generator.WithRuleEngine(ruleEngine)),
		Sync:      syncer.New(adapter, syncer.WithHistorySize(cfg.Sync.HistorySize)),
		RuleSet:   ruleSet,
		State:     storage.NewCache(),
		Store:     store,
		Defaults: generator.Options{
			ValidatePlatformLimits: cfg.Generator.ValidatePlatformLimits,
			DeduplicateAds:         cfg.Generator.DeduplicateAds,
			PreviewLimit:           cfg.Generator.PreviewLimit,
		},
		TransactionMode: cfg.Sync.TransactionMode,
	}
}

// RuleLoader is the part of the store the rule snapshot is filled from.
type RuleLoader interface {
	LoadRules(ctx context.Context) ([]rules.Rule, error)
}

// RuleRefresher reloads the enabled rule set into snap.
func RuleRefresher(st RuleLoader, snap *cache.Snapshot[[]rules.Rule]) listener.RefreshFunc {
	return func(ctx context.Context) error {
		rs, err := st.LoadRules(ctx)
		if err != nil {
			return err
		}
		snap.Store(rs)
		log.Info().Int("rules", len(rs)).Msg("rule snapshot loaded")
		return nil
	}
}

func waitForSignal() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
}
