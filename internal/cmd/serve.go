package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/iwealthdemo/asset-management-workflow-sub001/internal/config"
	"github.com/iwealthdemo/asset-management-workflow-sub001/internal/server"
	"github.com/iwealthdemo/asset-management-workflow-sub001/pkg/executor"
	"github.com/iwealthdemo/asset-management-workflow-sub001/pkg/provider"
	"github.com/iwealthdemo/asset-management-workflow-sub001/pkg/provider/anthropic"
	"github.com/iwealthdemo/asset-management-workflow-sub001/pkg/provider/openai"
	"github.com/iwealthdemo/asset-management-workflow-sub001/pkg/reconcile"
	"github.com/iwealthdemo/asset-management-workflow-sub001/pkg/schedule"
	"github.com/iwealthdemo/asset-management-workflow-sub001/pkg/service"
	"github.com/iwealthdemo/asset-management-workflow-sub001/pkg/storage"
	"github.com/iwealthdemo/asset-management-workflow-sub001/pkg/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the analysis pipeline and its HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	log := newLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := gorm.Open(sqlite.Open(cfg.Database.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return fmt.Errorf("open database %s: %w", cfg.Database.DSN, err)
	}

	store := storage.NewGormStore(db)
	docs := storage.NewGormDocumentStore(db)
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	primary := openai.NewClient(openai.Config{
		APIKey:        cfg.OpenAI.APIKey,
		BaseURL:       cfg.OpenAI.BaseURL,
		Model:         cfg.OpenAI.Model,
		VectorStoreID: cfg.OpenAI.VectorStoreID,
		SummaryType:   cfg.OpenAI.SummaryType,
		AnalysisFocus: cfg.OpenAI.AnalysisFocus,
		Timeout:       cfg.OpenAI.Timeout,
	}, nil, log)

	var fallback provider.Provider
	if cfg.Anthropic.Enabled {
		fallback = anthropic.NewClient(anthropic.Config{
			APIKey:        cfg.Anthropic.APIKey,
			BaseURL:       cfg.Anthropic.BaseURL,
			Model:         cfg.Anthropic.Model,
			MaxTokens:     cfg.Anthropic.MaxTokens,
			SummaryType:   cfg.OpenAI.SummaryType,
			AnalysisFocus: cfg.OpenAI.AnalysisFocus,
			Timeout:       cfg.Anthropic.Timeout,
		}, nil, log)
	}

	strategy := provider.NewFailover(primary, fallback,
		provider.WithCallTimeout(cfg.Worker.CallTimeout),
		provider.WithLogger(log),
	)

	emitter := service.NewEmitter()

	rec := reconcile.New(store, docs,
		reconcile.WithLogger(log),
		reconcile.WithEmitter(emitter.Emit),
	)

	exec := executor.New(store, docs, strategy,
		executor.WithLogger(log),
		executor.WithEmitter(emitter.Emit),
		executor.WithRetryDelay(executor.DefaultRetryDelay),
	)

	wrk := worker.New(store, exec,
		worker.WithLogger(log),
		worker.WithEmitter(emitter.Emit),
		worker.WithReconciler(rec),
		worker.WithPollInterval(cfg.Worker.PollInterval),
	)

	svc := service.New(store, docs, rec,
		service.WithLogger(log),
		service.WithEmitter(emitter),
		service.WithWaker(wrk),
	)

	sweeper := reconcile.NewSweeper(rec, schedule.Every(cfg.Sweep.Interval), cfg.Sweep.Limit, log)

	httpSrv := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: server.New(svc, log).Routes(),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := wrk.Start(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		err := sweeper.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		log.Info("http.listening", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
