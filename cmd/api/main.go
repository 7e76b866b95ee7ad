package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/finance-ledger/internal/api/handlers"
	"github.com/dvloznov/finance-ledger/internal/api/middleware"
	"github.com/dvloznov/finance-ledger/internal/categorizer"
	"github.com/dvloznov/finance-ledger/internal/config"
	"github.com/dvloznov/finance-ledger/internal/gcsuploader"
	infraBQ "github.com/dvloznov/finance-ledger/internal/infra/bigquery"
	"github.com/dvloznov/finance-ledger/internal/logger"
	"github.com/shopspring/decimal"
)

func main() {
	var (
		configFile = flag.String("config", "", "Path to a config file (yaml, toml or json)")
		port       = flag.String("port", "", "HTTP server port (overrides server.port)")
		noSuggest  = flag.Bool("no-suggest", false, "Disable model category suggestions")
	)
	flag.Parse()

	v := config.NewViper()
	if *configFile != "" {
		v.SetConfigFile(*configFile)
		if err := v.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "reading config %s: %v\n", *configFile, err)
			os.Exit(1)
		}
	}
	if *port != "" {
		v.Set("server.port", *port)
	}
	cfg, err := config.Load(v)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := cfg.RequireServer(); err != nil {
		log.Fatal().Err(err).Msg("Invalid server configuration")
	}

	// NUMERIC amounts go over the wire as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	ctx := context.Background()

	repo, err := infraBQ.NewRepository(ctx, infraBQ.Options{
		Project:     cfg.Server.Project,
		Dataset:     cfg.Server.Dataset,
		LedgerTable: cfg.Server.LedgerTable,
		Location:    cfg.Server.Location,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery repository")
	}
	defer repo.Close()

	objects, err := gcsuploader.NewStorage(ctx, cfg.Server.Bucket, cfg.Server.StatementsPrefix, cfg.Server.Dataset, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create statement storage")
	}
	defer objects.Close()

	deps := handlers.Deps{
		Categories: repo,
		Txns:       repo,
		Statements: repo,
		Reconcile:  repo,
		Objects:    objects,
	}
	if *noSuggest {
		log.Warn().Msg("Category suggestions disabled")
	} else if gen, err := categorizer.NewGemini(ctx, cfg.Server.Model); err != nil {
		log.Warn().Err(err).Msg("No model client available - category suggestions disabled")
	} else {
		deps.Categorizer = categorizer.New(gen, categorizer.DefaultBatchSize, log)
	}

	mux := handlers.NewRouter(deps)
	handler := middleware.Chain(mux,
		middleware.Recovery(log),
		middleware.RequestID,
		middleware.Logger(log),
		middleware.CORS,
	)

	// Statement loads and staging builds wait on BigQuery jobs.
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("port", cfg.Server.Port).
			Str("project", cfg.Server.Project).
			Str("dataset", cfg.Server.Dataset).
			Str("bucket", cfg.Server.Bucket).
			Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
