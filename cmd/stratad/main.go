package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"strata/internal/audit"
	"strata/internal/authz"
	"strata/internal/gateway"
	"strata/internal/source"
	"strata/internal/web"
)

func Run(ctx context.Context) error {

	listen := flag.String("listen", "8080", "HTTP listen port")
	configPath := flag.String("config", "", "path to the YAML source configuration; MINIO_* environment variables are used when empty")
	auditDB := flag.String("audit-db", "", "path to the SQLite audit database; audit records go to the log when empty")

	flag.Parse()

	handler := log.NewWithOptions(os.Stdout, log.Options{
		Level:           log.DebugLevel,
		TimeFormat:      time.RFC3339,
		ReportTimestamp: true,
		TimeFunction:    log.NowUTC,
		ReportCaller:    true,
	})

	slog.SetDefault(slog.New(handler))

	cfg := source.FromEnv()
	if *configPath != "" {
		loaded, err := source.LoadFile(*configPath)
		if err != nil {
			return fmt.Errorf("failed to load source config: %w", err)
		}
		cfg = loaded
	}

	registry := source.NewRegistry(cfg)

	var recorder audit.Recorder = &audit.SlogRecorder{}
	if *auditDB != "" {
		sqlite, err := audit.OpenSQLite(*auditDB)
		if err != nil {
			return fmt.Errorf("failed to open audit database: %w", err)
		}
		defer sqlite.Close()
		recorder = sqlite
	}

	gw := gateway.New(registry, gateway.WithAuditRecorder(recorder))
	server := web.NewServer(gw, &authz.AnonymousEngine{}, authz.AllowAll{})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", *listen),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 20 * time.Second,
		ReadTimeout:       20 * time.Second,
		WriteTimeout:      20 * time.Second,
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	eg.Go(func() error {
		slog.Info("Starting Strata HTTP server", "port", *listen, "sources", registry.IDs())
		err := httpServer.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	slog.Info("Strata Started")
	return eg.Wait()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := Run(ctx); err != nil {
		slog.Error("Strata exited with error", "error", err)
	}
}
