package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/taskcal/internal/attachment"
	"github.com/roach88/taskcal/internal/config"
	"github.com/roach88/taskcal/internal/kv"
	"github.com/roach88/taskcal/internal/remote"
	"github.com/roach88/taskcal/internal/session"
	"github.com/roach88/taskcal/internal/storage"
)

// app is everything one client command works with.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *kv.Store
	files   *attachment.Catalogue
	api     *remote.Client
	session *session.Session
	metrics *prometheus.Registry
}

// openApp opens the attachment store and connects the session to the
// backend. onAdded, if set, is called for every stored attachment.
func openApp(opts *RootOptions, onAdded func(attachment.Entry)) (*app, error) {
	cfg := opts.Config
	logger := opts.Logger

	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	st, err := kv.Open(cfg.Store.Path, kv.WithQuota(cfg.Store.QuotaBytes))
	if err != nil {
		return nil, err
	}
	logger.Debug("opened attachment store", "path", cfg.Store.Path, "quota_bytes", cfg.Store.QuotaBytes)

	reg := prometheus.NewRegistry()
	api := remote.New(cfg.API.BaseURL, remote.Options{
		Timeout:    cfg.API.Timeout,
		Logger:     logger,
		Registerer: reg,
	})
	files := attachment.New(storage.New(st, logger), attachment.Options{
		Keys:    attachment.KeysFor(cfg.Attachments.KeyScheme),
		OnAdded: onAdded,
		Logger:  logger,
		Quota:   st.Quota(),
	})

	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   st,
		files:   files,
		api:     api,
		session: session.New(api, files, logger),
		metrics: reg,
	}, nil
}

// Close logs the backend request counts and closes the store.
func (a *app) Close() {
	if families, err := a.metrics.Gather(); err == nil {
		for _, mf := range families {
			for _, m := range mf.GetMetric() {
				args := []any{"metric", mf.GetName(), "count", m.GetCounter().GetValue()}
				for _, lp := range m.GetLabel() {
					args = append(args, lp.GetName(), lp.GetValue())
				}
				a.logger.Debug("task backend requests", args...)
			}
		}
	}
	if err := a.store.Close(); err != nil {
		a.logger.Error("error closing store", "error", err)
	}
}

// parseID parses a positive task id argument.
func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", s)
	}
	return id, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context, logger *slog.Logger) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan) // Prevent signal handler leak
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
