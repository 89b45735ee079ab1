package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/veeamdump/internal/adapter/driven/local"
	"github.com/ericfisherdev/veeamdump/internal/adapter/driven/lootfs"
	"github.com/ericfisherdev/veeamdump/internal/adapter/driven/powershell"
	"github.com/ericfisherdev/veeamdump/internal/adapter/driven/registry"
	"github.com/ericfisherdev/veeamdump/internal/adapter/driven/report"
	"github.com/ericfisherdev/veeamdump/internal/adapter/driven/secret"
	"github.com/ericfisherdev/veeamdump/internal/adapter/driven/sqlcmd"
	"github.com/ericfisherdev/veeamdump/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/veeamdump/internal/application"
	"github.com/ericfisherdev/veeamdump/internal/config"
	"github.com/ericfisherdev/veeamdump/internal/domain/model"
	"github.com/ericfisherdev/veeamdump/internal/domain/port/driven"
)

// app is the wired pipeline plus what must be released after the run.
type app struct {
	pipeline *application.Pipeline
	db       *sqlite.DB
	logger   *slog.Logger
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close database", "error", err)
	}
}

func buildApp(ctx context.Context, cfg *config.Config, products []model.Product) (*app, error) {
	logger := slog.Default()

	// 1. Open the loot database and apply migrations.
	db, err := sqlite.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := sqlite.RunMigrations(db.Writer); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database ready", "path", db.Path())

	// 2. Loot sinks.
	creds, err := sqlite.NewCredentialRepo(db, cfg.LootKey)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("credential store: %w", err)
	}
	var artifacts driven.ArtifactStore = sqlite.NewArtifactRepo(db)
	if cfg.LootDir != "" {
		store, err := lootfs.New(cfg.LootDir)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("loot directory: %w", err)
		}
		artifacts = store
		logger.Info("storing artifacts on disk", "dir", store.Dir())
	}
	if cfg.LootKey == nil {
		logger.Warn("VEEAMDUMP_LOOT_KEY not set, credentials are stored unsealed")
	}

	// 3. Host channel and readers.
	exec := local.NewExecutor(cfg.CommandTimeout, logger)
	reg, err := newRegistry(cfg.Registry, exec)
	if err != nil {
		db.Close()
		return nil, err
	}

	// 4. Application services.
	factory := func(s model.Strategy) (driven.SecretDecrypter, error) {
		return secret.ForStrategy(s, exec)
	}
	classifier := application.NewClassifier(exec, reg, powershell.NewHost(exec), logger)
	resolver := application.NewResolver(reg, factory, creds, logger)
	processor := application.NewRowProcessor(factory, logger)
	pipeline := application.NewPipeline(
		exec,
		classifier, resolver, sqlcmd.NewClient(exec), processor, artifacts, creds,
		application.PipelineOptions{Host: cfg.Host, Batch: cfg.BatchDPAPI, Products: products},
		logger,
	)

	return &app{pipeline: pipeline, db: db, logger: logger}, nil
}

func newRegistry(backend string, exec driven.RemoteExecutor) (driven.RegistryReader, error) {
	switch backend {
	case config.RegistryNative:
		reg, err := registry.NewNative()
		if err != nil {
			return nil, fmt.Errorf("native registry: %w", err)
		}
		return reg, nil
	case config.RegistryPowerShell:
		return registry.NewPowerShell(exec), nil
	}
	return nil, fmt.Errorf("unknown registry backend %q", backend)
}

func runAction(cmd *cobra.Command, opts *rootOptions, action model.Action) error {
	products, err := parseProducts(opts.products)
	if err != nil {
		return err
	}
	a, err := buildApp(cmd.Context(), opts.cfg, products)
	if err != nil {
		return err
	}
	defer a.Close()

	summary, runErr := a.pipeline.Run(cmd.Context(), action)
	return finish(cmd, opts, summary, runErr)
}

func runDecrypt(cmd *cobra.Command, opts *rootOptions, dopts *decryptOptions) error {
	target, ok, err := dopts.Target()
	if err != nil {
		return model.FailWrap(model.KindBadConfig, err, "invalid decrypt options")
	}
	a, err := buildApp(cmd.Context(), opts.cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	if !ok {
		target, err = a.pipeline.Target(cmd.Context(), target.Product)
		if err != nil {
			return err
		}
	}
	summary, runErr := a.pipeline.DecryptFile(cmd.Context(), target, dopts.file)
	return finish(cmd, opts, summary, runErr)
}

func runLoot(cmd *cobra.Command, opts *rootOptions, runID string) error {
	a, err := buildApp(cmd.Context(), opts.cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	loot, err := a.pipeline.Loot(cmd.Context(), runID)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), report.LootMarkdown(loot))
	if opts.reportPath != "" {
		if err := report.WriteLootFile(opts.reportPath, loot); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		slog.Info("report written", "path", opts.reportPath)
	}
	return nil
}

// finish prints the run summary and writes the HTML report. The run error
// takes precedence over a report failure.
func finish(cmd *cobra.Command, opts *rootOptions, summary *model.RunSummary, runErr error) error {
	if summary != nil {
		fmt.Fprint(cmd.OutOrStdout(), report.Markdown(summary))
		if opts.reportPath != "" {
			if err := report.WriteFile(opts.reportPath, summary); err != nil {
				runErr = errors.Join(runErr, fmt.Errorf("write report: %w", err))
			} else {
				slog.Info("report written", "path", opts.reportPath)
			}
		}
	}
	return runErr
}
