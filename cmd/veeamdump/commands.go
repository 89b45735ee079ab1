package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ericfisherdev/veeamdump/internal/config"
	"github.com/ericfisherdev/veeamdump/internal/domain/model"
	"github.com/ericfisherdev/veeamdump/internal/logging"
)

// rootOptions holds the persistent flags. Only flags the operator set
// override the environment configuration.
type rootOptions struct {
	dbPath     string
	lootDir    string
	batch      bool
	registry   string
	host       string
	logLevel   string
	logFormat  string
	timeout    time.Duration
	reportPath string
	products   []string

	cfg *config.Config
}

func (o *rootOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.dbPath, "db", "veeamdump.db", "path of the loot database")
	fs.StringVar(&o.lootDir, "loot-dir", "", "store artifacts as files in this directory instead of the database")
	fs.BoolVar(&o.batch, "batch", true, "decrypt all DPAPI secrets in a single PowerShell call")
	fs.StringVar(&o.registry, "registry", config.RegistryPowerShell, "registry backend (powershell or native)")
	fs.StringVar(&o.host, "host", "", "host label for recovered credentials (default: target computer name)")
	fs.StringVar(&o.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	fs.StringVar(&o.logFormat, "log-format", "text", "log format (text or json)")
	fs.DurationVar(&o.timeout, "timeout", 2*time.Minute, "timeout for each shell command")
	fs.StringVar(&o.reportPath, "report", "", "write an HTML run report to this path")
	fs.StringSliceVar(&o.products, "products", nil, "restrict the run to these products (vbr, vom)")
}

// Complete loads the environment configuration and applies changed flags.
func (o *rootOptions) Complete(fs *pflag.FlagSet) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyFlags(fs, o, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	o.cfg = cfg
	return nil
}

func applyFlags(fs *pflag.FlagSet, o *rootOptions, cfg *config.Config) {
	if fs.Changed("db") {
		cfg.DBPath = o.dbPath
	}
	if fs.Changed("loot-dir") {
		cfg.LootDir = o.lootDir
	}
	if fs.Changed("batch") {
		cfg.BatchDPAPI = o.batch
	}
	if fs.Changed("registry") {
		cfg.Registry = strings.ToLower(o.registry)
	}
	if fs.Changed("host") && o.host != "" {
		cfg.Host = o.host
	}
	if fs.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	if fs.Changed("log-format") {
		cfg.LogFormat = o.logFormat
	}
	if fs.Changed("timeout") {
		cfg.CommandTimeout = o.timeout
	}
}

func parseProducts(values []string) ([]model.Product, error) {
	var out []model.Product
	for _, v := range values {
		p, err := model.ParseProduct(strings.ToLower(strings.TrimSpace(v)))
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "veeamdump",
		Short:         "Recover credentials stored by Veeam Backup & Replication and Veeam ONE",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.Complete(cmd.Flags()); err != nil {
				return err
			}
			logging.Setup(opts.cfg.LogLevel, opts.cfg.LogFormat)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAction(cmd, opts, model.ActionDump)
		},
	}

	opts.AddFlags(cmd.PersistentFlags())

	cmd.AddCommand(newDumpCommand(opts))
	cmd.AddCommand(newExportCommand(opts))
	cmd.AddCommand(newDecryptCommand(opts))
	cmd.AddCommand(newLootCommand(opts))

	return cmd
}

func newDumpCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Export every detected product database and decrypt its secrets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAction(cmd, opts, model.ActionDump)
		},
	}
}

func newExportCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Export the encrypted credential tables without decrypting them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAction(cmd, opts, model.ActionExport)
		},
	}
}

type decryptOptions struct {
	product string
	file    string
	entropy string
	legacy  bool
}

func (o *decryptOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.product, "product", "", "product the export came from (vbr or vom)")
	fs.StringVar(&o.file, "file", "", "CSV export to decrypt")
	fs.StringVar(&o.entropy, "entropy", "", "base64 DPAPI entropy of the Veeam ONE installation")
	fs.BoolVar(&o.legacy, "legacy", false, "Veeam ONE export uses the legacy static key")
}

// Target builds the decrypt target from flags. ok is false when the
// installation must be detected on this host instead.
func (o *decryptOptions) Target() (model.Target, bool, error) {
	product, err := model.ParseProduct(strings.ToLower(o.product))
	if err != nil {
		return model.Target{}, false, err
	}
	if o.file == "" {
		return model.Target{}, false, fmt.Errorf("--file is required")
	}

	switch product {
	case model.ProductBackupReplication:
		if o.entropy != "" || o.legacy {
			return model.Target{}, false, fmt.Errorf("--entropy and --legacy apply to vom only")
		}
		return model.Target{Product: product, Era: model.EraHostProtection}, true, nil
	case model.ProductOneMonitor:
		switch {
		case o.entropy != "" && o.legacy:
			return model.Target{}, false, fmt.Errorf("--entropy and --legacy are mutually exclusive")
		case o.legacy:
			return model.Target{Product: product, Era: model.EraLegacyKey}, true, nil
		case o.entropy != "":
			if !model.ValidBase64(o.entropy) {
				return model.Target{}, false, fmt.Errorf("--entropy is not base64")
			}
			return model.Target{Product: product, Era: model.EraHostProtection, EntropyB64: o.entropy}, true, nil
		}
	}
	return model.Target{Product: product}, false, nil
}

func newDecryptCommand(opts *rootOptions) *cobra.Command {
	dopts := &decryptOptions{}
	cmd := &cobra.Command{
		Use:     "decrypt",
		Short:   "Decrypt a previously exported credential table",
		Example: "veeamdump decrypt --product vom --file VeeamOne.csv --legacy",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDecrypt(cmd, opts, dopts)
		},
	}

	dopts.AddFlags(cmd.Flags())

	return cmd
}

func newLootCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "loot RUN_ID",
		Short:   "List the credentials and artifacts recorded for a run",
		Example: "veeamdump loot 3f2b9c1e-5a7d-4e8f-9b61-2c4d8e0a7f13",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoot(cmd, opts, args[0])
		},
	}
}
