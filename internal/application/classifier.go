package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ericfisherdev/veeamdump/internal/domain/model"
	"github.com/ericfisherdev/veeamdump/internal/domain/port/driven"
	"github.com/ericfisherdev/veeamdump/internal/domain/table"
)

// Registry locations read during detection.
const (
	VBRKey        = `HKLM\SOFTWARE\Veeam\Veeam Backup and Replication`
	VOMServiceKey = `HKLM\SOFTWARE\Veeam\Veeam ONE Monitor\Service`
	VOMPrivateKey = `HKLM\SOFTWARE\Veeam\Veeam ONE\Private`

	vbrCorePath     = "CorePath"
	vbrMarker        = `Packages\VeeamDeploymentDll.dll`
	vomClientPath   = "MonitorX64ClientDistributivePath"
	vomClientSuffix = `\ClientPackages\VeeamONE.Monitor.Client.x64.msi`
	vomMarker        = "VeeamDCS.exe"
	vomEntropy      = "Entropy"
)

// Classifier finds installed Veeam products and the encryption era each uses.
type Classifier struct {
	exec   driven.RemoteExecutor
	reg    driven.RegistryReader
	host   driven.HostInspector
	logger *slog.Logger
}

// NewClassifier creates a Classifier.
func NewClassifier(exec driven.RemoteExecutor, reg driven.RegistryReader, host driven.HostInspector, logger *slog.Logger) *Classifier {
	return &Classifier{exec: exec, reg: reg, host: host, logger: logger}
}

// Hostname returns the target's computer name.
func (c *Classifier) Hostname(ctx context.Context) (string, error) {
	name, err := c.host.Hostname(ctx)
	if err != nil {
		return "", fmt.Errorf("read hostname: %w", err)
	}
	return name, nil
}

// Detect returns every product found on the host, Backup & Replication first.
// A product that is not installed, or whose version cannot be read, is
// skipped. Only when neither is present does Detect fail.
func (c *Classifier) Detect(ctx context.Context) ([]model.Target, error) {
	var targets []model.Target

	for _, detect := range []func(context.Context) (*model.Target, error){c.detectVBR, c.detectVOM} {
		t, err := detect(ctx)
		if err != nil {
			return nil, err
		}
		if t != nil {
			targets = append(targets, *t)
		}
	}

	if len(targets) == 0 {
		return nil, model.Fail(model.KindNoTarget, "no Veeam products detected")
	}
	return targets, nil
}

func (c *Classifier) detectVBR(ctx context.Context) (*model.Target, error) {
	log := c.logger.With("product", model.ProductBackupReplication.DisplayName())

	corePath, err := c.installValue(ctx, log, VBRKey, vbrCorePath)
	if err != nil || corePath == "" {
		return nil, err
	}
	path := strings.TrimRight(corePath, `\`)
	log.Info("install path", "path", path)

	build, err := c.markerVersion(ctx, log, path+`\`+vbrMarker)
	if err != nil || !build.Positive() {
		return nil, err
	}
	log.Info("detected", "build", build.String())

	return &model.Target{
		Product:     model.ProductBackupReplication,
		Build:       build,
		InstallPath: path,
		Era:         model.EraHostProtection,
	}, nil
}

func (c *Classifier) detectVOM(ctx context.Context) (*model.Target, error) {
	log := c.logger.With("product", model.ProductOneMonitor.DisplayName())

	clientPath, err := c.installValue(ctx, log, VOMServiceKey, vomClientPath)
	if err != nil || clientPath == "" {
		return nil, err
	}
	path, _, _ := strings.Cut(clientPath, vomClientSuffix)
	path = strings.TrimRight(path, `\`)
	log.Info("install path", "path", path)

	build, err := c.markerVersion(ctx, log, path+`\`+vomMarker)
	if err != nil || !build.Positive() {
		return nil, err
	}

	t := &model.Target{
		Product:     model.ProductOneMonitor,
		Build:       build,
		InstallPath: path,
		Era:         model.EraLegacyKey,
	}

	entropy, err := c.reg.GetBinaryBase64(ctx, VOMPrivateKey, vomEntropy)
	switch {
	case errors.Is(err, driven.ErrValueNotFound):
	case err != nil:
		return nil, fmt.Errorf("read %s entropy: %w", model.ProductOneMonitor.DisplayName(), err)
	case model.ValidBase64(entropy):
		t.Era = model.EraHostProtection
		t.EntropyB64 = entropy
	default:
		log.Warn("ignoring malformed entropy value", "value", entropy)
	}

	log.Info("detected", "build", build.String(), "era", string(t.Era))
	return t, nil
}

// installValue reads a product's install-path value. A missing key or value
// yields "" and a nil error.
func (c *Classifier) installValue(ctx context.Context, log *slog.Logger, key, name string) (string, error) {
	exists, err := c.reg.KeyExists(ctx, key)
	if err != nil {
		return "", fmt.Errorf("check %s: %w", key, err)
	}
	if !exists {
		log.Debug("registry key does not exist, product not installed", "key", key)
		return "", nil
	}

	v, err := c.reg.GetValue(ctx, key, name)
	if errors.Is(err, driven.ErrValueNotFound) {
		log.Error("install path value missing", "key", key, "value", name)
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s\\%s: %w", key, name, err)
	}
	return strings.TrimSpace(table.StripNUL(v)), nil
}

// markerVersion checks that file exists and returns its product version. A
// missing file or unreadable version yields the zero Version.
func (c *Classifier) markerVersion(ctx context.Context, log *slog.Logger, file string) (model.Version, error) {
	exists, err := c.exec.FileExists(ctx, file)
	if err != nil {
		return model.Version{}, fmt.Errorf("check %s: %w", file, err)
	}
	if !exists {
		log.Error("product binary not found", "path", file)
		return model.Version{}, nil
	}

	raw, err := c.host.ProductVersion(ctx, file)
	if err != nil {
		return model.Version{}, fmt.Errorf("read version of %s: %w", file, err)
	}
	v := model.ParseVersion(raw)
	if !v.Positive() {
		log.Error("could not determine product version", "path", file, "raw", raw)
	}
	return v, nil
}
