package application_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/veeamdump/internal/application"
	"github.com/ericfisherdev/veeamdump/internal/domain/model"
)

const (
	vbrCorePath = `C:\Program Files\Veeam\Backup and Replication\Backup\`
	vbrDLL      = `C:\Program Files\Veeam\Backup and Replication\Backup\Packages\VeeamDeploymentDll.dll`
	vomInstall  = `C:\Program Files\Veeam\Veeam ONE\Veeam ONE Monitor Server`
	vomClient   = vomInstall + `\ClientPackages\VeeamONE.Monitor.Client.x64.msi`
	vomExe      = vomInstall + `\VeeamDCS.exe`
	vomEntropy  = "AQIDBAUGBwg="
)

// installation is a fake target host.
type installation struct {
	reg  *mockRegistry
	exec *mockExecutor
	host *mockHost
}

func newInstallation() *installation {
	return &installation{
		reg:  newMockRegistry(),
		exec: &mockExecutor{files: map[string]bool{}},
		host: &mockHost{versions: map[string]string{}},
	}
}

func (in *installation) withVBR(version string) *installation {
	in.reg.set(application.VBRKey, "CorePath", vbrCorePath+"\x00")
	in.exec.files[vbrDLL] = true
	in.host.versions[vbrDLL] = version
	return in
}

func (in *installation) withVOM(version, entropy string) *installation {
	in.reg.set(application.VOMServiceKey, "MonitorX64ClientDistributivePath", vomClient)
	in.exec.files[vomExe] = true
	in.host.versions[vomExe] = version
	if entropy != "" {
		in.reg.bins[application.VOMPrivateKey+"|Entropy"] = entropy
	}
	return in
}

func (in *installation) classifier() *application.Classifier {
	return application.NewClassifier(in.exec, in.reg, in.host, discardLogger())
}

func TestClassifier_DetectBoth(t *testing.T) {
	in := newInstallation().withVBR("12.1.2.172").withVOM("12.1.0.3208", vomEntropy)

	targets, err := in.classifier().Detect(context.Background())
	require.NoError(t, err)
	require.Len(t, targets, 2)

	vbr := targets[0]
	assert.Equal(t, model.ProductBackupReplication, vbr.Product)
	assert.Equal(t, "12.1.2.172", vbr.Build.String())
	assert.Equal(t, `C:\Program Files\Veeam\Backup and Replication\Backup`, vbr.InstallPath)
	assert.Equal(t, model.EraHostProtection, vbr.Era)
	assert.Empty(t, vbr.EntropyB64)

	vom := targets[1]
	assert.Equal(t, model.ProductOneMonitor, vom.Product)
	assert.Equal(t, vomInstall, vom.InstallPath)
	assert.Equal(t, model.EraHostProtection, vom.Era)
	assert.Equal(t, vomEntropy, vom.EntropyB64)
}

func TestClassifier_VOMEra(t *testing.T) {
	tests := []struct {
		name    string
		entropy string
		want    model.Era
	}{
		{name: "no entropy value", entropy: "", want: model.EraLegacyKey},
		{name: "entropy present", entropy: vomEntropy, want: model.EraHostProtection},
		{name: "malformed entropy", entropy: "not base64!", want: model.EraLegacyKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := newInstallation().withVOM("11.0.0.1379", tt.entropy)

			targets, err := in.classifier().Detect(context.Background())
			require.NoError(t, err)
			require.Len(t, targets, 1)
			assert.Equal(t, tt.want, targets[0].Era)
			if tt.want == model.EraLegacyKey {
				assert.Empty(t, targets[0].EntropyB64)
			}
		})
	}
}

func TestClassifier_AbsenceIsNotAnError(t *testing.T) {
	tests := []struct {
		name  string
		setup func(in *installation)
	}{
		{name: "no VBR key", setup: func(in *installation) {}},
		{name: "no CorePath value", setup: func(in *installation) {
			in.reg.keys[application.VBRKey] = true
		}},
		{name: "DLL missing", setup: func(in *installation) {
			in.withVBR("12.0")
			in.exec.files[vbrDLL] = false
		}},
		{name: "unparsable version", setup: func(in *installation) {
			in.withVBR("not-a-version")
		}},
		{name: "zero version", setup: func(in *installation) {
			in.withVBR("0.0.0")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := newInstallation().withVOM("12.0.0.1", vomEntropy)
			tt.setup(in)

			targets, err := in.classifier().Detect(context.Background())
			require.NoError(t, err)
			require.Len(t, targets, 1)
			assert.Equal(t, model.ProductOneMonitor, targets[0].Product)
		})
	}
}

func TestClassifier_NothingDetected(t *testing.T) {
	_, err := newInstallation().classifier().Detect(context.Background())
	require.ErrorIs(t, err, model.ErrNoTarget)
	assert.Contains(t, err.Error(), "no Veeam products detected")
}

func TestClassifier_ChannelFailure(t *testing.T) {
	in := newInstallation().withVBR("12.0")
	in.exec.err = errors.New("session closed")

	_, err := in.classifier().Detect(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, model.ErrNoTarget)
	assert.Contains(t, err.Error(), "session closed")
}
