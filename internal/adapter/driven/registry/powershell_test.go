package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/veeamdump/internal/adapter/driven/powershell"
	"github.com/ericfisherdev/veeamdump/internal/domain/port/driven"
)

type fakeExecutor struct {
	outputs map[string]string
	err     error
}

func (f *fakeExecutor) ExecuteCommand(_ context.Context, command string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	script, err := powershell.DecodeCommand(command)
	if err != nil {
		return "", err
	}
	return f.outputs[script], nil
}

func (f *fakeExecutor) ReadFile(_ context.Context, _ string) ([]byte, error) { return nil, nil }

func (f *fakeExecutor) FileExists(_ context.Context, _ string) (bool, error) { return false, nil }

const vbrKey = `HKLM\SOFTWARE\Veeam\Veeam Backup and Replication`

func TestPowerShell_KeyExists(t *testing.T) {
	exec := &fakeExecutor{outputs: map[string]string{
		powershell.TestRegistryKeyScript(vbrKey): "True\r\n",
	}}
	r := NewPowerShell(exec)

	ok, err := r.KeyExists(context.Background(), vbrKey)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.KeyExists(context.Background(), `HKLM\SOFTWARE\Nope`)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPowerShell_GetValue(t *testing.T) {
	exec := &fakeExecutor{outputs: map[string]string{
		powershell.RegistryValueScript(vbrKey, "CorePath"): "C:\\Program Files\\Veeam\\Backup and Replication\\Backup\\\r\n",
	}}
	r := NewPowerShell(exec)

	v, err := r.GetValue(context.Background(), vbrKey, "CorePath")
	require.NoError(t, err)
	assert.Equal(t, `C:\Program Files\Veeam\Backup and Replication\Backup\`, v)

	_, err = r.GetValue(context.Background(), vbrKey, "SqlLogin")
	require.ErrorIs(t, err, driven.ErrValueNotFound)
}

func TestPowerShell_GetBinaryBase64(t *testing.T) {
	const privKey = `HKLM\SOFTWARE\Veeam\Veeam ONE\Private\`
	exec := &fakeExecutor{outputs: map[string]string{
		powershell.RegistryValueBase64Script(privKey, "Entropy"): "AQIDBA==\r\n",
	}}
	r := NewPowerShell(exec)

	v, err := r.GetBinaryBase64(context.Background(), privKey, "Entropy")
	require.NoError(t, err)
	assert.Equal(t, "AQIDBA==", v)

	_, err = r.GetBinaryBase64(context.Background(), privKey, "Missing")
	require.ErrorIs(t, err, driven.ErrValueNotFound)
}

func TestPowerShell_ChannelFailure(t *testing.T) {
	r := NewPowerShell(&fakeExecutor{err: errors.New("gone")})

	_, err := r.KeyExists(context.Background(), vbrKey)
	require.Error(t, err)

	_, err = r.GetValue(context.Background(), vbrKey, "CorePath")
	require.Error(t, err)
	assert.NotErrorIs(t, err, driven.ErrValueNotFound)
}
