package lootfs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/veeamdump/internal/domain/model"
)

func TestStore_SaveLoad(t *testing.T) {
	store, err := New(filepath.Join(t.TempDir(), "loot"))
	require.NoError(t, err)
	ctx := context.Background()

	data := []byte("ID,USN\n1,2\n")
	ref, err := store.Save(ctx, model.Artifact{
		RunID:    "run1",
		LootType: "veeam_vom_enc",
		FileName: "VeeamOne.csv",
		Data:     data,
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(store.Dir(), "run1", "veeam_vom_enc", "VeeamOne.csv"), ref)

	got, err := store.Load(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	got, err = store.Load(ctx, filepath.Join("run1", "veeam_vom_enc", "VeeamOne.csv"))
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestStore_ListByRun(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	for _, a := range []model.Artifact{
		{RunID: "run1", LootType: "veeam_vbr_enc", FileName: "VeeamBackup.csv", Data: []byte("enc")},
		{RunID: "run1", LootType: "veeam_vbr_dec", FileName: "VeeamBackup.csv", Data: []byte("dec")},
		{RunID: "run2", LootType: "veeam_vom_enc", FileName: "VeeamOne.csv", Data: []byte("other")},
	} {
		_, err := store.Save(ctx, a)
		require.NoError(t, err)
	}

	list, err := store.ListByRun(ctx, "run1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "veeam_vbr_dec", list[0].LootType)
	assert.Equal(t, []byte("dec"), list[0].Data)
	assert.Equal(t, "veeam_vbr_enc", list[1].LootType)
	assert.Equal(t, "VeeamBackup.csv", list[1].FileName)
	assert.Equal(t, "run1", list[1].RunID)
	assert.False(t, list[1].CreatedAt.IsZero())

	none, err := store.ListByRun(ctx, "run3")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStore_LoadOutside(t *testing.T) {
	root := t.TempDir()
	store, err := New(filepath.Join(root, "loot"))
	require.NoError(t, err)

	outside := filepath.Join(root, "secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o600))

	_, err = store.Load(context.Background(), outside)
	require.ErrorIs(t, err, ErrOutsideDir)

	_, err = store.Load(context.Background(), "../secret.txt")
	require.ErrorIs(t, err, ErrOutsideDir)
}

func TestRelPath(t *testing.T) {
	tests := []struct {
		name string
		in   model.Artifact
		want string
	}{
		{name: "plain", in: model.Artifact{RunID: "r", LootType: "t", FileName: "db.csv"}, want: filepath.Join("r", "t", "db.csv")},
		{name: "traversal", in: model.Artifact{RunID: "..", LootType: "t", FileName: `..\..\win.ini`}, want: filepath.Join("_", "t", "win.ini")},
		{name: "reserved chars", in: model.Artifact{RunID: "r", LootType: "a/b", FileName: "a:b?.csv"}, want: filepath.Join("r", "b", "a_b_.csv")},
		{name: "empty", in: model.Artifact{}, want: filepath.Join("_", "_", "artifact")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, relPath(tt.in))
		})
	}
}

func TestNew_EmptyDir(t *testing.T) {
	_, err := New("")
	require.Error(t, err)
}
