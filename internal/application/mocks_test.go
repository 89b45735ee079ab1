package application_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ericfisherdev/veeamdump/internal/application"
	"github.com/ericfisherdev/veeamdump/internal/domain/model"
	"github.com/ericfisherdev/veeamdump/internal/domain/port/driven"
)

// --- Mock implementations ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockRegistry struct {
	keys   map[string]bool
	values map[string]string // key + "|" + name
	bins   map[string]string // key + "|" + name
	err    error
}

func newMockRegistry() *mockRegistry {
	return &mockRegistry{keys: map[string]bool{}, values: map[string]string{}, bins: map[string]string{}}
}

func (m *mockRegistry) set(key, name, value string) {
	m.keys[key] = true
	m.values[key+"|"+name] = value
}

func (m *mockRegistry) KeyExists(_ context.Context, path string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	return m.keys[path], nil
}

func (m *mockRegistry) GetValue(_ context.Context, path, name string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	v, ok := m.values[path+"|"+name]
	if !ok {
		return "", driven.ErrValueNotFound
	}
	return v, nil
}

func (m *mockRegistry) GetBinaryBase64(_ context.Context, path, name string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	v, ok := m.bins[path+"|"+name]
	if !ok {
		return "", driven.ErrValueNotFound
	}
	return v, nil
}

type mockExecutor struct {
	files    map[string]bool
	contents map[string][]byte
	err      error
}

func (m *mockExecutor) ExecuteCommand(_ context.Context, _ string) (string, error) {
	return "", errors.New("unexpected command")
}

func (m *mockExecutor) ReadFile(_ context.Context, path string) ([]byte, error) {
	b, ok := m.contents[path]
	if !ok {
		return nil, errors.New("unexpected read")
	}
	return b, nil
}

// putFile makes path a readable regular file.
func (m *mockExecutor) putFile(path string, data []byte) {
	if m.contents == nil {
		m.contents = map[string][]byte{}
	}
	m.files[path] = true
	m.contents[path] = data
}

func (m *mockExecutor) FileExists(_ context.Context, path string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	return m.files[path], nil
}

type mockHost struct {
	versions map[string]string
	nameErr  error
}

func (m *mockHost) ProductVersion(_ context.Context, path string) (string, error) {
	return m.versions[path], nil
}

func (m *mockHost) Hostname(_ context.Context) (string, error) {
	if m.nameErr != nil {
		return "", m.nameErr
	}
	return "BACKUP01", nil
}

// mockDecrypter decrypts "enc:<text>" to <text>. "bad" fails, anything else
// decrypts to nothing.
type mockDecrypter struct {
	method   model.Disposition
	err      error
	calls    []string
	strategy model.Strategy
}

func (m *mockDecrypter) Method() model.Disposition { return m.method }

func (m *mockDecrypter) Decrypt(_ context.Context, b64 string) (model.DecryptResult, error) {
	m.calls = append(m.calls, b64)
	if m.err != nil {
		return model.DecryptResult{}, m.err
	}
	return fakeDecrypt(b64), nil
}

func fakeDecrypt(b64 string) model.DecryptResult {
	switch {
	case b64 == "":
		return model.EmptyResult()
	case b64 == "bad":
		return model.FailedResult(errors.New("bad padding"))
	case strings.HasPrefix(b64, "enc:"):
		return model.Decrypted(strings.TrimPrefix(b64, "enc:"))
	}
	return model.EmptyResult()
}

type mockBatchDecrypter struct {
	mockDecrypter
	batches [][]string
}

func (m *mockBatchDecrypter) DecryptBatch(_ context.Context, in []string) ([]model.DecryptResult, error) {
	m.batches = append(m.batches, append([]string(nil), in...))
	if m.err != nil {
		return nil, m.err
	}
	out := make([]model.DecryptResult, len(in))
	for i, s := range in {
		out[i] = fakeDecrypt(s)
	}
	return out, nil
}

// factoryFor returns a DecrypterFactory that hands out dec and records the
// requested strategies.
func factoryFor(dec driven.SecretDecrypter, strategies *[]model.Strategy) application.DecrypterFactory {
	return func(s model.Strategy) (driven.SecretDecrypter, error) {
		if strategies != nil {
			*strategies = append(*strategies, s)
		}
		return dec, nil
	}
}

type mockCredentialStore struct {
	stored  []model.Credential
	err     error
	listErr error
}

func (m *mockCredentialStore) Store(_ context.Context, cred model.Credential) error {
	if m.err != nil {
		return m.err
	}
	m.stored = append(m.stored, cred)
	return nil
}

func (m *mockCredentialStore) ListByRun(_ context.Context, runID string) ([]model.Credential, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []model.Credential
	for _, c := range m.stored {
		if c.RunID == runID {
			out = append(out, c)
		}
	}
	return out, nil
}

type mockArtifactStore struct {
	saved []model.Artifact
}

func (m *mockArtifactStore) Save(_ context.Context, a model.Artifact) (string, error) {
	m.saved = append(m.saved, a)
	return fmt.Sprintf("a%d", len(m.saved)), nil
}

func (m *mockArtifactStore) Load(_ context.Context, ref string) ([]byte, error) {
	var i int
	if _, err := fmt.Sscanf(ref, "a%d", &i); err != nil || i < 1 || i > len(m.saved) {
		return nil, errors.New("no such artifact")
	}
	return m.saved[i-1].Data, nil
}

func (m *mockArtifactStore) ListByRun(_ context.Context, runID string) ([]model.Artifact, error) {
	var out []model.Artifact
	for _, a := range m.saved {
		if a.RunID == runID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockArtifactStore) byType(lootType string) *model.Artifact {
	for i := range m.saved {
		if m.saved[i].LootType == lootType {
			return &m.saved[i]
		}
	}
	return nil
}

type mockExporter struct {
	found   bool
	out     map[model.Product]string
	errs    map[model.Product]error
	exports []model.Product
}

func (m *mockExporter) Detect(_ context.Context) (bool, error) {
	return m.found, nil
}

func (m *mockExporter) Export(_ context.Context, product model.Product, _ model.Connection) (string, error) {
	m.exports = append(m.exports, product)
	if err := m.errs[product]; err != nil {
		return "", err
	}
	return m.out[product], nil
}
