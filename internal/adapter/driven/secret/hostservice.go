package secret

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/ericfisherdev/veeamdump/internal/adapter/driven/powershell"
	"github.com/ericfisherdev/veeamdump/internal/domain/model"
	"github.com/ericfisherdev/veeamdump/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.BatchDecrypter = (*HostService)(nil)

// HostService decrypts machine-scoped DPAPI blobs by running PowerShell on
// the target host. It cannot run locally.
type HostService struct {
	exec       driven.RemoteExecutor
	entropyB64 string
	encoding   powershell.TextEncoding
}

// NewHostService creates a HostService. entropyB64 may be empty. unicode
// selects UTF-16LE plaintext decoding instead of ASCII.
func NewHostService(exec driven.RemoteExecutor, entropyB64 string, unicode bool) *HostService {
	enc := powershell.TextASCII
	if unicode {
		enc = powershell.TextUnicode
	}
	return &HostService{exec: exec, entropyB64: entropyB64, encoding: enc}
}

// Method implements driven.SecretDecrypter.
func (h *HostService) Method() model.Disposition { return model.DispositionDPAPI }

// Decrypt unprotects a single blob in one remote call.
func (h *HostService) Decrypt(ctx context.Context, ciphertextB64 string) (model.DecryptResult, error) {
	payload, err := canonicalBase64(ciphertextB64)
	if err != nil {
		return model.FailedResult(err), nil
	}

	out, err := h.run(ctx, powershell.UnprotectRequest{
		Payloads:   []string{payload},
		EntropyB64: h.entropyB64,
		Scope:      powershell.ScopeLocalMachine,
		Encoding:   h.encoding,
	})
	if err != nil {
		return model.DecryptResult{}, err
	}
	return decodeLine(strings.TrimSpace(cleanOutput(out))), nil
}

// DecryptBatch unprotects every blob in one remote call. Missing or invalid
// entries are replaced with a blob protecting the empty string so each output
// line still lines up with its request position.
func (h *HostService) DecryptBatch(ctx context.Context, ciphertextsB64 []string) ([]model.DecryptResult, error) {
	results := make([]model.DecryptResult, len(ciphertextsB64))
	if len(ciphertextsB64) == 0 {
		return results, nil
	}

	payloads := make([]string, len(ciphertextsB64))
	pending := make([]bool, len(ciphertextsB64))
	var gaps []int
	for i, c := range ciphertextsB64 {
		if c == "" {
			results[i] = model.EmptyResult()
			gaps = append(gaps, i)
			continue
		}
		p, err := canonicalBase64(c)
		if err != nil {
			results[i] = model.FailedResult(err)
			gaps = append(gaps, i)
			continue
		}
		payloads[i] = p
		pending[i] = true
	}

	if len(gaps) == len(ciphertextsB64) {
		return results, nil
	}
	if len(gaps) > 0 {
		blank, err := h.blankBlob(ctx)
		if err != nil {
			return nil, err
		}
		for _, i := range gaps {
			payloads[i] = blank
		}
	}

	out, err := h.run(ctx, powershell.UnprotectRequest{
		Payloads:   payloads,
		EntropyB64: h.entropyB64,
		Scope:      powershell.ScopeLocalMachine,
		Encoding:   h.encoding,
	})
	if err != nil {
		return nil, err
	}

	lines := strings.Split(cleanOutput(out), "\n")
	for i := range results {
		if !pending[i] {
			continue
		}
		if i >= len(lines) {
			results[i] = model.EmptyResult()
			continue
		}
		results[i] = decodeLine(strings.TrimSpace(lines[i]))
	}
	return results, nil
}

// blankBlob asks the host to protect the empty string.
func (h *HostService) blankBlob(ctx context.Context) (string, error) {
	cmd, err := powershell.Command(powershell.ProtectEmptyScript(powershell.ScopeLocalMachine))
	if err != nil {
		return "", err
	}
	out, err := h.exec.ExecuteCommand(ctx, cmd)
	if err != nil {
		return "", fmt.Errorf("generate blank dpapi blob: %w", err)
	}
	blank := strings.TrimSpace(cleanOutput(out))
	if !model.ValidBase64(blank) {
		return "", model.FailWrap(model.KindUnknown, fmt.Errorf("unexpected output %q", blank), "generate blank dpapi blob")
	}
	return blank, nil
}

func (h *HostService) run(ctx context.Context, req powershell.UnprotectRequest) (string, error) {
	script, err := req.Script()
	if err != nil {
		return "", err
	}
	cmd, err := powershell.Command(script)
	if err != nil {
		return "", err
	}
	out, err := h.exec.ExecuteCommand(ctx, cmd)
	if err != nil {
		return "", fmt.Errorf("dpapi unprotect: %w", err)
	}
	return out, nil
}

// decodeLine turns one output line of an unprotect script into a result. An
// empty line is a blob that produced nothing; a line that is not base64 is
// host noise such as an exception message.
func decodeLine(line string) model.DecryptResult {
	if line == "" {
		return model.EmptyResult()
	}
	b, err := base64.StdEncoding.DecodeString(line)
	if err != nil {
		return model.FailedResult(fmt.Errorf("%w: unprotect output: %v", ErrInvalidBase64, err))
	}
	return model.Decrypted(string(b))
}

// cleanOutput drops NUL and CR bytes from remote output.
func cleanOutput(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\x00", ""), "\r", "")
}
