package powershell

import (
	"errors"
	"fmt"
	"strings"
)

// Scope is the DPAPI protection scope.
type Scope string

const ScopeLocalMachine Scope = "LocalMachine"

// TextEncoding selects how unprotected bytes are turned into output text.
type TextEncoding string

const (
	TextASCII   TextEncoding = "ASCII"
	TextUnicode TextEncoding = "Unicode" // UTF-16LE
)

const loadSecurity = "Add-Type -AssemblyName System.Security;"

// UnprotectRequest describes a DPAPI Unprotect call over one or more base64
// blobs. With more than one payload every blob is processed in a single
// pipeline. Each result is written on its own line as the base64 of the
// decoded text's UTF-8 bytes, so a plaintext holding a line break cannot
// shift later positions. A blob that fails to unprotect writes an empty line.
type UnprotectRequest struct {
	Payloads   []string
	EntropyB64 string
	Scope      Scope
	Encoding   TextEncoding
}

// Script renders the request.
func (r UnprotectRequest) Script() (string, error) {
	if len(r.Payloads) == 0 {
		return "", errors.New("unprotect request has no payloads")
	}
	scope, err := r.scope()
	if err != nil {
		return "", err
	}
	enc, err := r.encoding()
	if err != nil {
		return "", err
	}
	entropy := "$Null"
	if r.EntropyB64 != "" {
		entropy = fmt.Sprintf("[Convert]::FromBase64String(%s)", Quote(r.EntropyB64))
	}

	unprotect := func(blob string) string {
		return fmt.Sprintf("[Convert]::ToBase64String([Text.Encoding]::UTF8.GetBytes([Text.Encoding]::%s.GetString([Security.Cryptography.ProtectedData]::Unprotect([Convert]::FromBase64String(%s), %s, %s))))",
			enc, blob, entropy, Quote(string(scope)))
	}

	if len(r.Payloads) == 1 {
		return loadSecurity + "try {" + unprotect(Quote(r.Payloads[0])) + "} catch {''}", nil
	}

	quoted := make([]string, len(r.Payloads))
	for i, p := range r.Payloads {
		quoted[i] = Quote(p)
	}
	return loadSecurity + "@(" + strings.Join(quoted, ",") + ")|ForEach-Object {try {" + unprotect("$_") + "} catch {''}}", nil
}

func (r UnprotectRequest) scope() (Scope, error) {
	switch r.Scope {
	case "", ScopeLocalMachine:
		return ScopeLocalMachine, nil
	}
	return "", fmt.Errorf("unsupported protection scope %q", r.Scope)
}

func (r UnprotectRequest) encoding() (TextEncoding, error) {
	switch r.Encoding {
	case "", TextASCII:
		return TextASCII, nil
	case TextUnicode:
		return TextUnicode, nil
	}
	return "", fmt.Errorf("unsupported text encoding %q", r.Encoding)
}

// ProtectEmptyScript renders a DPAPI Protect call over an empty string and
// prints the resulting blob as base64. The blob unprotects to nothing and is
// used to fill gaps in batch requests.
func ProtectEmptyScript(scope Scope) string {
	if scope == "" {
		scope = ScopeLocalMachine
	}
	return loadSecurity + fmt.Sprintf("[Convert]::ToBase64String([Security.Cryptography.ProtectedData]::Protect([Text.Encoding]::ASCII.GetBytes([String]::Empty), $Null, %s))",
		Quote(string(scope)))
}
