// Package powershell renders structured requests into PowerShell command lines.
// It is the only place where remote script text is assembled; every value
// that reaches a script passes through Quote.
package powershell

import (
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/text/encoding/unicode"
)

// Executable is the interpreter invoked for every script.
const Executable = "powershell.exe"

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// Quote renders s as a single-quoted PowerShell literal.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Command wraps a script in a non-interactive powershell.exe invocation that
// passes the script as UTF-16LE base64 via -EncodedCommand, so the script
// text never needs shell escaping.
func Command(script string) (string, error) {
	encoded, err := utf16le.NewEncoder().String(script)
	if err != nil {
		return "", fmt.Errorf("encode script: %w", err)
	}
	return Executable + " -NoProfile -NonInteractive -ExecutionPolicy Bypass -EncodedCommand " +
		base64.StdEncoding.EncodeToString([]byte(encoded)), nil
}

// DecodeCommand extracts the script from a command line built by Command.
func DecodeCommand(command string) (string, error) {
	const flag = "-EncodedCommand "
	i := strings.LastIndex(command, flag)
	if i < 0 {
		return "", fmt.Errorf("no %s in command", strings.TrimSpace(flag))
	}
	raw, err := base64.StdEncoding.DecodeString(command[i+len(flag):])
	if err != nil {
		return "", fmt.Errorf("decode command: %w", err)
	}
	script, err := utf16le.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("decode script: %w", err)
	}
	return string(script), nil
}

// DecodeUTF16LE decodes little-endian UTF-16 bytes, such as a DPAPI entropy
// blob holding a GUID string.
func DecodeUTF16LE(b []byte) (string, error) {
	s, err := utf16le.NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return string(s), nil
}

// ProviderPath converts HKLM\SOFTWARE\... into the PowerShell registry
// provider form HKLM:\SOFTWARE\...
func ProviderPath(regPath string) string {
	hive, rest, ok := strings.Cut(regPath, `\`)
	if !ok {
		return strings.TrimSuffix(regPath, ":") + `:\`
	}
	return strings.TrimSuffix(hive, ":") + `:\` + rest
}

// ProductVersionScript reads the ProductVersion of a binary.
func ProductVersionScript(path string) string {
	return fmt.Sprintf("(Get-Item -Path %s).VersionInfo.ProductVersion", Quote(path))
}

// TestFileScript prints True when path is an existing file.
func TestFileScript(path string) string {
	return fmt.Sprintf("Test-Path -LiteralPath %s -PathType Leaf", Quote(path))
}

// TestRegistryKeyScript prints True when the registry key exists.
func TestRegistryKeyScript(regPath string) string {
	return fmt.Sprintf("Test-Path -LiteralPath %s", Quote(ProviderPath(regPath)))
}

// RegistryValueScript prints a registry value. Missing values print nothing.
func RegistryValueScript(regPath, name string) string {
	return fmt.Sprintf("try {Get-ItemPropertyValue -LiteralPath %s -Name %s -ErrorAction Stop} catch {}",
		Quote(ProviderPath(regPath)), Quote(name))
}

// RegistryValueBase64Script prints a REG_BINARY value as base64. Missing
// values print nothing.
func RegistryValueBase64Script(regPath, name string) string {
	return fmt.Sprintf("try {[Convert]::ToBase64String((Get-ItemPropertyValue -LiteralPath %s -Name %s -ErrorAction Stop))} catch {}",
		Quote(ProviderPath(regPath)), Quote(name))
}

// HostnameScript prints the computer name.
func HostnameScript() string {
	return "$env:COMPUTERNAME"
}
