package model

import "fmt"

// Product identifies which Veeam product a target belongs to.
type Product string

const (
	ProductBackupReplication Product = "vbr"
	ProductOneMonitor        Product = "vom"
)

// ParseProduct maps a CLI or config value onto a Product.
func ParseProduct(s string) (Product, error) {
	switch Product(s) {
	case ProductBackupReplication, ProductOneMonitor:
		return Product(s), nil
	}
	return "", fmt.Errorf("unknown product %q (want vbr or vom)", s)
}

// DisplayName is the short upper-case label used in log lines and reports.
func (p Product) DisplayName() string {
	switch p {
	case ProductBackupReplication:
		return "VBR"
	case ProductOneMonitor:
		return "VOM"
	}
	return string(p)
}

// FullName is the vendor name of the product.
func (p Product) FullName() string {
	switch p {
	case ProductBackupReplication:
		return "Veeam Backup & Replication"
	case ProductOneMonitor:
		return "Veeam ONE Monitor"
	}
	return string(p)
}

// Era is the encryption scheme a product installation uses for stored secrets.
type Era string

const (
	EraHostProtection Era = "host-protection" // DPAPI, LocalMachine scope.
	EraLegacyKey      Era = "legacy-key"      // Static PBKDF2 key, AES-128-CBC.
)

// Disposition tags a decrypted record with the backend that recovered it.
type Disposition string

const (
	DispositionDPAPI Disposition = "DPAPI"
	DispositionAES   Disposition = "AES"
)

// AuthMode selects how the SQL client authenticates. Exactly one applies.
type AuthMode string

const (
	AuthIntegrated AuthMode = "integrated"
	AuthSQL        AuthMode = "sql"
)

// Action selects which pipeline stages a run performs.
type Action string

const (
	ActionDump   Action = "dump"   // Export and decrypt.
	ActionExport Action = "export" // Export only.
)

// DecryptStatus is the per-item result of a decrypt attempt.
type DecryptStatus int

const (
	DecryptValue  DecryptStatus = iota // Plaintext recovered.
	DecryptEmpty                       // Backend produced nothing.
	DecryptFailed                      // Definitive decrypt failure.
)

func (s DecryptStatus) String() string {
	switch s {
	case DecryptValue:
		return "value"
	case DecryptEmpty:
		return "empty"
	case DecryptFailed:
		return "failed"
	}
	return fmt.Sprintf("DecryptStatus(%d)", int(s))
}
