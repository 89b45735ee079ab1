package model

import "fmt"

// Target is one detected product installation.
type Target struct {
	Product     Product
	Build       Version
	InstallPath string
	Era         Era
	// EntropyB64 is the base64 DPAPI entropy read from the installation.
	// Only set for Veeam ONE in the host-protection era.
	EntropyB64 string
}

// Connection holds the SQL Server parameters used to export a product database.
type Connection struct {
	InstancePath string // host\instance
	Database     string
	Auth         AuthMode
	User         string // Set only when Auth is AuthSQL.
	Password     string // Set only when Auth is AuthSQL.
}

// RunContext carries everything a single product pipeline needs. It is built
// once per product per run and passed by value; nothing mutates it.
type RunContext struct {
	RunID  string
	Host   string
	Target Target
	Conn   Connection
	// Batch submits all host-protection decrypts in a single remote call.
	Batch bool
}

// Strategy is the decryption backend selected for a target.
type Strategy struct {
	Era         Era
	Disposition Disposition
	// TextUnicode decodes host-protection plaintext as UTF-16LE instead of ASCII.
	TextUnicode bool
	EntropyB64  string
}

// StrategyFor selects the backend for a target. VBR always uses the host
// protection service with ASCII text and no entropy; Veeam ONE uses either the
// installation entropy or the legacy derived key depending on its era.
func StrategyFor(t Target) (Strategy, error) {
	switch t.Product {
	case ProductBackupReplication:
		return Strategy{Era: EraHostProtection, Disposition: DispositionDPAPI}, nil
	case ProductOneMonitor:
		switch t.Era {
		case EraHostProtection:
			return Strategy{
				Era:         EraHostProtection,
				Disposition: DispositionDPAPI,
				TextUnicode: true,
				EntropyB64:  t.EntropyB64,
			}, nil
		case EraLegacyKey:
			return Strategy{Era: EraLegacyKey, Disposition: DispositionAES}, nil
		}
		return Strategy{}, fmt.Errorf("%s: unknown era %q", t.Product, t.Era)
	}
	return Strategy{}, fmt.Errorf("unknown product %q", t.Product)
}
