package model

import "time"

// ServiceData describes where a recovered credential is valid.
type ServiceData struct {
	Address  string // Host the credential was recovered from.
	Port     int
	Name     string // Service name ("veeam", "mssql").
	Protocol string
	Realm    string // Description or SQL instance path.
}

// Credential is a recovered username/secret pair. Origin names the pipeline
// stage that produced it.
type Credential struct {
	ID        int64
	RunID     string
	Username  string
	Secret    string
	Service   ServiceData
	Origin    string
	CreatedAt time.Time
}

// Artifact is a blob persisted for later retrieval, typically a CSV dump.
type Artifact struct {
	ID        int64
	RunID     string
	LootType  string // e.g. "veeam_vbr_enc".
	MIMEType  string
	FileName  string
	Label     string
	Data      []byte
	CreatedAt time.Time
}
