package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/ericfisherdev/veeamdump/internal/domain/model"
	"github.com/ericfisherdev/veeamdump/internal/domain/port/driven"
)

// ErrArtifactNotFound is returned by Load for an unknown reference.
var ErrArtifactNotFound = errors.New("artifact not found")

// Compile-time interface satisfaction check.
var _ driven.ArtifactStore = (*ArtifactRepo)(nil)

// ArtifactRepo stores dump artifacts as blobs. References are row IDs.
type ArtifactRepo struct {
	db *DB
}

// NewArtifactRepo creates a new ArtifactRepo.
func NewArtifactRepo(db *DB) *ArtifactRepo {
	return &ArtifactRepo{db: db}
}

// Save inserts an artifact and returns its row ID as the reference.
func (r *ArtifactRepo) Save(ctx context.Context, a model.Artifact) (string, error) {
	const query = `INSERT INTO artifacts (run_id, loot_type, mime_type, file_name, label, data) VALUES (?, ?, ?, ?, ?, ?)`
	res, err := r.db.Writer.ExecContext(ctx, query, a.RunID, a.LootType, a.MIMEType, a.FileName, a.Label, a.Data)
	if err != nil {
		return "", fmt.Errorf("save artifact %q: %w", a.LootType, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("last insert id: %w", err)
	}
	return strconv.FormatInt(id, 10), nil
}

// Load returns the blob for a reference produced by Save.
func (r *ArtifactRepo) Load(ctx context.Context, ref string) ([]byte, error) {
	id, err := strconv.ParseInt(ref, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("artifact ref %q: %w", ref, ErrArtifactNotFound)
	}

	var data []byte
	err = r.db.Reader.QueryRowContext(ctx, `SELECT data FROM artifacts WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("artifact %d: %w", id, ErrArtifactNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load artifact %d: %w", id, err)
	}
	return data, nil
}

// ListByRun returns artifact metadata and data for a run, oldest first.
func (r *ArtifactRepo) ListByRun(ctx context.Context, runID string) ([]model.Artifact, error) {
	const query = `SELECT id, run_id, loot_type, mime_type, file_name, label, data, created_at
		FROM artifacts WHERE run_id = ? ORDER BY id`
	rows, err := r.db.Reader.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	var out []model.Artifact
	for rows.Next() {
		var a model.Artifact
		var createdAt string
		if err := rows.Scan(&a.ID, &a.RunID, &a.LootType, &a.MIMEType, &a.FileName, &a.Label, &a.Data, &createdAt); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		if a.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at for artifact %d: %w", a.ID, err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate artifacts: %w", err)
	}
	return out, nil
}
