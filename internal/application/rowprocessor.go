package application

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/ericfisherdev/veeamdump/internal/domain/model"
	"github.com/ericfisherdev/veeamdump/internal/domain/port/driven"
	"github.com/ericfisherdev/veeamdump/internal/domain/table"
)

// ResultHeader returns the decrypted-table layout for a product. Only Veeam
// ONE records which backend recovered each row.
func ResultHeader(p model.Product) []string {
	if p == model.ProductOneMonitor {
		return []string{table.ColID, table.ColUSN, table.ColUsername, table.ColPlaintext, table.ColDescription, table.ColMethod, table.ColVisible}
	}
	return []string{table.ColID, table.ColUSN, table.ColUsername, table.ColPlaintext, table.ColDescription, table.ColVisible}
}

// RowProcessor decrypts an exported credential table.
type RowProcessor struct {
	newDecrypter DecrypterFactory
	logger       *slog.Logger
}

// NewRowProcessor creates a RowProcessor.
func NewRowProcessor(newDecrypter DecrypterFactory, logger *slog.Logger) *RowProcessor {
	return &RowProcessor{newDecrypter: newDecrypter, logger: logger}
}

// Process decrypts every row of tbl with the backend selected for rc.Target.
//
// Each row ends in exactly one of: failed (no ID, or the backend rejected the
// ciphertext), blank (no ciphertext, or nothing decrypted), or decrypted, in
// which case it is copied to the result table. When every row fails or
// nothing is emitted the returned error is a no-target RunError; the Outcome
// is still returned so its counts can be reported. A backend channel failure
// returns a nil Outcome.
func (p *RowProcessor) Process(ctx context.Context, rc model.RunContext, tbl *table.Table) (*model.Outcome, error) {
	product := rc.Target.Product
	log := p.logger.With("product", product.DisplayName())

	strategy, err := model.StrategyFor(rc.Target)
	if err != nil {
		return nil, model.FailWrap(model.KindBadConfig, err, "select strategy")
	}
	dec, err := p.newDecrypter(strategy)
	if err != nil {
		return nil, model.FailWrap(model.KindBadConfig, err, "select decrypt backend")
	}

	var batch []model.DecryptResult
	if bd, ok := dec.(driven.BatchDecrypter); ok && rc.Batch {
		batch, err = bd.DecryptBatch(ctx, tbl.ColumnValues(table.ColPassword))
		if err != nil {
			return nil, fmt.Errorf("batch decrypt %s: %w", product.DisplayName(), err)
		}
		if len(batch) != tbl.Len() {
			return nil, fmt.Errorf("batch decrypt %s: got %d results for %d rows", product.DisplayName(), len(batch), tbl.Len())
		}
	}

	header := ResultHeader(product)
	withMethod := slices.Contains(header, table.ColMethod)
	out := &model.Outcome{Product: product, Result: table.New(header)}

	for i := 0; i < tbl.Len(); i++ {
		out.Processed++
		row := tbl.Row(i)

		id, ok := row.Get(table.ColID)
		if !ok {
			out.Failed++
			log.Error("row missing ID column, skipping", "row", i+1)
			continue
		}
		username := row.Value(table.ColUsername)
		rlog := log.With("id", id, "username", username)

		var res model.DecryptResult
		if batch != nil {
			res = batch[i]
		} else {
			ciphertext, ok := row.Get(table.ColPassword)
			if !ok {
				out.Blank++
				rlog.Debug("password column empty, excluding")
				continue
			}
			if res, err = dec.Decrypt(ctx, ciphertext); err != nil {
				return nil, fmt.Errorf("decrypt %s ID %s: %w", product.DisplayName(), id, err)
			}
		}

		plaintext := table.StripNUL(res.Plaintext)
		switch {
		case res.Status == model.DecryptFailed:
			out.Failed++
			rlog.Error("failed to decrypt", "error", res.Err)
			continue
		case res.Status == model.DecryptEmpty || plaintext == "":
			out.Blank++
			rlog.Debug("decrypted password empty, excluding")
			continue
		}

		method := dec.Method()
		switch method {
		case model.DispositionDPAPI:
			out.DecryptedHostService++
		case model.DispositionAES:
			out.DecryptedLegacy++
		}

		values := []string{id, row.Value(table.ColUSN), username, plaintext, row.Value(table.ColDescription)}
		if withMethod {
			values = append(values, string(method))
		}
		values = append(values, row.Value(table.ColVisible))
		out.Result.AppendRow(values...)
		rlog.Debug("password recovered", "method", string(method))
	}

	out.ResultRows = out.Result.Len()
	if out.ResultRows > 0 {
		out.ResultSecrets = out.Result.UniqueCount(table.ColID)
	}

	if out.Processed == out.Failed || out.ResultRows <= 0 {
		return out, model.Fail(model.KindNoTarget, "no rows could be processed")
	}
	if out.Failed > 0 {
		log.Warn("rows processed with failures", "processed", out.Processed, "failed", out.Failed)
	} else {
		log.Info("rows processed", "processed", out.Processed)
	}
	log.Info("rows recovered",
		"recovered", out.Recovered(),
		"plaintext", out.Plaintext,
		"decrypted", out.Decrypted(),
		"blank", out.Blank,
	)
	return out, nil
}
