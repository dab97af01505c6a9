package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// batchSender is satisfied by *pgxpool.Pool and pgx.Tx.
type batchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// execBatch sends b and drains its results, returning the total number of
// affected rows.
func execBatch(ctx context.Context, db batchSender, b *pgx.Batch) (int64, error) {
	if b.Len() == 0 {
		return 0, nil
	}

	br := db.SendBatch(ctx, b)
	var total int64
	for i := 0; i < b.Len(); i++ {
		tag, err := br.Exec()
		if err != nil {
			_ = br.Close()
			return total, err
		}
		total += tag.RowsAffected()
	}
	if err := br.Close(); err != nil {
		return total, err
	}
	return total, nil
}
