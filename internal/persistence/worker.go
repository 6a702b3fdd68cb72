package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog"

	"github.com/vhendala/backend-flight-insurance-stellar/internal/observability"
)

// AuditWorker drains the engine's audit channel and batch-writes rows
// to Postgres. The channel uses blocking sends, so if this worker
// falls behind the engine stalls rather than losing trail entries.
type AuditWorker struct {
	writer       *AuditWriter
	input        <-chan OperationRow
	batchSize    int
	flushTimeout time.Duration
	metrics      *observability.Metrics
	log          zerolog.Logger
}

func NewAuditWorker(
	db *sql.DB,
	input <-chan OperationRow,
	batchSize int,
	flushTimeout time.Duration,
	metrics *observability.Metrics,
	log zerolog.Logger,
) *AuditWorker {
	if batchSize <= 0 {
		batchSize = 64
	}
	if flushTimeout <= 0 {
		flushTimeout = time.Second
	}
	return &AuditWorker{
		writer:       NewAuditWriter(db),
		input:        input,
		batchSize:    batchSize,
		flushTimeout: flushTimeout,
		metrics:      metrics,
		log:          log,
	}
}

// Run batches incoming rows and flushes when the batch fills or the
// flush timeout fires. Blocks until the context ends or the channel
// closes; either way the final partial batch is flushed.
func (w *AuditWorker) Run(ctx context.Context) error {
	batch := make([]OperationRow, 0, w.batchSize)

	timer := time.NewTimer(w.flushTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			if len(batch) > 0 {
				if err := w.flush(context.Background(), batch); err != nil {
					w.log.Error().Err(err).Int("rows", len(batch)).Msg("final audit flush failed")
				}
			}
			return ctx.Err()

		case row, ok := <-w.input:
			if !ok {
				if len(batch) > 0 {
					if err := w.flush(context.Background(), batch); err != nil {
						w.log.Error().Err(err).Int("rows", len(batch)).Msg("final audit flush failed")
					}
				}
				return nil
			}
			batch = append(batch, row)
			if len(batch) >= w.batchSize {
				w.flushWithRetry(ctx, batch)
				batch = batch[:0]
				timer.Reset(w.flushTimeout)
			}

		case <-timer.C:
			if len(batch) > 0 {
				w.flushWithRetry(ctx, batch)
				batch = batch[:0]
			}
			timer.Reset(w.flushTimeout)
		}
	}
}

// flushWithRetry retries with exponential backoff until the write
// succeeds or the context ends. Rows are never dropped; on shutdown a
// last attempt runs under a background context.
func (w *AuditWorker) flushWithRetry(ctx context.Context, rows []OperationRow) {
	backoff := 100 * time.Millisecond
	const maxBackoff = 30 * time.Second

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			w.metrics.AuditErrors.Inc()
			select {
			case <-ctx.Done():
				if err := w.flush(context.Background(), rows); err != nil {
					w.log.Error().Err(err).Int("rows", len(rows)).Msg("audit flush on shutdown failed")
				}
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		err := w.flush(ctx, rows)
		if err == nil {
			if attempt > 0 {
				w.log.Info().Int("attempts", attempt+1).Msg("audit flush recovered")
			}
			return
		}
		w.log.Warn().Err(err).Int("attempt", attempt+1).Int("rows", len(rows)).Msg("audit flush failed")
	}
}

func (w *AuditWorker) flush(ctx context.Context, rows []OperationRow) error {
	start := time.Now()
	if err := w.writer.WriteBatch(ctx, rows); err != nil {
		return err
	}
	w.metrics.AuditBatchDuration.Observe(time.Since(start).Seconds())
	w.metrics.AuditRowsWritten.Add(float64(len(rows)))
	return nil
}
