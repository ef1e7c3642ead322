package storage

import (
	"context"
	"crypto/tls"
	"sync/atomic"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

// Event volume is one row per tool execution, so the buffer only needs
// to absorb a burst of concurrent runs finishing at once.
const (
	chBufferSize    = 4096
	chFlushInterval = time.Second
	chMaxBatch      = 500
	chFlushTimeout  = 5 * time.Second
	chDrainTimeout  = 3 * time.Second
)

const insertExecutionEvents = `
	INSERT INTO tool_execution_events (
		run_id, target_reference, timestamp, tool_id, category,
		outcome, exit_code, has_exit_code, duration_ms,
		finding_count, error_message
	)
`

// ClickHouseWriter ships execution events to ClickHouse in the
// background. Write never blocks the scheduler: events go through a
// buffered channel and a single flusher goroutine batch-inserts them.
// When the buffer is full the event is dropped and counted, not queued.
type ClickHouseWriter struct {
	conn    driver.Conn
	events  chan *ExecutionEvent
	closing chan struct{}
	drained chan struct{}
	dropped atomic.Int64
	logger  *zap.Logger
}

// NewClickHouseWriter connects to the warehouse and starts the flusher.
func NewClickHouseWriter(dsn string, logger *zap.Logger) (*ClickHouseWriter, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	if opts.TLS == nil {
		opts.TLS = &tls.Config{}
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(context.Background()); err != nil {
		return nil, err
	}

	w := &ClickHouseWriter{
		conn:    conn,
		events:  make(chan *ExecutionEvent, chBufferSize),
		closing: make(chan struct{}),
		drained: make(chan struct{}),
		logger:  logger,
	}
	go w.flushLoop()
	return w, nil
}

// Write queues an event for insertion. Drops when the buffer is full.
func (w *ClickHouseWriter) Write(event *ExecutionEvent) {
	select {
	case w.events <- event:
	default:
		if n := w.dropped.Add(1); n%100 == 1 {
			w.logger.Warn("clickhouse buffer full, dropping events",
				zap.Int64("dropped_total", n),
			)
		}
	}
}

// Close stops the flusher after a best-effort drain of buffered events.
func (w *ClickHouseWriter) Close() {
	close(w.closing)
	<-w.drained
}

func (w *ClickHouseWriter) flushLoop() {
	defer close(w.drained)

	ticker := time.NewTicker(chFlushInterval)
	defer ticker.Stop()

	pending := make([]*ExecutionEvent, 0, chMaxBatch)
	for {
		select {
		case e := <-w.events:
			pending = append(pending, e)
			if len(pending) >= chMaxBatch {
				w.flush(pending)
				pending = pending[:0]
			}
		case <-ticker.C:
			if len(pending) > 0 {
				w.flush(pending)
				pending = pending[:0]
			}
		case <-w.closing:
			w.drain(pending)
			return
		}
	}
}

// drain empties whatever is buffered at shutdown, bounded by
// chDrainTimeout so a dead warehouse cannot hang process exit.
func (w *ClickHouseWriter) drain(pending []*ExecutionEvent) {
	deadline := time.Now().Add(chDrainTimeout)
	for time.Now().Before(deadline) {
		select {
		case e := <-w.events:
			pending = append(pending, e)
		default:
			if len(pending) > 0 {
				w.flush(pending)
			}
			return
		}
	}
	if len(pending) > 0 {
		w.flush(pending)
	}
}

func (w *ClickHouseWriter) flush(events []*ExecutionEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), chFlushTimeout)
	defer cancel()

	batch, err := w.conn.PrepareBatch(ctx, insertExecutionEvents)
	if err != nil {
		w.logger.Error("clickhouse prepare batch failed", zap.Error(err))
		return
	}

	for _, e := range events {
		var hasExit uint8
		if e.HasExitCode {
			hasExit = 1
		}
		if err := batch.Append(
			e.RunID, e.TargetReference, e.Timestamp, e.ToolID, e.Category,
			e.Outcome, e.ExitCode, hasExit, e.DurationMS,
			e.FindingCount, e.ErrorMessage,
		); err != nil {
			w.logger.Error("clickhouse append failed",
				zap.String("run_id", e.RunID),
				zap.String("tool_id", e.ToolID),
				zap.Error(err),
			)
		}
	}

	if err := batch.Send(); err != nil {
		w.logger.Error("clickhouse batch send failed",
			zap.Int("batch_size", len(events)),
			zap.Error(err),
		)
	}
}
