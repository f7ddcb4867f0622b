package limiterevents

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// ClickHouseSink buffers Events in memory and flushes them to a single
// ClickHouse table as one batch insert, either when the buffer reaches
// batchSize or flushInterval elapses, whichever comes first.
type ClickHouseSink struct {
	conn      driver.Conn
	table     string
	batchSize int

	mu      sync.Mutex
	pending []Event

	flushTicker *time.Ticker
	done        chan struct{}
	wg          sync.WaitGroup
}

// ClickHouseSinkOption configures NewClickHouseSink.
type ClickHouseSinkOption func(*clickHouseSinkOptions)

type clickHouseSinkOptions struct {
	batchSize     int
	flushInterval time.Duration
}

func defaultClickHouseSinkOptions() *clickHouseSinkOptions {
	return &clickHouseSinkOptions{batchSize: 500, flushInterval: 5 * time.Second}
}

// WithBatchSize overrides the default 500-row flush threshold.
func WithBatchSize(n int) ClickHouseSinkOption {
	return func(o *clickHouseSinkOptions) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithFlushInterval overrides the default 5s time-based flush.
func WithFlushInterval(d time.Duration) ClickHouseSinkOption {
	return func(o *clickHouseSinkOptions) {
		if d > 0 {
			o.flushInterval = d
		}
	}
}

// NewClickHouseSink opens a connection via opts and starts its background
// flush loop. table must already exist with columns matching Event's
// JSON field names.
func NewClickHouseSink(chOpts *clickhouse.Options, table string, opts ...ClickHouseSinkOption) (*ClickHouseSink, error) {
	if table == "" {
		return nil, fmt.Errorf("limiterevents: table must not be empty")
	}

	cfg := defaultClickHouseSinkOptions()
	for _, opt := range opts {
		opt(cfg)
	}

	conn, err := clickhouse.Open(chOpts)
	if err != nil {
		return nil, fmt.Errorf("limiterevents: open clickhouse connection: %w", err)
	}

	s := &ClickHouseSink{
		conn:        conn,
		table:       table,
		batchSize:   cfg.batchSize,
		flushTicker: time.NewTicker(cfg.flushInterval),
		done:        make(chan struct{}),
	}
	s.wg.Add(1)
	go s.flushLoop()
	return s, nil
}

func (s *ClickHouseSink) flushLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.flushTicker.C:
			_ = s.flush(context.Background())
		case <-s.done:
			return
		}
	}
}

// Publish buffers ev, flushing immediately if the buffer has reached
// batchSize.
func (s *ClickHouseSink) Publish(ctx context.Context, ev Event) error {
	s.mu.Lock()
	s.pending = append(s.pending, ev)
	full := len(s.pending) >= s.batchSize
	s.mu.Unlock()

	if full {
		return s.flush(ctx)
	}
	return nil
}

func (s *ClickHouseSink) flush(ctx context.Context) error {
	s.mu.Lock()
	if len(s.pending) == 0 {
		s.mu.Unlock()
		return nil
	}
	batchRows := s.pending
	s.pending = nil
	s.mu.Unlock()

	batch, err := s.conn.PrepareBatch(ctx, fmt.Sprintf("INSERT INTO %s", s.table))
	if err != nil {
		return fmt.Errorf("limiterevents: prepare batch: %w", err)
	}

	for _, ev := range batchRows {
		if err := batch.AppendStruct(&ev); err != nil {
			return fmt.Errorf("limiterevents: append row: %w", err)
		}
	}

	if ctx.Err() != nil {
		_ = batch.Abort()
		return fmt.Errorf("limiterevents: context canceled before send: %w", ctx.Err())
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("limiterevents: send batch: %w", err)
	}
	return nil
}

// Close flushes any remaining buffered events and closes the underlying
// connection.
func (s *ClickHouseSink) Close() error {
	close(s.done)
	s.flushTicker.Stop()
	s.wg.Wait()

	if err := s.flush(context.Background()); err != nil {
		_ = s.conn.Close()
		return err
	}
	return s.conn.Close()
}

var _ Sink = (*ClickHouseSink)(nil)
