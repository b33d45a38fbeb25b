package client

import (
	"context"
	"sync"

	"github.com/ValentinKolb/dRow/lib/rows"
	"github.com/ValentinKolb/dRow/rpc/common"
)

// StreamInserter writes batches in the background. Batches are inserted one
// after another in the order they were queued. After the first failure all
// remaining batches are dropped and the error is returned by Finish.
type StreamInserter struct {
	db      *Database
	batches chan streamItem
	done    chan struct{}

	mu       sync.Mutex
	finished bool

	// written by the background goroutine, read after done is closed
	total uint64
	err   error
}

type streamItem struct {
	ctx   context.Context
	batch *rows.RowBatch
}

// StreamInserter starts a background inserter. At most channelSize batches
// are queued, Insert blocks while the queue is full.
func (d *Database) StreamInserter(channelSize int) *StreamInserter {
	if channelSize <= 0 {
		channelSize = 1
	}
	s := &StreamInserter{
		db:      d,
		batches: make(chan streamItem, channelSize),
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

// Insert queues batch. It returns an error if the batch is invalid, the
// inserter is finished, or ctx is done before the batch could be queued.
func (s *StreamInserter) Insert(ctx context.Context, batch *rows.RowBatch) error {
	if batch == nil {
		return &rows.SchemaError{Msg: "batch is nil"}
	}
	if err := batch.ValidateForInsert(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return common.ErrClosed
	}

	select {
	case s.batches <- streamItem{ctx: ctx, batch: batch}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Finish waits until all queued batches are written and returns the total
// number of acknowledged rows, or the first error.
func (s *StreamInserter) Finish() (uint64, error) {
	s.mu.Lock()
	if !s.finished {
		s.finished = true
		close(s.batches)
	}
	s.mu.Unlock()

	<-s.done
	return s.total, s.err
}

func (s *StreamInserter) run() {
	defer close(s.done)
	for item := range s.batches {
		if s.err != nil {
			continue
		}
		n, err := s.db.Insert(item.ctx, item.batch)
		if err != nil {
			Logger.Errorf("Stream insert into %q failed: %v", item.batch.Table(), err)
			s.err = err
			continue
		}
		s.total += uint64(n)
	}
}
