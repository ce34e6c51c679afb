package storage

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// flushTimeout bounds one batch against the database.
const flushTimeout = 10 * time.Second

// WriteJob is one archive write executed by the BatchWriter.
type WriteJob interface {
	Execute(ctx context.Context, db DB) error
}

// WriteJobFunc adapts a function into a WriteJob.
type WriteJobFunc func(ctx context.Context, db DB) error

func (f WriteJobFunc) Execute(ctx context.Context, db DB) error {
	return f(ctx, db)
}

// WriterStats counts jobs by how they ended.
type WriterStats struct {
	Written int64
	Failed  int64
	Dropped int64
}

// BatchWriter runs archive jobs off the streaming path. Jobs are queued
// without blocking and executed in batches, when a batch fills or when the
// flush interval passes, whichever comes first.
type BatchWriter struct {
	db         DB
	queue      chan WriteJob
	batchSize  int
	flushEvery time.Duration

	written atomic.Int64
	failed  atomic.Int64
	dropped atomic.Int64

	done      sync.WaitGroup
	closeOnce sync.Once
}

func NewBatchWriter(db DB, queueSize, batchSize int, flushEvery time.Duration) *BatchWriter {
	if flushEvery <= 0 {
		flushEvery = time.Millisecond
	}
	w := &BatchWriter{
		db:         db,
		queue:      make(chan WriteJob, max(queueSize, 1)),
		batchSize:  max(batchSize, 1),
		flushEvery: flushEvery,
	}
	w.done.Add(1)
	go w.run()
	return w
}

// Enqueue never blocks the caller; a full queue drops the job.
func (w *BatchWriter) Enqueue(job WriteJob) {
	select {
	case w.queue <- job:
	default:
		w.dropped.Add(1)
		log.Warn().Int("queue", cap(w.queue)).Msg("archive queue full, dropping job")
	}
}

// Stats returns the counters accumulated so far.
func (w *BatchWriter) Stats() WriterStats {
	return WriterStats{
		Written: w.written.Load(),
		Failed:  w.failed.Load(),
		Dropped: w.dropped.Load(),
	}
}

func (w *BatchWriter) run() {
	defer w.done.Done()

	ticker := time.NewTicker(w.flushEvery)
	defer ticker.Stop()

	pending := make([]WriteJob, 0, w.batchSize)
	for {
		select {
		case job, ok := <-w.queue:
			if !ok {
				w.execute(pending)
				return
			}
			if pending = append(pending, job); len(pending) >= w.batchSize {
				w.execute(pending)
				pending = pending[:0]
			}
		case <-ticker.C:
			w.execute(pending)
			pending = pending[:0]
		}
	}
}

func (w *BatchWriter) execute(batch []WriteJob) {
	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	for _, job := range batch {
		if err := job.Execute(ctx, w.db); err != nil {
			w.failed.Add(1)
			log.Error().Err(err).Msg("archive write failed")
			continue
		}
		w.written.Add(1)
	}
}

// Shutdown drains the queue and waits for the last batch. It is safe to call
// more than once; Enqueue must not be called afterwards.
func (w *BatchWriter) Shutdown() {
	w.closeOnce.Do(func() { close(w.queue) })
	w.done.Wait()
}
