package nlp

import (
	"context"
	"sync"

	"github.com/preventia/preventia-core/internal/logging"
)

// Queue is a bounded in-process hand-off from the Scraper Orchestrator
// (C5) to the NLP Pipeline: a worker pool draining a channel of article
// IDs, generalized from the teacher's pkg/announce worker-pool pattern
// already reused by internal/orchestrator.
type Queue struct {
	jobs      chan int64
	processor *Processor
	log       *logging.Logger
	wg        sync.WaitGroup
}

// NewQueue starts workers workers consuming from a channel of depth
// bufferSize.
func NewQueue(processor *Processor, workers, bufferSize int) *Queue {
	if workers <= 0 {
		workers = 2
	}
	if bufferSize <= 0 {
		bufferSize = 100
	}
	q := &Queue{
		jobs:      make(chan int64, bufferSize),
		processor: processor,
		log:       logging.Default().WithComponent("nlp.queue"),
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for articleID := range q.jobs {
		if err := q.processor.Process(context.Background(), articleID); err != nil {
			q.log.WithField("article_id", articleID).Warnf("nlp processing failed: %v", err)
		}
	}
}

// Enqueue implements orchestrator.NLPQueue: hands articleID off for async
// processing, blocking only if the buffer is full.
func (q *Queue) Enqueue(ctx context.Context, articleID int64) error {
	select {
	case q.jobs <- articleID:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting new work and waits for in-flight jobs to drain.
func (q *Queue) Close() {
	close(q.jobs)
	q.wg.Wait()
}
