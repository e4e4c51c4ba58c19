package coding

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/otherjamesbrown/gendercode/pkg/gender"
	"github.com/otherjamesbrown/gendercode/pkg/names"
)

// batchSession owns everything one ClassifyBatch call touches: its queue,
// its results and its counters. Nothing in it is shared between batches.
type batchSession struct {
	id      string
	dict    *names.Dictionary
	results []*Result
	queue   chan *Result

	completed atomic.Int64
	// reported is the highest completed count handed to listeners.
	reported int64
	byGender [5]atomic.Int64
}

// newBatchSession fills the queue with every result and closes it, so a
// receive on a drained queue returns immediately instead of blocking.
func newBatchSession(dict *names.Dictionary, results []*Result) *batchSession {
	s := &batchSession{
		id:      uuid.New().String(),
		dict:    dict,
		results: results,
		queue:   make(chan *Result, len(results)),
	}
	for _, r := range results {
		s.queue <- r
	}
	close(s.queue)
	return s
}

func (s *batchSession) total() int {
	return len(s.results)
}

// work drains the queue until it is empty or ctx is done.
func (s *batchSession) work(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		r, ok := <-s.queue
		if !ok {
			return nil
		}
		s.classify(r)
	}
}

// classify writes the gender before the processed flag and the counter, so
// anyone observing the count also observes the write.
func (s *batchSession) classify(r *Result) {
	g := s.dict.Lookup(r.FirstName)
	r.Gender = g
	r.processed.Store(true)
	if g.Valid() {
		s.byGender[g].Add(1)
	}
	s.completed.Add(1)
}

// progress builds the event for the current completed count. The count only
// grows, and reported guards the invariant against a listener ever seeing a
// smaller value. Only the polling goroutine calls it.
func (s *batchSession) progress(done bool) ProgressEvent {
	completed := s.completed.Load()
	if completed < s.reported {
		completed = s.reported
	}
	s.reported = completed

	ev := ProgressEvent{
		BatchID:   s.id,
		Completed: int(completed),
		Total:     s.total(),
		Done:      done,
	}
	if ev.Total > 0 {
		ev.Fraction = float64(ev.Completed) / float64(ev.Total)
	} else {
		ev.Fraction = 1
	}
	return ev
}

// counts returns how many names received each classification.
func (s *batchSession) counts() map[gender.Gender]int64 {
	out := make(map[gender.Gender]int64, len(gender.All))
	for _, g := range gender.All {
		out[g] = s.byGender[g].Load()
	}
	return out
}
