package coding

import (
	"fmt"
	"sync"
)

// ProgressEvent reports how far one batch has got.
type ProgressEvent struct {
	BatchID   string  `json:"batch_id"`
	Completed int     `json:"completed"`
	Total     int     `json:"total"`
	Fraction  float64 `json:"fraction"`
	// Done is set on the last event of a batch.
	Done bool `json:"done"`
}

// Percent formats the fraction the way progress traces print it, e.g. "42.500%".
func (e ProgressEvent) Percent() string {
	return fmt.Sprintf("%.3f%%", e.Fraction*100)
}

// ProgressListener receives progress events. Listeners run on the goroutine
// that called ClassifyBatch and should return quickly.
type ProgressListener func(ProgressEvent)

// listeners is a registry of progress listeners kept in registration order.
type listeners struct {
	mu     sync.RWMutex
	nextID uint64
	items  []registeredListener
}

type registeredListener struct {
	id uint64
	fn ProgressListener
}

func (l *listeners) add(fn ProgressListener) func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.nextID
	l.nextID++
	l.items = append(l.items, registeredListener{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { l.remove(id) })
	}
}

func (l *listeners) remove(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, item := range l.items {
		if item.id == id {
			l.items = append(l.items[:i:i], l.items[i+1:]...)
			return
		}
	}
}

// snapshot returns the registered listeners, oldest first.
func (l *listeners) snapshot() []ProgressListener {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]ProgressListener, len(l.items))
	for i, item := range l.items {
		out[i] = item.fn
	}
	return out
}
