package intercept

import (
	"sync"
	"time"
)

const failureLogCapacity = 10

// Failure records one response body that could not be processed.
type Failure struct {
	URL string
	Err string
	At  time.Time
}

// FailureLog is a bounded ring of recent processing failures. When full, the
// oldest entry is evicted. It exists for operator inspection, not alerting.
type FailureLog struct {
	mu      sync.Mutex
	entries []Failure
}

func (l *FailureLog) Record(url string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Failure{
		URL: url,
		Err: err.Error(),
		At:  time.Now(),
	})
	if len(l.entries) > failureLogCapacity {
		l.entries = l.entries[len(l.entries)-failureLogCapacity:]
	}
}

func (l *FailureLog) Recent() []Failure {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Failure, len(l.entries))
	copy(out, l.entries)
	return out
}
