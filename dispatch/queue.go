package dispatch

import "sync"

// queue is the single funnel for all upstream mutation calls. A fixed worker
// pool drains a FIFO channel, so no more than `workers` actions are ever
// in flight at once regardless of how many submission paths feed it.
type queue struct {
	jobs     chan func()
	quit     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func newQueue(workers, depth int) *queue {
	q := &queue{
		jobs: make(chan func(), depth),
		quit: make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			for {
				select {
				case job := <-q.jobs:
					job()
				case <-q.quit:
					// drain whatever was accepted before shutdown
					for {
						select {
						case job := <-q.jobs:
							job()
						default:
							return
						}
					}
				}
			}
		}()
	}
	return q
}

// submit enqueues a job, blocking if the buffer is full. Submission order is
// preserved up to the worker bound. After shutdown the job is dropped; a
// deferral timer can race shutdown and fire late, and that must not panic.
func (q *queue) submit(job func()) {
	select {
	case q.jobs <- job:
	case <-q.quit:
	}
}

// shutdown stops accepting work and waits for accepted jobs to finish.
func (q *queue) shutdown() {
	q.stopOnce.Do(func() {
		close(q.quit)
	})
	q.wg.Wait()
}
