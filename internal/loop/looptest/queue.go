// Package looptest provides a manually drained task queue for deterministic tests
// of code that posts work onto the event loop.
package looptest

import "sync"

// Queue implements loop.Poster. Tasks run only when Drain is called.
type Queue struct {
	mu    sync.Mutex
	tasks []func()
}

func (q *Queue) Post(fn func()) {
	if fn == nil {
		return
	}
	q.mu.Lock()
	q.tasks = append(q.tasks, fn)
	q.mu.Unlock()
}

// Drain runs queued tasks, including tasks they post, until the queue is empty.
// It returns the number of tasks run.
func (q *Queue) Drain() int {
	n := 0
	for {
		q.mu.Lock()
		if len(q.tasks) == 0 {
			q.mu.Unlock()
			return n
		}
		fn := q.tasks[0]
		q.tasks = q.tasks[1:]
		q.mu.Unlock()

		fn()
		n++
	}
}

// Len reports the number of pending tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}
