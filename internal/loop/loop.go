// Package loop provides the single event-loop goroutine on which all playback
// state is mutated. Hardware events, timer fires and user intents are posted as
// tasks and run one at a time in arrival order.
package loop

import (
	"sync"

	"github.com/liuscraft/noizee/internal/logging"
)

// Poster 接收需要在事件循环上执行的任务
type Poster interface {
	Post(fn func())
}

// Loop 单线程事件循环
type Loop struct {
	mu     sync.Mutex
	queue  []func()
	wake   chan struct{}
	done   chan struct{}
	closed bool
}

func New() *Loop {
	l := &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go l.run()
	return l
}

// Post enqueues fn without blocking. Tasks posted after Close are dropped.
func (l *Loop) Post(fn func()) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Do runs fn on the loop and waits for it. It must not be called from a loop task.
func (l *Loop) Do(fn func()) {
	finished := make(chan struct{})
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return
	}
	l.Post(func() {
		defer close(finished)
		fn()
	})
	select {
	case <-finished:
	case <-l.done:
	}
}

// Close runs the tasks already queued and stops the loop.
func (l *Loop) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		<-l.done
		return
	}
	l.closed = true
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	<-l.done
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		closed := l.closed
		l.mu.Unlock()

		for _, fn := range batch {
			runTask(fn)
		}

		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		<-l.wake
	}
}

func runTask(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logging.Errorf("Loop: task panicked: %v", r)
		}
	}()
	fn()
}
