// Package clock provides the virtual time source of a simulation and the queue of
// actions deferred against it. Time moves only when the caller moves it.
package clock

import (
	"container/heap"
	"time"
)

// Task is a deferred action. The zero value is not usable; obtain tasks from Schedule.
type Task struct {
	deadline time.Time
	seq      uint64
	index    int // position in the heap, -1 once removed
	action   func()
	done     bool
}

// Deadline returns the virtual time the task is due.
func (t *Task) Deadline() time.Time { return t.deadline }

// Done reports whether the task ran or was canceled.
func (t *Task) Done() bool { return t.done }

type taskQueue []*Task

func (q taskQueue) Len() int { return len(q) }

func (q taskQueue) Less(i, j int) bool {
	if q[i].deadline.Equal(q[j].deadline) {
		return q[i].seq < q[j].seq
	}
	return q[i].deadline.Before(q[j].deadline)
}

func (q taskQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *taskQueue) Push(x any) {
	t := x.(*Task)
	t.index = len(*q)
	*q = append(*q, t)
}

func (q *taskQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*q = old[:n-1]
	return t
}

// Clock is a virtual clock with a task queue. It is not safe for concurrent use.
type Clock struct {
	now   time.Time
	queue taskQueue
	seq   uint64
}

// New returns a clock positioned at start.
func New(start time.Time) *Clock {
	return &Clock{now: start.UTC()}
}

// Now returns the current virtual time.
func (c *Clock) Now() time.Time { return c.now }

// NowMills returns the current virtual time as epoch milliseconds.
func (c *Clock) NowMills() int64 { return c.now.UnixMilli() }

// Pending returns the number of queued tasks.
func (c *Clock) Pending() int { return len(c.queue) }

// Schedule runs action after delay. A non-positive delay runs it before returning.
func (c *Clock) Schedule(delay time.Duration, action func()) *Task {
	t := &Task{deadline: c.now.Add(delay), action: action, index: -1}
	if delay <= 0 {
		t.done = true
		action()
		return t
	}
	c.seq++
	t.seq = c.seq
	heap.Push(&c.queue, t)
	return t
}

// Cancel removes a pending task. It reports false if the task already ran or was canceled.
func (c *Clock) Cancel(t *Task) bool {
	if t == nil || t.done || t.index < 0 {
		return false
	}
	heap.Remove(&c.queue, t.index)
	t.done = true
	return true
}

// MoveTo sets the clock without running tasks. Earlier times are ignored.
func (c *Clock) MoveTo(t time.Time) {
	if t.After(c.now) {
		c.now = t.UTC()
	}
}

// Drain runs every task due at or before the current time, in deadline order.
// Tasks scheduled by a running task are eligible in the same drain.
func (c *Clock) Drain() int {
	n := 0
	for len(c.queue) > 0 && !c.queue[0].deadline.After(c.now) {
		t := heap.Pop(&c.queue).(*Task)
		t.done = true
		t.action()
		n++
	}
	return n
}

// AdvanceTo moves the clock to t and drains due tasks.
func (c *Clock) AdvanceTo(t time.Time) int {
	c.MoveTo(t)
	return c.Drain()
}

// Elapse advances the clock by d. Negative durations do nothing.
func (c *Clock) Elapse(d time.Duration) int {
	if d < 0 {
		return 0
	}
	return c.AdvanceTo(c.now.Add(d))
}
