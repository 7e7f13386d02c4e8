package event

import "sync"

var executionPool = sync.Pool{
	New: func() any { return new(ExecutionEvent) },
}

// AcquireExecutionEvent takes a zeroed event from the pool.
func AcquireExecutionEvent() *ExecutionEvent {
	return executionPool.Get().(*ExecutionEvent)
}

// ReleaseExecutionEvent resets ev and returns it to the pool. ev must not be used
// afterwards.
func ReleaseExecutionEvent(ev *ExecutionEvent) {
	*ev = ExecutionEvent{}
	executionPool.Put(ev)
}

// Warmup pre-fills the pool so the first feed burst does not allocate.
func Warmup() {
	const n = 256
	evs := make([]*ExecutionEvent, n)
	for i := range evs {
		evs[i] = AcquireExecutionEvent()
	}
	for _, ev := range evs {
		ReleaseExecutionEvent(ev)
	}
}
