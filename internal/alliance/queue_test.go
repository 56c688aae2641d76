package alliance

import "testing"

func TestQueueFIFO(t *testing.T) {
	q := NewQueue()
	var order []int
	q.Defer("a", func() { order = append(order, 1) })
	q.Defer("b", func() { order = append(order, 2) })
	q.Defer("c", func() { order = append(order, 3) })

	q.Drain()

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("drain order = %v; want [1 2 3]", order)
	}
	if q.Len() != 0 {
		t.Errorf("queue should be empty after drain, has %d", q.Len())
	}
}

func TestQueueReentrantEnqueueRunsNextCycle(t *testing.T) {
	q := NewQueue()
	ran := 0
	q.Defer("outer", func() {
		q.Defer("inner", func() { ran++ })
	})

	q.Drain()
	if ran != 0 {
		t.Error("action enqueued during drain must not run in the same cycle")
	}
	if q.Len() != 1 {
		t.Errorf("inner action should be pending, Len = %d", q.Len())
	}

	q.Drain()
	if ran != 1 {
		t.Error("inner action should run on the next drain")
	}
}

func TestQueuePanicIsolation(t *testing.T) {
	q := NewQueue()
	ran := false
	q.Defer("boom", func() { panic("kaboom") })
	q.Defer("after", func() { ran = true })

	q.Drain()

	if !ran {
		t.Error("a panicking action must not abort its siblings")
	}
}
