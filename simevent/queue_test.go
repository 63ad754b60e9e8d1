package simevent

import (
	"sync"
	"testing"
	"time"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue()
	for i := 0; i < 3; i++ {
		q.Push(New("op", i, "test"))
	}
	if q.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", q.Len())
	}
	for i := 0; i < 3; i++ {
		ev, ok := q.Pop()
		if !ok || ev.Value != i {
			t.Fatalf("Pop() = %v, %v; want value %d", ev, ok, i)
		}
	}
}

func TestQueuePopBlocksUntilPush(t *testing.T) {
	q := NewQueue()
	got := make(chan Event, 1)
	go func() {
		ev, _ := q.Pop()
		got <- ev
	}()

	select {
	case ev := <-got:
		t.Fatalf("Pop returned early with %v", ev)
	case <-time.After(50 * time.Millisecond):
	}

	q.Push(New("Speed_DUT", 1.5, "test"))
	select {
	case ev := <-got:
		if ev.Operation != "Speed_DUT" {
			t.Fatalf("got %v", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for Pop")
	}
}

func TestQueueStopReleasesWaiters(t *testing.T) {
	q := NewQueue()
	const waiters = 4

	var wg sync.WaitGroup
	results := make(chan bool, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok := q.Pop()
			results <- ok
		}()
	}

	time.Sleep(20 * time.Millisecond)
	q.Stop()

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("waiters not released by Stop")
	}
	close(results)
	for ok := range results {
		if ok {
			t.Fatalf("Pop after Stop on empty queue returned ok")
		}
	}
}

func TestQueueStopDrainsThenSignalsEnd(t *testing.T) {
	q := NewQueue()
	q.Push(New("a", 1, "test"))
	q.Push(New("b", 2, "test"))
	q.Stop()

	q.Push(New("c", 3, "test"))
	if q.Len() != 2 {
		t.Fatalf("push after stop was queued: Len() = %d", q.Len())
	}

	for _, want := range []string{"a", "b"} {
		ev, ok := q.Pop()
		if !ok || ev.Operation != want {
			t.Fatalf("Pop() = %v, %v; want %s", ev, ok, want)
		}
	}
	for i := 0; i < 2; i++ {
		if _, ok := q.Pop(); ok {
			t.Fatalf("Pop() after drain returned ok")
		}
	}
	if !q.Stopped() {
		t.Fatalf("Stopped() = false")
	}
}

func TestQueueDrain(t *testing.T) {
	q := NewQueue()
	if got := q.Drain(); len(got) != 0 {
		t.Fatalf("Drain() on empty queue = %v", got)
	}
	q.Push(New("a", 1, "test"))
	q.Push(New("b", 2, "test"))
	q.Stop()

	var ops []string
	for _, ev := range q.Drain() {
		ops = append(ops, ev.Operation)
	}
	if len(ops) != 2 || ops[0] != "a" || ops[1] != "b" {
		t.Fatalf("Drain() = %v, want [a b]", ops)
	}
	if _, ok := q.Pop(); ok {
		t.Fatalf("Pop() after Drain returned ok")
	}
}

func TestQueueConcurrentProducers(t *testing.T) {
	q := NewQueue()
	const producers, perProducer = 8, 100

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(New("op", p*perProducer+i, "test"))
			}
		}(p)
	}

	seen := make(map[any]bool)
	for len(seen) < producers*perProducer {
		ev, ok := q.Pop()
		if !ok {
			t.Fatalf("queue ended early")
		}
		if seen[ev.Value] {
			t.Fatalf("duplicate %v", ev.Value)
		}
		seen[ev.Value] = true
	}
	wg.Wait()
	if q.Len() != 0 {
		t.Fatalf("Len() = %d after consuming everything", q.Len())
	}
}

func TestEventFloat64(t *testing.T) {
	cases := []struct {
		value any
		want  float64
		ok    bool
	}{
		{1.5, 1.5, true},
		{int(3), 3, true},
		{uint16(7), 7, true},
		{true, 1, true},
		{"12", 0, false},
		{[]byte{1}, 0, false},
	}
	for _, c := range cases {
		got, ok := Event{Value: c.value}.Float64()
		if got != c.want || ok != c.ok {
			t.Errorf("Float64(%v) = %v, %v; want %v, %v", c.value, got, ok, c.want, c.ok)
		}
	}
}
