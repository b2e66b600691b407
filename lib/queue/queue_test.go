package queue

import (
	"runtime"
	"sync"
	"testing"
	"time"
)

// TestBasicOperations pushes and receives a few values in order
func TestBasicOperations(t *testing.T) {
	q := New[int]()
	defer q.Close()

	for i := 0; i < 10; i++ {
		if !q.Push(i) {
			t.Fatalf("Failed to push item %d", i)
		}
	}

	for i := 0; i < 10; i++ {
		select {
		case val := <-q.Recv():
			if val != i {
				t.Errorf("Expected %d, got %d", i, val)
			}
		case <-time.After(time.Second):
			t.Fatalf("Timeout waiting for item %d", i)
		}
	}

	select {
	case val := <-q.Recv():
		t.Errorf("Queue should be empty, but got %d", val)
	case <-time.After(10 * time.Millisecond):
	}
}

// TestConcurrentProducers checks that every value arrives exactly once and
// that each producer's values keep their order
func TestConcurrentProducers(t *testing.T) {
	q := New[[2]int]()
	defer q.Close()

	const numProducers = 10
	const itemsPerProducer = 1000

	var wg sync.WaitGroup
	wg.Add(numProducers)
	for p := 0; p < numProducers; p++ {
		go func(producer int) {
			defer wg.Done()
			for i := 0; i < itemsPerProducer; i++ {
				if !q.Push([2]int{producer, i}) {
					t.Errorf("Producer %d failed to push item %d", producer, i)
				}
				if i%100 == 0 {
					runtime.Gosched()
				}
			}
		}(p)
	}

	last := make([]int, numProducers)
	for i := range last {
		last[i] = -1
	}

	for received := 0; received < numProducers*itemsPerProducer; received++ {
		select {
		case val := <-q.Recv():
			producer, seq := val[0], val[1]
			if seq != last[producer]+1 {
				t.Fatalf("Producer %d: expected item %d, got %d", producer, last[producer]+1, seq)
			}
			last[producer] = seq
		case <-time.After(5 * time.Second):
			t.Fatalf("Timeout waiting for items, received %d", received)
		}
	}

	wg.Wait()
}

// TestCloseDrainsQueue verifies queued values survive Close
func TestCloseDrainsQueue(t *testing.T) {
	q := New[string]()

	q.Push("a")
	q.Push("b")
	q.Close()

	if !q.IsClosed() {
		t.Fatal("Queue should report closed")
	}
	if q.Push("c") {
		t.Error("Push after Close should fail")
	}

	var got []string
	for v := range q.Recv() {
		got = append(got, v)
	}
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Expected [a b], got %v", got)
	}

	select {
	case <-q.Done():
	case <-time.After(time.Second):
		t.Fatal("Delivery goroutine did not exit")
	}
}

// TestWakeAfterIdle makes sure a parked consumer wakes up for a late push
func TestWakeAfterIdle(t *testing.T) {
	q := New[int]()
	defer q.Close()

	for i := 0; i < 100; i++ {
		time.Sleep(time.Millisecond)
		q.Push(i)
		select {
		case v := <-q.Recv():
			if v != i {
				t.Fatalf("Expected %d, got %d", i, v)
			}
		case <-time.After(time.Second):
			t.Fatalf("Consumer missed wake up for item %d", i)
		}
	}
}

func TestLen(t *testing.T) {
	q := New[int]()
	defer q.Close()

	if q.Len() != 0 {
		t.Errorf("Expected empty queue, got %d", q.Len())
	}
}

func BenchmarkSingleProducer(b *testing.B) {
	q := New[int]()
	defer q.Close()

	go func() {
		for range q.Recv() {
		}
	}()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		q.Push(i)
	}
}

func BenchmarkMultiProducer(b *testing.B) {
	q := New[int]()
	defer q.Close()

	go func() {
		for range q.Recv() {
		}
	}()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			q.Push(i)
			i++
		}
	})
}
