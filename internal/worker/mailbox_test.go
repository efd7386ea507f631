package worker

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMailboxPreservesPerProducerOrder(t *testing.T) {
	box := newMailbox()
	const producers, perProducer = 4, 500

	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perProducer {
				box.send(ToolSuccess{ToolID: uint64(p*perProducer + i)})
			}
		}()
	}
	wg.Wait()

	last := make(map[int]int)
	for range producers * perProducer {
		msg, ok := box.receive(context.Background())
		if !ok {
			t.Fatal("receive failed")
		}
		id := int(msg.(ToolSuccess).ToolID)
		producer, seq := id/perProducer, id%perProducer
		if prev, seen := last[producer]; seen && seq <= prev {
			t.Fatalf("producer %d delivered %d after %d", producer, seq, prev)
		}
		last[producer] = seq
	}
	if box.len() != 0 {
		t.Fatalf("mailbox not drained: %d left", box.len())
	}
}

func TestMailboxReceiveHonoursContext(t *testing.T) {
	box := newMailbox()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, ok := box.receive(ctx); ok {
		t.Fatal("receive on empty mailbox should fail once the context ends")
	}
}

func TestMailboxSendNeverBlocks(t *testing.T) {
	box := newMailbox()
	done := make(chan struct{})
	go func() {
		for range 10000 {
			box.send(Finish{})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("send blocked without a consumer")
	}
}
