package notify

import (
	"sync"
	"testing"
	"time"
)

func TestMemBus_PublishSubscribe(t *testing.T) {
	b := NewMemBus(MemBusConfig{})
	defer b.Close()

	sub := b.Subscribe(OpCartAdd)
	defer sub.Close()

	b.Publish(Event{Op: OpCartAdd, Stage: StageSucceeded, Level: LevelSuccess, Message: "added Apple"})

	select {
	case received := <-sub.Events():
		if received.Op != OpCartAdd {
			t.Errorf("got op %v, want %v", received.Op, OpCartAdd)
		}
		if received.Message != "added Apple" {
			t.Errorf("got message %q, want %q", received.Message, "added Apple")
		}
		if received.Time.IsZero() {
			t.Error("publish should stamp a zero event time")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestMemBus_FanOut(t *testing.T) {
	b := NewMemBus(MemBusConfig{})
	defer b.Close()

	sub1 := b.Subscribe(OpLogin)
	defer sub1.Close()
	sub2 := b.Subscribe(OpLogin)
	defer sub2.Close()
	sub3 := b.Subscribe(OpLogin)
	defer sub3.Close()

	b.Publish(Event{Op: OpLogin, Stage: StageStarted})

	for i, sub := range []Subscription{sub1, sub2, sub3} {
		select {
		case e := <-sub.Events():
			if e.Op != OpLogin {
				t.Errorf("sub%d: got op %v, want %v", i, e.Op, OpLogin)
			}
		case <-time.After(time.Second):
			t.Fatalf("sub%d: timed out", i)
		}
	}
}

func TestMemBus_OpIsolation(t *testing.T) {
	b := NewMemBus(MemBusConfig{})
	defer b.Close()

	cartSub := b.Subscribe(OpCartAdd)
	defer cartSub.Close()
	authSub := b.Subscribe(OpLogin)
	defer authSub.Close()

	b.Publish(Event{Op: OpCartAdd, Stage: StageStarted})

	select {
	case <-cartSub.Events():
		// expected
	case <-time.After(time.Second):
		t.Fatal("cart subscriber should receive cart events")
	}

	select {
	case <-authSub.Events():
		t.Fatal("auth subscriber should NOT receive cart events")
	case <-time.After(50 * time.Millisecond):
		// expected
	}
}

func TestMemBus_SubscribeAll(t *testing.T) {
	b := NewMemBus(MemBusConfig{})
	defer b.Close()

	global := b.SubscribeAll()
	defer global.Close()

	b.Publish(Event{Op: OpLogin, Stage: StageStarted})
	b.Publish(Event{Op: OpCartAdd, Stage: StageStarted})
	b.Publish(Event{Op: OpCartClear, Stage: StageFailed})

	for i := 0; i < 3; i++ {
		select {
		case <-global.Events():
		case <-time.After(time.Second):
			t.Fatalf("global subscriber missed event %d", i)
		}
	}
}

func TestMemBus_ClosedSubscription(t *testing.T) {
	b := NewMemBus(MemBusConfig{})
	defer b.Close()

	sub := b.Subscribe(OpLogout)
	sub.Close()

	// Publishing after subscription close should not panic.
	b.Publish(Event{Op: OpLogout, Stage: StageSucceeded})
}

func TestMemBus_DoubleCloseSubscription(t *testing.T) {
	b := NewMemBus(MemBusConfig{})
	defer b.Close()

	sub := b.Subscribe(OpLogout)

	if err := sub.Close(); err != nil {
		t.Fatalf("first Close returned error: %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Fatalf("second Close returned error: %v", err)
	}
}

func TestMemBus_ClosedBusPublish(t *testing.T) {
	b := NewMemBus(MemBusConfig{})

	sub := b.Subscribe(OpLogin)
	b.Close()

	// Publishing to a closed bus should not panic.
	b.Publish(Event{Op: OpLogin, Stage: StageStarted})

	select {
	case _, ok := <-sub.Events():
		if ok {
			t.Fatal("expected channel to be closed after bus Close")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for closed channel")
	}
}

func TestMemBus_BufferOverflow(t *testing.T) {
	b := NewMemBus(MemBusConfig{SubscriberBufferSize: 2})
	defer b.Close()

	sub := b.Subscribe(OpCartAdd)
	defer sub.Close()

	// Publish 5 events into a buffer of size 2; extras are dropped rather
	// than blocking the publisher.
	for i := 0; i < 5; i++ {
		b.Publish(Event{Op: OpCartAdd, Stage: StageStarted})
	}

	count := 0
	for {
		select {
		case <-sub.Events():
			count++
		case <-time.After(50 * time.Millisecond):
			goto done
		}
	}
done:
	if count != 2 {
		t.Errorf("received %d events, want 2 (buffer size)", count)
	}
}

func TestMemBus_ConcurrentPublish(t *testing.T) {
	b := NewMemBus(MemBusConfig{SubscriberBufferSize: 1000})
	defer b.Close()

	sub := b.Subscribe(OpCartUpdate)
	defer sub.Close()

	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Publish(Event{Op: OpCartUpdate, Stage: StageStarted})
		}()
	}
	wg.Wait()

	count := 0
	for {
		select {
		case <-sub.Events():
			count++
		case <-time.After(100 * time.Millisecond):
			goto done
		}
	}
done:
	if count != n {
		t.Errorf("received %d events, want %d", count, n)
	}
}
