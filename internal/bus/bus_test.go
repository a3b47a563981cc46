package bus

import (
	"context"
	"testing"
	"time"
)

func TestSendReceiveOrder(t *testing.T) {
	b := New[int](4)
	b.Send(1)
	b.Send(2)
	b.Send(3)

	ctx := context.Background()
	for _, want := range []int{1, 2, 3} {
		got, lagged, ok := b.Receive(ctx)
		if !ok || got != want || lagged != 0 {
			t.Fatalf("Receive() = (%d, %d, %v), want (%d, 0, true)", got, lagged, ok, want)
		}
	}
}

func TestSendDropsOldestAndReportsLag(t *testing.T) {
	b := New[int](2)
	b.Send(1)
	b.Send(2)
	b.Send(3) // drops 1

	ctx := context.Background()
	got, lagged, ok := b.Receive(ctx)
	if !ok || got != 2 || lagged != 1 {
		t.Fatalf("Receive() = (%d, %d, %v), want (2, 1, true)", got, lagged, ok)
	}

	got, lagged, ok = b.Receive(ctx)
	if !ok || got != 3 || lagged != 0 {
		t.Fatalf("Receive() = (%d, %d, %v), want (3, 0, true)", got, lagged, ok)
	}
}

func TestReceiveBlocksUntilSend(t *testing.T) {
	b := New[string](1)
	done := make(chan string, 1)

	go func() {
		v, _, ok := b.Receive(context.Background())
		if ok {
			done <- v
		}
	}()

	time.Sleep(20 * time.Millisecond)
	b.Send("hello")

	select {
	case v := <-done:
		if v != "hello" {
			t.Fatalf("got %q, want hello", v)
		}
	case <-time.After(time.Second):
		t.Fatal("Receive never unblocked after Send")
	}
}

func TestReceiveRespectsContextCancellation(t *testing.T) {
	b := New[int](1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, ok := b.Receive(ctx)
	if ok {
		t.Fatal("Receive() on a cancelled context should return ok=false")
	}
}

func TestCloseUnblocksReceive(t *testing.T) {
	b := New[int](1)
	errCh := make(chan bool, 1)

	go func() {
		_, _, ok := b.Receive(context.Background())
		errCh <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	b.Close()

	select {
	case ok := <-errCh:
		if ok {
			t.Fatal("Receive() after Close() should return ok=false")
		}
	case <-time.After(time.Second):
		t.Fatal("Receive never unblocked after Close")
	}
}

func TestSendAfterCloseIsNoop(t *testing.T) {
	b := New[int](2)
	b.Close()
	b.Send(1)

	_, _, ok := b.Receive(context.Background())
	if ok {
		t.Fatal("Receive() should report no items after Close")
	}
}
