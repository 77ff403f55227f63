package buffer

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"
)

func TestBuffer_FIFO(t *testing.T) {
	b := N[int](4)
	for i := 1; i <= 3; i++ {
		if err := b.Add(i); err != nil {
			t.Fatalf("Add(%d) error: %v", i, err)
		}
	}
	for want := 1; want <= 3; want++ {
		got, err := b.Next()
		if err != nil {
			t.Fatalf("Next error: %v", err)
		}
		if got != want {
			t.Errorf("Next = %d; want %d", got, want)
		}
	}
}

func TestBuffer_NextBlocksUntilAdd(t *testing.T) {
	b := N[string](1)
	done := make(chan string, 1)
	go func() {
		v, err := b.Next()
		if err != nil {
			done <- "err:" + err.Error()
			return
		}
		done <- v
	}()

	select {
	case v := <-done:
		t.Fatalf("Next returned %q before Add", v)
	case <-time.After(20 * time.Millisecond):
	}

	if err := b.Add("hello"); err != nil {
		t.Fatalf("Add error: %v", err)
	}
	select {
	case v := <-done:
		if v != "hello" {
			t.Errorf("Next = %q; want hello", v)
		}
	case <-time.After(time.Second):
		t.Fatal("Next did not return after Add")
	}
}

func TestBuffer_CloseWriteDrains(t *testing.T) {
	b := N[int](4)
	b.Add(1)
	b.Add(2)
	if err := b.CloseWrite(); err != nil {
		t.Fatalf("CloseWrite error: %v", err)
	}
	if err := b.Add(3); err == nil {
		t.Error("Add after CloseWrite succeeded")
	}

	if v, err := b.Next(); err != nil || v != 1 {
		t.Fatalf("Next = %d, %v; want 1, nil", v, err)
	}
	if v, err := b.Next(); err != nil || v != 2 {
		t.Fatalf("Next = %d, %v; want 2, nil", v, err)
	}
	if _, err := b.Next(); err != ErrIteratorDone {
		t.Errorf("Next after drain = %v; want ErrIteratorDone", err)
	}
}

func TestBuffer_CloseWithErrorUnblocks(t *testing.T) {
	b := N[int](1)
	sentinel := errors.New("torn down")

	var wg sync.WaitGroup
	wg.Add(1)
	var nextErr error
	go func() {
		defer wg.Done()
		_, nextErr = b.Next()
	}()

	time.Sleep(10 * time.Millisecond)
	if err := b.CloseWithError(sentinel); err != nil {
		t.Fatalf("CloseWithError error: %v", err)
	}
	wg.Wait()

	if !errors.Is(nextErr, sentinel) {
		t.Errorf("blocked Next error = %v; want wrapped sentinel", nextErr)
	}
	if !errors.Is(b.Error(), sentinel) {
		t.Errorf("Error() = %v; want sentinel", b.Error())
	}
	// Double close is a no-op.
	if err := b.CloseWithError(io.ErrClosedPipe); err != nil {
		t.Errorf("second CloseWithError = %v; want nil", err)
	}
}

func TestBuffer_Reset(t *testing.T) {
	b := N[int](4)
	b.Add(1)
	b.Add(2)
	b.Reset()
	if b.Len() != 0 {
		t.Errorf("Len after Reset = %d; want 0", b.Len())
	}
	if err := b.Add(9); err != nil {
		t.Fatalf("Add after Reset error: %v", err)
	}
	if v, err := b.Next(); err != nil || v != 9 {
		t.Errorf("Next = %d, %v; want 9, nil", v, err)
	}
}
