package dirtree

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/assert"

	"github.com/nicolagi/naming/internal/nerr"
)

func TestAcquireLocalMultipleReaders(t *testing.T) {
	n := NewRoot()
	for i := 0; i < 3; i++ {
		if _, err := n.AcquireLocal(context.Background(), Shared); err != nil {
			t.Fatal(err)
		}
	}
	assert.Equal(t, 3, n.state.sharedHolders)
}

func TestAcquireLocalExclusiveBlocksReaders(t *testing.T) {
	defer leaktest.Check(t)()

	n := NewRoot()
	if _, err := n.AcquireLocal(context.Background(), Exclusive); err != nil {
		t.Fatal(err)
	}

	admitted := make(chan struct{})
	go func() {
		if _, err := n.AcquireLocal(context.Background(), Shared); err != nil {
			t.Error(err)
		}
		close(admitted)
	}()

	select {
	case <-admitted:
		t.Fatal("shared request admitted while exclusive held")
	case <-time.After(50 * time.Millisecond):
	}

	n.ReleaseLocal(Exclusive)
	select {
	case <-admitted:
	case <-time.After(time.Second):
		t.Fatal("shared request never admitted after exclusive release")
	}
}

func TestAcquireLocalWriterPreference(t *testing.T) {
	defer leaktest.Check(t)()

	n := NewRoot()
	if _, err := n.AcquireLocal(context.Background(), Shared); err != nil {
		t.Fatal(err)
	}

	writerAdmitted := make(chan struct{})
	go func() {
		if _, err := n.AcquireLocal(context.Background(), Exclusive); err != nil {
			t.Error(err)
		}
		close(writerAdmitted)
	}()

	// Give the writer time to enqueue before a later reader arrives.
	time.Sleep(20 * time.Millisecond)

	laterReaderAdmitted := make(chan struct{})
	go func() {
		if _, err := n.AcquireLocal(context.Background(), Shared); err != nil {
			t.Error(err)
		}
		close(laterReaderAdmitted)
	}()

	time.Sleep(20 * time.Millisecond)
	select {
	case <-writerAdmitted:
		t.Fatal("writer admitted while first reader still holds the lock")
	default:
	}
	select {
	case <-laterReaderAdmitted:
		t.Fatal("later reader admitted ahead of queued writer")
	default:
	}

	n.ReleaseLocal(Shared) // release the first reader

	select {
	case <-writerAdmitted:
	case <-time.After(time.Second):
		t.Fatal("writer never admitted")
	}
	select {
	case <-laterReaderAdmitted:
		t.Fatal("later reader admitted before writer released")
	default:
	}

	n.ReleaseLocal(Exclusive)
	select {
	case <-laterReaderAdmitted:
	case <-time.After(time.Second):
		t.Fatal("later reader never admitted after writer released")
	}
}

func TestAcquireLocalCancellation(t *testing.T) {
	defer leaktest.Check(t)()

	n := NewRoot()
	if _, err := n.AcquireLocal(context.Background(), Exclusive); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := n.AcquireLocal(ctx, Shared)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, nerr.ErrInterrupted)
	case <-time.After(time.Second):
		t.Fatal("cancellation never observed")
	}

	n.ReleaseLocal(Exclusive)
	assert.True(t, n.Idle())
}

func TestReadHitsIncrementOnSharedAcquire(t *testing.T) {
	n := NewRoot()
	hits, err := n.AcquireLocal(context.Background(), Shared)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, 1, hits)
	hits, err = n.AcquireLocal(context.Background(), Shared)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, 2, hits)
	n.ResetReadHits()
	hits, err = n.AcquireLocal(context.Background(), Shared)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, 1, hits)
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	defer leaktest.Check(t)()

	n := NewRoot()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			mode := Shared
			if i%5 == 0 {
				mode = Exclusive
			}
			if _, err := n.AcquireLocal(context.Background(), mode); err != nil {
				t.Error(err)
				return
			}
			time.Sleep(time.Millisecond)
			n.ReleaseLocal(mode)
		}()
	}
	wg.Wait()
	assert.True(t, n.Idle())
}
