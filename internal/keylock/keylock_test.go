package keylock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLock_SerializesSameKey(t *testing.T) {
	tbl := New()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := tbl.Lock("patient/a")
			defer unlock()

			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 0, tbl.Len(), "entries must be released")
}

func TestLock_DifferentKeysDoNotBlock(t *testing.T) {
	tbl := New()
	unlockA := tbl.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := tbl.Lock("b")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on another key must not wait")
	}
}

func TestLockAll_DedupAndOrder(t *testing.T) {
	tbl := New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			unlock := tbl.LockAll("x", "y", "x")
			unlock()
		}()
		go func() {
			defer wg.Done()
			unlock := tbl.LockAll("y", "x")
			unlock()
		}()
	}

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("LockAll deadlocked")
	}
	assert.Equal(t, 0, tbl.Len())
}

func TestZeroValueTable(t *testing.T) {
	var tbl Table
	unlock := tbl.Lock("k")
	assert.Equal(t, 1, tbl.Len())
	unlock()
	assert.Equal(t, 0, tbl.Len())
}
