package keylock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLock_Release(t *testing.T) {
	m := New()
	unlockA := m.Lock("a")
	unlockB := m.Lock("b")
	assert.Equal(t, 2, m.Len())
	unlockA()
	unlockB()
	assert.Equal(t, 0, m.Len())
}

func TestLock_SameKeyWaits(t *testing.T) {
	m := New()
	unlock := m.Lock("a")

	acquired := make(chan struct{})
	go func() {
		release := m.Lock("a")
		close(acquired)
		release()
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired a held key")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	<-acquired
	assert.Eventually(t, func() bool { return m.Len() == 0 }, time.Second, time.Millisecond)
}

func TestLock_OtherKeyDoesNotWait(t *testing.T) {
	m := New()
	unlock := m.Lock("a")
	defer unlock()

	done := make(chan struct{})
	go func() {
		m.Lock("b")()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on b waited for a")
	}
}
