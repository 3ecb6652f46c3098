package sched

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSemaphorePostWait(t *testing.T) {
	sem := newSemaphore(4)

	assert.False(t, sem.tryWait())

	sem.post()
	assert.True(t, sem.tryWait())
	assert.False(t, sem.tryWait())

	sem.post()
	sem.post()
	assert.True(t, sem.tryWait())
	assert.True(t, sem.tryWait())
	assert.False(t, sem.tryWait())
}

func TestSemaphoreWaitBlocksUntilPost(t *testing.T) {
	sem := newSemaphore(1)

	done := make(chan struct{})
	go func() {
		sem.wait()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("wait returned without a post")
	case <-time.After(10 * time.Millisecond):
	}

	sem.post()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("wait did not return after post")
	}
}

func TestSemaphoreSaturates(t *testing.T) {
	sem := newSemaphore(1)
	sem.post()
	sem.post() // saturated, dropped

	require.True(t, sem.tryWait())
	assert.False(t, sem.tryWait())
}
