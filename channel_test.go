package lava

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestChanSendRecv(t *testing.T) {
	c := NewChan[int](1)
	c.Start()
	defer c.Join()

	c.Send(42)
	v, ok := c.Recv()
	assert.True(t, ok)
	assert.Equal(t, 42, v)
}

func TestChanStartIdempotent(t *testing.T) {
	c := NewChan[int](1)
	c.Start()
	c.Start()
	defer c.Join()

	c.Send(1)
	v, ok := c.Recv()
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestChanJoinIdempotent(t *testing.T) {
	c := NewChan[int](0)
	c.Start()
	c.Join()
	assert.NotPanics(t, func() { c.Join() })

	_, ok := c.Recv()
	assert.False(t, ok)
}

func TestChanProbe(t *testing.T) {
	c := NewChan[int](2)
	c.Start()
	defer c.Join()

	assert.False(t, c.Probe())
	c.Send(9)
	assert.True(t, c.Probe())
	_, _ = c.Recv()
	assert.False(t, c.Probe())
}

func TestChanRecvTimeoutReturnsToken(t *testing.T) {
	c := NewChan[int](1)
	c.Start()
	defer c.Join()

	c.Send(3)
	v, ok, timedOut := c.RecvTimeout(50 * time.Millisecond)
	assert.False(t, timedOut)
	assert.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestChanRecvTimeoutExpires(t *testing.T) {
	c := NewChan[int](1)
	c.Start()
	defer c.Join()

	_, _, timedOut := c.RecvTimeout(10 * time.Millisecond)
	assert.True(t, timedOut)
}

func TestChanBlocksUntilSend(t *testing.T) {
	c := NewChan[int](0)
	c.Start()
	defer c.Join()

	done := make(chan int, 1)
	go func() {
		v, _ := c.Recv()
		done <- v
	}()

	select {
	case <-done:
		t.Fatal("Recv returned before Send")
	case <-time.After(20 * time.Millisecond):
	}

	c.Send(5)
	select {
	case v := <-done:
		assert.Equal(t, 5, v)
	case <-time.After(time.Second):
		t.Fatal("Recv never unblocked")
	}
}
