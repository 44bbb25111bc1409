package mocknet

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestDelivery(t *testing.T) {
	net := New(1, 2, 3)
	ctx := context.Background()

	require.NoError(t, net.Endpoint(2).Send(ctx, 1, "p1", []byte("from 2")))

	var g errgroup.Group
	var got map[uint8][]byte
	g.Go(func() error {
		var err error
		got, err = net.Endpoint(1).Collect(ctx, "p1", []uint8{2, 3})
		return err
	})

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, net.Endpoint(3).Send(ctx, 1, "p1", []byte("from 3")))
	require.NoError(t, g.Wait())

	assert.Equal(t, map[uint8][]byte{2: []byte("from 2"), 3: []byte("from 3")}, got)

	// collected messages are gone
	ctx2, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	partial, err := net.Endpoint(1).Collect(ctx2, "p1", []uint8{2})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, partial)
}

func TestSendCopies(t *testing.T) {
	net := New(1, 2)
	ctx := context.Background()

	msg := []byte("abc")
	require.NoError(t, net.Endpoint(1).Send(ctx, 2, "p", msg))
	msg[0] = 'x'

	got, err := net.Endpoint(2).Collect(ctx, "p", []uint8{1})
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got[1])
}

func TestSendErrors(t *testing.T) {
	net := New(1, 2)
	ctx := context.Background()
	ep := net.Endpoint(1)

	assert.Nil(t, net.Endpoint(9))
	assert.ErrorIs(t, ep.Send(ctx, 9, "p", nil), ErrUnknownParty)
	assert.ErrorIs(t, ep.Send(ctx, 1, "p", nil), ErrUnknownParty)

	require.NoError(t, ep.Send(ctx, 2, "p", []byte("a")))
	assert.ErrorIs(t, ep.Send(ctx, 2, "p", []byte("b")), ErrDuplicate)
	assert.NoError(t, ep.Send(ctx, 2, "q", []byte("b")))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, ep.Send(cancelled, 2, "r", nil), context.Canceled)
}

func TestPartialOnTimeout(t *testing.T) {
	net := New(1, 2, 3)
	ctx := context.Background()
	require.NoError(t, net.Endpoint(3).Send(ctx, 1, "p", []byte("x")))

	ctx2, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	got, err := net.Endpoint(1).Collect(ctx2, "p", []uint8{2, 3})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, map[uint8][]byte{3: []byte("x")}, got)
}

func TestInterceptor(t *testing.T) {
	net := New(1, 2)
	ctx := context.Background()

	net.Intercept(func(from, to uint8, phase string, msg []byte) []byte {
		if phase == "drop" {
			return nil
		}
		return append(msg, '!')
	})

	require.NoError(t, net.Endpoint(1).Send(ctx, 2, "drop", []byte("a")))
	require.NoError(t, net.Endpoint(1).Send(ctx, 2, "keep", []byte("a")))

	got, err := net.Endpoint(2).Collect(ctx, "keep", []uint8{1})
	require.NoError(t, err)
	assert.Equal(t, []byte("a!"), got[1])

	ctx2, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = net.Endpoint(2).Collect(ctx2, "drop", []uint8{1})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	net.Intercept(nil)
	require.NoError(t, net.Endpoint(1).Send(ctx, 2, "drop", []byte("a")))
	got, err = net.Endpoint(2).Collect(ctx, "drop", []uint8{1})
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), got[1])
}

func TestClose(t *testing.T) {
	net := New(1, 2)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := net.Endpoint(1).Collect(ctx, "p", []uint8{2})
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	net.Close()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("collect did not return after close")
	}

	assert.ErrorIs(t, net.Endpoint(2).Send(ctx, 1, "p", nil), ErrClosed)
}
