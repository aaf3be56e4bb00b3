package asyncio

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func streamPair(t *testing.T, l *EventLoop) (*Stream, *Stream) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	a, err := newStream(l, fds[0])
	require.NoError(t, err)
	b, err := newStream(l, fds[1])
	require.NoError(t, err)
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	return a, b
}

func TestStreamReadWaitsForData(t *testing.T) {
	l := newTestLoop(t)
	a, b := streamPair(t, l)
	root := Spawn(l, func(co *Coro) (string, error) {
		reader := NewTask(co.Loop(), func(co *Coro) ([]byte, error) {
			return b.Read(co, 64)
		})
		ScheduleTask(co.Loop(), reader)
		Sleep(co, 20*time.Millisecond)
		if err := a.Write(co, []byte("ping")); err != nil {
			return "", err
		}
		data, err := Await(co, reader)
		return string(data), err
	})
	v, err := RunUntilComplete(l, root)
	require.NoError(t, err)
	assert.Equal(t, "ping", v)
}

func TestStreamEOF(t *testing.T) {
	l := newTestLoop(t)
	a, b := streamPair(t, l)
	root := Spawn(l, func(co *Coro) (Void, error) {
		require.NoError(t, a.Close())
		_, err := b.Read(co, 16)
		assert.ErrorIs(t, err, io.EOF)
		return Void{}, nil
	})
	_, err := RunUntilComplete(l, root)
	require.NoError(t, err)
}

func TestStreamShutdownSignalsEOF(t *testing.T) {
	l := newTestLoop(t)
	a, b := streamPair(t, l)
	root := Spawn(l, func(co *Coro) (Void, error) {
		if err := a.Write(co, []byte("bye")); err != nil {
			return Void{}, err
		}
		require.NoError(t, a.Shutdown())
		require.NoError(t, a.Shutdown())
		assert.ErrorIs(t, a.Write(co, []byte("late")), ErrStreamClosed)
		all, err := b.ReadUntilEOF(co)
		if err != nil {
			return Void{}, err
		}
		assert.Equal(t, []byte("bye"), all)
		return Void{}, nil
	})
	_, err := RunUntilComplete(l, root)
	require.NoError(t, err)
}

func TestShutdownStopsOwnReads(t *testing.T) {
	l := newTestLoop(t)
	a, _ := streamPair(t, l)
	root := Spawn(l, func(co *Coro) (Void, error) {
		require.NoError(t, a.Shutdown())
		// Both directions are down, so the stream's own reads observe EOF
		// rather than suspending forever.
		_, err := a.Read(co, 16)
		assert.ErrorIs(t, err, io.EOF)
		assert.ErrorIs(t, a.Write(co, []byte("x")), ErrStreamClosed)
		return Void{}, nil
	})
	_, err := RunUntilComplete(l, root)
	require.NoError(t, err)
}

func TestStreamSockaddrFamily(t *testing.T) {
	l := newTestLoop(t)
	a, _ := streamPair(t, l)
	_, err := a.Sockaddr(false)
	assert.ErrorIs(t, err, ErrAddressFamily)
	_, err = a.Sockaddr(true)
	assert.ErrorIs(t, err, ErrAddressFamily)
	_, err = a.Port(false)
	assert.ErrorIs(t, err, ErrAddressFamily)
	_, err = a.Port(true)
	assert.ErrorIs(t, err, ErrAddressFamily)
}

func TestLargeTransfer(t *testing.T) {
	l := newTestLoop(t)
	a, b := streamPair(t, l)
	payload := make([]byte, 1<<20)
	for i := range payload {
		payload[i] = byte(i % 251)
	}
	root := Spawn(l, func(co *Coro) (Void, error) {
		reader := NewTask(co.Loop(), func(co *Coro) ([]byte, error) {
			return b.ReadUntilEOF(co)
		})
		ScheduleTask(co.Loop(), reader)
		if err := a.Write(co, payload); err != nil {
			return Void{}, err
		}
		require.NoError(t, a.Shutdown())
		got, err := Await(co, reader)
		if err != nil {
			return Void{}, err
		}
		assert.True(t, bytes.Equal(payload, got))
		return Void{}, nil
	})
	_, err := RunUntilComplete(l, root)
	require.NoError(t, err)
}

func TestSecondReaderConflicts(t *testing.T) {
	l := newTestLoop(t)
	a, b := streamPair(t, l)
	root := Spawn(l, func(co *Coro) (Void, error) {
		first := NewTask(co.Loop(), func(co *Coro) ([]byte, error) {
			return b.Read(co, 16)
		})
		ScheduleTask(co.Loop(), first)
		Sleep(co, 10*time.Millisecond)
		second := NewTask(co.Loop(), func(co *Coro) ([]byte, error) {
			return b.Read(co, 16)
		})
		_, err := Await(co, second)
		assert.ErrorIs(t, err, ErrEventConflict)
		if err := a.Write(co, []byte("x")); err != nil {
			return Void{}, err
		}
		data, err := Await(co, first)
		if err != nil {
			return Void{}, err
		}
		assert.Equal(t, []byte("x"), data)
		return Void{}, nil
	})
	_, err := RunUntilComplete(l, root)
	require.NoError(t, err)
}

func TestReadZeroAndNegative(t *testing.T) {
	l := newTestLoop(t)
	a, b := streamPair(t, l)
	root := Spawn(l, func(co *Coro) (Void, error) {
		data, err := b.Read(co, 0)
		require.NoError(t, err)
		assert.Empty(t, data)

		if err := a.Write(co, []byte("tail")); err != nil {
			return Void{}, err
		}
		require.NoError(t, a.Shutdown())
		data, err = b.Read(co, -1)
		require.NoError(t, err)
		assert.Equal(t, []byte("tail"), data)

		// Peer already closed its write side, so another drain is empty.
		data, err = b.Read(co, -1)
		require.NoError(t, err)
		assert.Empty(t, data)
		return Void{}, nil
	})
	_, err := RunUntilComplete(l, root)
	require.NoError(t, err)
}

func TestReadFull(t *testing.T) {
	l := newTestLoop(t)
	a, b := streamPair(t, l)
	root := Spawn(l, func(co *Coro) (Void, error) {
		if err := a.Write(co, []byte("abcdef")); err != nil {
			return Void{}, err
		}
		data, err := b.ReadFull(co, 4)
		require.NoError(t, err)
		assert.Equal(t, []byte("abcd"), data)

		require.NoError(t, a.Shutdown())
		data, err = b.ReadFull(co, 4)
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
		assert.Equal(t, []byte("ef"), data)

		_, err = b.ReadFull(co, 4)
		assert.ErrorIs(t, err, io.EOF)
		return Void{}, nil
	})
	_, err := RunUntilComplete(l, root)
	require.NoError(t, err)
}

func TestStreamClosedOperations(t *testing.T) {
	l := newTestLoop(t)
	a, _ := streamPair(t, l)
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	assert.Nil(t, a.LocalAddr())
	assert.Nil(t, a.RemoteAddr())
	assert.ErrorIs(t, a.Shutdown(), ErrStreamClosed)
	root := Spawn(l, func(co *Coro) (Void, error) {
		_, err := a.Read(co, 16)
		assert.ErrorIs(t, err, ErrStreamClosed)
		assert.ErrorIs(t, a.Write(co, []byte("x")), ErrStreamClosed)
		return Void{}, nil
	})
	_, err := RunUntilComplete(l, root)
	require.NoError(t, err)
}

func TestCancelSuspendedReaderReleasesFD(t *testing.T) {
	l := newTestLoop(t)
	a, b := streamPair(t, l)
	root := Spawn(l, func(co *Coro) (Void, error) {
		first := NewTask(co.Loop(), func(co *Coro) ([]byte, error) {
			return b.Read(co, 16)
		})
		ScheduleTask(co.Loop(), first)
		Sleep(co, 10*time.Millisecond)
		first.Cancel()
		// The cancelled reader's interest is gone, so a new reader may
		// register.
		second := NewTask(co.Loop(), func(co *Coro) ([]byte, error) {
			return b.Read(co, 16)
		})
		ScheduleTask(co.Loop(), second)
		Sleep(co, 10*time.Millisecond)
		if err := a.Write(co, []byte("y")); err != nil {
			return Void{}, err
		}
		data, err := Await(co, second)
		if err != nil {
			return Void{}, err
		}
		assert.Equal(t, []byte("y"), data)
		return Void{}, nil
	})
	_, err := RunUntilComplete(l, root)
	require.NoError(t, err)
}
