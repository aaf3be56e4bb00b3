package asyncio

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallstackChain(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewEventLoop(WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	var frames []TaskInfo
	root := Spawn(l, func(co *Coro) (Void, error) {
		mid := NewTask(co.Loop(), func(co *Coro) (Void, error) {
			leaf := NewTask(co.Loop(), func(co *Coro) (Void, error) {
				frames = co.Callstack()
				co.DumpCallstack()
				return Void{}, nil
			})
			return Await(co, leaf)
		})
		return Await(co, mid)
	})
	_, err = RunUntilComplete(l, root)
	require.NoError(t, err)

	require.Len(t, frames, 3)
	assert.Contains(t, frames[0].Location, "callstack_test.go")
	assert.Contains(t, frames[1].Location, "callstack_test.go")
	assert.NotEqual(t, frames[0].ID, frames[1].ID)
	assert.Contains(t, buf.String(), "callstack")
}

func TestCallstackSingleFrame(t *testing.T) {
	l := newTestLoop(t)
	root := Spawn(l, func(co *Coro) (int, error) {
		return len(co.Callstack()), nil
	})
	n, err := RunUntilComplete(l, root)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
