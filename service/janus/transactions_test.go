package janus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reply(token string) Outcome {
	return Outcome{Msg: &InboundMessage{Kind: MessageSuccess, Janus: "success", Transaction: token}}
}

func TestRegistryResolveOnce(t *testing.T) {
	r := NewRegistry(nil, nil)
	w, err := r.Register("T1", 1, time.Time{})
	require.NoError(t, err)

	assert.True(t, r.Resolve("T1", reply("T1")))
	assert.False(t, r.Resolve("T1", reply("T1")), "second resolve must be a no-op")
	assert.False(t, r.Cancel(w))
	assert.Zero(t, r.InvalidateBefore(10, ErrConnectionLost))

	out := r.Await(context.Background(), w)
	require.NoError(t, out.Err)
	assert.Equal(t, "T1", out.Msg.Transaction)
	assert.Zero(t, r.Len())
}

func TestRegistryUnknownTokenIgnored(t *testing.T) {
	r := NewRegistry(nil, nil)
	assert.False(t, r.Resolve("nope", reply("nope")))
}

func TestRegistryDuplicateToken(t *testing.T) {
	r := NewRegistry(nil, nil)
	_, err := r.Register("T1", 1, time.Time{})
	require.NoError(t, err)
	_, err = r.Register("T1", 1, time.Time{})
	assert.ErrorIs(t, err, ErrDuplicateToken)
	assert.Equal(t, 1, r.Len())
}

func TestRegistryInvalidateBeforeSparesCurrentEpoch(t *testing.T) {
	r := NewRegistry(nil, nil)
	old1, _ := r.Register("a", 1, time.Time{})
	old2, _ := r.Register("b", 2, time.Time{})
	cur, _ := r.Register("c", 3, time.Time{})

	n := r.InvalidateBefore(3, ErrConnectionLost.Wrap())
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, r.Len())

	for _, w := range []*Waiter{old1, old2} {
		out := r.Await(context.Background(), w)
		assert.ErrorIs(t, out.Err, ErrConnectionLost)
	}

	assert.True(t, r.Resolve("c", reply("c")))
	out := r.Await(context.Background(), cur)
	require.NoError(t, out.Err)
	assert.Equal(t, "c", out.Msg.Transaction)
}

func TestRegistryResolveAll(t *testing.T) {
	r := NewRegistry(nil, nil)
	var ws []*Waiter
	for i := 0; i < 5; i++ {
		w, err := r.Register(fmt.Sprintf("t%d", i), uint64(i), time.Time{})
		require.NoError(t, err)
		ws = append(ws, w)
	}
	assert.Equal(t, 5, r.ResolveAll(ErrShutdown.Wrap()))
	for _, w := range ws {
		assert.ErrorIs(t, r.Await(context.Background(), w).Err, ErrShutdown)
	}
}

func TestRegistryAwaitDeadline(t *testing.T) {
	mock := clock.NewMock()
	r := NewRegistry(mock, nil)
	w, err := r.Register("T1", 1, mock.Now().Add(10*time.Second))
	require.NoError(t, err)

	got := make(chan Outcome, 1)
	go func() { got <- r.Await(context.Background(), w) }()

	// the timer is created inside Await; keep advancing until it fires
	require.Eventually(t, func() bool {
		mock.Add(time.Second)
		select {
		case out := <-got:
			assert.ErrorIs(t, out.Err, ErrTimeout)
			return true
		default:
			return false
		}
	}, 2*time.Second, 5*time.Millisecond)

	assert.Zero(t, r.Len())
	assert.False(t, r.Resolve("T1", reply("T1")), "late reply is discarded")
}

func TestRegistryAwaitContext(t *testing.T) {
	r := NewRegistry(nil, nil)

	w, _ := r.Register("cancel", 1, time.Time{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := r.Await(ctx, w)
	assert.ErrorIs(t, out.Err, context.Canceled)
	assert.Zero(t, r.Len())

	w, _ = r.Register("deadline", 1, time.Time{})
	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	out = r.Await(ctx, w)
	assert.ErrorIs(t, out.Err, ErrTimeout)
}

func TestRegistryConcurrentResolversOneWinner(t *testing.T) {
	r := NewRegistry(nil, nil)
	const rounds = 200
	for i := 0; i < rounds; i++ {
		token := fmt.Sprintf("T%d", i)
		w, err := r.Register(token, 1, time.Time{})
		require.NoError(t, err)

		var wins atomic.Int32
		var wg sync.WaitGroup
		for j := 0; j < 4; j++ {
			wg.Add(1)
			go func(j int) {
				defer wg.Done()
				var ok bool
				switch j % 4 {
				case 0, 1:
					ok = r.Resolve(token, reply(token))
				case 2:
					ok = r.InvalidateBefore(2, ErrConnectionLost) == 1
				case 3:
					ok = r.ResolveAll(ErrShutdown) == 1
				}
				if ok {
					wins.Add(1)
				}
			}(j)
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
		out := r.Await(context.Background(), w)
		assert.True(t, out.Err != nil || out.Msg != nil)
	}
	assert.Zero(t, r.Len())
}

func TestRegistryOnChange(t *testing.T) {
	r := NewRegistry(nil, nil)
	var last atomic.Int64
	r.onChange = func(n int) { last.Store(int64(n)) }

	w, _ := r.Register("a", 1, time.Time{})
	_, _ = r.Register("b", 1, time.Time{})
	assert.EqualValues(t, 2, last.Load())
	r.Cancel(w)
	assert.EqualValues(t, 1, last.Load())
	r.Resolve("b", reply("b"))
	assert.EqualValues(t, 0, last.Load())
}
