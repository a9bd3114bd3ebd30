package taskqueue

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

type args struct {
	N int `json:"n"`
}

func doubler(ctx context.Context, payload json.RawMessage) any {
	var a args
	if err := json.Unmarshal(payload, &a); err != nil {
		return -1
	}
	return a.N * 2
}

func TestRunNowAndInlineFallback(t *testing.T) {
	q := New(1, quietLogger())
	q.Register("double", doubler)

	got, err := q.RunNow(context.Background(), "double", args{N: 21})
	require.NoError(t, err)
	assert.Equal(t, 42, got)

	var results []any
	q.OnResult(func(name string, result any) {
		assert.Equal(t, "double", name)
		results = append(results, result)
	})
	require.False(t, q.Started())
	require.NoError(t, q.Enqueue(context.Background(), "double", args{N: 2}))
	assert.Equal(t, []any{4}, results)

	_, err = q.RunNow(context.Background(), "missing", nil)
	assert.Error(t, err)
	assert.Error(t, q.Enqueue(context.Background(), "missing", nil))
}

func TestEnqueueThroughBus(t *testing.T) {
	q := New(2, quietLogger())
	q.Register("double", doubler)

	var (
		mu   sync.Mutex
		sum  int
		done = make(chan struct{}, 3)
	)
	q.OnResult(func(_ string, result any) {
		mu.Lock()
		sum += result.(int)
		mu.Unlock()
		done <- struct{}{}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, q.Start(ctx))
	require.True(t, q.Started())

	for i := 1; i <= 3; i++ {
		require.NoError(t, q.Enqueue(ctx, "double", args{N: i}))
	}
	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for queued tasks")
		}
	}

	mu.Lock()
	assert.Equal(t, 12, sum)
	mu.Unlock()
	require.NoError(t, q.Close())
	assert.False(t, q.Started())
}

func TestLocalLocker(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	unlock, ok, err := l.TryLock(ctx, "cleanup", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.TryLock(ctx, "cleanup", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, _ = l.TryLock(ctx, "health-check", time.Minute)
	assert.True(t, ok)

	unlock()
	_, ok, _ = l.TryLock(ctx, "cleanup", time.Minute)
	assert.True(t, ok)
}

func TestRedisLockerReportsConnectionErrors(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	defer client.Close()

	_, ok, err := NewRedisLocker(client, "").TryLock(context.Background(), "poll-all", time.Minute)
	assert.Error(t, err)
	assert.False(t, ok)
}
