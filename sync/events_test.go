package sync

import (
	"context"
	"errors"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestBusDeliversInSubscriptionOrder(t *testing.T) {
	bus := NewBus()
	var got []string
	bus.Subscribe(func(Event) { got = append(got, "first") })
	unsubscribe := bus.Subscribe(func(Event) { got = append(got, "second") })
	bus.Subscribe(func(Event) { got = append(got, "third") })

	bus.Publish(Event{Kind: EventSynced})
	assert.Equal(t, []string{"first", "second", "third"}, got)

	got = nil
	unsubscribe()
	unsubscribe()
	bus.Publish(Event{Kind: EventSynced})
	assert.Equal(t, []string{"first", "third"}, got)
}

func TestBusHandlerMaySubscribe(t *testing.T) {
	bus := NewBus()
	calls := 0
	bus.Subscribe(func(Event) {
		bus.Subscribe(func(Event) { calls++ })
	})

	bus.Publish(Event{})
	assert.Equal(t, 0, calls, "new subscribers see only later events")
	bus.Publish(Event{})
	assert.Equal(t, 1, calls)
}

func TestMirrorQueueFlushAndClose(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var mu gosync.Mutex
	var order []int
	var failures []string
	q := newMirrorQueue(time.Second, zap.NewNop(), func(job mirrorJob, err error) {
		mu.Lock()
		failures = append(failures, job.entityID)
		mu.Unlock()
	})

	release := make(chan struct{})
	for i := 0; i < 5; i++ {
		ok := q.enqueue(mirrorJob{op: "put", entityID: "e", run: func(context.Context) error {
			if i == 0 {
				<-release
			}
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			if i == 3 {
				return errors.New("boom")
			}
			return nil
		}})
		require.True(t, ok)
	}

	done := make(chan struct{})
	go func() {
		q.flush()
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("flush returned while a job was blocked")
	case <-time.After(20 * time.Millisecond):
	}
	close(release)
	<-done

	mu.Lock()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
	assert.Equal(t, []string{"e"}, failures)
	mu.Unlock()

	q.close()
	assert.False(t, q.enqueue(mirrorJob{op: "late", run: func(context.Context) error { return nil }}))
}

func TestMirrorQueueCloseDrains(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	q := newMirrorQueue(time.Second, zap.NewNop(), func(mirrorJob, error) {})
	ran := 0
	for i := 0; i < 10; i++ {
		q.enqueue(mirrorJob{run: func(context.Context) error {
			ran++
			return nil
		}})
	}
	q.close()
	assert.Equal(t, 10, ran)
}

func TestMirrorJobsHaveDeadline(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var got error
	q := newMirrorQueue(10*time.Millisecond, zap.NewNop(), func(_ mirrorJob, err error) { got = err })
	q.enqueue(mirrorJob{run: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})
	q.close()
	assert.ErrorIs(t, got, context.DeadlineExceeded)
}

func TestEngineCloseStopsWorker(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	e, _ := setupEngine(t, newMemCloud())
	_, err := e.HandleLogin(context.Background(), "u1")
	require.NoError(t, err)
	mustCreateMap(t, e, "Drained")
	e.Close()
}
