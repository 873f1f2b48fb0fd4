package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interopae/travel-concierge/backend/internal/model/live"
)

func TestQueuePreservesPushOrder(t *testing.T) {
	q := NewQueue(16)
	ctx := context.Background()

	for i := 0; i < 16; i++ {
		require.NoError(t, q.SendContent(ctx, live.NewTextContent(live.RoleUser, fmt.Sprintf("msg-%d", i))))
	}

	for i := 0; i < 16; i++ {
		req := <-q.Requests()
		require.NotNil(t, req.Content)
		assert.Equal(t, fmt.Sprintf("msg-%d", i), req.Content.Text())
	}
}

func TestQueueSerializesConcurrentProducers(t *testing.T) {
	q := NewQueue(4)
	ctx := context.Background()

	const perProducer = 50
	var wg sync.WaitGroup
	for p := 0; p < 3; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				text := fmt.Sprintf("%d:%d", p, i)
				if err := q.SendContent(ctx, live.NewTextContent(live.RoleUser, text)); err != nil {
					t.Errorf("send %s: %v", text, err)
					return
				}
			}
		}(p)
	}

	last := map[int]int{0: -1, 1: -1, 2: -1}
	for n := 0; n < 3*perProducer; n++ {
		req := <-q.Requests()
		var p, i int
		_, err := fmt.Sscanf(req.Content.Text(), "%d:%d", &p, &i)
		require.NoError(t, err)
		assert.Greater(t, i, last[p], "producer %d reordered", p)
		last[p] = i
	}
	wg.Wait()
}

func TestQueueCloseIsIdempotent(t *testing.T) {
	q := NewQueue(1)
	assert.False(t, q.Closed())

	q.Close()
	q.Close()

	assert.True(t, q.Closed())
	select {
	case <-q.Done():
	default:
		t.Fatal("done channel not closed")
	}
}

func TestQueueRejectsSendAfterClose(t *testing.T) {
	q := NewQueue(1)
	q.Close()

	err := q.SendRealtime(context.Background(), &live.Blob{MIMEType: live.MIMEAudioPCM, Data: []byte{1}})
	assert.ErrorIs(t, err, ErrQueueClosed)
	assert.Zero(t, q.Len())
}

func TestQueueCloseUnblocksFullSend(t *testing.T) {
	q := NewQueue(1)
	ctx := context.Background()
	require.NoError(t, q.SendContent(ctx, live.NewTextContent(live.RoleUser, "first")))

	errCh := make(chan error, 1)
	go func() {
		errCh <- q.SendContent(ctx, live.NewTextContent(live.RoleUser, "second"))
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrQueueClosed)
	case <-time.After(time.Second):
		t.Fatal("blocked send was not released by Close")
	}
}

func TestQueueSendHonoursContext(t *testing.T) {
	q := NewQueue(1)
	require.NoError(t, q.SendContent(context.Background(), live.NewTextContent(live.RoleUser, "fill")))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := q.SendContent(ctx, live.NewTextContent(live.RoleUser, "overflow"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueueRejectsEmptyRequest(t *testing.T) {
	q := NewQueue(1)
	assert.ErrorIs(t, q.Send(context.Background(), live.Request{}), ErrEmptyRequest)
}
