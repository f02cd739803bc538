package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/viant/stepflow/model/instance"
	"github.com/viant/stepflow/service/messaging"
)

func TestQueue_PublishConsume(t *testing.T) {
	queue := NewQueue[instance.Ref](DefaultConfig())
	ctx := context.Background()

	ref := instance.Ref{ID: "office/1", Kind: "office"}
	assert.NoError(t, queue.Publish(ctx, &ref))
	ref.ID = "mutated"
	assert.Equal(t, 1, queue.Size())

	msg, err := queue.Consume(ctx)
	assert.NoError(t, err)
	assert.Equal(t, "office/1", msg.T().ID, "publish stores a copy")
	assert.Equal(t, 0, queue.Size())

	assert.NoError(t, msg.Ack())
	assert.ErrorIs(t, msg.Ack(), messaging.ErrSettled)
	assert.ErrorIs(t, msg.Nack(nil), messaging.ErrSettled)
}

func TestQueue_Redelivery(t *testing.T) {
	config := DefaultConfig()
	config.MaxRedeliveries = 1
	config.RedeliveryDelay = time.Millisecond
	queue := NewQueue[instance.Ref](config)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	assert.NoError(t, queue.Publish(ctx, &instance.Ref{ID: "poll/1", Kind: "poll"}))

	first, err := queue.Consume(ctx)
	assert.NoError(t, err)
	assert.NoError(t, first.Nack(errors.New("boom")))

	second, err := queue.Consume(ctx)
	assert.NoError(t, err)
	assert.Equal(t, "poll/1", second.T().ID)
	assert.Equal(t, 2, second.(*Message[instance.Ref]).Deliveries())
	assert.Equal(t, first.(*Message[instance.Ref]).ID(), second.(*Message[instance.Ref]).ID())
	assert.NoError(t, second.Nack(errors.New("boom")))

	assert.Eventually(t, func() bool { return len(queue.DeadLetters()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, 0, queue.Size())
}

func TestQueue_ConsumeHonoursContext(t *testing.T) {
	queue := NewQueue[instance.Ref](DefaultConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := queue.Consume(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueue_Close(t *testing.T) {
	queue := NewQueue[instance.Ref](DefaultConfig())
	var wg sync.WaitGroup
	wg.Add(1)
	var err error
	go func() {
		defer wg.Done()
		_, err = queue.Consume(context.Background())
	}()
	queue.Close()
	wg.Wait()
	assert.ErrorIs(t, err, context.Canceled)
	assert.Error(t, queue.Publish(context.Background(), &instance.Ref{ID: "x"}))
}

func TestQueue_ConcurrentConsumers(t *testing.T) {
	queue := NewQueue[instance.Ref](DefaultConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	const total = 50
	for i := 0; i < total; i++ {
		assert.NoError(t, queue.Publish(ctx, &instance.Ref{ID: "office/" + string(rune('a'+i%26)), Kind: "office"}))
	}

	var mu sync.Mutex
	seen := 0
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				mu.Lock()
				if seen == total {
					mu.Unlock()
					return
				}
				seen++
				mu.Unlock()
				msg, err := queue.Consume(ctx)
				if !assert.NoError(t, err) {
					return
				}
				assert.NoError(t, msg.Ack())
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, queue.Size())
}
