package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/viant/stepflow/model/instance"
	"github.com/viant/stepflow/service/dao"
)

func TestService(t *testing.T) {
	ctx := context.Background()
	srv := New()

	assert.ErrorIs(t, srv.Save(ctx, nil), dao.ErrNilEntity)
	assert.ErrorIs(t, srv.Save(ctx, &instance.Instance{}), dao.ErrInvalidID)

	poll := instance.New("poll/1", "poll", instance.Parameters{"dev": false})
	office := instance.New("office/1", "office", instance.Parameters{"office": "box"})
	office.Start()
	assert.NoError(t, srv.Save(ctx, poll))
	assert.NoError(t, srv.Save(ctx, office))

	loaded, err := srv.Load(ctx, "office/1")
	assert.NoError(t, err)
	assert.Equal(t, instance.StateRunning, loaded.State)

	loaded.State = instance.StateFailed
	again, err := srv.Load(ctx, "office/1")
	assert.NoError(t, err)
	assert.Equal(t, instance.StateRunning, again.State, "loaded records are copies")

	_, err = srv.Load(ctx, "missing")
	assert.ErrorIs(t, err, dao.ErrNotFound)

	running, err := srv.List(ctx, dao.NewParameter("State", string(instance.StatePending), string(instance.StateRunning)))
	assert.NoError(t, err)
	assert.Len(t, running, 2)

	polls, err := srv.List(ctx, dao.NewParameter("Kind", "poll"))
	assert.NoError(t, err)
	assert.Len(t, polls, 1)

	assert.NoError(t, srv.Delete(ctx, "poll/1"))
	assert.ErrorIs(t, srv.Delete(ctx, "poll/1"), dao.ErrNotFound)
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()
	srv := New()
	office := instance.New("office/1", "office", instance.Parameters{"office": "box"})
	office.Start()
	assert.NoError(t, srv.Save(ctx, office))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := srv.Update(ctx, "office/1", func(i *instance.Instance) error {
			i.Cancelled = true
			return nil
		})
		assert.NoError(t, err)
	}()
	go func() {
		defer wg.Done()
		_, err := srv.Update(ctx, "office/1", func(i *instance.Instance) error {
			i.Progress("Fetch WX Story page content")
			return nil
		})
		assert.NoError(t, err)
	}()
	wg.Wait()

	loaded, err := srv.Load(ctx, "office/1")
	assert.NoError(t, err)
	assert.True(t, loaded.Cancelled)
	assert.Equal(t, "Fetch WX Story page content", loaded.LastStep)

	updated, err := srv.Update(ctx, "office/1", func(i *instance.Instance) error {
		i.Parameters["office"] = "okx"
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, "okx", updated.Parameters["office"])
	updated.Parameters["office"] = "mutated"
	loaded, _ = srv.Load(ctx, "office/1")
	assert.Equal(t, "okx", loaded.Parameters["office"], "parameters are deep copied")
}
