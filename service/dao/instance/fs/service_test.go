package fs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/viant/stepflow/model/instance"
	"github.com/viant/stepflow/service/dao"
)

func TestService(t *testing.T) {
	ctx := context.Background()
	srv, err := New(ctx, t.TempDir())
	if !assert.NoError(t, err) {
		return
	}

	anInstance := instance.New("office/7c9e", "office", instance.Parameters{"office": "box", "officeId": 7})
	assert.NoError(t, srv.Save(ctx, anInstance))

	anInstance.Start()
	anInstance.LastStep = "Fetch WX Story page content"
	assert.NoError(t, srv.Save(ctx, anInstance))

	loaded, err := srv.Load(ctx, "office/7c9e")
	assert.NoError(t, err)
	assert.Equal(t, instance.StateRunning, loaded.State)
	assert.Equal(t, "Fetch WX Story page content", loaded.LastStep)
	assert.Equal(t, "box", loaded.Parameters["office"])

	updated, err := srv.Update(ctx, "office/7c9e", func(i *instance.Instance) error {
		i.Cancelled = true
		return nil
	})
	assert.NoError(t, err)
	assert.True(t, updated.Cancelled)
	loaded, err = srv.Load(ctx, "office/7c9e")
	assert.NoError(t, err)
	assert.True(t, loaded.Cancelled)
	assert.Equal(t, "Fetch WX Story page content", loaded.LastStep)

	_, err = srv.Update(ctx, "office/missing", func(i *instance.Instance) error { return nil })
	assert.ErrorIs(t, err, dao.ErrNotFound)

	_, err = srv.Load(ctx, "office/missing")
	assert.ErrorIs(t, err, dao.ErrNotFound)

	list, err := srv.List(ctx, dao.NewParameter("State", string(instance.StateRunning)))
	assert.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = srv.List(ctx, dao.NewParameter("State", string(instance.StateCompleted)))
	assert.NoError(t, err)
	assert.Len(t, list, 0)

	assert.NoError(t, srv.Delete(ctx, "office/7c9e"))
	assert.ErrorIs(t, srv.Delete(ctx, "office/7c9e"), dao.ErrNotFound)
}
