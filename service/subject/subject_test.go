package subject_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/stepflow/model/fault"
	"github.com/viant/stepflow/service/dao/sqlite"
	"github.com/viant/stepflow/service/subject"
	"github.com/viant/stepflow/service/subject/fs"
	"github.com/viant/stepflow/service/subject/memory"
	sqlitestore "github.com/viant/stepflow/service/subject/sqlite"
)

func stores(t *testing.T) map[string]subject.Store {
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return map[string]subject.Store{
		"memory": memory.New(),
		"fs":     fs.New(t.TempDir()),
		"sqlite": sqlitestore.New(db),
	}
}

func TestDetector_CheckAndUpdate(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			detector := subject.New(store)
			testCases := []struct {
				description string
				fingerprint string
				force       bool
				changed     bool
			}{
				{description: "first observation", fingerprint: "A", changed: true},
				{description: "same fingerprint", fingerprint: "A", changed: false},
				{description: "forced", fingerprint: "A", force: true, changed: true},
				{description: "new fingerprint", fingerprint: "B", changed: true},
				{description: "new fingerprint again", fingerprint: "B", changed: false},
				{description: "empty fingerprint differs", fingerprint: "", changed: true},
			}
			for _, tc := range testCases {
				changed, err := detector.CheckAndUpdate(ctx, "subject1", tc.fingerprint, tc.force)
				require.NoError(t, err, tc.description)
				assert.Equal(t, tc.changed, changed, tc.description)
			}
			value, ok, err := detector.Get(ctx, "subject1")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "", value)

			_, ok, err = detector.Get(ctx, "other")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestDetector_UnchangedDoesNotWrite(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	detector := subject.New(store)
	_, err := detector.CheckAndUpdate(ctx, "box-modified", "2024-01-01T00:00:00Z", false)
	require.NoError(t, err)
	_, err = detector.CheckAndUpdate(ctx, "box-modified", "2024-01-01T00:00:00Z", false)
	require.NoError(t, err)
	assert.Equal(t, 1, store.Puts())

	_, err = detector.CheckAndUpdate(ctx, "", "x", false)
	assert.Equal(t, fault.KindInvalid, fault.KindOf(err))
}

type brokenStore struct{}

func (brokenStore) Get(ctx context.Context, key string) (string, bool, error) {
	return "", false, errors.New("unavailable")
}

func (brokenStore) Put(ctx context.Context, key, value string) error {
	return errors.New("unavailable")
}

func TestDetector_PersistenceFailure(t *testing.T) {
	_, err := subject.New(brokenStore{}).CheckAndUpdate(context.Background(), "box-imageurl", "x", true)
	assert.Equal(t, fault.KindPersistence, fault.KindOf(err))
	assert.True(t, fault.Retryable(err))
}

func TestAnyChanged(t *testing.T) {
	testCases := []struct {
		name    string
		results []bool
		expect  bool
	}{
		{name: "none", expect: false},
		{name: "all false", results: []bool{false, false, false}, expect: false},
		{name: "forced", results: []bool{true, false, false}, expect: true},
		{name: "modified", results: []bool{false, false, true}, expect: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expect, subject.AnyChanged(tc.results...))
		})
	}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "box-imageurl", subject.Key("BOX", "imageurl"))
}
