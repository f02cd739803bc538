package story

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/stepflow/internal/clock"
	"github.com/viant/stepflow/model"
	"github.com/viant/stepflow/model/fault"
	"github.com/viant/stepflow/model/instance"
	"github.com/viant/stepflow/service/blob"
	imemory "github.com/viant/stepflow/service/dao/instance/memory"
	"github.com/viant/stepflow/service/dao/sqlite"
	"github.com/viant/stepflow/service/fanout"
	"github.com/viant/stepflow/service/fetch"
	"github.com/viant/stepflow/service/notify"
	"github.com/viant/stepflow/service/runner"
	smemory "github.com/viant/stepflow/service/step/store/memory"
	"github.com/viant/stepflow/service/subject"
	submemory "github.com/viant/stepflow/service/subject/memory"
	"github.com/viant/stepflow/service/subscription"
)

func mustTime(t *testing.T, value string) time.Time {
	ts, err := time.Parse(time.RFC3339, value)
	require.NoError(t, err)
	return ts
}

type delivery struct {
	destination string
	message     *Message
}

type fixture struct {
	service       *Service
	runner        *runner.Service
	instances     *imemory.Service
	records       *smemory.Store
	state         *submemory.Store
	subscriptions *subscription.Store
	blobs         *blob.Store

	mux          sync.Mutex
	requests     map[string]int
	lastModified string
	deliveries   []delivery
	created      []instance.Parameters
}

type creator struct{ f *fixture }

func (c creator) Create(ctx context.Context, kind string, params instance.Parameters) (*instance.Instance, error) {
	c.f.mux.Lock()
	defer c.f.mux.Unlock()
	c.f.created = append(c.f.created, params)
	return instance.New(kind+"/"+params["office"].(string), kind, params), nil
}

func newFixture(t *testing.T) *fixture {
	page, err := os.ReadFile("testdata/weatherstory.html")
	require.NoError(t, err)

	f := &fixture{
		instances:    imemory.New(),
		records:      smemory.New(),
		state:        submemory.New(),
		requests:     map[string]int{},
		lastModified: "Sat, 09 Mar 2024 14:05:00 GMT",
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mux.Lock()
		f.requests[r.Method+" "+r.URL.Path]++
		lastModified := f.lastModified
		f.mux.Unlock()
		switch r.URL.Path {
		case "/box/weatherstory":
			_, _ = w.Write(page)
		case "/images/box/wxstory/StormTotal.png":
			if lastModified != "" {
				w.Header().Set("Last-Modified", lastModified)
			}
			_, _ = w.Write([]byte("png-bytes"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	sleep := clock.SleepFunc
	clock.SleepFunc = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	t.Cleanup(func() { clock.SleepFunc = sleep })

	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	f.subscriptions = subscription.New(db)
	ctx := context.Background()
	require.NoError(t, f.subscriptions.EnsureOffice(ctx, &subscription.Office{ID: 1, CallSign: "BOX", Name: "Boston/Norton, MA"}))
	require.NoError(t, f.subscriptions.Subscribe(ctx, &subscription.Subscription{OfficeID: 1, Channel: "general", Destination: "https://hooks.example.com/general"}))
	require.NoError(t, f.subscriptions.Subscribe(ctx, &subscription.Subscription{OfficeID: 1, Channel: "testing", Destination: "https://hooks.example.com/testing", Dev: true}))

	f.blobs = blob.New(t.TempDir(), "https://images.example.com/wxstory")
	config := DefaultConfig()
	config.PageBaseURL = server.URL
	f.service, err = New(
		WithConfig(config),
		WithFetchClient(fetch.New(fetch.WithUserAgent("stepflow-test"))),
		WithDetector(subject.New(f.state)),
		WithBlobStore(f.blobs),
		WithSubscriptions(f.subscriptions),
		WithDispatcher(fanout.New(creator{f: f})),
		WithNotifier(notify.New(notify.TransportFunc(func(ctx context.Context, destination string, payload interface{}) error {
			f.mux.Lock()
			defer f.mux.Unlock()
			f.deliveries = append(f.deliveries, delivery{destination: destination, message: payload.(*Message)})
			return nil
		}))),
	)
	require.NoError(t, err)

	f.runner, err = runner.New(runner.WithInstanceDAO(f.instances), runner.WithStepStore(f.records))
	require.NoError(t, err)
	return f
}

func (f *fixture) run(t *testing.T, workflow *model.Workflow, id string, params instance.Parameters) (*instance.Status, error) {
	require.NoError(t, workflow.ValidateParameters(params))
	require.NoError(t, f.instances.Save(context.Background(), instance.New(id, workflow.Kind, params)))
	return f.runner.Run(context.Background(), id, workflow.Steps)
}

func (f *fixture) count(key string) int {
	f.mux.Lock()
	defer f.mux.Unlock()
	return f.requests[key]
}

func (f *fixture) sent() []delivery {
	f.mux.Lock()
	defer f.mux.Unlock()
	return append([]delivery(nil), f.deliveries...)
}

func TestOfficeWorkflow_ChangeDetection(t *testing.T) {
	f := newFixture(t)
	workflow := f.service.OfficeWorkflow()
	params := instance.Parameters{"dev": false, "office": "box", "officeId": 1}

	status, err := f.run(t, workflow, "office/1", params)
	require.NoError(t, err)
	assert.Equal(t, instance.StateCompleted, status.State)
	assert.Equal(t, StepSend, status.LastStep)

	deliveries := f.sent()
	require.Len(t, deliveries, 2)
	destinations := []string{deliveries[0].destination, deliveries[1].destination}
	assert.ElementsMatch(t, []string{"https://hooks.example.com/general", "https://hooks.example.com/testing"}, destinations)
	message := deliveries[0].message
	assert.Equal(t, "BOX Weather Story", message.Username)
	require.Len(t, message.Embeds, 1)
	assert.Equal(t, "Soaking Rain Tonight", message.Embeds[0].Title)
	assert.Equal(t, "2024-03-09T14:05:00Z", message.Embeds[0].Timestamp)
	assert.Equal(t, "https://images.example.com/wxstory/box/1709993100/StormTotal.png", message.Embeds[0].Image.URL)

	cached, err := f.blobs.Get(context.Background(), "box/1709993100/StormTotal.png")
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(cached))

	stored, ok, err := f.state.Get(context.Background(), "box-message")
	require.NoError(t, err)
	require.True(t, ok)
	var storedMessage Message
	require.NoError(t, json.Unmarshal([]byte(stored), &storedMessage))
	assert.Equal(t, *message, storedMessage)
	assert.Equal(t, 1, f.count("GET /images/box/wxstory/StormTotal.png"))

	// same story again: gate stops before any cache or notify call
	status, err = f.run(t, workflow, "office/2", params)
	require.NoError(t, err)
	assert.Equal(t, instance.StateCompleted, status.State)
	assert.Equal(t, StepGate, status.LastStep)
	assert.Len(t, f.sent(), 2)
	assert.Equal(t, 1, f.count("GET /images/box/wxstory/StormTotal.png"))

	// a newer image is published again
	f.mux.Lock()
	f.lastModified = "Sat, 09 Mar 2024 20:00:00 GMT"
	f.mux.Unlock()
	status, err = f.run(t, workflow, "office/3", params)
	require.NoError(t, err)
	assert.Equal(t, StepSend, status.LastStep)
	assert.Len(t, f.sent(), 4)
	assert.Equal(t, 2, f.count("GET /images/box/wxstory/StormTotal.png"))
}

func TestOfficeWorkflow_Dev(t *testing.T) {
	f := newFixture(t)
	now := clock.NowFunc
	clock.NowFunc = func() time.Time { return mustTime(t, "2024-03-10T00:00:00Z") }
	t.Cleanup(func() { clock.NowFunc = now })
	workflow := f.service.OfficeWorkflow()

	_, err := f.run(t, workflow, "office/1", instance.Parameters{"dev": false, "office": "box", "officeId": 1})
	require.NoError(t, err)
	require.Len(t, f.sent(), 2)

	status, err := f.run(t, workflow, "office/2", instance.Parameters{"dev": true, "office": "box", "officeId": 1})
	require.NoError(t, err)
	assert.Equal(t, StepSend, status.LastStep)
	deliveries := f.sent()[2:]
	require.Len(t, deliveries, 1)
	assert.Equal(t, "https://hooks.example.com/testing", deliveries[0].destination)
	assert.Equal(t, "https://images.example.com/wxstory/box/1709993100/StormTotal.png?v=1710028800000", deliveries[0].message.Embeds[0].Image.URL)
}

func TestOfficeWorkflow_Failures(t *testing.T) {
	testCases := []struct {
		name         string
		lastModified string
		office       string
		lastStep     string
		kind         fault.Kind
		requests     map[string]int
	}{
		{
			name:     "missing last-modified is not retried",
			lastStep: StepLastModified,
			kind:     fault.KindMissingField,
			requests: map[string]int{"HEAD /images/box/wxstory/StormTotal.png": 1},
		},
		{
			name:         "malformed last-modified",
			lastModified: "yesterday",
			lastStep:     StepLastModified,
			kind:         fault.KindMissingField,
			requests:     map[string]int{"HEAD /images/box/wxstory/StormTotal.png": 1},
		},
		{
			name:         "missing page is retried",
			lastModified: "Sat, 09 Mar 2024 14:05:00 GMT",
			office:       "gyx",
			lastStep:     StepFetchPage,
			kind:         fault.KindFetch,
			requests:     map[string]int{"GET /gyx/weatherstory": 4},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.lastModified = tc.lastModified
			office := tc.office
			if office == "" {
				office = "box"
			}
			status, err := f.run(t, f.service.OfficeWorkflow(), "office/1", instance.Parameters{"office": office, "officeId": 1})
			require.Error(t, err)
			assert.Equal(t, fault.KindRun, fault.KindOf(err))
			assert.Equal(t, instance.StateFailed, status.State)
			assert.Equal(t, tc.lastStep, status.LastStep)
			assert.Equal(t, tc.kind, status.ErrorKind)
			for key, count := range tc.requests {
				assert.Equal(t, count, f.count(key), key)
			}
			assert.Empty(t, f.sent())
		})
	}
}

func TestOfficeWorkflow_Validator(t *testing.T) {
	workflow := (&Service{config: DefaultConfig()}).OfficeWorkflow()
	assert.Empty(t, workflow.Validate())
	assert.NoError(t, workflow.ValidateParameters(instance.Parameters{"office": "box", "officeId": 1}))
	assert.Error(t, workflow.ValidateParameters(instance.Parameters{"office": "boston", "officeId": 1}))
	assert.Error(t, workflow.ValidateParameters(instance.Parameters{"office": "box"}))
}

func TestPollWorkflow(t *testing.T) {
	f := newFixture(t)
	workflow := f.service.PollWorkflow()

	status, err := f.run(t, workflow, "poll/1", instance.Parameters{"dev": true})
	require.NoError(t, err)
	assert.Equal(t, StepStartOffices, status.LastStep)
	require.Len(t, f.created, 1)
	assert.Equal(t, "box", f.created[0]["office"])
	assert.Equal(t, 1, f.created[0]["officeId"])
	assert.Equal(t, true, f.created[0]["dev"])

	removed, err := f.subscriptions.Unsubscribe(context.Background(), subscription.ByOfficeChannel, "general", 1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)
	removed, err = f.subscriptions.Unsubscribe(context.Background(), subscription.ByChannel, "testing", 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	status, err = f.run(t, workflow, "poll/2", nil)
	require.NoError(t, err)
	assert.Equal(t, instance.StateCompleted, status.State)
	assert.Equal(t, StepCollectOffices, status.LastStep)
	assert.Len(t, f.created, 1)
}

func TestSubscriptionWorkflows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.subscriptions.EnsureOffice(ctx, &subscription.Office{ID: 2, CallSign: "OKX", Name: "New York, NY"}))

	status, err := f.run(t, f.service.SubscribeWorkflow(), "subscribe/1", instance.Parameters{
		"office": "okx", "guild": "g1", "channel": "general", "destination": "https://hooks.example.com/general",
	})
	require.NoError(t, err)
	assert.Equal(t, instance.StateCompleted, status.State)
	destinations, err := f.subscriptions.Destinations(ctx, 2, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://hooks.example.com/general"}, destinations)

	status, err = f.run(t, f.service.SubscribeWorkflow(), "subscribe/2", instance.Parameters{
		"office": "zzz", "channel": "general", "destination": "https://hooks.example.com/general",
	})
	require.Error(t, err)
	assert.Equal(t, fault.KindInvalid, status.ErrorKind)
	assert.Equal(t, StepResolveOffice, status.LastStep)

	testCases := []struct {
		name    string
		params  instance.Parameters
		scope   subscription.Scope
		removed int64
	}{
		{name: "one office", params: instance.Parameters{"channel": "general", "office": "OKX"}, scope: subscription.ByOfficeChannel, removed: 1},
		{name: "every office", params: instance.Parameters{"channel": "general"}, scope: subscription.ByChannel, removed: 1},
		{name: "nothing left", params: instance.Parameters{"channel": "general"}, scope: subscription.ByChannel},
	}
	for i, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			id := "unsubscribe/" + strings.Repeat("x", i+1)
			status, err := f.run(t, f.service.UnsubscribeWorkflow(), id, tc.params)
			require.NoError(t, err)
			assert.Equal(t, instance.StateCompleted, status.State)
			record, err := f.records.Get(ctx, id, StepUnsubscribe)
			require.NoError(t, err)
			require.NotNil(t, record)
			var result Unsubscribed
			require.NoError(t, json.Unmarshal(record.Result, &result))
			assert.Equal(t, Unsubscribed{Scope: tc.scope, Removed: tc.removed}, result)
		})
	}
	offices, err := f.subscriptions.ActiveOffices(ctx)
	require.NoError(t, err)
	assert.Len(t, offices, 1)
	assert.Equal(t, "box", offices[0].CallSign)
}

func TestNew(t *testing.T) {
	_, err := New()
	assert.Error(t, err)
}
