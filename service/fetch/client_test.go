package fetch

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/stepflow/model/fault"
)

func newServer(t *testing.T) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "stepflow/1.0 (ops@example.com)", r.Header.Get("User-Agent"))
		switch r.URL.Path {
		case "/story":
			_, _ = w.Write([]byte("<html>story</html>"))
		case "/image.png":
			w.Header().Set("Last-Modified", "Tue, 14 Nov 2023 22:13:20 GMT")
			_, _ = w.Write([]byte("png"))
		case "/undated.png":
			_, _ = w.Write([]byte("png"))
		case "/malformed.png":
			w.Header().Set("Last-Modified", "yesterday")
		case "/slow":
			time.Sleep(200 * time.Millisecond)
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestClient(t *testing.T) {
	server := newServer(t)
	client := New(WithHTTPClient(server.Client()), WithUserAgent("stepflow/1.0 (ops@example.com)"), WithTimeout(50*time.Millisecond))
	ctx := context.Background()

	t.Run("get", func(t *testing.T) {
		data, err := client.Get(ctx, server.URL+"/story")
		require.NoError(t, err)
		assert.Equal(t, "<html>story</html>", string(data))
	})

	t.Run("open", func(t *testing.T) {
		body, err := client.Open(ctx, server.URL+"/image.png")
		require.NoError(t, err)
		data, err := io.ReadAll(body)
		require.NoError(t, err)
		assert.NoError(t, body.Close())
		assert.Equal(t, "png", string(data))
	})

	t.Run("last modified", func(t *testing.T) {
		modified, err := client.LastModified(ctx, server.URL+"/image.png")
		require.NoError(t, err)
		assert.Equal(t, time.Unix(1700000000, 0).UTC(), modified)
	})

	failures := []struct {
		name string
		call func() error
		kind fault.Kind
	}{
		{name: "non-2xx get", call: func() error { _, err := client.Get(ctx, server.URL+"/missing"); return err }, kind: fault.KindFetch},
		{name: "non-2xx head", call: func() error { _, err := client.Head(ctx, server.URL+"/missing"); return err }, kind: fault.KindFetch},
		{name: "timeout", call: func() error { _, err := client.Get(ctx, server.URL+"/slow"); return err }, kind: fault.KindFetch},
		{name: "missing header", call: func() error { _, err := client.LastModified(ctx, server.URL+"/undated.png"); return err }, kind: fault.KindMissingField},
		{name: "malformed header", call: func() error { _, err := client.LastModified(ctx, server.URL+"/malformed.png"); return err }, kind: fault.KindMissingField},
		{name: "bad url", call: func() error { _, err := client.Get(ctx, "://nope"); return err }, kind: fault.KindInvalid},
	}
	for _, tc := range failures {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.call()
			require.Error(t, err)
			assert.Equal(t, tc.kind, fault.KindOf(err))
		})
	}
}

func TestClient_Get_MaxBody(t *testing.T) {
	server := newServer(t)
	testCases := []struct {
		name    string
		maxBody int64
		expect  string
		kind    fault.Kind
	}{
		{name: "exact fit", maxBody: 18, expect: "<html>story</html>"},
		{name: "oversized", maxBody: 4, kind: fault.KindFetch},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client := New(WithHTTPClient(server.Client()), WithUserAgent("stepflow/1.0 (ops@example.com)"), WithMaxBody(tc.maxBody))
			data, err := client.Get(context.Background(), server.URL+"/story")
			if tc.kind != "" {
				require.Error(t, err)
				assert.Equal(t, tc.kind, fault.KindOf(err))
				assert.Nil(t, data)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expect, string(data))
		})
	}
}
