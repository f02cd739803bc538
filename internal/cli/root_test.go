package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/stepflow/model/instance"
	"github.com/viant/stepflow/story"
)

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "stepflow", cmd.Use)
	for _, name := range []string{"serve", "invoke", "status", "office", "subscribe", "unsubscribe"} {
		t.Run(name, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, subCmd.Name())
		})
	}
}

func TestFlags(t *testing.T) {
	cmd := NewRootCommand()
	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)

	serveCmd, _, err := cmd.Find([]string{"serve"})
	require.NoError(t, err)
	assert.Equal(t, ":8080", serveCmd.Flags().Lookup("addr").DefValue)
	assert.Equal(t, "1h0m0s", serveCmd.Flags().Lookup("interval").DefValue)

	invokeCmd, _, err := cmd.Find([]string{"invoke"})
	require.NoError(t, err)
	assert.Equal(t, "false", invokeCmd.Flags().Lookup("dev").DefValue)
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, "--format", "xml", "status", "poll/1")
	assert.ErrorContains(t, err, "invalid format")
}

func execute(t *testing.T, args ...string) (string, error) {
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func decodeStatuses(t *testing.T, output string) []instance.Status {
	var ret []instance.Status
	decoder := json.NewDecoder(bytes.NewReader([]byte(output)))
	for decoder.More() {
		var status instance.Status
		require.NoError(t, decoder.Decode(&status))
		ret = append(ret, status)
	}
	return ret
}

func TestCommands_EndToEnd(t *testing.T) {
	var hooks int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/box/weatherstory":
			fmt.Fprint(w, `<div class="c-tabs-nav__link"><span>Fog</span></div>
<div class="c-tab"><div><div><div><img src="/images/fog.png"></div><div>Dense fog.</div></div></div></div>`)
		case "/images/fog.png":
			w.Header().Set("Last-Modified", "Sat, 09 Mar 2024 14:05:00 GMT")
			fmt.Fprint(w, "png")
		case "/hook":
			atomic.AddInt32(&hooks, 1)
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	dir := t.TempDir()
	config := filepath.Join(dir, "stepflow.yaml")
	require.NoError(t, os.WriteFile(config, []byte(fmt.Sprintf(`
store:
  kind: fs
  url: %s
  database: %s
blob:
  url: %s
story:
  pageBaseURL: %s
`, filepath.Join(dir, "store"), filepath.Join(dir, "stepflow.db"), filepath.Join(dir, "blob"), server.URL)), 0o644))

	_, err := execute(t, "-c", config, "office", "1", "BOX", "Boston/Norton, MA")
	require.NoError(t, err)

	output, err := execute(t, "-c", config, "--format", "json", "subscribe", "box", "general", server.URL+"/hook")
	require.NoError(t, err)
	statuses := decodeStatuses(t, output)
	require.Len(t, statuses, 1)
	assert.Equal(t, instance.StateCompleted, statuses[0].State)

	output, err = execute(t, "-c", config, "--format", "json", "status", statuses[0].ID)
	require.NoError(t, err)
	assert.Equal(t, statuses, decodeStatuses(t, output))

	output, err = execute(t, "-c", config, "--format", "json", "invoke")
	require.NoError(t, err)
	statuses = decodeStatuses(t, output)
	require.Len(t, statuses, 2)
	assert.Equal(t, story.KindPoll, statuses[0].Kind)
	assert.Equal(t, story.KindOffice, statuses[1].Kind)
	assert.Equal(t, story.StepSend, statuses[1].LastStep)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hooks))

	// unchanged story: the office instance stops at the gate
	output, err = execute(t, "-c", config, "--format", "json", "invoke")
	require.NoError(t, err)
	statuses = decodeStatuses(t, output)
	require.Len(t, statuses, 2)
	assert.Equal(t, story.StepGate, statuses[1].LastStep)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hooks))

	output, err = execute(t, "-c", config, "unsubscribe", "general")
	require.NoError(t, err)
	assert.Contains(t, output, "state:    completed")
}
