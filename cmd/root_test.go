package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/studysync/internal/logging"
)

func quietLogger(t *testing.T) {
	t.Helper()
	prev := newLogger
	newLogger = func(logging.Options) (*zap.Logger, error) { return zap.NewNop(), nil }
	t.Cleanup(func() { newLogger = prev })
}

func remoteStub(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/current-user", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"user":{"id":"u1"}}`))
	})
	mux.HandleFunc("GET /api/progress/{user}", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"progress":[
			{"item_identifier":"loops","level":"beginner","goal_index":0,"completed":true},
			{"item_identifier":"loops","level":"beginner","goal_index":1,"completed":true}
		]}`))
	})
	mux.HandleFunc("GET /api/progress-stats", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"totalIdentifiers":2,"totalGoals":6}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeConfig(t *testing.T, baseURL string) string {
	t.Helper()
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(catalogPath, []byte(`
items:
  - identifier: loops
    levels:
      beginner: 3
  - identifier: arrays
    levels:
      beginner: 3
`), 0o600))
	cfgPath := filepath.Join(dir, "studysync.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(`
api:
  base_url: %s
catalog:
  path: %s
state:
  dir: %s
`, baseURL, catalogPath, filepath.Join(dir, "state"))), 0o600))
	return cfgPath
}

func TestStatsCommandPrintsJSON(t *testing.T) {
	quietLogger(t)
	srv := remoteStub(t)

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--config", writeConfig(t, srv.URL), "stats"})
	require.NoError(t, root.Execute())

	var got map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	require.EqualValues(t, 2, got["totalIdentifiers"])
	require.EqualValues(t, 1, got["achievedIdentifiers"])
	require.EqualValues(t, 2, got["completedGoals"])
	require.EqualValues(t, 50, got["overallPercentage"])
	require.Equal(t, "Growing steadily!", got["message"])
}

func TestRootRejectsMissingConfig(t *testing.T) {
	quietLogger(t)

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "nope.yaml"), "stats"})
	require.ErrorContains(t, root.Execute(), "load config")
}

func TestResolveRuntimeWithoutPreRun(t *testing.T) {
	t.Parallel()

	_, err := resolveRuntime(nil) //nolint:staticcheck // exercising the nil guard
	require.Error(t, err)
}
