package forwarder

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/honeynet/internal/collector"
	"github.com/telhawk-systems/honeynet/internal/config"
	"github.com/telhawk-systems/honeynet/internal/logging"
	"github.com/telhawk-systems/honeynet/internal/stage"
)

// fakeOpenSearch accepts _bulk requests and records indexed documents.
type fakeOpenSearch struct {
	mu     sync.Mutex
	paths  []string
	docs   []string
	reject map[string]bool // documents containing any key are rejected
}

func (f *fakeOpenSearch) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if !strings.HasSuffix(r.URL.Path, "/_bulk") {
		w.Write([]byte(`{"version":{"distribution":"opensearch","number":"2.11.0"}}`))
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, r.URL.Path)

	var items []map[string]any
	hasErrors := false
	scanner := bufio.NewScanner(r.Body)
	for scanner.Scan() {
		if !scanner.Scan() {
			break
		}
		doc := scanner.Text()
		f.docs = append(f.docs, doc)

		item := map[string]any{"_index": "cowrie-events", "status": 201, "result": "created"}
		for needle := range f.reject {
			if strings.Contains(doc, needle) {
				hasErrors = true
				item["status"] = 400
				item["error"] = map[string]any{"type": "mapper_parsing_exception", "reason": "failed to parse field [src_port]"}
			}
		}
		items = append(items, map[string]any{"index": item})
	}

	json.NewEncoder(w).Encode(map[string]any{"took": 3, "errors": hasErrors, "items": items})
}

func setup(t *testing.T, server http.Handler, records []string) (*Forwarder, *config.Config, *bytes.Buffer) {
	t.Helper()
	ts := httptest.NewServer(server)
	t.Cleanup(ts.Close)

	cfg := config.Default()
	cfg.Workdir = t.TempDir()
	cfg.Forward.OpenSearch.Enabled = true
	cfg.Forward.OpenSearch.URL = ts.URL

	if records != nil {
		raw := make([]json.RawMessage, len(records))
		for i, r := range records {
			raw[i] = json.RawMessage(r)
		}
		require.NoError(t, collector.WriteArray(cfg.Path(cfg.Output.CollectedLogs), raw))
	}

	var file bytes.Buffer
	log := logging.NewWithHandler(&bytes.Buffer{}, logging.NewLineHandler(&file, slog.LevelInfo))

	f, err := New(cfg, log)
	require.NoError(t, err)
	return f, cfg, &file
}

func TestForwarder_IndexesAllRecords(t *testing.T) {
	srv := &fakeOpenSearch{}
	f, _, file := setup(t, srv, []string{
		`{"eventid":"cowrie.session.connect","src_ip":"203.0.113.7"}`,
		`{"eventid":"cowrie.login.failed","username":"root"}`,
		`{"eventid":"cowrie.command.input","input":"uname -a"}`,
	})

	res := f.Run(context.Background())
	require.Equal(t, stage.StatusOK, res.Status, res.Error())
	assert.Equal(t, "3 events", res.Detail)

	srv.mu.Lock()
	defer srv.mu.Unlock()
	require.Len(t, srv.docs, 3)
	assert.JSONEq(t, `{"eventid":"cowrie.session.connect","src_ip":"203.0.113.7"}`, srv.docs[0])
	assert.Contains(t, srv.paths[0], "cowrie-events")
	assert.Contains(t, file.String(), "INFO - Forwarded 3 events to OpenSearch.")
}

func TestForwarder_RejectedDocuments(t *testing.T) {
	srv := &fakeOpenSearch{reject: map[string]bool{"bad-port": true}}
	f, _, file := setup(t, srv, []string{
		`{"eventid":"ok"}`,
		`{"eventid":"x","src_port":"bad-port"}`,
	})

	res := f.Run(context.Background())

	require.Equal(t, stage.StatusFailed, res.Status)
	assert.ErrorIs(t, res.Err, stage.ErrForward)
	assert.Contains(t, res.Error(), "1 of 2 events rejected")
	assert.Contains(t, res.Error(), "mapper_parsing_exception")
	assert.Contains(t, file.String(), "ERROR - Error forwarding logs:")
}

func TestForwarder_ServerError(t *testing.T) {
	srv := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":"cluster unavailable"}`))
	})
	f, _, _ := setup(t, srv, []string{`{"eventid":"a"}`})

	res := f.Run(context.Background())

	require.Equal(t, stage.StatusFailed, res.Status)
	assert.ErrorIs(t, res.Err, stage.ErrForward)
}

func TestForwarder_MissingCollectedLogs(t *testing.T) {
	f, _, file := setup(t, &fakeOpenSearch{}, nil)

	res := f.Run(context.Background())

	assert.Equal(t, stage.StatusSkipped, res.Status)
	assert.Contains(t, file.String(), "WARNING - Collected log file not found, nothing to forward.")
}
