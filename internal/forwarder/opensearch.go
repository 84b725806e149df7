// Package forwarder ships collected honeypot events to OpenSearch.
package forwarder

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchutil"

	"github.com/telhawk-systems/honeynet/internal/collector"
	"github.com/telhawk-systems/honeynet/internal/config"
	"github.com/telhawk-systems/honeynet/internal/logging"
	"github.com/telhawk-systems/honeynet/internal/stage"
)

// IndexResponse summarises a bulk indexing run.
type IndexResponse struct {
	Indexed int
	Failed  int
	Errors  []string
}

// Forwarder bulk-indexes the collected JSON array into OpenSearch.
type Forwarder struct {
	cfg      *config.Config
	log      *logging.Logger
	osClient *opensearch.Client
}

// New creates a Forwarder for cfg.Forward.OpenSearch.
func New(cfg *config.Config, log *logging.Logger) (*Forwarder, error) {
	osCfg := cfg.Forward.OpenSearch

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: osCfg.TLSSkipVerify,
		},
	}

	client, err := opensearch.NewClient(opensearch.Config{
		Addresses: []string{osCfg.URL},
		Username:  osCfg.Username,
		Password:  osCfg.Password,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create opensearch client: %w", err)
	}

	return &Forwarder{cfg: cfg, log: log, osClient: client}, nil
}

func (f *Forwarder) Name() string { return "forward" }

// Run indexes every record of the collected logs file. A missing file is
// skipped.
func (f *Forwarder) Run(ctx context.Context) stage.Result {
	path := f.cfg.Path(f.cfg.Output.CollectedLogs)

	records, err := collector.ReadArray(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			f.log.Warning("Collected log file not found, nothing to forward.")
			return stage.Skipped(f.Name(), "collected logs not found")
		}
		return f.fail(err)
	}

	index := f.cfg.Forward.OpenSearch.Index
	f.log.Info("Forwarding %d events to OpenSearch index %s...", len(records), index)

	resp, err := f.Index(ctx, index, records)
	if err != nil {
		return f.fail(err)
	}
	if resp.Failed > 0 {
		return f.fail(fmt.Errorf("%d of %d events rejected: %s",
			resp.Failed, resp.Failed+resp.Indexed, strings.Join(resp.Errors, "; ")))
	}

	f.log.Info("Forwarded %d events to OpenSearch.", resp.Indexed)
	return stage.OK(f.Name(), fmt.Sprintf("%d events", resp.Indexed))
}

func (f *Forwarder) fail(err error) stage.Result {
	f.log.Error("Error forwarding logs: %v", err)
	return stage.Failed(f.Name(), stage.ErrForward, err)
}

// Index bulk-indexes raw JSON documents into index.
func (f *Forwarder) Index(ctx context.Context, index string, docs []json.RawMessage) (*IndexResponse, error) {
	var indexed, failed atomic.Int64
	var errs errorList

	bi, err := opensearchutil.NewBulkIndexer(opensearchutil.BulkIndexerConfig{
		Client:     f.osClient,
		Index:      index,
		NumWorkers: 1,
		OnError: func(_ context.Context, err error) {
			errs.add(err.Error())
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bulk indexer: %w", err)
	}

	for _, doc := range docs {
		err := bi.Add(ctx, opensearchutil.BulkIndexerItem{
			Action: "index",
			Body:   bytes.NewReader(doc),
			OnSuccess: func(context.Context, opensearchutil.BulkIndexerItem, opensearchutil.BulkIndexerResponseItem) {
				indexed.Add(1)
			},
			OnFailure: func(_ context.Context, _ opensearchutil.BulkIndexerItem, res opensearchutil.BulkIndexerResponseItem, err error) {
				failed.Add(1)
				if err != nil {
					errs.add(err.Error())
				} else {
					errs.add(fmt.Sprintf("%s: %s", res.Error.Type, res.Error.Reason))
				}
			},
		})
		if err != nil {
			failed.Add(1)
			errs.add(fmt.Sprintf("failed to add to bulk indexer: %v", err))
		}
	}

	if err := bi.Close(ctx); err != nil {
		return nil, fmt.Errorf("bulk indexer close: %w", err)
	}

	resp := &IndexResponse{Indexed: int(indexed.Load()), Failed: int(failed.Load()), Errors: errs.list()}
	// A failed flush may surface only through OnError.
	if resp.Failed == 0 && len(resp.Errors) > 0 {
		resp.Failed = len(docs) - resp.Indexed
	}
	return resp, nil
}

type errorList struct {
	mu   sync.Mutex
	errs []string
}

func (l *errorList) add(msg string) {
	l.mu.Lock()
	l.errs = append(l.errs, msg)
	l.mu.Unlock()
}

func (l *errorList) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.errs...)
}
