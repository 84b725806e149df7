// Package collector converts the honeypot's newline-delimited JSON event log
// into a single JSON array file.
package collector

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/valyala/fastjson"

	"github.com/telhawk-systems/honeynet/internal/config"
	"github.com/telhawk-systems/honeynet/internal/logging"
	"github.com/telhawk-systems/honeynet/internal/stage"
)

const maxLineSize = 16 << 20

// ErrInvalidUTF8 reports an event log line that is not valid UTF-8 text.
var ErrInvalidUTF8 = errors.New("invalid UTF-8")

// LineError reports an event log line that is not valid JSON.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// Collector reads the Cowrie event log and writes the consolidated array.
type Collector struct {
	cfg *config.Config
	log *logging.Logger
}

// New creates a Collector.
func New(cfg *config.Config, log *logging.Logger) *Collector {
	return &Collector{cfg: cfg, log: log}
}

func (c *Collector) Name() string { return "collect" }

// Run parses the event log and replaces the output file. An absent event log
// is skipped; any invalid line fails the whole stage and leaves the previous
// output untouched.
func (c *Collector) Run(ctx context.Context) stage.Result {
	src := c.cfg.Path(c.cfg.Honeypot.EventLog)
	dst := c.cfg.Path(c.cfg.Output.CollectedLogs)

	f, err := os.Open(src)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.log.Warning("Log file not found!")
			return stage.Skipped(c.Name(), "event log not found")
		}
		return c.fail(err)
	}
	defer f.Close()

	c.log.Info("Reading and analyzing logs...")
	records, err := ReadRecords(ctx, f)
	if err != nil {
		return c.fail(err)
	}

	if err := WriteArray(dst, records); err != nil {
		return c.fail(err)
	}
	c.log.Info("Logs written to JSON file!")

	return stage.OK(c.Name(), fmt.Sprintf("%d records", len(records)))
}

func (c *Collector) fail(err error) stage.Result {
	c.log.Error("Error collecting logs: %v", err)
	return stage.Failed(c.Name(), stage.ErrLogParse, err)
}

// ReadRecords parses one JSON value per line, preserving order and the raw
// bytes of each record.
func ReadRecords(ctx context.Context, r io.Reader) ([]json.RawMessage, error) {
	var p fastjson.Parser
	records := make([]json.RawMessage, 0)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	line := 0
	for scanner.Scan() {
		line++
		if line%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		raw := bytes.TrimSuffix(scanner.Bytes(), []byte("\r"))
		// fastjson does not validate string encoding
		if !utf8.Valid(raw) {
			return nil, &LineError{Line: line, Err: ErrInvalidUTF8}
		}
		if _, err := p.ParseBytes(raw); err != nil {
			return nil, &LineError{Line: line, Err: err}
		}
		records = append(records, json.RawMessage(bytes.Clone(raw)))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read event log: %w", err)
	}

	return records, nil
}

// Encode renders records as a pretty-printed JSON array with 4-space
// indentation and no trailing newline.
func Encode(records []json.RawMessage) ([]byte, error) {
	if records == nil {
		records = []json.RawMessage{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(records); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// WriteArray atomically replaces path with the encoded records.
func WriteArray(path string, records []json.RawMessage) error {
	data, err := Encode(records)
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// ReadArray loads a file written by WriteArray.
func ReadArray(path string) ([]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return records, nil
}
