// Package sink persists the final answer payload to a well-known file.
package sink

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/viso-study/visocode/config"
	"github.com/viso-study/visocode/internal/agent/core"
)

// FileSink writes payloads to a fixed path. Writes go to a temp file in the
// same directory first and are renamed into place, so readers never observe
// a partial record.
type FileSink struct {
	dir  string
	path string
}

// New creates a FileSink from the file storage configuration.
func New(cfg config.FileConfig) *FileSink {
	cfg = cfg.Normalize()
	return &FileSink{
		dir:  cfg.DataDir,
		path: filepath.Join(cfg.DataDir, cfg.AnswerFile),
	}
}

var _ core.Sink = (*FileSink)(nil)

// Path returns the well-known location of the persisted record.
func (s *FileSink) Path() string { return s.path }

// Save serializes the payload and atomically replaces the previous record.
func (s *FileSink) Save(payload core.Payload) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling payload: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(s.dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing %s: %w", s.path, err)
	}
	return nil
}

// Load reads back the most recently persisted payload.
func (s *FileSink) Load() (core.Payload, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return core.Payload{}, err
	}
	var payload core.Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		return core.Payload{}, fmt.Errorf("parsing %s: %w", s.path, err)
	}
	payload.Normalize()
	return payload, nil
}
