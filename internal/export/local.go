package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hyejin/flowd/internal/flow"
)

var extensions = map[string]string{
	"markdown": ".md",
	"html":     ".html",
	"text":     ".txt",
}

// LocalExporter writes documents to the local filesystem.
type LocalExporter struct {
	baseDir string
	mu      sync.Mutex
	records map[string]Record
}

func NewLocalExporter(baseDir string) (*LocalExporter, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	return &LocalExporter{baseDir: baseDir, records: make(map[string]Record)}, nil
}

func (e *LocalExporter) Export(_ context.Context, req Request) (*Result, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("document name is required")
	}
	ext, ok := extensions[req.Format]
	if !ok {
		ext = ".txt"
	}

	id := flow.GenerateID("doc")
	fullPath := filepath.Join(e.baseDir, id+"-"+req.Name+ext)

	if err := os.WriteFile(fullPath, []byte(req.Content), 0644); err != nil {
		return nil, fmt.Errorf("write document: %w", err)
	}

	record := Record{
		ID:        id,
		Name:      req.Name,
		Format:    req.Format,
		Size:      int64(len(req.Content)),
		CreatedAt: time.Now(),
	}

	e.mu.Lock()
	e.records[id] = record
	e.mu.Unlock()

	return &Result{Path: fullPath, Record: record}, nil
}

// Records returns metadata for all documents exported so far.
func (e *LocalExporter) Records() []Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Record, 0, len(e.records))
	for _, r := range e.records {
		out = append(out, r)
	}
	return out
}
