// Package export implements the document-export capability used by
// document actions.
package export

import (
	"context"
	"time"
)

// Request describes a document to export.
type Request struct {
	Name    string `json:"name"`
	Format  string `json:"format"` // "markdown" | "html" | "text"
	Content string `json:"content"`
}

// Record is the stored metadata for an exported document.
type Record struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Format    string    `json:"format"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Result is the outcome of an export: the artifact path plus its record.
type Result struct {
	Path   string `json:"path"`
	Record Record `json:"record"`
}

// Exporter renders a document to an artifact.
type Exporter interface {
	Export(ctx context.Context, req Request) (*Result, error)
}
