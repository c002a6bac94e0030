package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hyejin/flowd/internal/action"
	"github.com/hyejin/flowd/internal/bus"
	"github.com/hyejin/flowd/internal/connector"
	"github.com/hyejin/flowd/internal/engine"
	"github.com/hyejin/flowd/internal/export"
	"github.com/hyejin/flowd/internal/registry"
	"github.com/hyejin/flowd/internal/repository"
)

type stubConnector struct{ name string }

func (c stubConnector) Name() string { return c.name }

func (c stubConnector) Chat(_ context.Context, _ []connector.Message, _ connector.ChatOptions) (*connector.ChatResponse, error) {
	return &connector.ChatResponse{Content: "ok"}, nil
}

func newTestServer(t *testing.T) (*Server, *export.LocalExporter) {
	t.Helper()

	store := repository.NewMemoryRunStore()
	events := bus.New()
	eng := engine.New(store, events, action.NewExecutor(nil, nil), engine.Options{})

	connectors := connector.NewRegistry()
	connectors.Register("default", stubConnector{name: "default"})
	connectors.Register("backup", stubConnector{name: "backup"})

	exporter, err := export.NewLocalExporter(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalExporter: %v", err)
	}

	return NewServer(eng, events, registry.New(), connectors, exporter), exporter
}

func TestListConnectors(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest("GET", "/api/connectors", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body struct {
		Connectors []string `json:"connectors"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Connectors) != 2 || body.Connectors[0] != "backup" || body.Connectors[1] != "default" {
		t.Errorf("connectors = %v, want [backup default]", body.Connectors)
	}
}

func TestListDocuments(t *testing.T) {
	srv, exporter := newTestServer(t)

	if _, err := exporter.Export(context.Background(), export.Request{
		Name:    "report",
		Format:  "markdown",
		Content: "# hello",
	}); err != nil {
		t.Fatalf("Export: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/documents", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body struct {
		Documents []export.Record `json:"documents"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Documents) != 1 {
		t.Fatalf("documents = %d, want 1", len(body.Documents))
	}
	if body.Documents[0].Name != "report" || body.Documents[0].Format != "markdown" {
		t.Errorf("record = %+v", body.Documents[0])
	}
}

func TestListDocuments_EmptyWithoutExporter(t *testing.T) {
	store := repository.NewMemoryRunStore()
	events := bus.New()
	eng := engine.New(store, events, action.NewExecutor(nil, nil), engine.Options{})
	srv := NewServer(eng, events, registry.New(), nil, nil)

	req := httptest.NewRequest("GET", "/api/documents", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body struct {
		Documents []export.Record `json:"documents"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Documents) != 0 {
		t.Errorf("documents = %v, want empty", body.Documents)
	}
}
