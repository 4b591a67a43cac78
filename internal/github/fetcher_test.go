package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestServer(t *testing.T, tree []map[string]any, contents map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "/git/trees/"):
			_ = json.NewEncoder(w).Encode(map[string]any{"tree": tree})
		case strings.Contains(r.URL.Path, "/contents/"):
			parts := strings.SplitN(r.URL.Path, "/contents/", 2)
			content, ok := contents[parts[1]]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"content":  base64.StdEncoding.EncodeToString([]byte(content)),
				"encoding": "base64",
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestFetchFiltersVendoredAndLockFiles(t *testing.T) {
	tree := []map[string]any{
		{"path": "main.go", "type": "blob", "size": 10},
		{"path": "go.sum", "type": "blob", "size": 10},
		{"path": "vendor/dep/dep.go", "type": "blob", "size": 10},
		{"path": "node_modules/left-pad/index.js", "type": "blob", "size": 10},
		{"path": "README.md", "type": "blob", "size": 10},
		{"path": "internal", "type": "tree", "size": 0},
	}
	contents := map[string]string{
		"main.go":   "package main",
		"README.md": "# readme",
	}
	srv := newTestServer(t, tree, contents)
	defer srv.Close()

	f := NewFetcher(context.Background(), srv.URL, "", DefaultLimits())
	snap, err := f.Fetch(context.Background(), "acme", "widget", "main")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if len(snap.Files) != 2 {
		t.Fatalf("expected 2 files, got %d: %+v", len(snap.Files), snap.Files)
	}
	for _, file := range snap.Files {
		if strings.Contains(file.Path, "vendor/") || file.Path == "go.sum" {
			t.Fatalf("unexpected filtered file in snapshot: %s", file.Path)
		}
	}
	if snap.Files[0].Path != "README.md" || snap.Files[0].Language != "markdown" {
		t.Fatalf("unexpected first file: %+v", snap.Files[0])
	}
	if !strings.Contains(snap.StructureSummary, "vendor/dep/dep.go") {
		t.Fatalf("structure summary should list all paths, got %q", snap.StructureSummary)
	}
}

func TestFetchRespectsFileCountCap(t *testing.T) {
	tree := []map[string]any{}
	contents := map[string]string{}
	for _, name := range []string{"a.go", "b.go", "c.go", "d.go"} {
		tree = append(tree, map[string]any{"path": name, "type": "blob", "size": 5})
		contents[name] = "package x"
	}
	srv := newTestServer(t, tree, contents)
	defer srv.Close()

	limits := DefaultLimits()
	limits.MaxFiles = 2
	f := NewFetcher(context.Background(), srv.URL, "", limits)
	snap, err := f.Fetch(context.Background(), "acme", "widget", "main")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(snap.Files) != 2 {
		t.Fatalf("expected cap of 2 files, got %d", len(snap.Files))
	}
}

func TestFetchFailsWhenNothingFetchable(t *testing.T) {
	tree := []map[string]any{
		{"path": "image.png", "type": "blob", "size": 10},
	}
	srv := newTestServer(t, tree, nil)
	defer srv.Close()

	f := NewFetcher(context.Background(), srv.URL, "", DefaultLimits())
	if _, err := f.Fetch(context.Background(), "acme", "widget", "main"); err == nil {
		t.Fatalf("expected error for snapshot with no source files")
	}
}
