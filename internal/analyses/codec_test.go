package analyses

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/HugoCL/mlh-code-check-sub000/internal/github"
	"github.com/HugoCL/mlh-code-check-sub000/internal/rubrics"
)

func fptr(v float64) *float64 { return &v }
func iptr(v int) *int         { return &v }

func TestDecodeResultYesNo(t *testing.T) {
	cfg := rubrics.ItemConfig{RequireJustification: true}

	if _, err := DecodeResult(rubrics.KindYesNo, cfg, json.RawMessage(`{"value": true}`)); !errors.Is(err, ErrInvalidResult) {
		t.Fatalf("expected ErrInvalidResult for missing justification, got %v", err)
	}
	if _, err := DecodeResult(rubrics.KindYesNo, cfg, json.RawMessage(`{"justification": "solid"}`)); !errors.Is(err, ErrInvalidResult) {
		t.Fatalf("expected ErrInvalidResult for missing value, got %v", err)
	}

	out, err := DecodeResult(rubrics.KindYesNo, cfg, json.RawMessage(`{"value": false, "justification": "no tests present"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["value"] != false {
		t.Fatalf("value = %v, want false", out["value"])
	}
	if out["justification"] != "no tests present" {
		t.Fatalf("justification = %v", out["justification"])
	}
}

func TestDecodeResultYesNoOptionalJustification(t *testing.T) {
	out, err := DecodeResult(rubrics.KindYesNo, rubrics.ItemConfig{}, json.RawMessage(`{"value": true}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := out["justification"]; ok {
		t.Fatal("empty justification should be omitted")
	}
}

func TestDecodeResultRangeBounds(t *testing.T) {
	cfg := rubrics.ItemConfig{Min: fptr(1), Max: fptr(10), Guidance: "1 worst, 10 best"}

	if _, err := DecodeResult(rubrics.KindRange, cfg, json.RawMessage(`{"value": 11}`)); !errors.Is(err, ErrInvalidResult) {
		t.Fatalf("expected ErrInvalidResult for out-of-range value, got %v", err)
	}
	if _, err := DecodeResult(rubrics.KindRange, cfg, json.RawMessage(`{"rationale": "fine"}`)); !errors.Is(err, ErrInvalidResult) {
		t.Fatalf("expected ErrInvalidResult for missing value, got %v", err)
	}

	out, err := DecodeResult(rubrics.KindRange, cfg, json.RawMessage(`{"value": 7, "rationale": "good coverage"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["value"] != 7.0 || out["min"] != 1.0 || out["max"] != 10.0 {
		t.Fatalf("unexpected payload: %v", out)
	}
}

func TestDecodeResultRangeDefaultBounds(t *testing.T) {
	out, err := DecodeResult(rubrics.KindRange, rubrics.ItemConfig{}, json.RawMessage(`{"value": 55}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["min"] != 0.0 || out["max"] != 100.0 {
		t.Fatalf("default bounds not applied: %v", out)
	}
}

func TestDecodeResultComments(t *testing.T) {
	if _, err := DecodeResult(rubrics.KindComments, rubrics.ItemConfig{}, json.RawMessage(`{"feedback": "  "}`)); !errors.Is(err, ErrInvalidResult) {
		t.Fatalf("expected ErrInvalidResult for blank feedback, got %v", err)
	}
	out, err := DecodeResult(rubrics.KindComments, rubrics.ItemConfig{}, json.RawMessage(`{"feedback": "well structured"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["feedback"] != "well structured" {
		t.Fatalf("feedback = %v", out["feedback"])
	}
}

func TestDecodeResultCodeExamples(t *testing.T) {
	cfg := rubrics.ItemConfig{MaxExamples: iptr(1)}

	bad := json.RawMessage(`{"examples": [{"filePath": "main.go", "lineStart": 9, "lineEnd": 3, "code": "x"}]}`)
	if _, err := DecodeResult(rubrics.KindCodeExamples, cfg, bad); !errors.Is(err, ErrInvalidResult) {
		t.Fatalf("expected ErrInvalidResult for inverted line range, got %v", err)
	}

	over := json.RawMessage(`{"examples": [
		{"filePath": "a.go", "lineStart": 1, "lineEnd": 2, "code": "one"},
		{"filePath": "b.go", "lineStart": 3, "lineEnd": 4, "code": "two"}
	]}`)
	if _, err := DecodeResult(rubrics.KindCodeExamples, cfg, over); !errors.Is(err, ErrInvalidResult) {
		t.Fatalf("expected ErrInvalidResult for over-cap examples, got %v", err)
	}

	ok := json.RawMessage(`{"examples": [{"filePath": "a.go", "lineStart": 1, "lineEnd": 2, "code": "one"}]}`)
	out, err := DecodeResult(rubrics.KindCodeExamples, cfg, ok)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if examples := out["examples"].([]any); len(examples) != 1 {
		t.Fatalf("expected 1 example, got %d", len(examples))
	}
}

func TestDecodeResultOptions(t *testing.T) {
	cfg := rubrics.ItemConfig{Options: []string{"REST", "GraphQL", "gRPC"}}

	if _, err := DecodeResult(rubrics.KindOptions, cfg, json.RawMessage(`{"selections": []}`)); !errors.Is(err, ErrInvalidResult) {
		t.Fatalf("expected ErrInvalidResult for empty selections, got %v", err)
	}
	if _, err := DecodeResult(rubrics.KindOptions, cfg, json.RawMessage(`{"selections": ["SOAP"]}`)); !errors.Is(err, ErrInvalidResult) {
		t.Fatalf("expected ErrInvalidResult for unknown option, got %v", err)
	}
	if _, err := DecodeResult(rubrics.KindOptions, cfg, json.RawMessage(`{"selections": ["REST", "gRPC"]}`)); !errors.Is(err, ErrInvalidResult) {
		t.Fatalf("expected ErrInvalidResult for multiple selections when single-select, got %v", err)
	}

	out, err := DecodeResult(rubrics.KindOptions, cfg, json.RawMessage(`{"selections": ["rest"]}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	selections := out["selections"].([]string)
	if len(selections) != 1 || selections[0] != "REST" {
		t.Fatalf("case-insensitive match should normalize to canonical option, got %v", selections)
	}
}

func TestDecodeResultOptionsMultiple(t *testing.T) {
	cfg := rubrics.ItemConfig{
		Options:       []string{"unit", "integration", "e2e"},
		AllowMultiple: true,
		MaxSelections: iptr(2),
	}
	if _, err := DecodeResult(rubrics.KindOptions, cfg, json.RawMessage(`{"selections": ["unit", "integration", "e2e"]}`)); !errors.Is(err, ErrInvalidResult) {
		t.Fatal("expected ErrInvalidResult when exceeding maxSelections")
	}
	out, err := DecodeResult(rubrics.KindOptions, cfg, json.RawMessage(`{"selections": ["unit", "Unit", "e2e"]}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	selections := out["selections"].([]string)
	if len(selections) != 2 {
		t.Fatalf("duplicates should collapse, got %v", selections)
	}
}

func TestBuildPromptIncludesCriterionAndFiles(t *testing.T) {
	item := ItemSpec{
		RubricItemID: "item-1",
		Name:         "Error handling",
		Description:  "Errors are wrapped with context",
		Kind:         rubrics.KindYesNo,
		Config:       rubrics.ItemConfig{RequireJustification: true},
	}
	snap := github.Snapshot{
		Owner:            "octocat",
		Name:             "hello",
		Branch:           "main",
		StructureSummary: "main.go",
		Files: []github.File{
			{Path: "main.go", Content: "package main", Language: "Go"},
		},
	}

	req := BuildPrompt(item, snap)
	if !strings.Contains(req.UserPrompt, "Error handling") {
		t.Fatal("user prompt missing criterion name")
	}
	if !strings.Contains(req.UserPrompt, "--- main.go ---") {
		t.Fatal("user prompt missing file content")
	}
	if !strings.Contains(req.SystemPrompt, "justification") {
		t.Fatal("system prompt missing schema instructions")
	}
}
