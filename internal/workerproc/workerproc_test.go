package workerproc

import (
	"context"
	"errors"
	"testing"

	"github.com/HugoCL/mlh-code-check-sub000/internal/bootstrap"
)

func TestParseMessage(t *testing.T) {
	if _, _, err := ParseMessage("   "); !errors.As(err, &ErrEmptyBody{}) {
		t.Fatalf("empty body err = %v", err)
	}

	var decodeErr ErrDecode
	if _, _, err := ParseMessage("{not json"); !errors.As(err, &decodeErr) {
		t.Fatalf("bad json err = %v", err)
	}

	var missingErr ErrMissingAnalysisID
	if _, _, err := ParseMessage(`{"requestId": "req-1"}`); !errors.As(err, &missingErr) {
		t.Fatalf("missing id err = %v", err)
	}
	if missingErr.RequestID != "req-1" {
		t.Fatalf("requestId = %s", missingErr.RequestID)
	}

	msg, meta, err := ParseMessage(`{"analysisId": "an-1", "requestId": "req-1", "version": 1}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if msg.AnalysisID != "an-1" || msg.Version != 1 {
		t.Fatalf("msg = %+v", msg)
	}
	if meta.BodyLen == 0 || meta.BodySHA == "" {
		t.Fatalf("meta = %+v", meta)
	}
}

type stubProcessor struct {
	gotID string
	err   error
}

func (s *stubProcessor) Process(_ context.Context, analysisID string) error {
	s.gotID = analysisID
	return s.err
}

func TestHandleMessageRoutesToProcessor(t *testing.T) {
	proc := &stubProcessor{}
	app := &bootstrap.App{AnalysisProcessor: proc}

	if err := HandleMessage(context.Background(), app, `{"analysisId": "an-1", "requestId": "req-1"}`); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if proc.gotID != "an-1" {
		t.Fatalf("processed id = %s", proc.gotID)
	}
}

func TestHandleMessageWrapsProcessError(t *testing.T) {
	proc := &stubProcessor{err: errors.New("fetch repository snapshot: boom")}
	app := &bootstrap.App{AnalysisProcessor: proc}

	err := HandleMessage(context.Background(), app, `{"analysisId": "an-1", "requestId": "req-1"}`)
	var procErr ErrProcess
	if !errors.As(err, &procErr) {
		t.Fatalf("err = %v, want ErrProcess", err)
	}
	if procErr.AnalysisID != "an-1" || procErr.RequestID != "req-1" {
		t.Fatalf("procErr = %+v", procErr)
	}
}
