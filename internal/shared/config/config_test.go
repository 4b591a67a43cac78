package config

import "testing"

func TestLoadEvalConcurrency(t *testing.T) {
	t.Setenv("CC_EVAL_CONCURRENCY", "8")

	cfg := Load()
	if cfg.EvalConcurrency != 8 {
		t.Fatalf("EvalConcurrency = %d, want 8", cfg.EvalConcurrency)
	}
}

func TestLoadEvalConcurrencyDefaultsOnInvalid(t *testing.T) {
	t.Setenv("CC_EVAL_CONCURRENCY", "zero")

	cfg := Load()
	if cfg.EvalConcurrency != 5 {
		t.Fatalf("EvalConcurrency = %d, want default 5", cfg.EvalConcurrency)
	}
}
