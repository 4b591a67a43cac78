package util

import "testing"

func TestHashNamespaceKeyStable(t *testing.T) {
	a := HashNamespaceKey("analysis-1")
	b := HashNamespaceKey("analysis-1")
	if a != b {
		t.Fatalf("expected stable hash, got %q vs %q", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a))
	}
	if a == HashNamespaceKey("analysis-2") {
		t.Fatalf("expected distinct hashes for distinct namespaces")
	}
}
