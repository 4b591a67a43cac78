package analyses

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func fastRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestRetryPolicyRetriesTransientOnce(t *testing.T) {
	calls := 0
	err := fastRetryPolicy().Do(context.Background(), func(context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("openai request timeout")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success after retry, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestRetryPolicyDoesNotRetrySchemaMismatch(t *testing.T) {
	calls := 0
	wantErr := fmt.Errorf("%w: missing boolean value", ErrInvalidResult)
	err := fastRetryPolicy().Do(context.Background(), func(context.Context) error {
		calls++
		return wantErr
	})
	if !errors.Is(err, ErrInvalidResult) {
		t.Fatalf("err = %v", err)
	}
	if calls != 1 {
		t.Fatalf("deterministic errors must not be retried, calls = %d", calls)
	}
}

func TestRetryPolicyAttemptBudget(t *testing.T) {
	calls := 0
	err := fastRetryPolicy().Do(context.Background(), func(context.Context) error {
		calls++
		return errors.New("connection reset by peer")
	})
	if err == nil {
		t.Fatal("expected final error")
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestClassifyFailure(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("%w: bad payload", ErrInvalidResult), ErrorCodeLLMSchemaMismatch},
		{context.DeadlineExceeded, ErrorCodeLLMTimeout},
		{errors.New("openai request timeout"), ErrorCodeLLMTimeout},
		{errors.New("sql: connection is already closed"), ErrorCodeStorage},
		{errors.New("something odd"), ErrorCodeInternal},
	}
	for _, tc := range cases {
		if got := classifyFailure(tc.err); got != tc.want {
			t.Errorf("classifyFailure(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}
