package usage

import (
	"context"
	"errors"
	"testing"
)

func TestServiceConsumeWithinLimit(t *testing.T) {
	svc := NewService()

	u, err := svc.Consume(context.Background(), "user-1", 3)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if u.Used != 3 {
		t.Fatalf("used = %d, want 3", u.Used)
	}

	ok, _, err := svc.CanConsume(context.Background(), "user-1", u.Limit-3)
	if err != nil || !ok {
		t.Fatalf("CanConsume = %v, %v; want true", ok, err)
	}
	ok, _, err = svc.CanConsume(context.Background(), "user-1", u.Limit-2)
	if err != nil || ok {
		t.Fatalf("CanConsume over limit = %v, %v; want false", ok, err)
	}
}

func TestServiceConsumeOverLimit(t *testing.T) {
	svc := NewService()

	u, err := svc.Get(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, err := svc.Consume(context.Background(), "user-1", u.Limit+1); !errors.Is(err, ErrLimitReached) {
		t.Fatalf("err = %v, want ErrLimitReached", err)
	}

	got, _ := svc.Get(context.Background(), "user-1")
	if got.Used != 0 {
		t.Fatalf("failed consume must not change usage, used = %d", got.Used)
	}
}
