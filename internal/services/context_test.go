package services_test

import (
	"context"
	"testing"

	"reel/internal/services"
)

func TestJobIDRoundTrip(t *testing.T) {
	ctx := services.WithJobID(context.Background(), "job-123")
	if id, ok := services.JobIDFromContext(ctx); !ok || id != "job-123" {
		t.Fatalf("expected job-123, got %q (ok=%v)", id, ok)
	}
	if _, ok := services.JobIDFromContext(context.Background()); ok {
		t.Fatal("expected absent job id")
	}
	if same := services.WithJobID(context.Background(), ""); same.Value("job_id") != nil {
		t.Fatal("empty job id should not annotate context")
	}
}

func TestIdentityRoundTrip(t *testing.T) {
	ctx := services.WithIdentity(context.Background(), "user-1")
	if id, ok := services.IdentityFromContext(ctx); !ok || id != "user-1" {
		t.Fatalf("expected user-1, got %q (ok=%v)", id, ok)
	}
	if _, ok := services.IdentityFromContext(context.Background()); ok {
		t.Fatal("expected absent identity")
	}
}

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := services.WithRequestID(context.Background(), "req-9")
	if id, ok := services.RequestIDFromContext(ctx); !ok || id != "req-9" {
		t.Fatalf("expected req-9, got %q (ok=%v)", id, ok)
	}
}
