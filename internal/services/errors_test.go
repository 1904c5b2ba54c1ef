package services_test

import (
	"errors"
	"strings"
	"testing"

	"reel/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrTransport, "sora", "submit", "request failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"sora", "submit", "request failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "billing", "catalog", "fetch failed", nil)
	if !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected nil marker to default to transport, got %v", err)
	}
}

func TestCodeMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		expect string
	}{
		{"nil", nil, ""},
		{"validation", services.Wrap(services.ErrValidation, "ledger", "debit", "negative amount", nil), "validation"},
		{"configuration", services.Wrap(services.ErrConfiguration, "billing", "purchase", "storefront not configured", nil), "configuration"},
		{"rejected", services.Wrap(services.ErrRejected, "billing", "purchase", "subscription required", nil), "rejected"},
		{"unverified", services.Wrap(services.ErrUnverified, "billing", "purchase", "verification failed", nil), "unverified"},
		{"timeout", services.Wrap(services.ErrTimeout, "generation", "poll", "gave up", nil), "timeout"},
		{"not found", services.Wrap(services.ErrNotFound, "billing", "purchase", "unknown product", nil), "not_found"},
		{"transport", services.Wrap(services.ErrTransport, "sora", "status", "unreachable", errors.New("dial")), "transport"},
		{"unclassified", errors.New("boom"), "internal"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.Code(tc.err); got != tc.expect {
				t.Fatalf("Code(%v) = %q, want %q", tc.err, got, tc.expect)
			}
		})
	}
}
