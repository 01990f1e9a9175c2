package ratelimiter

import (
	"context"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		perSecond float64
		burst     int
		unlimited bool
	}{
		{name: "standard rate", perSecond: 100, burst: 200},
		{name: "default burst", perSecond: 5, burst: 0},
		{name: "unlimited (zero rate)", perSecond: 0, burst: 0, unlimited: true},
		{name: "unlimited (negative rate)", perSecond: -1, burst: 10, unlimited: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter := New(tt.perSecond, tt.burst)
			if limiter.Unlimited() != tt.unlimited {
				t.Fatalf("Unlimited() = %v, want %v", limiter.Unlimited(), tt.unlimited)
			}
		})
	}
}

func TestAllowEnforcesBurst(t *testing.T) {
	limiter := New(1, 3)

	for i := range 3 {
		if !limiter.Allow() {
			t.Fatalf("connection %d should be allowed (within burst)", i)
		}
	}
	if limiter.Allow() {
		t.Fatal("connection past the burst should be refused")
	}
}

func TestUnlimitedAlwaysAllows(t *testing.T) {
	limiter := New(0, 0)

	for i := range 10_000 {
		if !limiter.Allow() {
			t.Fatalf("connection %d refused by unlimited limiter", i)
		}
	}
}

func TestWaitRespectsContext(t *testing.T) {
	limiter := New(0.001, 1)
	if !limiter.Allow() {
		t.Fatal("first token should be available")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := limiter.Wait(ctx); err == nil {
		t.Fatal("Wait should fail when the next token is far beyond the deadline")
	}
}

func TestDefaultBurst(t *testing.T) {
	limiter := New(4, 0)
	if got := limiter.Tokens(); got != 4 {
		t.Fatalf("Tokens() = %v, want 4", got)
	}
}
