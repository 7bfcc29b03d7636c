package provider

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrapStatus(t *testing.T) {
	cases := []struct {
		status int
		want   ErrorKind
	}{
		{401, ErrKindAuth},
		{403, ErrKindAuth},
		{429, ErrKindRateLimit},
		{500, ErrKindOther},
		{400, ErrKindOther},
	}
	for _, c := range cases {
		err := WrapStatus(c.status, errors.New("boom"))
		if got := KindOf(err); got != c.want {
			t.Errorf("status %d: expected %s, got %s", c.status, c.want, got)
		}
	}

	if WrapStatus(500, nil) != nil {
		t.Error("nil error must pass through as nil")
	}
}

func TestKindOfWrappedChain(t *testing.T) {
	inner := WrapStatus(429, errors.New("slow down"))
	outer := fmt.Errorf("turn failed: %w", inner)
	if got := KindOf(outer); got != ErrKindRateLimit {
		t.Errorf("kind must survive wrapping, got %s", got)
	}

	if got := KindOf(errors.New("plain")); got != ErrKindOther {
		t.Errorf("uncategorized errors default to other, got %s", got)
	}
}

func TestErrorMessagePrefixes(t *testing.T) {
	auth := WrapStatus(401, errors.New("bad key"))
	if msg := auth.Error(); msg == "bad key" {
		t.Errorf("auth errors must carry the credentials prefix, got %q", msg)
	}
	if !errors.Is(auth, errors.Unwrap(auth)) {
		t.Error("wrapped error must unwrap to the original")
	}
}
