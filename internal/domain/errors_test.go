package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestNetworkError(t *testing.T) {
	baseErr := errors.New("connection refused")

	err := NewNetworkError("dial", baseErr)

	if !err.IsRetriable() {
		t.Error("Expected error to be retriable")
	}
	if err.Error() != "dial: connection refused" {
		t.Errorf("Error message = %q, want %q", err.Error(), "dial: connection refused")
	}
	if !errors.Is(err, baseErr) {
		t.Error("Expected error to wrap baseErr")
	}
}

func TestDecodeError(t *testing.T) {
	baseErr := errors.New("unexpected end of JSON input")

	t.Run("short payloads kept whole", func(t *testing.T) {
		err := NewDecodeError(ChannelTelemetry, []byte(`{"metrics":`), baseErr)
		if err.IsRetriable() {
			t.Error("DecodeError should never be retriable")
		}
		if err.Preview != `{"metrics":` {
			t.Errorf("Preview = %q", err.Preview)
		}
		if !errors.Is(err, baseErr) {
			t.Error("Expected error to wrap baseErr")
		}
	})

	t.Run("long payloads truncated", func(t *testing.T) {
		payload := []byte(strings.Repeat("x", 500))
		err := NewDecodeError(ChannelBalance, payload, baseErr)
		if len(err.Preview) > maxPreviewLen+3 {
			t.Errorf("Preview length %d exceeds bound", len(err.Preview))
		}
		if !strings.HasSuffix(err.Preview, "...") {
			t.Error("truncated preview should end in ellipsis")
		}
	})
}

func TestIsRetriableHelper(t *testing.T) {
	retriable := NewNetworkError("read", errors.New("reset"))
	decode := NewDecodeError(ChannelLog, []byte("oops"), errors.New("bad"))
	plain := errors.New("plain error")

	if !IsRetriable(retriable) {
		t.Error("IsRetriable should return true for network error")
	}
	if IsRetriable(decode) {
		t.Error("IsRetriable should return false for decode error")
	}
	if IsRetriable(plain) {
		t.Error("IsRetriable should return false for plain error")
	}
}
