package errors

import (
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestAppErrorString(t *testing.T) {
	err := New(CodeUnsupported, "Audio is not supported.")
	if got := err.Error(); got != "[UNSUPPORTED] Audio is not supported." {
		t.Errorf("Error() = %q", got)
	}

	wrapped := Wrap(fmt.Errorf("boom"), CodeRemoteFailure, "postContent failed").WithMetadata("bot", "OrderFlowers")
	want := "[REMOTE_FAILURE] postContent failed map[bot:OrderFlowers] caused by: boom"
	if got := wrapped.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestIsCodeThroughWrapping(t *testing.T) {
	base := New(CodeInvalidArgument, "bad rate")
	err := fmt.Errorf("export: %w", base)

	if !IsCode(err, CodeInvalidArgument) {
		t.Error("IsCode should see through fmt wrapping")
	}
	if IsCode(err, CodeInternal) {
		t.Error("IsCode matched the wrong code")
	}
	if IsCode(fmt.Errorf("plain"), CodeUnknown) {
		t.Error("plain errors carry no code")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{New(CodeUnavailable, "down"), true},
		{New(CodeTimeout, "slow"), true},
		{New(CodeRemoteFailure, "lex said no"), false},
		{New(CodeInvalidArgument, "bad"), false},
		{fmt.Errorf("plain"), false},
	}

	for _, tt := range tests {
		if got := IsRetryable(tt.err); got != tt.want {
			t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestGRPCRoundTrip(t *testing.T) {
	orig := New(CodeUnsupported, "Audio is not supported.").WithMetadata("device", "none")

	st := orig.GRPCStatus()
	if st.Code() != codes.FailedPrecondition {
		t.Errorf("grpc code = %v, want FailedPrecondition", st.Code())
	}

	back := FromGRPCError(st.Err())
	if back.Code != CodeUnsupported {
		t.Errorf("Code = %v, want UNSUPPORTED", back.Code)
	}
	if back.Message != "Audio is not supported." {
		t.Errorf("Message = %q", back.Message)
	}
	if back.Metadata["device"] != "none" {
		t.Errorf("Metadata = %v", back.Metadata)
	}
	if _, ok := back.Metadata[metaMessage]; ok {
		t.Error("message key should not leak into Metadata")
	}
}

func TestFromGRPCErrorFallback(t *testing.T) {
	tests := []struct {
		code codes.Code
		want Code
	}{
		{codes.Unavailable, CodeUnavailable},
		{codes.DeadlineExceeded, CodeTimeout},
		{codes.InvalidArgument, CodeInvalidArgument},
		{codes.PermissionDenied, CodeUnknown},
	}

	for _, tt := range tests {
		got := FromGRPCError(status.Error(tt.code, "x"))
		if got.Code != tt.want {
			t.Errorf("FromGRPCError(%v).Code = %v, want %v", tt.code, got.Code, tt.want)
		}
	}

	if FromGRPCError(nil) != nil {
		t.Error("nil error should map to nil")
	}
	if got := FromGRPCError(fmt.Errorf("plain")); got.Code != CodeUnknown {
		t.Errorf("plain error Code = %v, want UNKNOWN", got.Code)
	}
}

func TestParseCode(t *testing.T) {
	for c, name := range codeNames {
		if ParseCode(name) != c {
			t.Errorf("ParseCode(%q) = %v, want %v", name, ParseCode(name), c)
		}
	}
	if ParseCode("NOPE") != CodeUnknown {
		t.Error("unknown name should map to CodeUnknown")
	}
}
