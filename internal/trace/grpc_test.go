package trace

import (
	"context"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

func TestInjectMetadata(t *testing.T) {
	tc := Context{TraceID: "trace123", SpanID: "span456", ParentSpanID: "parent789"}
	ctx := WithContext(context.Background(), tc)
	ctx = metadata.AppendToOutgoingContext(ctx, "x-lex-bot-name", "OrderFlowers")

	md, _ := metadata.FromOutgoingContext(injectMetadata(ctx))

	if got := md.Get(TraceIDKey); len(got) != 1 || got[0] != "trace123" {
		t.Errorf("trace id = %v", got)
	}
	if got := md.Get(ParentSpanIDKey); len(got) != 1 || got[0] != "parent789" {
		t.Errorf("parent span id = %v", got)
	}
	if got := md.Get("x-lex-bot-name"); len(got) != 1 {
		t.Error("existing metadata should be kept")
	}
}

func TestInjectMetadataStartsTrace(t *testing.T) {
	ctx := injectMetadata(context.Background())
	if _, ok := FromContext(ctx); !ok {
		t.Error("injectMetadata should attach a trace context")
	}
}

func TestFromMetadata(t *testing.T) {
	tc := FromMetadata(metadata.Pairs(TraceIDKey, "trace123", SpanIDKey, "span456"))

	if tc.TraceID != "trace123" {
		t.Error("trace ID mismatch")
	}
	if tc.ParentSpanID != "span456" {
		t.Error("parent span should be caller's span")
	}
	if len(tc.SpanID) != 16 {
		t.Error("should generate new span ID")
	}

	if fresh := FromMetadata(nil); len(fresh.TraceID) != 32 {
		t.Error("should generate trace ID if missing")
	}
}

func TestUnaryServerInterceptor(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(TraceIDKey, "trace123"))
	info := &grpc.UnaryServerInfo{FullMethod: "/test/Method"}

	var seen Context
	_, err := UnaryServerInterceptor()(ctx, nil, info, func(ctx context.Context, _ any) (any, error) {
		seen, _ = FromContext(ctx)
		return nil, nil
	})
	if err != nil {
		t.Fatalf("interceptor error: %v", err)
	}
	if seen.TraceID != "trace123" {
		t.Errorf("handler trace id = %q, want trace123", seen.TraceID)
	}
}
