package dialogue

import (
	"context"
	"encoding/json"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/wrapperspb"

	apperrors "github.com/awslabs/aws-lex-browser-audio-capture/internal/errors"
	"github.com/awslabs/aws-lex-browser-audio-capture/internal/resilience"
	"github.com/awslabs/aws-lex-browser-audio-capture/internal/trace"
)

// relayServiceDesc describes the relay: one unary method whose body is the
// captured audio and whose request/reply fields travel as metadata.
var relayServiceDesc = grpc.ServiceDesc{
	ServiceName: relayServiceName,
	HandlerType: (*Client)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "PostContent", Handler: relayPostContentHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "dialogue/relay",
}

// RegisterRelay serves backend on s, typically a LexClient.
func RegisterRelay(s grpc.ServiceRegistrar, backend Client) {
	s.RegisterService(&relayServiceDesc, backend)
}

func relayPostContentHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return servePostContent(ctx, srv.(Client), req.(*wrapperspb.BytesValue))
	}
	if interceptor == nil {
		return handler(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: relayPostContentMethod}
	return interceptor(ctx, in, info, handler)
}

func servePostContent(ctx context.Context, backend Client, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	req := &Request{
		BotName:     first(md, mdBotName),
		BotAlias:    first(md, mdBotAlias),
		UserID:      first(md, mdUserID),
		ContentType: first(md, mdContentType),
		Accept:      first(md, mdAccept),
		InputStream: in.GetValue(),
	}
	if raw := first(md, mdSessionAttributes); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.SessionAttributes); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInvalidArgument, "invalid session attributes")
		}
	}
	if req.BotName == "" {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, MsgNoBotName)
	}

	reply, err := backend.PostContent(ctx, req)
	if err != nil {
		trace.Logger(ctx).Warn("relay backend failed", "bot", req.BotName, "error", err)
		if _, ok := apperrors.As(err); ok {
			return nil, err
		}
		return nil, apperrors.Wrap(err, apperrors.CodeRemoteFailure, "postContent failed")
	}

	header := metadata.Pairs(
		mdContentType, reply.ContentType,
		mdDialogState, reply.DialogState,
		mdMessage, reply.Message,
		mdIntentName, reply.IntentName,
		mdSlotToElicit, reply.SlotToElicit,
		mdSessionID, reply.SessionID,
	)
	if len(reply.SessionAttributes) > 0 {
		if attrs, err := json.Marshal(reply.SessionAttributes); err == nil {
			header.Set(mdSessionAttributes, string(attrs))
		}
	}
	if err := grpc.SetHeader(ctx, header); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "setting reply header")
	}
	return wrapperspb.Bytes(reply.AudioStream), nil
}

// RelayClient reaches a Client served by RegisterRelay over gRPC.
type RelayClient struct {
	conn  *grpc.ClientConn
	owned bool
	retry resilience.RetryConfig
}

// RelayOption configures a RelayClient.
type RelayOption func(*RelayClient)

// WithRetry retries transient relay failures. The default never retries.
func WithRetry(cfg resilience.RetryConfig) RelayOption {
	return func(c *RelayClient) { c.retry = cfg }
}

// DialRelay connects to a relay at addr.
func DialRelay(addr string, opts ...RelayOption) (*RelayClient, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(trace.UnaryClientInterceptor()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:    DefaultKeepaliveTime,
			Timeout: DefaultKeepaliveTimeout,
		}),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(MaxMessageSize),
			grpc.MaxCallSendMsgSize(MaxMessageSize),
		),
	)
	if err != nil {
		return nil, err
	}
	c := NewRelayClient(conn, opts...)
	c.owned = true
	return c, nil
}

// NewRelayClient wraps an existing connection; Close leaves it open.
func NewRelayClient(conn *grpc.ClientConn, opts ...RelayOption) *RelayClient {
	c := &RelayClient{conn: conn, retry: resilience.RetryConfig{MaxRetries: 0}}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Close closes the connection if DialRelay opened it.
func (c *RelayClient) Close() error {
	if !c.owned {
		return nil
	}
	return c.conn.Close()
}

// PostContent forwards req through the relay.
func (c *RelayClient) PostContent(ctx context.Context, req *Request) (*Reply, error) {
	r := req.WithDefaults()
	md := metadata.Pairs(
		mdBotName, r.BotName,
		mdBotAlias, r.BotAlias,
		mdUserID, r.UserID,
		mdContentType, r.ContentType,
		mdAccept, r.Accept,
	)
	if len(r.SessionAttributes) > 0 {
		attrs, err := json.Marshal(r.SessionAttributes)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInvalidArgument, "invalid session attributes")
		}
		md.Set(mdSessionAttributes, string(attrs))
	}
	ctx = metadata.NewOutgoingContext(ctx, md)

	var (
		out    = new(wrapperspb.BytesValue)
		header metadata.MD
	)
	err := resilience.Retry(ctx, c.retry, func() error {
		header = nil
		return c.conn.Invoke(ctx, relayPostContentMethod, wrapperspb.Bytes(r.InputStream), out, grpc.Header(&header))
	})
	if err != nil {
		appErr := apperrors.FromGRPCError(err)
		if appErr.Code == apperrors.CodeUnknown || appErr.Code == apperrors.CodeUnavailable {
			appErr = apperrors.Wrap(err, apperrors.CodeRemoteFailure, "relay postContent failed")
		}
		return nil, appErr
	}

	reply := &Reply{
		ContentType:  first(header, mdContentType),
		AudioStream:  out.GetValue(),
		DialogState:  first(header, mdDialogState),
		Message:      first(header, mdMessage),
		IntentName:   first(header, mdIntentName),
		SlotToElicit: first(header, mdSlotToElicit),
		SessionID:    first(header, mdSessionID),
	}
	if raw := first(header, mdSessionAttributes); raw != "" {
		if err := json.Unmarshal([]byte(raw), &reply.SessionAttributes); err != nil {
			slog.Warn("ignoring malformed relay session attributes", "error", err)
		}
	}
	return reply, nil
}

func first(md metadata.MD, key string) string {
	if v := md.Get(key); len(v) > 0 {
		return v[0]
	}
	return ""
}
