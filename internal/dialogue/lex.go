package dialogue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lexruntimeservice"

	apperrors "github.com/awslabs/aws-lex-browser-audio-capture/internal/errors"
	"github.com/awslabs/aws-lex-browser-audio-capture/internal/trace"
)

// Validation messages for NewLex.
const (
	MsgNoCredentials = "AWS Credentials must be provided."
	MsgNoRegion      = "A Region value must be provided."
)

var errNoProvider = errors.New("no credential provider configured")

// lexAPI is the subset of the Lex runtime client used here.
type lexAPI interface {
	PostContent(ctx context.Context, params *lexruntimeservice.PostContentInput, optFns ...func(*lexruntimeservice.Options)) (*lexruntimeservice.PostContentOutput, error)
}

// LexClient calls Amazon Lex PostContent.
type LexClient struct {
	api lexAPI
}

// NewLex builds a Lex runtime client from cfg. Credentials and a region are
// required; the credential provider is resolved once here so a missing chain
// fails at startup instead of on the first turn.
func NewLex(ctx context.Context, cfg aws.Config) (*LexClient, error) {
	if err := checkCredentials(ctx, cfg.Credentials); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInvalidArgument, MsgNoCredentials)
	}
	if cfg.Region == "" {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, MsgNoRegion)
	}
	return &LexClient{api: lexruntimeservice.NewFromConfig(cfg)}, nil
}

// checkCredentials resolves p and rejects providers that yield no keys,
// anonymous credentials included.
func checkCredentials(ctx context.Context, p aws.CredentialsProvider) error {
	if p == nil {
		return errNoProvider
	}
	creds, err := p.Retrieve(ctx)
	if err != nil {
		return err
	}
	if !creds.HasKeys() {
		return errNoProvider
	}
	return nil
}

// PostContent sends req.InputStream to the bot and reads the whole reply.
func (c *LexClient) PostContent(ctx context.Context, req *Request) (*Reply, error) {
	r := req.WithDefaults()
	log := trace.Logger(ctx)

	in := &lexruntimeservice.PostContentInput{
		BotName:     aws.String(r.BotName),
		BotAlias:    aws.String(r.BotAlias),
		UserId:      aws.String(r.UserID),
		ContentType: aws.String(r.ContentType),
		Accept:      aws.String(r.Accept),
		InputStream: bytes.NewReader(r.InputStream),
	}
	if len(r.SessionAttributes) > 0 {
		attrs, err := json.Marshal(r.SessionAttributes)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInvalidArgument, "invalid session attributes")
		}
		in.SessionAttributes = aws.String(string(attrs))
	}

	out, err := c.api.PostContent(ctx, in)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeRemoteFailure, "postContent failed").
			WithMetadata("bot", r.BotName)
	}

	reply := &Reply{
		ContentType:  aws.ToString(out.ContentType),
		DialogState:  string(out.DialogState),
		Message:      aws.ToString(out.Message),
		IntentName:   aws.ToString(out.IntentName),
		SlotToElicit: aws.ToString(out.SlotToElicit),
		SessionID:    aws.ToString(out.SessionId),
	}
	if out.SessionAttributes != nil && *out.SessionAttributes != "" {
		if err := json.Unmarshal([]byte(*out.SessionAttributes), &reply.SessionAttributes); err != nil {
			log.Warn("ignoring malformed session attributes", "error", err)
		}
	}
	if out.AudioStream != nil {
		defer out.AudioStream.Close()
		audio, err := io.ReadAll(out.AudioStream)
		if err != nil {
			return nil, apperrors.Wrapf(err, apperrors.CodeRemoteFailure, "reading reply audio from %s", r.BotName)
		}
		reply.AudioStream = audio
	}

	log.Debug("lex reply",
		slog.String("dialog_state", reply.DialogState),
		slog.String("intent", reply.IntentName),
		slog.String("content_type", reply.ContentType),
		slog.Int("audio_bytes", len(reply.AudioStream)))
	return reply, nil
}
