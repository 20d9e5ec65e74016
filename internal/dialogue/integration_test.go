package dialogue_test

import (
	"context"
	"math"
	"net"
	"os"
	"testing"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"google.golang.org/grpc"

	"github.com/awslabs/aws-lex-browser-audio-capture/internal/audio"
	"github.com/awslabs/aws-lex-browser-audio-capture/internal/dialogue"
	"github.com/awslabs/aws-lex-browser-audio-capture/internal/trace"
)

const testTimeout = 20 * time.Second

// requireLex skips unless INTEGRATION_TEST=1 and a bot name is configured.
func requireLex(t *testing.T) (*dialogue.LexClient, string) {
	t.Helper()
	if os.Getenv("INTEGRATION_TEST") != "1" {
		t.Skip("set INTEGRATION_TEST=1 to run against Amazon Lex")
	}
	bot := os.Getenv("LEX_BOT_NAME")
	if bot == "" {
		t.Skip("LEX_BOT_NAME not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		t.Fatalf("LoadDefaultConfig: %v", err)
	}
	c, err := dialogue.NewLex(ctx, cfg)
	if err != nil {
		t.Fatalf("NewLex: %v", err)
	}
	return c, bot
}

// toneWAV returns one second of a quiet 440Hz tone as 16kHz WAV.
func toneWAV() []byte {
	samples := make([]float32, audio.DefaultExportSampleRate)
	for i := range samples {
		samples[i] = float32(0.1 * math.Sin(2*math.Pi*440*float64(i)/audio.DefaultExportSampleRate))
	}
	return audio.EncodeWAV(samples, audio.DefaultExportSampleRate)
}

func TestLexPostContentLive(t *testing.T) {
	c, bot := requireLex(t)
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	reply, err := c.PostContent(ctx, &dialogue.Request{BotName: bot, InputStream: toneWAV()})
	if err != nil {
		t.Fatalf("PostContent: %v", err)
	}
	if reply.DialogState == "" {
		t.Error("reply has no dialog state")
	}
	t.Logf("dialog_state=%s content_type=%s audio=%d bytes", reply.DialogState, reply.ContentType, len(reply.AudioStream))
}

func TestRelayLive(t *testing.T) {
	c, bot := requireLex(t)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := grpc.NewServer(grpc.UnaryInterceptor(trace.UnaryServerInterceptor()))
	dialogue.RegisterRelay(srv, c)
	go func() { _ = srv.Serve(lis) }()
	defer srv.Stop()

	relay, err := dialogue.DialRelay(lis.Addr().String())
	if err != nil {
		t.Fatalf("DialRelay: %v", err)
	}
	defer relay.Close()

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	reply, err := relay.PostContent(ctx, &dialogue.Request{BotName: bot, InputStream: toneWAV()})
	if err != nil {
		t.Fatalf("relay PostContent: %v", err)
	}
	if reply.DialogState == "" {
		t.Error("relayed reply has no dialog state")
	}
}
