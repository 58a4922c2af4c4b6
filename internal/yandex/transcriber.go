// Package yandex turns spoken questions into text with Yandex SpeechKit v3.
package yandex

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	stt "github.com/yandex-cloud/go-genproto/yandex/cloud/ai/stt/v3"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/metadata"
)

const (
	// DefaultTarget is the public SpeechKit endpoint.
	DefaultTarget = "stt.api.cloud.yandex.net:443"

	chunkSize = 4096 // 4 KB
)

// ErrEmptyAudio is returned when there is nothing to transcribe.
var ErrEmptyAudio = errors.New("empty audio")

// Transcriber converts recorded speech to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Options configures a SpeechKit client.
type Options struct {
	APIKey      string
	FolderID    string
	Language    string // BCP-47, e.g. ko-KR
	AudioFormat string // ogg_opus or lpcm
	SampleRate  string
	Target      string
	// ChunkDelay paces the upload of audio chunks.
	ChunkDelay time.Duration
}

// SpeechKitClient streams audio to SpeechKit over gRPC.
type SpeechKitClient struct {
	opts       Options
	sampleRate int
	logger     *slog.Logger
	conn       *grpc.ClientConn
}

// NewSpeechKitClient creates a client. Without dial options the connection
// uses TLS.
func NewSpeechKitClient(logger *slog.Logger, opts Options, dialOpts ...grpc.DialOption) (*SpeechKitClient, error) {
	if len(dialOpts) == 0 {
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(credentials.NewTLS(nil)))
	}
	if opts.Target == "" {
		opts.Target = DefaultTarget
	}
	if opts.Language == "" {
		opts.Language = "ko-KR"
	}
	if opts.AudioFormat == "" {
		opts.AudioFormat = "ogg_opus"
	}

	conn, err := grpc.NewClient(opts.Target, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create grpc connection: %w", err)
	}

	sampleRate := 48000
	if opts.SampleRate != "" {
		if s, err := strconv.Atoi(opts.SampleRate); err == nil {
			sampleRate = s
		}
	}

	return &SpeechKitClient{
		opts:       opts,
		sampleRate: sampleRate,
		logger:     logger.With("component", "speechkit_client"),
		conn:       conn,
	}, nil
}

func (c *SpeechKitClient) audioFormat() *stt.AudioFormatOptions {
	if c.opts.AudioFormat == "lpcm" {
		return &stt.AudioFormatOptions{
			AudioFormat: &stt.AudioFormatOptions_RawAudio{
				RawAudio: &stt.RawAudio{
					AudioEncoding:     stt.RawAudio_LINEAR16_PCM,
					SampleRateHertz:   int64(c.sampleRate),
					AudioChannelCount: 1,
				},
			},
		}
	}
	return &stt.AudioFormatOptions{
		AudioFormat: &stt.AudioFormatOptions_ContainerAudio{
			ContainerAudio: &stt.ContainerAudio{
				ContainerAudioType: stt.ContainerAudio_OGG_OPUS,
			},
		},
	}
}

// Transcribe streams audio and joins the final recognition results.
func (c *SpeechKitClient) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", ErrEmptyAudio
	}
	start := time.Now()

	md := metadata.New(map[string]string{
		"authorization": "Api-Key " + c.opts.APIKey,
		"x-folder-id":   c.opts.FolderID,
	})
	ctx = metadata.NewOutgoingContext(ctx, md)

	stream, err := stt.NewRecognizerClient(c.conn).RecognizeStreaming(ctx)
	if err != nil {
		recordTranscription(time.Since(start).Seconds(), false)
		return "", fmt.Errorf("failed to open stream: %w", err)
	}

	err = stream.Send(&stt.StreamingRequest{
		Event: &stt.StreamingRequest_SessionOptions{
			SessionOptions: &stt.StreamingOptions{
				RecognitionModel: &stt.RecognitionModelOptions{
					AudioFormat: c.audioFormat(),
					TextNormalization: &stt.TextNormalizationOptions{
						TextNormalization: stt.TextNormalizationOptions_TEXT_NORMALIZATION_ENABLED,
						ProfanityFilter:   true,
					},
					LanguageRestriction: &stt.LanguageRestrictionOptions{
						RestrictionType: stt.LanguageRestrictionOptions_WHITELIST,
						LanguageCode:    []string{c.opts.Language},
					},
				},
			},
		},
	})
	if err != nil {
		recordTranscription(time.Since(start).Seconds(), false)
		return "", fmt.Errorf("failed to send session options: %w", err)
	}

	for i := 0; i < len(audio); i += chunkSize {
		end := min(i+chunkSize, len(audio))
		err = stream.Send(&stt.StreamingRequest{
			Event: &stt.StreamingRequest_Chunk{
				Chunk: &stt.AudioChunk{Data: audio[i:end]},
			},
		})
		if err != nil {
			recordTranscription(time.Since(start).Seconds(), false)
			return "", fmt.Errorf("failed to send audio chunk: %w", err)
		}
		if c.opts.ChunkDelay > 0 {
			select {
			case <-ctx.Done():
				recordTranscription(time.Since(start).Seconds(), false)
				return "", ctx.Err()
			case <-time.After(c.opts.ChunkDelay):
			}
		}
	}

	if err := stream.CloseSend(); err != nil {
		recordTranscription(time.Since(start).Seconds(), false)
		return "", fmt.Errorf("failed to close send stream: %w", err)
	}

	var finals []string
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			recordTranscription(time.Since(start).Seconds(), false)
			return "", fmt.Errorf("failed to receive from stream: %w", err)
		}

		if final := resp.GetFinal(); final != nil {
			if len(final.Alternatives) > 0 && final.Alternatives[0].Text != "" {
				finals = append(finals, final.Alternatives[0].Text)
			}
		} else if partial := resp.GetPartial(); partial != nil && len(partial.Alternatives) > 0 {
			c.logger.Debug("partial recognition result", "text", partial.Alternatives[0].Text)
		}
	}

	text := strings.Join(finals, " ")
	recordTranscription(time.Since(start).Seconds(), true)
	c.logger.Info("speech recognized", "chars", len(text), "duration", time.Since(start))
	return text, nil
}

// Close closes the gRPC connection.
func (c *SpeechKitClient) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
