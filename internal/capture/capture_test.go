package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/glance/internal/normalize"
	"github.com/hpungsan/glance/internal/protocol"
	"github.com/hpungsan/glance/internal/render"
)

// toAny round-trips a typed value through JSON so it looks like freshly
// decoded wire data, which is what a real transport hands back.
func toAny(t *testing.T, v any) any {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	var out any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func respondWith(t *testing.T, capture protocol.BrowserContext) Transport {
	return func(_ context.Context, req *protocol.Envelope[protocol.CaptureRequest]) (any, error) {
		env := protocol.Envelope[protocol.ExtensionResponse]{
			ID:        "resp-" + req.ID,
			Type:      protocol.TypeCaptureResponse,
			Timestamp: req.Timestamp,
			Payload: protocol.ExtensionResponse{
				ProtocolVersion: protocol.Version,
				Capture:         capture,
			},
		}
		return toAny(t, env), nil
	}
}

func sampleCapture() protocol.BrowserContext {
	return protocol.BrowserContext{
		Source:   "browser",
		Browser:  protocol.BrowserChrome,
		URL:      "https://example.com/post",
		Title:    "Example Post",
		FullText: "The post explains the feature. It also lists caveats.",
		Headings: []protocol.Heading{{Level: 1, Text: "Example Post"}},
		Links:    []protocol.Link{{Text: "home", Href: "https://example.com"}},
	}
}

func fixedOptions() Options {
	counter := 0
	return Options{
		RequestID: "req-fixed",
		TimeoutMs: 1000,
		Now:       func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC) },
		NewID: func() string {
			counter++
			return fmt.Sprintf("id-%d", counter)
		},
	}
}

func TestRunSuccess(t *testing.T) {
	result := Run(context.Background(), respondWith(t, sampleCapture()), fixedOptions())

	require.NotNil(t, result)
	assert.Equal(t, normalize.MethodBrowserExtension, result.ExtractionMethod)
	assert.Empty(t, result.ErrorCode)
	require.NotNil(t, result.Response)
	assert.Equal(t, "Example Post", result.Payload.Title)
	assert.Equal(t, "req-fixed", result.Context.ID)
	assert.Equal(t, 0.92, result.Context.Confidence)
	assert.NoError(t, render.Verify(result.Markdown))
}

func TestRunRequestEnvelope(t *testing.T) {
	var seen *protocol.Envelope[protocol.CaptureRequest]
	send := func(_ context.Context, req *protocol.Envelope[protocol.CaptureRequest]) (any, error) {
		seen = req
		return nil, fmt.Errorf("stop here")
	}

	opts := fixedOptions()
	opts.IncludeSelectionText = true
	Run(context.Background(), send, opts)

	require.NotNil(t, seen)
	assert.Equal(t, protocol.TypeCaptureRequest, seen.Type)
	assert.Equal(t, protocol.Version, seen.Payload.ProtocolVersion)
	assert.Equal(t, "req-fixed", seen.Payload.RequestID)
	assert.Equal(t, protocol.ModeManualHotkey, seen.Payload.Mode)
	assert.Equal(t, 1000, seen.Payload.TimeoutMs)
	assert.True(t, seen.Payload.IncludeSelectionText)
	assert.Equal(t, "2026-03-04T05:06:07Z", seen.Timestamp)
	assert.Equal(t, seen.Timestamp, seen.Payload.RequestedAt)
}

func TestRunTimeout(t *testing.T) {
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	never := func(_ context.Context, _ *protocol.Envelope[protocol.CaptureRequest]) (any, error) {
		<-block
		return nil, nil
	}

	opts := fixedOptions()
	opts.TimeoutMs = 50
	start := time.Now()
	result := Run(context.Background(), never, opts)
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 500*time.Millisecond, "timeout must cut the wait short")
	assert.Equal(t, protocol.ErrTimeout, result.ErrorCode)
	assert.Equal(t, normalize.MethodMetadataOnly, result.ExtractionMethod)
	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0], "timed out after 50ms")
	assert.Contains(t, result.Warnings[0], string(protocol.ErrTimeout))
	assert.NoError(t, render.Verify(result.Markdown))
}

func TestRunContextCancelled(t *testing.T) {
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	never := func(_ context.Context, _ *protocol.Envelope[protocol.CaptureRequest]) (any, error) {
		<-block
		return nil, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := Run(ctx, never, fixedOptions())

	assert.Equal(t, protocol.ErrTimeout, result.ErrorCode)
	assert.Equal(t, normalize.MethodMetadataOnly, result.ExtractionMethod)
}

func TestRunTransportError(t *testing.T) {
	send := func(_ context.Context, _ *protocol.Envelope[protocol.CaptureRequest]) (any, error) {
		return nil, fmt.Errorf("helper exited with status 1")
	}

	result := Run(context.Background(), send, fixedOptions())
	assert.Equal(t, protocol.ErrExtensionUnavailable, result.ErrorCode)
	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0], "helper exited with status 1")
}

func TestRunErrorEnvelopePassthrough(t *testing.T) {
	send := func(_ context.Context, req *protocol.Envelope[protocol.CaptureRequest]) (any, error) {
		env := protocol.Envelope[protocol.ErrorPayload]{
			ID:        "err-1",
			Type:      protocol.TypeCaptureError,
			Timestamp: req.Timestamp,
			Payload: protocol.ErrorPayload{
				ProtocolVersion: protocol.Version,
				Code:            protocol.ErrExtensionUnavailable,
				Message:         "no tab has focus",
				Recoverable:     true,
			},
		}
		return toAny(t, env), nil
	}

	result := Run(context.Background(), send, fixedOptions())
	// The extension's own code and message survive untouched.
	assert.Equal(t, protocol.ErrExtensionUnavailable, result.ErrorCode)
	require.NotEmpty(t, result.Warnings)
	assert.Equal(t, "capture failed: no tab has focus (ERR_EXTENSION_UNAVAILABLE)", result.Warnings[0])
}

func TestRunVersionMismatch(t *testing.T) {
	send := func(_ context.Context, req *protocol.Envelope[protocol.CaptureRequest]) (any, error) {
		env := map[string]any{
			"id":        "resp-1",
			"type":      protocol.TypeCaptureResponse,
			"timestamp": req.Timestamp,
			"payload": map[string]any{
				"protocolVersion": "0.9",
				"capture":         toAny(t, sampleCapture()),
			},
		}
		return env, nil
	}

	result := Run(context.Background(), send, fixedOptions())
	assert.Equal(t, protocol.ErrProtocolVersion, result.ErrorCode)
	assert.Equal(t, normalize.MethodMetadataOnly, result.ExtractionMethod)
}

func TestRunOversizedResponse(t *testing.T) {
	capture := sampleCapture()
	capture.FullText = strings.Repeat("a", protocol.MaxFullTextChars+1)

	result := Run(context.Background(), respondWith(t, capture), fixedOptions())
	// Size violations reject the response outright rather than truncating.
	assert.Equal(t, protocol.ErrPayloadTooLarge, result.ErrorCode)
	assert.Equal(t, normalize.MethodMetadataOnly, result.ExtractionMethod)
	assert.Empty(t, result.Payload.FullText)
}

func TestRunShapeViolation(t *testing.T) {
	send := func(_ context.Context, req *protocol.Envelope[protocol.CaptureRequest]) (any, error) {
		env := map[string]any{
			"id":        "resp-1",
			"type":      protocol.TypeCaptureResponse,
			"timestamp": req.Timestamp,
			"payload": map[string]any{
				"protocolVersion": protocol.Version,
				"capture": map[string]any{
					"source": "browser",
					// browser, url, title, fullText all missing
				},
			},
		}
		return env, nil
	}

	result := Run(context.Background(), send, fixedOptions())
	assert.Equal(t, protocol.ErrPayloadInvalid, result.ErrorCode)
}

func TestRunFallbackSentinels(t *testing.T) {
	send := func(_ context.Context, _ *protocol.Envelope[protocol.CaptureRequest]) (any, error) {
		return nil, fmt.Errorf("boom")
	}

	result := Run(context.Background(), send, fixedOptions())
	assert.Equal(t, FallbackURL, result.Payload.URL)
	assert.Equal(t, FallbackTitle, result.Payload.Title)
	assert.Contains(t, result.Markdown, `origin: "about:blank"`)
	assert.Contains(t, result.Markdown, `title: "(untitled)"`)

	opts := fixedOptions()
	opts.URL = "https://known.example/page"
	opts.Title = "Known Page"
	opts.SiteName = "Known Site"
	result = Run(context.Background(), send, opts)
	assert.Equal(t, "https://known.example/page", result.Payload.URL)
	assert.Equal(t, "Known Page", result.Payload.Title)
	assert.Equal(t, "Known Site", result.Context.AppOrSite)
}

func TestRunFallbackMarkdownStructure(t *testing.T) {
	send := func(_ context.Context, _ *protocol.Envelope[protocol.CaptureRequest]) (any, error) {
		return nil, fmt.Errorf("boom")
	}

	result := Run(context.Background(), send, fixedOptions())
	require.NoError(t, render.Verify(result.Markdown))
	assert.Contains(t, result.Markdown, `extraction_method: "metadata_only"`)
	assert.Contains(t, result.Markdown, "confidence: 0.45")
	assert.Contains(t, result.Markdown, "- (none)")
}

func TestNewULID(t *testing.T) {
	a := NewULID()
	b := NewULID()
	assert.Len(t, a, 26)
	assert.NotEqual(t, a, b)
}
