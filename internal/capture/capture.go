// Package capture drives a single capture attempt: it builds the request
// envelope, races the injected transport against the request timeout,
// validates whatever comes back, and finalizes both the success and the
// fallback branch through the same normalize + render path. Run never
// returns an error; failure only shows up as a metadata_only result with a
// warning and an error code.
package capture

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/glance/internal/normalize"
	"github.com/hpungsan/glance/internal/protocol"
	"github.com/hpungsan/glance/internal/render"
)

// DefaultTimeoutMs bounds the transport call when the caller does not say
// otherwise.
const DefaultTimeoutMs = 4000

// Fallback sentinels used when the caller supplied no page metadata.
const (
	FallbackURL   = "about:blank"
	FallbackTitle = "(untitled)"
)

// Transport is the injected send function. It may return an error (transport
// failure) or any value at all; the value is validated by the protocol
// package. The concrete transport (process spawn, AppleScript shim) lives
// outside this package.
type Transport func(ctx context.Context, req *protocol.Envelope[protocol.CaptureRequest]) (any, error)

// Options configures one capture attempt. Zero values get defaults; Now and
// NewID are injectable so tests can pin timestamps and ids.
type Options struct {
	RequestID            string
	Mode                 protocol.CaptureMode
	TimeoutMs            int
	IncludeSelectionText bool

	// Caller-known page metadata, used only to synthesize the fallback
	// payload. Unknown fields fall back to the sentinels.
	URL      string
	Title    string
	SiteName string

	Now   func() time.Time
	NewID func() string
}

// Result is the caller-facing outcome of one attempt. Response and ErrorCode
// are each present only on their branch; everything else is always set.
type Result struct {
	Request          *protocol.Envelope[protocol.CaptureRequest]    `json:"request"`
	Response         *protocol.Envelope[protocol.ExtensionResponse] `json:"response,omitempty"`
	ExtractionMethod normalize.ExtractionMethod                     `json:"extraction_method"`
	Warnings         []string                                       `json:"warnings"`
	ErrorCode        protocol.ErrorCode                             `json:"error_code,omitempty"`
	Payload          *protocol.BrowserContext                       `json:"payload"`
	Context          *normalize.Context                             `json:"context"`
	Markdown         string                                         `json:"markdown"`
}

// sendOutcome carries the transport result across the timeout race.
type sendOutcome struct {
	value any
	err   error
}

// Run performs one capture attempt. It always produces a complete Result
// with rendered markdown; no branch raises to the caller. Retry policy
// belongs to the caller, not here.
func Run(ctx context.Context, send Transport, opts Options) *Result {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	newID := opts.NewID
	if newID == nil {
		newID = NewULID
	}
	timeoutMs := opts.TimeoutMs
	if timeoutMs <= 0 {
		timeoutMs = DefaultTimeoutMs
	}
	mode := opts.Mode
	if mode == "" {
		mode = protocol.ModeManualHotkey
	}
	requestID := opts.RequestID
	if requestID == "" {
		requestID = newID()
	}

	timestamp := now().UTC().Format(time.RFC3339Nano)
	req := &protocol.Envelope[protocol.CaptureRequest]{
		ID:        newID(),
		Type:      protocol.TypeCaptureRequest,
		Timestamp: timestamp,
		Payload: protocol.CaptureRequest{
			ProtocolVersion:      protocol.Version,
			RequestID:            requestID,
			Mode:                 mode,
			RequestedAt:          timestamp,
			TimeoutMs:            timeoutMs,
			IncludeSelectionText: opts.IncludeSelectionText,
		},
	}

	timeout := time.Duration(timeoutMs) * time.Millisecond
	sendCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Buffered so a transport that resolves after the race is decided can
	// still complete its send; the late value is discarded, never applied.
	outcomes := make(chan sendOutcome, 1)
	go func() {
		value, err := send(sendCtx, req)
		outcomes <- sendOutcome{value: value, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-timer.C:
		return fallback(req, requestID, timestamp, opts,
			protocol.ErrTimeout, fmt.Sprintf("capture timed out after %dms", timeoutMs))
	case <-ctx.Done():
		return fallback(req, requestID, timestamp, opts,
			protocol.ErrTimeout, "capture cancelled before completion")
	case outcome := <-outcomes:
		if outcome.err != nil {
			return fallback(req, requestID, timestamp, opts,
				protocol.ErrExtensionUnavailable, fmt.Sprintf("extension transport failed: %v", outcome.err))
		}
		// A well-formed error envelope keeps its own code and message; it is
		// never overridden with a generic one.
		if errEnv, ok := protocol.DecodeErrorEnvelope(outcome.value); ok {
			return fallback(req, requestID, timestamp, opts,
				errEnv.Payload.Code, errEnv.Payload.Message)
		}
		validated := protocol.ValidateResponse(outcome.value)
		if !validated.OK {
			first := validated.Issues[0]
			return fallback(req, requestID, timestamp, opts, first.Code, first.Message)
		}
		return success(req, validated.Response, requestID, timestamp)
	}
}

// success finalizes the happy path: the extraction method is the browser
// extension, and warnings come from the payload alone.
func success(req *protocol.Envelope[protocol.CaptureRequest], resp *protocol.Envelope[protocol.ExtensionResponse], requestID, timestamp string) *Result {
	payload := resp.Payload.Capture
	nctx := normalize.Normalize(&payload, normalize.Meta{
		ID:         requestID,
		CapturedAt: timestamp,
		Method:     normalize.MethodBrowserExtension,
	})
	return &Result{
		Request:          req,
		Response:         resp,
		ExtractionMethod: normalize.MethodBrowserExtension,
		Warnings:         nctx.CaptureWarnings,
		Payload:          &payload,
		Context:          nctx,
		Markdown:         render.Markdown(nctx, &payload),
	}
}

// fallback synthesizes a metadata-only payload from caller-supplied page
// metadata and finalizes it through the same normalize + render path as
// success, so the output contract is identical on both branches.
func fallback(req *protocol.Envelope[protocol.CaptureRequest], requestID, timestamp string, opts Options, code protocol.ErrorCode, message string) *Result {
	url := opts.URL
	if url == "" {
		url = FallbackURL
	}
	title := opts.Title
	if title == "" {
		title = FallbackTitle
	}

	payload := &protocol.BrowserContext{
		Source:   "browser",
		URL:      url,
		Title:    title,
		SiteName: opts.SiteName,
		FullText: "",
		Headings: []protocol.Heading{},
		Links:    []protocol.Link{},
	}
	warning := fmt.Sprintf("capture failed: %s (%s)", message, code)
	nctx := normalize.Normalize(payload, normalize.Meta{
		ID:         requestID,
		CapturedAt: timestamp,
		Method:     normalize.MethodMetadataOnly,
		Warnings:   []string{warning},
	})
	return &Result{
		Request:          req,
		ExtractionMethod: normalize.MethodMetadataOnly,
		Warnings:         nctx.CaptureWarnings,
		ErrorCode:        code,
		Payload:          payload,
		Context:          nctx,
		Markdown:         render.Markdown(nctx, payload),
	}
}

// NewULID returns a fresh ULID string with crypto/rand entropy.
func NewULID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		// crypto/rand never fails on supported platforms; fall back to a
		// timestamp-only id rather than panicking in the capture path.
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return id.String()
}
