package protocol

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

// Issue is one validation failure. Code is always a member of the closed
// error-code set.
type Issue struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// ValidationResult is the discriminated outcome of ValidateResponse.
// When OK is true, Response holds the typed envelope; otherwise Issues holds
// at least one issue, in deterministic order: shape issues first, then the
// full-text size check, then the envelope size check.
type ValidationResult struct {
	OK       bool
	Response *Envelope[ExtensionResponse]
	Issues   []Issue
}

// ValidateResponse validates an arbitrary value resolved by the transport as
// a capture response envelope. It is total: it never panics and never returns
// a Go error. The version pin is checked before any other payload inspection.
// The two size checks are both reported when both apply, except that an
// unserializable envelope short-circuits to a single ErrPayloadInvalid issue.
func ValidateResponse(v any) ValidationResult {
	var issues []Issue
	invalid := func(format string, args ...any) {
		issues = append(issues, Issue{Code: ErrPayloadInvalid, Message: fmt.Sprintf(format, args...)})
	}

	m := asObject(v)
	if m == nil {
		invalid("response is not a JSON object")
		return ValidationResult{Issues: issues}
	}

	if id, ok := stringField(m, "id"); !ok || id == "" {
		invalid("envelope id must be a non-empty string")
	}
	typ, typOK := stringField(m, "type")
	if !typOK {
		invalid("envelope type must be a string")
	} else if typ != TypeCaptureResponse {
		invalid("envelope type must be %q, got %q", TypeCaptureResponse, typ)
	}
	if _, ok := stringField(m, "timestamp"); !ok {
		invalid("envelope timestamp must be a string")
	}
	payloadValue, hasPayload := m["payload"]
	if !hasPayload {
		invalid("envelope payload is missing")
		return ValidationResult{Issues: issues}
	}

	payload := asObject(payloadValue)
	if payload == nil {
		invalid("payload is not a JSON object")
		return ValidationResult{Issues: issues}
	}

	// Version pin comes before any payload shape inspection.
	version, hasVersion := stringField(payload, "protocolVersion")
	if !hasVersion || version != Version {
		issues = append(issues, Issue{
			Code:    ErrProtocolVersion,
			Message: fmt.Sprintf("unsupported protocol version %q (expected %q)", version, Version),
		})
		return ValidationResult{Issues: issues}
	}

	capture := asObject(payload["capture"])
	if capture == nil {
		invalid("payload capture is missing or not a JSON object")
		return ValidationResult{Issues: issues}
	}
	if !IsBrowserContextPayload(capture) {
		issues = append(issues, captureShapeIssues(capture)...)
	}

	// Size checks run in fixed order after shape checks: full text first,
	// then the serialized envelope. Both are reported when both apply.
	fullText, fullTextIsString := stringField(capture, "fullText")
	if fullTextIsString {
		if n := utf8.RuneCountInString(fullText); n > MaxFullTextChars {
			issues = append(issues, Issue{
				Code:    ErrPayloadTooLarge,
				Message: fmt.Sprintf("fullText is %d characters (max %d)", n, MaxFullTextChars),
			})
		}
	}
	serialized, err := json.Marshal(v)
	if err != nil {
		// Unserializable payloads short-circuit to a single issue.
		return ValidationResult{Issues: []Issue{{
			Code:    ErrPayloadInvalid,
			Message: "envelope is not serializable",
		}}}
	}
	if n := utf8.RuneCount(serialized); n > MaxEnvelopeChars {
		issues = append(issues, Issue{
			Code:    ErrPayloadTooLarge,
			Message: fmt.Sprintf("serialized envelope is %d characters (max %d)", n, MaxEnvelopeChars),
		})
	}

	if len(issues) > 0 {
		return ValidationResult{Issues: issues}
	}

	env := &Envelope[ExtensionResponse]{}
	if err := json.Unmarshal(serialized, env); err != nil {
		return ValidationResult{Issues: []Issue{{
			Code:    ErrPayloadInvalid,
			Message: fmt.Sprintf("decoding response payload: %v", err),
		}}}
	}
	return ValidationResult{OK: true, Response: env}
}

// captureShapeIssues explains why a capture object failed the
// BrowserContext guard, in field order, so the orchestrator's
// first-issue-wins policy stays deterministic.
func captureShapeIssues(m map[string]any) []Issue {
	var issues []Issue
	invalid := func(format string, args ...any) {
		issues = append(issues, Issue{Code: ErrPayloadInvalid, Message: fmt.Sprintf(format, args...)})
	}

	if source, ok := stringField(m, "source"); !ok || source != "browser" {
		invalid("capture source must be \"browser\"")
	}
	if browser, ok := stringField(m, "browser"); !ok || (browser != BrowserChrome && browser != BrowserSafari) {
		invalid("capture browser must be %q or %q", BrowserChrome, BrowserSafari)
	}
	for _, key := range []string{"url", "title", "fullText"} {
		if _, ok := stringField(m, key); !ok {
			invalid("capture %s must be a string", key)
		}
	}
	if headings, ok := m["headings"].([]any); !ok {
		invalid("capture headings must be a list")
	} else {
		for i, h := range headings {
			if !isHeading(h) {
				invalid("capture headings[%d] must be {level 1..6, text}", i)
			}
		}
	}
	if links, ok := m["links"].([]any); !ok {
		invalid("capture links must be a list")
	} else {
		for i, l := range links {
			if !isLink(l) {
				invalid("capture links[%d] must be {text, href}", i)
			}
		}
	}
	for _, key := range []string{"metaDescription", "siteName", "language", "author", "publishedTime", "selectionText"} {
		if !optionalString(m, key) {
			invalid("capture %s must be a string when present", key)
		}
	}
	if w, ok := m["extractionWarnings"]; ok && !isStringList(w) {
		invalid("capture extractionWarnings must be a list of strings")
	}

	if len(issues) == 0 {
		// The guard rejected for a reason the field walk could not name.
		invalid("capture payload is malformed")
	}
	return issues
}
