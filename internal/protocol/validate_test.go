package protocol

import (
	"math"
	"strings"
	"testing"
)

// validResponse builds a decoded capture_response envelope that passes
// validation, then lets the caller mutate it.
func validResponse(t *testing.T) map[string]any {
	t.Helper()
	raw := `{
		"id": "env-1",
		"type": "capture_response",
		"timestamp": "2026-01-02T03:04:05Z",
		"payload": {
			"protocolVersion": "1.0",
			"capture": ` + validCaptureJSON() + `
		}
	}`
	return decodeJSON(t, raw).(map[string]any)
}

func capturePart(m map[string]any) map[string]any {
	return m["payload"].(map[string]any)["capture"].(map[string]any)
}

func TestValidateResponseSuccess(t *testing.T) {
	result := ValidateResponse(validResponse(t))
	if !result.OK {
		t.Fatalf("ValidateResponse() failed: %v", result.Issues)
	}
	if result.Response == nil {
		t.Fatal("OK result must carry the typed response")
	}
	capture := result.Response.Payload.Capture
	if capture.Browser != BrowserChrome || capture.Title != "Example Post" {
		t.Errorf("decoded capture = %+v", capture)
	}
	if len(capture.Headings) != 2 || capture.Headings[1].Level != 2 {
		t.Errorf("decoded headings = %+v", capture.Headings)
	}
}

func TestValidateResponseNotAnObject(t *testing.T) {
	result := ValidateResponse("plain string")
	if result.OK {
		t.Fatal("expected failure")
	}
	if len(result.Issues) != 1 || result.Issues[0].Code != ErrPayloadInvalid {
		t.Errorf("issues = %v", result.Issues)
	}
}

func TestValidateResponseVersionMismatch(t *testing.T) {
	m := validResponse(t)
	m["payload"].(map[string]any)["protocolVersion"] = "2.0"

	result := ValidateResponse(m)
	if result.OK {
		t.Fatal("expected failure")
	}
	// Version pinning rejects before payload inspection: exactly one issue.
	if len(result.Issues) != 1 {
		t.Fatalf("issues = %v", result.Issues)
	}
	if result.Issues[0].Code != ErrProtocolVersion {
		t.Errorf("code = %q, want %q", result.Issues[0].Code, ErrProtocolVersion)
	}
}

func TestValidateResponseShapeBeforeSize(t *testing.T) {
	m := validResponse(t)
	capture := capturePart(m)
	capture["browser"] = "firefox"
	capture["fullText"] = strings.Repeat("a", MaxFullTextChars+1)

	result := ValidateResponse(m)
	if result.OK {
		t.Fatal("expected failure")
	}
	if len(result.Issues) < 2 {
		t.Fatalf("expected shape and size issues, got %v", result.Issues)
	}
	if result.Issues[0].Code != ErrPayloadInvalid {
		t.Errorf("first issue = %v, want shape issue", result.Issues[0])
	}
	last := result.Issues[len(result.Issues)-1]
	if last.Code != ErrPayloadTooLarge {
		t.Errorf("last issue = %v, want size issue", last)
	}
}

func TestValidateResponseBothSizeIssues(t *testing.T) {
	m := validResponse(t)
	// Oversized full text also pushes the serialized envelope over its bound.
	capturePart(m)["fullText"] = strings.Repeat("a", MaxEnvelopeChars+1)

	result := ValidateResponse(m)
	if result.OK {
		t.Fatal("expected failure")
	}
	sizeIssues := 0
	for _, issue := range result.Issues {
		if issue.Code == ErrPayloadTooLarge {
			sizeIssues++
		}
	}
	if sizeIssues != 2 {
		t.Errorf("expected both size checks reported, got %v", result.Issues)
	}
	if !strings.Contains(result.Issues[0].Message, "fullText") {
		t.Errorf("full-text check must come first, got %v", result.Issues[0])
	}
}

func TestValidateResponseUnserializable(t *testing.T) {
	m := validResponse(t)
	capturePart(m)["extra"] = math.Inf(1)

	result := ValidateResponse(m)
	if result.OK {
		t.Fatal("expected failure")
	}
	if len(result.Issues) != 1 {
		t.Fatalf("unserializable envelope must short-circuit to one issue, got %v", result.Issues)
	}
	if result.Issues[0].Code != ErrPayloadInvalid {
		t.Errorf("code = %q, want %q", result.Issues[0].Code, ErrPayloadInvalid)
	}
}

func TestValidateResponseWrongEnvelopeType(t *testing.T) {
	m := validResponse(t)
	m["type"] = "capture_request"

	result := ValidateResponse(m)
	if result.OK {
		t.Fatal("expected failure")
	}
	if result.Issues[0].Code != ErrPayloadInvalid {
		t.Errorf("issues = %v", result.Issues)
	}
	if !strings.Contains(result.Issues[0].Message, "capture_response") {
		t.Errorf("message should name the expected type: %v", result.Issues[0])
	}
}

func TestValidateResponseMissingCapture(t *testing.T) {
	m := validResponse(t)
	delete(m["payload"].(map[string]any), "capture")

	result := ValidateResponse(m)
	if result.OK {
		t.Fatal("expected failure")
	}
	if len(result.Issues) != 1 || result.Issues[0].Code != ErrPayloadInvalid {
		t.Errorf("issues = %v", result.Issues)
	}
}

func TestValidateResponseFullTextAtBound(t *testing.T) {
	m := validResponse(t)
	capturePart(m)["fullText"] = strings.Repeat("a", MaxFullTextChars)

	result := ValidateResponse(m)
	if !result.OK {
		t.Fatalf("text exactly at the bound must validate, got %v", result.Issues)
	}
}
