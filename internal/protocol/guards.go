package protocol

import (
	"encoding/json"
	"math"
)

// Structural guards over decoded JSON values (map[string]any, []any, string,
// float64, bool). The transport resolves with an arbitrary value; these
// guards are how the orchestrator decides what it received. They never panic.

// asObject returns v as a JSON object, or nil if it is not one.
func asObject(v any) map[string]any {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return m
}

// stringField reports whether m[key] is present and a string.
func stringField(m map[string]any, key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// optionalString reports whether m[key] is absent or a string.
// Absent optional fields are fine; present fields of the wrong type are not.
func optionalString(m map[string]any, key string) bool {
	v, ok := m[key]
	if !ok {
		return true
	}
	_, ok = v.(string)
	return ok
}

// boolField reports whether m[key] is present and a bool.
func boolField(m map[string]any, key string) (bool, bool) {
	v, ok := m[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// numberField reports whether m[key] is present and a JSON number.
func numberField(m map[string]any, key string) (float64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	n, ok := v.(float64)
	return n, ok
}

// isStringList reports whether v is a JSON array of strings.
func isStringList(v any) bool {
	items, ok := v.([]any)
	if !ok {
		return false
	}
	for _, item := range items {
		if _, ok := item.(string); !ok {
			return false
		}
	}
	return true
}

// IsEnvelope reports whether v has the outer envelope shape: id, type and
// timestamp strings plus a payload key (of any type).
func IsEnvelope(v any) bool {
	m := asObject(v)
	if m == nil {
		return false
	}
	if _, ok := stringField(m, "id"); !ok {
		return false
	}
	if _, ok := stringField(m, "type"); !ok {
		return false
	}
	if _, ok := stringField(m, "timestamp"); !ok {
		return false
	}
	_, ok := m["payload"]
	return ok
}

// IsCaptureRequestPayload reports whether v has the CaptureRequest shape.
func IsCaptureRequestPayload(v any) bool {
	m := asObject(v)
	if m == nil {
		return false
	}
	if _, ok := stringField(m, "protocolVersion"); !ok {
		return false
	}
	if _, ok := stringField(m, "requestId"); !ok {
		return false
	}
	mode, ok := stringField(m, "mode")
	if !ok || (CaptureMode(mode) != ModeManualHotkey && CaptureMode(mode) != ModeManualMenu) {
		return false
	}
	if _, ok := stringField(m, "requestedAt"); !ok {
		return false
	}
	timeout, ok := numberField(m, "timeoutMs")
	if !ok || timeout <= 0 {
		return false
	}
	_, ok = boolField(m, "includeSelectionText")
	return ok
}

// isHeading reports whether v is a {level, text} object with level an
// integer in [1, 6].
func isHeading(v any) bool {
	m := asObject(v)
	if m == nil {
		return false
	}
	level, ok := numberField(m, "level")
	if !ok || level != math.Trunc(level) || level < 1 || level > 6 {
		return false
	}
	_, ok = stringField(m, "text")
	return ok
}

// isLink reports whether v is a {text, href} object.
func isLink(v any) bool {
	m := asObject(v)
	if m == nil {
		return false
	}
	if _, ok := stringField(m, "text"); !ok {
		return false
	}
	_, ok := stringField(m, "href")
	return ok
}

// IsBrowserContextPayload reports whether v has the BrowserContext shape.
// Required fields must be present with the right type; optional fields must
// be absent or correctly typed; list elements are validated individually.
func IsBrowserContextPayload(v any) bool {
	m := asObject(v)
	if m == nil {
		return false
	}
	source, ok := stringField(m, "source")
	if !ok || source != "browser" {
		return false
	}
	browser, ok := stringField(m, "browser")
	if !ok || (browser != BrowserChrome && browser != BrowserSafari) {
		return false
	}
	if _, ok := stringField(m, "url"); !ok {
		return false
	}
	if _, ok := stringField(m, "title"); !ok {
		return false
	}
	if _, ok := stringField(m, "fullText"); !ok {
		return false
	}

	headings, ok := m["headings"].([]any)
	if !ok {
		return false
	}
	for _, h := range headings {
		if !isHeading(h) {
			return false
		}
	}
	links, ok := m["links"].([]any)
	if !ok {
		return false
	}
	for _, l := range links {
		if !isLink(l) {
			return false
		}
	}

	for _, key := range []string{"metaDescription", "siteName", "language", "author", "publishedTime", "selectionText"} {
		if !optionalString(m, key) {
			return false
		}
	}
	if w, ok := m["extractionWarnings"]; ok && !isStringList(w) {
		return false
	}
	return true
}

// IsExtensionResponsePayload reports whether v has the ExtensionResponse
// shape. The protocolVersion value is not compared here; version pinning is
// ValidateResponse's first check.
func IsExtensionResponsePayload(v any) bool {
	m := asObject(v)
	if m == nil {
		return false
	}
	if _, ok := stringField(m, "protocolVersion"); !ok {
		return false
	}
	return IsBrowserContextPayload(m["capture"])
}

// IsErrorPayload reports whether v has the ErrorPayload shape with a code
// from the closed set.
func IsErrorPayload(v any) bool {
	m := asObject(v)
	if m == nil {
		return false
	}
	if _, ok := stringField(m, "protocolVersion"); !ok {
		return false
	}
	code, ok := stringField(m, "code")
	if !ok || !KnownErrorCode(ErrorCode(code)) {
		return false
	}
	if _, ok := stringField(m, "message"); !ok {
		return false
	}
	if _, ok := boolField(m, "recoverable"); !ok {
		return false
	}
	if d, ok := m["details"]; ok {
		dm := asObject(d)
		if dm == nil {
			return false
		}
		for _, dv := range dm {
			if _, ok := dv.(string); !ok {
				return false
			}
		}
	}
	return true
}

// DecodeErrorEnvelope returns the typed error envelope if v structurally
// matches one at the pinned protocol version. A well-formed error envelope
// takes precedence over generic validation issues, so the orchestrator calls
// this before ValidateResponse.
func DecodeErrorEnvelope(v any) (*Envelope[ErrorPayload], bool) {
	if !IsEnvelope(v) {
		return nil, false
	}
	m := asObject(v)
	typ, _ := stringField(m, "type")
	if typ != TypeCaptureError {
		return nil, false
	}
	payload := asObject(m["payload"])
	if !IsErrorPayload(payload) {
		return nil, false
	}
	if version, _ := stringField(payload, "protocolVersion"); version != Version {
		return nil, false
	}

	env := &Envelope[ErrorPayload]{}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	if err := json.Unmarshal(data, env); err != nil {
		return nil, false
	}
	return env, true
}
