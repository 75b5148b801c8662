// Package protocol defines the message contracts between the capture host
// and the extraction backend: the outer envelope, the per-type payloads, the
// closed error-code set, and the structural validators that guard every value
// crossing that boundary. The package does no I/O, and validation never
// panics or returns a Go error; malformed input is reported as issue lists.
package protocol

// Version is the single pinned protocol version. Any envelope whose payload
// carries a different protocolVersion is rejected before payload inspection.
const Version = "1.0"

// Size limits shared by validation and normalization. All character counts
// are rune counts.
const (
	// MaxFullTextChars bounds BrowserContext.FullText. Validation reports
	// ErrPayloadTooLarge above this; the normalizer truncates to it.
	MaxFullTextChars = 200000

	// MaxEnvelopeChars bounds the serialized length of a whole envelope.
	MaxEnvelopeChars = 400000

	// MaxRawExcerptChars bounds the raw-excerpt section of a rendered document.
	MaxRawExcerptChars = 8000

	// ChunkTargetTokens is the soft per-chunk budget the chunker packs toward.
	ChunkTargetTokens = 1500

	// ChunkHardTokens is the per-chunk ceiling; a chunk is flushed immediately
	// once its running estimate reaches this, and oversized paragraphs are
	// split against it.
	ChunkHardTokens = 2000

	// MaxSummarySentences caps the extractive summary.
	MaxSummarySentences = 6

	// MaxKeyPoints caps the key-point list.
	MaxKeyPoints = 8
)

// Envelope message types.
const (
	TypeCaptureRequest  = "capture_request"
	TypeCaptureResponse = "capture_response"
	TypeCaptureError    = "capture_error"
)

// ErrorCode is a protocol-level error code. The set is closed; every
// validation issue and every fallback result carries exactly one of these.
type ErrorCode string

const (
	ErrProtocolVersion      ErrorCode = "ERR_PROTOCOL_VERSION"
	ErrPayloadInvalid       ErrorCode = "ERR_PAYLOAD_INVALID"
	ErrTimeout              ErrorCode = "ERR_TIMEOUT"
	ErrExtensionUnavailable ErrorCode = "ERR_EXTENSION_UNAVAILABLE"
	ErrPayloadTooLarge      ErrorCode = "ERR_PAYLOAD_TOO_LARGE"
)

// CaptureMode says how the user triggered a capture.
type CaptureMode string

const (
	ModeManualHotkey CaptureMode = "manual_hotkey"
	ModeManualMenu   CaptureMode = "manual_menu"
)

// Envelope is the outer wrapper common to every protocol message. ID and
// Timestamp are caller-supplied (injectable for determinism); Type
// discriminates the payload shape. Envelopes are never mutated after
// construction.
type Envelope[P any] struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	Payload   P      `json:"payload"`
}

// CaptureRequest is the payload the host sends to ask for a capture.
type CaptureRequest struct {
	ProtocolVersion      string      `json:"protocolVersion"`
	RequestID            string      `json:"requestId"`
	Mode                 CaptureMode `json:"mode"`
	RequestedAt          string      `json:"requestedAt"`
	TimeoutMs            int         `json:"timeoutMs"`
	IncludeSelectionText bool        `json:"includeSelectionText"`
}

// Heading is a single document heading. Level is 1..6.
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// Link is a hyperlink found in the captured content.
type Link struct {
	Text string `json:"text"`
	Href string `json:"href"`
}

// BrowserContext is the raw extracted content of a browser tab.
type BrowserContext struct {
	Source   string    `json:"source"`
	Browser  string    `json:"browser"`
	URL      string    `json:"url"`
	Title    string    `json:"title"`
	FullText string    `json:"fullText"`
	Headings []Heading `json:"headings"`
	Links    []Link    `json:"links"`

	MetaDescription    string   `json:"metaDescription,omitempty"`
	SiteName           string   `json:"siteName,omitempty"`
	Language           string   `json:"language,omitempty"`
	Author             string   `json:"author,omitempty"`
	PublishedTime      string   `json:"publishedTime,omitempty"`
	SelectionText      string   `json:"selectionText,omitempty"`
	ExtractionWarnings []string `json:"extractionWarnings,omitempty"`
}

// Browser values accepted in BrowserContext.Browser.
const (
	BrowserChrome = "chrome"
	BrowserSafari = "safari"
)

// ExtensionResponse is the payload of a successful capture response.
type ExtensionResponse struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capture         BrowserContext `json:"capture"`
}

// ErrorPayload is the payload of an error response from the backend.
type ErrorPayload struct {
	ProtocolVersion string            `json:"protocolVersion"`
	Code            ErrorCode         `json:"code"`
	Message         string            `json:"message"`
	Recoverable     bool              `json:"recoverable"`
	Details         map[string]string `json:"details,omitempty"`
}

// knownErrorCodes is the closed set used by the guards.
var knownErrorCodes = map[ErrorCode]bool{
	ErrProtocolVersion:      true,
	ErrPayloadInvalid:       true,
	ErrTimeout:              true,
	ErrExtensionUnavailable: true,
	ErrPayloadTooLarge:      true,
}

// KnownErrorCode reports whether code belongs to the closed error-code set.
func KnownErrorCode(code ErrorCode) bool {
	return knownErrorCodes[code]
}
