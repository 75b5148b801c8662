package mcp

import (
	"context"
	"database/sql"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/glance/internal/capture"
	"github.com/hpungsan/glance/internal/config"
	"github.com/hpungsan/glance/internal/errors"
	"github.com/hpungsan/glance/internal/history"
)

// Handlers holds dependencies for MCP tool handlers. The transport is
// injected so tests can stub the extension side.
type Handlers struct {
	db   *sql.DB
	cfg  *config.Config
	send capture.Transport
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *sql.DB, cfg *config.Config, send capture.Transport) *Handlers {
	return &Handlers{db: db, cfg: cfg, send: send}
}

// Request types for each tool

// CapturePageRequest represents the arguments for capture_page.
type CapturePageRequest struct {
	URL                  string `json:"url,omitempty"`
	Title                string `json:"title,omitempty"`
	SiteName             string `json:"site_name,omitempty"`
	TimeoutMs            int    `json:"timeout_ms,omitempty"`
	IncludeSelectionText bool   `json:"include_selection_text,omitempty"`
	Save                 *bool  `json:"save,omitempty"`
}

// FetchRequest represents the arguments for capture_fetch.
type FetchRequest struct {
	ID string `json:"id"`
}

// ListRequest represents the arguments for capture_list.
type ListRequest struct {
	URLPrefix string `json:"url_prefix,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Offset    int    `json:"offset,omitempty"`
}

// PruneRequest represents the arguments for capture_prune.
type PruneRequest struct {
	OlderThanDays int `json:"older_than_days,omitempty"`
	Keep          int `json:"keep,omitempty"`
}

// Handler implementations

// HandleCapturePage runs one capture attempt and optionally saves it.
// The attempt itself cannot fail; only history I/O can produce an error.
func (h *Handlers) HandleCapturePage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CapturePageRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if h.send == nil {
		return errorResult(errors.NewInvalidRequest("no transport command configured")), nil
	}

	timeoutMs := input.TimeoutMs
	if timeoutMs <= 0 {
		timeoutMs = h.cfg.CaptureTimeoutMs
	}

	result := capture.Run(ctx, h.send, capture.Options{
		TimeoutMs:            timeoutMs,
		IncludeSelectionText: input.IncludeSelectionText,
		URL:                  input.URL,
		Title:                input.Title,
		SiteName:             input.SiteName,
	})

	save := input.Save == nil || *input.Save
	if save {
		if err := history.Save(h.db, history.FromResult(result, time.Now())); err != nil {
			return errorResult(err), nil
		}
	}

	return successResult(map[string]any{
		"id":                result.Context.ID,
		"extraction_method": result.ExtractionMethod,
		"error_code":        result.ErrorCode,
		"warnings":          result.Warnings,
		"token_estimate":    result.Context.TokenEstimate,
		"truncated":         result.Context.Truncated,
		"markdown":          result.Markdown,
		"saved":             save,
	})
}

// HandleFetch handles the capture_fetch tool call.
func (h *Handlers) HandleFetch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FetchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	rec, err := history.Get(h.db, input.ID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(rec)
}

// HandleLatest handles the capture_latest tool call.
func (h *Handlers) HandleLatest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rec, err := history.Latest(h.db)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(rec)
}

// HandleList handles the capture_list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := history.List(h.db, history.ListInput{
		URLPrefix: input.URLPrefix,
		Limit:     input.Limit,
		Offset:    input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandlePrune handles the capture_prune tool call.
func (h *Handlers) HandlePrune(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PruneRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := history.Prune(h.db, history.PruneInput{
		OlderThanDays: input.OlderThanDays,
		Keep:          input.Keep,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are not exposed to avoid leaking paths or SQL.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if gErr, ok := err.(*errors.GlanceError); ok {
		errorObj := map[string]any{
			"code":    gErr.Code,
			"message": gErr.Message,
			"status":  gErr.Status,
		}
		if gErr.Code != errors.ErrInternal && gErr.Details != nil {
			errorObj["details"] = gErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	result, jsonErr := mcp.NewToolResultJSON(payload)
	if jsonErr != nil {
		return mcp.NewToolResultError("an internal error occurred")
	}
	result.IsError = true
	return result
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
