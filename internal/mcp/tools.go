package mcp

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions. Names follow the pattern "capture_action".

var capturePageToolDef = mcp.NewTool("capture_page",
	mcp.WithDescription("Capture the active browser tab and return a deterministic markdown document. Always succeeds: on extraction failure a metadata-only document with warnings is returned."),
	mcp.WithString("url", mcp.Description("URL of the page, if already known; used for the fallback document")),
	mcp.WithString("title", mcp.Description("Title of the page, if already known; used for the fallback document")),
	mcp.WithString("site_name", mcp.Description("Site name, if already known")),
	mcp.WithNumber("timeout_ms", mcp.Description("Transport timeout in milliseconds (default from config)")),
	mcp.WithBoolean("include_selection_text", mcp.Description("Ask the extension to include the current selection")),
	mcp.WithBoolean("save", mcp.Description("Save the rendered document to capture history (default true)")),
)

var captureFetchToolDef = mcp.NewTool("capture_fetch",
	mcp.WithDescription("Fetch a stored capture by id, including its markdown."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Capture id (ULID)")),
)

var captureLatestToolDef = mcp.NewTool("capture_latest",
	mcp.WithDescription("Fetch the most recently stored capture, including its markdown."),
)

var captureListToolDef = mcp.NewTool("capture_list",
	mcp.WithDescription("List stored captures, newest first, without markdown bodies."),
	mcp.WithString("url_prefix", mcp.Description("Only captures whose URL starts with this prefix")),
	mcp.WithNumber("limit", mcp.Description("Page size (default 20, max 100)")),
	mcp.WithNumber("offset", mcp.Description("Page offset")),
)

var capturePruneToolDef = mcp.NewTool("capture_prune",
	mcp.WithDescription("Delete old captures by age and/or count."),
	mcp.WithNumber("older_than_days", mcp.Description("Delete captures older than this many days")),
	mcp.WithNumber("keep", mcp.Description("Keep only the newest N captures")),
)
