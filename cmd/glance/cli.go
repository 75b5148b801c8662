package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/glance/internal/capture"
	"github.com/hpungsan/glance/internal/config"
	"github.com/hpungsan/glance/internal/errors"
	"github.com/hpungsan/glance/internal/history"
	"github.com/hpungsan/glance/internal/normalize"
	"github.com/hpungsan/glance/internal/protocol"
	"github.com/hpungsan/glance/internal/render"
	"github.com/hpungsan/glance/internal/transport"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(db *sql.DB, cfg *config.Config) *cli.App {
	app := &cli.App{
		Name:    "glance",
		Usage:   "Capture the active browser tab as deterministic markdown",
		Version: Version,
		Commands: []*cli.Command{
			captureCmd(db, cfg),
			renderCmd(),
			fetchCmd(db),
			latestCmd(db),
			listCmd(db),
			pruneCmd(db, cfg),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// captureCmd creates the capture command.
func captureCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "capture",
		Usage: "Run one capture attempt through the configured transport",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "transport", Usage: "Helper command to exec (overrides config)"},
			&cli.StringSliceFlag{Name: "transport-arg", Usage: "Argument for the helper command (repeatable)"},
			&cli.StringFlag{Name: "url", Usage: "Known page URL, used for the fallback document"},
			&cli.StringFlag{Name: "title", Usage: "Known page title, used for the fallback document"},
			&cli.StringFlag{Name: "site-name", Usage: "Known site name"},
			&cli.IntFlag{Name: "timeout-ms", Usage: "Transport timeout in milliseconds"},
			&cli.BoolFlag{Name: "include-selection", Usage: "Ask the extension for the current selection"},
			&cli.BoolFlag{Name: "no-save", Usage: "Do not store the result in capture history"},
			&cli.BoolFlag{Name: "json", Usage: "Print the full result as JSON instead of markdown"},
			&cli.BoolFlag{Name: "fail-on-fallback", Usage: "Exit non-zero when the capture fell back to metadata only"},
		},
		Action: func(c *cli.Context) error {
			command := c.String("transport")
			args := c.StringSlice("transport-arg")
			if command == "" {
				command = cfg.TransportCommand
				args = cfg.TransportArgs
			}
			if command == "" {
				return outputError(errors.NewInvalidRequest("no transport command configured (set transport_command or pass --transport)"))
			}

			timeoutMs := c.Int("timeout-ms")
			if timeoutMs <= 0 {
				timeoutMs = cfg.CaptureTimeoutMs
			}

			result := capture.Run(context.Background(), transport.Exec(command, args...), capture.Options{
				TimeoutMs:            timeoutMs,
				IncludeSelectionText: c.Bool("include-selection"),
				URL:                  c.String("url"),
				Title:                c.String("title"),
				SiteName:             c.String("site-name"),
			})

			if !c.Bool("no-save") {
				if err := history.Save(db, history.FromResult(result, time.Now())); err != nil {
					return outputError(err)
				}
			}

			if c.Bool("fail-on-fallback") && result.ErrorCode != "" {
				return outputError(errors.NewCaptureFailed(string(result.ErrorCode), result.Warnings[0]))
			}

			if c.Bool("json") {
				return outputJSON(result)
			}
			fmt.Fprint(c.App.Writer, result.Markdown)
			return nil
		},
	}
}

// renderCmd creates the render command: normalize and render a raw
// BrowserContextPayload read from stdin, without any transport involved.
func renderCmd() *cli.Command {
	return &cli.Command{
		Name:  "render",
		Usage: "Render a BrowserContextPayload JSON from stdin to markdown",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "id", Usage: "Record id (defaults to a fresh ULID)"},
			&cli.StringFlag{Name: "captured-at", Usage: "Capture timestamp (defaults to now, RFC3339)"},
			&cli.StringFlag{Name: "method", Value: "browser_extension", Usage: "Extraction method: browser_extension|accessibility|ocr|metadata_only"},
			&cli.BoolFlag{Name: "check", Usage: "Verify the rendered document structure and report instead of printing"},
		},
		Action: func(c *cli.Context) error {
			if !stdinHasData() {
				return outputError(errors.NewInvalidRequest("payload JSON must be piped via stdin"))
			}
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}

			var payload protocol.BrowserContext
			if err := json.Unmarshal(data, &payload); err != nil {
				return outputError(errors.NewInvalidRequest(fmt.Sprintf("decoding payload: %v", err)))
			}

			id := c.String("id")
			if id == "" {
				id = capture.NewULID()
			}
			capturedAt := c.String("captured-at")
			if capturedAt == "" {
				capturedAt = time.Now().UTC().Format(time.RFC3339Nano)
			}

			nctx := normalize.Normalize(&payload, normalize.Meta{
				ID:         id,
				CapturedAt: capturedAt,
				Method:     normalize.ExtractionMethod(c.String("method")),
			})
			markdown := render.Markdown(nctx, &payload)

			if c.Bool("check") {
				if err := render.Verify(markdown); err != nil {
					return outputError(errors.NewInternal(err))
				}
				return outputJSON(map[string]any{
					"ok":       true,
					"sections": render.Outline(markdown),
				})
			}

			fmt.Fprint(c.App.Writer, markdown)
			return nil
		},
	}
}

// fetchCmd creates the fetch command.
func fetchCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "fetch",
		Usage:     "Fetch a stored capture by id",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "markdown", Usage: "Print the markdown body instead of JSON"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return outputError(errors.NewInvalidRequest("id argument is required"))
			}
			rec, err := history.Get(db, c.Args().First())
			if err != nil {
				return outputError(err)
			}
			if c.Bool("markdown") {
				fmt.Fprint(c.App.Writer, rec.Markdown)
				return nil
			}
			return outputJSON(rec)
		},
	}
}

// latestCmd creates the latest command.
func latestCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "latest",
		Usage: "Fetch the most recently stored capture",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "markdown", Usage: "Print the markdown body instead of JSON"},
		},
		Action: func(c *cli.Context) error {
			rec, err := history.Latest(db)
			if err != nil {
				return outputError(err)
			}
			if c.Bool("markdown") {
				fmt.Fprint(c.App.Writer, rec.Markdown)
				return nil
			}
			return outputJSON(rec)
		},
	}
}

// listCmd creates the list command.
func listCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List stored captures, newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url-prefix", Usage: "Only captures whose URL starts with this prefix"},
			&cli.IntFlag{Name: "limit", Value: history.DefaultListLimit, Usage: "Page size"},
			&cli.IntFlag{Name: "offset", Usage: "Page offset"},
		},
		Action: func(c *cli.Context) error {
			out, err := history.List(db, history.ListInput{
				URLPrefix: c.String("url-prefix"),
				Limit:     c.Int("limit"),
				Offset:    c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(out)
		},
	}
}

// pruneCmd creates the prune command.
func pruneCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "prune",
		Usage: "Delete old captures",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "older-than-days", Usage: "Delete captures older than this many days"},
			&cli.IntFlag{Name: "keep", Usage: "Keep only the newest N captures (default from config)"},
		},
		Action: func(c *cli.Context) error {
			keep := c.Int("keep")
			olderThan := c.Int("older-than-days")
			if keep == 0 && olderThan == 0 {
				keep = cfg.HistoryKeep
			}
			out, err := history.Prune(db, history.PruneInput{
				OlderThanDays: olderThan,
				Keep:          keep,
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(out)
		},
	}
}

// Output helpers

// outputJSON prints data as indented JSON to stdout.
func outputJSON(data any) error {
	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return outputError(errors.NewInternal(err))
	}
	fmt.Println(string(encoded))
	return nil
}

// outputError prints a structured error to stdout and returns it so the CLI
// exits non-zero.
func outputError(err error) error {
	gErr, ok := err.(*errors.GlanceError)
	if !ok {
		gErr = errors.NewInternal(err)
	}
	payload := map[string]any{
		"error": map[string]any{
			"code":    gErr.Code,
			"message": gErr.Message,
			"status":  gErr.Status,
		},
	}
	if gErr.Details != nil {
		payload["error"].(map[string]any)["details"] = gErr.Details
	}
	encoded, marshalErr := json.MarshalIndent(payload, "", "  ")
	if marshalErr == nil {
		fmt.Println(string(encoded))
	}
	return cli.Exit("", statusToExitCode(gErr.Status))
}

// statusToExitCode maps error statuses onto small exit codes.
func statusToExitCode(status int) int {
	switch {
	case status >= 500:
		return 2
	case status >= 400:
		return 1
	default:
		return 1
	}
}

// stdinHasData reports whether stdin is piped (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}
