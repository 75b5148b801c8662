package history

import (
	"database/sql"
	"strings"
	"time"

	"github.com/hpungsan/glance/internal/capture"
	"github.com/hpungsan/glance/internal/errors"
)

// Pagination limits.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Record is one stored capture.
type Record struct {
	ID               string `json:"id"`
	CapturedAt       string `json:"captured_at"`
	URL              string `json:"url"`
	Title            string `json:"title"`
	AppOrSite        string `json:"app_or_site"`
	ExtractionMethod string `json:"extraction_method"`
	ErrorCode        string `json:"error_code,omitempty"`
	TokenEstimate    int    `json:"token_estimate"`
	Truncated        bool   `json:"truncated"`
	Markdown         string `json:"markdown,omitempty"`
	CreatedAt        int64  `json:"created_at"`
}

// Summary is a Record without the markdown body, used for listings.
type Summary struct {
	ID               string `json:"id"`
	CapturedAt       string `json:"captured_at"`
	URL              string `json:"url"`
	Title            string `json:"title"`
	AppOrSite        string `json:"app_or_site"`
	ExtractionMethod string `json:"extraction_method"`
	ErrorCode        string `json:"error_code,omitempty"`
	TokenEstimate    int    `json:"token_estimate"`
	Truncated        bool   `json:"truncated"`
	CreatedAt        int64  `json:"created_at"`
}

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// FromResult builds a Record from a finished capture attempt.
func FromResult(result *capture.Result, now time.Time) *Record {
	return &Record{
		ID:               result.Context.ID,
		CapturedAt:       result.Context.CapturedAt,
		URL:              result.Context.Origin,
		Title:            result.Context.Title,
		AppOrSite:        result.Context.AppOrSite,
		ExtractionMethod: string(result.ExtractionMethod),
		ErrorCode:        string(result.ErrorCode),
		TokenEstimate:    result.Context.TokenEstimate,
		Truncated:        result.Context.Truncated,
		Markdown:         result.Markdown,
		CreatedAt:        now.Unix(),
	}
}

// Save inserts a capture record.
func Save(db *sql.DB, rec *Record) error {
	if rec.ID == "" {
		return errors.NewInvalidRequest("record id is required")
	}
	if rec.Markdown == "" {
		return errors.NewInvalidRequest("record markdown is required")
	}

	query := `
		INSERT INTO captures (
			id, captured_at, url, title, app_or_site, extraction_method,
			error_code, token_estimate, truncated, markdown, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	var errorCode sql.NullString
	if rec.ErrorCode != "" {
		errorCode = sql.NullString{String: rec.ErrorCode, Valid: true}
	}
	_, err := db.Exec(query,
		rec.ID, rec.CapturedAt, rec.URL, rec.Title, rec.AppOrSite,
		rec.ExtractionMethod, errorCode, rec.TokenEstimate,
		boolToInt(rec.Truncated), rec.Markdown, rec.CreatedAt,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// Get returns the record with the given id, including its markdown.
func Get(db *sql.DB, id string) (*Record, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}

	row := db.QueryRow(`
		SELECT id, captured_at, url, title, app_or_site, extraction_method,
		       error_code, token_estimate, truncated, markdown, created_at
		FROM captures WHERE id = ?
	`, id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return rec, nil
}

// Latest returns the most recently saved record.
func Latest(db *sql.DB) (*Record, error) {
	row := db.QueryRow(`
		SELECT id, captured_at, url, title, app_or_site, extraction_method,
		       error_code, token_estimate, truncated, markdown, created_at
		FROM captures ORDER BY created_at DESC, id DESC LIMIT 1
	`)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("(latest)")
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return rec, nil
}

// ListInput contains parameters for the List operation.
type ListInput struct {
	// URLPrefix filters to captures whose url starts with this prefix.
	URLPrefix string
	Limit     int
	Offset    int
}

// ListOutput contains the result of the List operation.
type ListOutput struct {
	Items      []Summary  `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// List returns capture summaries, newest first, with pagination.
func List(db *sql.DB, input ListInput) (*ListOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset := input.Offset
	if offset < 0 {
		return nil, errors.NewInvalidRequest("offset must not be negative")
	}

	where := ""
	args := []any{}
	if input.URLPrefix != "" {
		where = "WHERE url LIKE ? ESCAPE '\\'"
		args = append(args, escapeLike(input.URLPrefix)+"%")
	}

	var total int
	if err := db.QueryRow("SELECT COUNT(*) FROM captures "+where, args...).Scan(&total); err != nil {
		return nil, errors.NewInternal(err)
	}

	query := `
		SELECT id, captured_at, url, title, app_or_site, extraction_method,
		       error_code, token_estimate, truncated, created_at
		FROM captures ` + where + `
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`
	rows, err := db.Query(query, append(args, limit, offset)...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	items := make([]Summary, 0, limit)
	for rows.Next() {
		var s Summary
		var errorCode sql.NullString
		var truncated int
		if err := rows.Scan(&s.ID, &s.CapturedAt, &s.URL, &s.Title, &s.AppOrSite,
			&s.ExtractionMethod, &errorCode, &s.TokenEstimate, &truncated, &s.CreatedAt); err != nil {
			return nil, errors.NewInternal(err)
		}
		s.ErrorCode = errorCode.String
		s.Truncated = truncated != 0
		items = append(items, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}

	return &ListOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < total,
			Total:   total,
		},
	}, nil
}

// PruneInput contains parameters for the Prune operation. Both filters may
// be combined; zero values mean "no constraint from this filter".
type PruneInput struct {
	// OlderThanDays removes records created more than this many days ago.
	OlderThanDays int
	// Keep retains only the newest N records.
	Keep int
}

// PruneOutput contains the result of the Prune operation.
type PruneOutput struct {
	Pruned int `json:"pruned"`
}

// Prune deletes old capture records.
func Prune(db *sql.DB, input PruneInput) (*PruneOutput, error) {
	if input.OlderThanDays < 0 || input.Keep < 0 {
		return nil, errors.NewInvalidRequest("prune thresholds must not be negative")
	}
	if input.OlderThanDays == 0 && input.Keep == 0 {
		return nil, errors.NewInvalidRequest("must specify older_than_days or keep")
	}

	pruned := 0
	if input.OlderThanDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -input.OlderThanDays).Unix()
		res, err := db.Exec("DELETE FROM captures WHERE created_at < ?", cutoff)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		n, _ := res.RowsAffected()
		pruned += int(n)
	}
	if input.Keep > 0 {
		res, err := db.Exec(`
			DELETE FROM captures WHERE id NOT IN (
				SELECT id FROM captures ORDER BY created_at DESC, id DESC LIMIT ?
			)
		`, input.Keep)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		n, _ := res.RowsAffected()
		pruned += int(n)
	}

	return &PruneOutput{Pruned: pruned}, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var rec Record
	var errorCode sql.NullString
	var truncated int
	err := row.Scan(&rec.ID, &rec.CapturedAt, &rec.URL, &rec.Title, &rec.AppOrSite,
		&rec.ExtractionMethod, &errorCode, &rec.TokenEstimate, &truncated,
		&rec.Markdown, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	rec.ErrorCode = errorCode.String
	rec.Truncated = truncated != 0
	return &rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// escapeLike escapes LIKE wildcards in a literal prefix.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
