// Package bulksync retrieves complete resource listings from the
// downstream API by following its header-driven pagination. It composes
// the dispatch client, so every page fetch shares the outbound rate
// limit and retry policy. Runs are restartable from the beginning only;
// no cursor state survives a run.
package bulksync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/caseflow-systems/leadrelay/common/logging"
	"github.com/caseflow-systems/leadrelay/internal/dispatch"
	"github.com/caseflow-systems/leadrelay/internal/metrics"
	"github.com/caseflow-systems/leadrelay/internal/models"
)

// HeaderNames holds the response header names the pagination cursor is
// derived from. The downstream API treats these as part of its contract
// but deployments differ, so they are configuration, not constants.
type HeaderNames struct {
	CurrentPage string
	PerPage     string
	TotalCount  string
	TotalPages  string
	HasNextPage string
}

// DefaultHeaderNames matches the hosted downstream API.
func DefaultHeaderNames() HeaderNames {
	return HeaderNames{
		CurrentPage: "X-Current-Page",
		PerPage:     "X-Per-Page",
		TotalCount:  "X-Total-Count",
		TotalPages:  "X-Total-Pages",
		HasNextPage: "X-Has-Next-Page",
	}
}

// Config holds the sync engine settings.
type Config struct {
	BaseURL  string
	PageSize int
	Headers  HeaderNames
}

// DefaultConfig returns the engine defaults for the hosted API.
func DefaultConfig() Config {
	return Config{
		BaseURL:  "https://grow.clio.com/api/v1",
		PageSize: 50,
		Headers:  DefaultHeaderNames(),
	}
}

// PageCursor is the engine's position within one run, rebuilt from each
// page's response headers.
type PageCursor struct {
	CurrentPage int
	PerPage     int
	TotalCount  int
	TotalPages  int
	HasNext     bool
	hasNextSeen bool
}

// cursorFrom derives the cursor from response headers. The page number
// and size issued in the request are the defaults when the headers are
// absent, so a headerless response still terminates: a page shorter than
// what was asked for ends the run.
func cursorFrom(header http.Header, names HeaderNames, requestedPage, requestedPerPage int) PageCursor {
	cursor := PageCursor{
		CurrentPage: headerInt(header, names.CurrentPage, requestedPage),
		PerPage:     headerInt(header, names.PerPage, requestedPerPage),
		TotalCount:  headerInt(header, names.TotalCount, 0),
		TotalPages:  headerInt(header, names.TotalPages, 0),
	}
	if v := header.Get(names.HasNextPage); v != "" {
		cursor.HasNext = strings.EqualFold(v, "true")
		cursor.hasNextSeen = true
	}
	return cursor
}

// more reports whether another page should be fetched after this one.
// The has-next header is authoritative when present; otherwise the
// total-pages count decides; with neither, a short or empty page ends
// the run.
func (c PageCursor) more(itemsOnPage int) bool {
	if c.hasNextSeen {
		return c.HasNext
	}
	if c.TotalPages > 0 {
		return c.CurrentPage < c.TotalPages
	}
	if c.PerPage > 0 {
		return itemsOnPage >= c.PerPage
	}
	return itemsOnPage > 0
}

func headerInt(header http.Header, name string, fallback int) int {
	if name == "" {
		return fallback
	}
	if n, err := strconv.Atoi(header.Get(name)); err == nil {
		return n
	}
	return fallback
}

// Record is one remote resource item as returned by the listing.
type Record map[string]interface{}

// Result summarizes one sync run: everything retrieved before the run
// ended, plus the outcome that ended it. On a clean run Terminal is the
// success tag; on AuthRejected or FatalFailure the records already
// fetched are preserved rather than thrown away.
type Result struct {
	Resource string
	Records  []Record
	Pages    int
	Terminal models.DispatchOutcome
}

// Complete reports whether the run fetched every page.
func (r Result) Complete() bool {
	return r.Terminal.Tag == models.OutcomeCreated
}

// Engine walks paginated listings through a dispatch client.
type Engine struct {
	cfg    Config
	client *dispatch.Client
	logger *logging.Logger
}

// NewEngine builds a sync engine around an existing dispatch client.
func NewEngine(cfg Config, client *dispatch.Client, logger *logging.Logger) *Engine {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	if (cfg.Headers == HeaderNames{}) {
		cfg.Headers = DefaultHeaderNames()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{cfg: cfg, client: client, logger: logger}
}

// Each streams the records of one resource listing page by page,
// invoking fn for every record in retrieval order. Iteration stops early
// when fn returns false. The returned outcome is the run terminal: the
// success tag when all pages were consumed or fn stopped the run, else
// the failure that ended it.
func (e *Engine) Each(ctx context.Context, resource string, fn func(Record) bool) models.DispatchOutcome {
	listURL := strings.TrimRight(e.cfg.BaseURL, "/") + "/" + strings.Trim(resource, "/")

	page := 1
	for {
		query := url.Values{
			"page":     {strconv.Itoa(page)},
			"per_page": {strconv.Itoa(e.cfg.PageSize)},
		}
		fetched, outcome := e.client.FetchPage(ctx, listURL, query)
		if outcome.Tag != models.OutcomeCreated {
			e.logger.WarnContext(ctx, "sync run ended early",
				logging.Resource(resource), logging.Page(page), logging.Outcome(string(outcome.Tag)))
			return outcome
		}

		records, err := decodePage(fetched.Body)
		if err != nil {
			return models.DispatchOutcome{
				Tag:   models.OutcomeFatalFailure,
				Cause: fmt.Sprintf("decode page %d: %v", page, err),
			}
		}
		metrics.SyncPagesTotal.WithLabelValues(resource).Inc()
		metrics.SyncRecordsTotal.WithLabelValues(resource).Add(float64(len(records)))

		for _, record := range records {
			if !fn(record) {
				return models.DispatchOutcome{Tag: models.OutcomeCreated}
			}
		}

		cursor := cursorFrom(fetched.Header, e.cfg.Headers, page, e.cfg.PageSize)
		e.logger.DebugContext(ctx, "page synced",
			logging.Resource(resource), logging.Page(cursor.CurrentPage), "records", len(records))
		if !cursor.more(len(records)) {
			return models.DispatchOutcome{Tag: models.OutcomeCreated}
		}
		page = cursor.CurrentPage + 1
	}
}

// SyncAll retrieves the full listing of one resource, collecting every
// record. Partial results are preserved when the run ends on a terminal
// failure.
func (e *Engine) SyncAll(ctx context.Context, resource string) Result {
	result := Result{Resource: resource}
	result.Terminal = e.Each(ctx, resource, func(r Record) bool {
		result.Records = append(result.Records, r)
		return true
	})
	// Page count is informational, derived from the record count.
	if n := len(result.Records); n > 0 {
		result.Pages = (n + e.cfg.PageSize - 1) / e.cfg.PageSize
	}
	return result
}

// decodePage accepts the two listing body forms the API has used: the
// current {"data": [...]} wrapper and a bare top-level array.
func decodePage(body []byte) ([]Record, error) {
	var wrapper struct {
		Data []Record `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapper); err == nil && wrapper.Data != nil {
		return wrapper.Data, nil
	}
	var bare []Record
	if err := json.Unmarshal(body, &bare); err == nil {
		return bare, nil
	}
	return nil, fmt.Errorf("unrecognized listing body")
}
