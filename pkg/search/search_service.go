package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/flowindex/pkg/indexerr"
	"github.com/platinummonkey/flowindex/pkg/observability"
	"github.com/platinummonkey/flowindex/pkg/storage"
	"github.com/platinummonkey/flowindex/pkg/workflow"
)

var searchTracer = otel.Tracer("flowindex/search/service")

const (
	DefaultPerPage = 20
	MaxPerPage     = 100

	filterAll = "all"
)

// Backend is the part of the store the search service reads from
type Backend interface {
	storage.Searcher
	Get(ctx context.Context, filename string) (*workflow.Record, error)
}

// Service answers full-text, filtered, paginated queries
type Service struct {
	store   Backend
	parser  *QueryParser
	cache   ResultCache
	metrics *observability.Metrics
}

// NewService creates a new search service. cache and metrics may be nil.
func NewService(store Backend, cache ResultCache, metrics *observability.Metrics) *Service {
	if cache == nil {
		cache = noopCache{}
	}
	return &Service{
		store:   store,
		parser:  NewQueryParser(),
		cache:   cache,
		metrics: metrics,
	}
}

// Request represents a search request
type Request struct {
	Query      string // Free text, may contain "quoted phrases"
	Trigger    string // "", "all" or a trigger class name
	Complexity string // "", "all" or a complexity class name
	ActiveOnly bool
	Page       int // 1-based, coerced to >= 1
	PerPage    int // clamped to [1, MaxPerPage], 0 means DefaultPerPage
}

// AppliedFilters echoes the normalized filters of a search
type AppliedFilters struct {
	Trigger    string `json:"trigger"`
	Complexity string `json:"complexity"`
	ActiveOnly bool   `json:"active_only"`
}

// Response represents one page of search results
type Response struct {
	Workflows []*workflow.Record `json:"workflows"`
	Total     int                `json:"total"`
	Page      int                `json:"page"`
	PerPage   int                `json:"per_page"`
	Pages     int                `json:"pages"`
	Query     string             `json:"query"`
	Match     string             `json:"match,omitempty"`
	Filters   AppliedFilters     `json:"filters"`
}

type normalizedRequest struct {
	query   string
	match   MatchExpr
	filters storage.Filters
	page    int
	perPage int
}

func (n normalizedRequest) cacheKey() string {
	return fmt.Sprintf("%s|%s|%s|%t|%d|%d",
		n.match, n.filters.Trigger, n.filters.Complexity, n.filters.ActiveOnly, n.page, n.perPage)
}

// normalize validates filters and clamps pagination. Invalid filter values are
// query errors; nothing reaches storage for them.
func (s *Service) normalize(req Request) (normalizedRequest, error) {
	n := normalizedRequest{
		query: strings.TrimSpace(req.Query),
		page:  req.Page,
	}

	if t := strings.TrimSpace(req.Trigger); t != "" && !strings.EqualFold(t, filterAll) {
		trigger, ok := workflow.ParseTriggerClass(t)
		if !ok {
			return n, indexerr.Errorf(indexerr.KindQuery, "search", "invalid trigger filter %q", req.Trigger)
		}
		n.filters.Trigger = trigger
	}
	if c := strings.TrimSpace(req.Complexity); c != "" && !strings.EqualFold(c, filterAll) {
		complexity, ok := workflow.ParseComplexityClass(c)
		if !ok {
			return n, indexerr.Errorf(indexerr.KindQuery, "search", "invalid complexity filter %q", req.Complexity)
		}
		n.filters.Complexity = complexity
	}
	n.filters.ActiveOnly = req.ActiveOnly

	switch {
	case req.PerPage == 0:
		n.perPage = DefaultPerPage
	case req.PerPage < 1:
		n.perPage = 1
	case req.PerPage > MaxPerPage:
		n.perPage = MaxPerPage
	default:
		n.perPage = req.PerPage
	}
	if n.page < 1 {
		n.page = 1
	}

	n.match = s.parser.Parse(n.query).ToMatch()
	return n, nil
}

// Search returns one page of records matching the request, ordered by name
func (s *Service) Search(ctx context.Context, req Request) (*Response, error) {
	ctx, span := searchTracer.Start(ctx, "Search",
		trace.WithAttributes(
			attribute.String("query", req.Query),
			attribute.Int("page", req.Page),
			attribute.Int("per_page", req.PerPage),
		),
	)
	defer span.End()
	start := time.Now()

	n, err := s.normalize(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid search request")
		s.metrics.RecordSearch(searchMode(MatchAll), "invalid", time.Since(start), 0)
		return nil, err
	}
	mode := searchMode(n.match)
	span.SetAttributes(
		attribute.String("match", n.match.String()),
		attribute.String("mode", mode),
	)

	key := n.cacheKey()
	if cached, ok := s.cache.Get(ctx, key); ok {
		s.metrics.RecordCache(true)
		span.SetAttributes(attribute.Bool("cache_hit", true))
		resp := *cached
		resp.Query = n.query
		return &resp, nil
	}
	s.metrics.RecordCache(false)

	records, total, err := s.store.CountAndFetch(ctx, storage.Query{
		Match:   n.match.String(),
		Filters: n.filters,
		Limit:   n.perPage,
		Offset:  (n.page - 1) * n.perPage,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to execute search")
		s.metrics.RecordSearch(mode, "error", time.Since(start), 0)
		return nil, fmt.Errorf("failed to execute search: %w", err)
	}

	resp := &Response{
		Workflows: records,
		Total:     total,
		Page:      n.page,
		PerPage:   n.perPage,
		Pages:     (total + n.perPage - 1) / n.perPage,
		Query:     n.query,
		Match:     n.match.String(),
		Filters: AppliedFilters{
			Trigger:    filterValue(string(n.filters.Trigger)),
			Complexity: filterValue(string(n.filters.Complexity)),
			ActiveOnly: n.filters.ActiveOnly,
		},
	}

	span.SetAttributes(attribute.Int("total", total), attribute.Int("returned", len(records)))
	s.metrics.RecordSearch(mode, "ok", time.Since(start), len(records))
	s.cache.Set(ctx, key, resp)
	return resp, nil
}

// GetByFilename returns the record for filename or a KindNotFound error
func (s *Service) GetByFilename(ctx context.Context, filename string) (*workflow.Record, error) {
	ctx, span := searchTracer.Start(ctx, "GetByFilename",
		trace.WithAttributes(attribute.String("filename", filename)))
	defer span.End()

	rec, err := s.store.Get(ctx, filename)
	if err != nil {
		if !indexerr.IsKind(err, indexerr.KindNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to get workflow")
		}
		return nil, err
	}
	return rec, nil
}

// Stats returns aggregate statistics of the index
func (s *Service) Stats(ctx context.Context) (*storage.Stats, error) {
	ctx, span := searchTracer.Start(ctx, "Stats")
	defer span.End()

	stats, err := s.store.Stats(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to compute stats")
		return nil, err
	}
	return stats, nil
}

// Integrations lists integrations with usage counts
func (s *Service) Integrations(ctx context.Context) ([]storage.IntegrationCount, error) {
	return s.store.Integrations(ctx)
}

// Invalidate drops cached search responses. The indexer calls it after writes.
func (s *Service) Invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		observability.FromContext(ctx).WithError(err).Warn("Failed to invalidate search cache")
	}
}

func searchMode(m MatchExpr) string {
	if m.IsAll() {
		return "filter"
	}
	return "fulltext"
}

func filterValue(v string) string {
	if v == "" {
		return filterAll
	}
	return v
}
