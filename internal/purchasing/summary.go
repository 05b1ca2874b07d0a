package purchasing

import (
	"context"
	"time"
)

const (
	// SummaryCacheNamespace scopes the versioned summary cache keys.
	SummaryCacheNamespace = "petcare:purchasing"

	summaryKeyPrefix = "supplier-summary"
)

// SupplierSummary returns effective purchase totals per supplier, optionally
// bounded by an inclusive date range. Results are served from the versioned
// cache when one is configured; cache failures fall back to the database.
func (s *Service) SupplierSummary(ctx context.Context, filter SummaryFilter) ([]SupplierSummary, error) {
	if err := checkRange(filter.From, filter.To); err != nil {
		return nil, err
	}
	filter.From = truncateOptional(filter.From)
	filter.To = truncateOptional(filter.To)
	if s.deps.Cache == nil {
		return s.repo.SupplierSummary(ctx, filter)
	}
	key, err := s.deps.Cache.BuildKey(ctx, summaryKeyPrefix, dayToken(filter.From), dayToken(filter.To))
	if err != nil {
		return s.repo.SupplierSummary(ctx, filter)
	}
	var out []SupplierSummary
	var loadErr error
	load := func(ctx context.Context) (any, error) {
		rows, err := s.repo.SupplierSummary(ctx, filter)
		loadErr = err
		return rows, err
	}
	if err := s.deps.Cache.FetchJSON(ctx, key, &out, load); err != nil {
		if loadErr != nil {
			return nil, loadErr
		}
		return s.repo.SupplierSummary(ctx, filter)
	}
	return out, nil
}

// WarmSupplierSummary loads the unbounded summary into the cache.
func (s *Service) WarmSupplierSummary(ctx context.Context) (int, error) {
	rows, err := s.SupplierSummary(ctx, SummaryFilter{})
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func dayToken(t time.Time) string {
	if t.IsZero() {
		return "open"
	}
	return t.Format("2006-01-02")
}

func truncateOptional(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return truncateDay(t)
}
