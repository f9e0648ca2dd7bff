// Package store defines the Orchestrator's persistence boundary: the
// external system of record for a run's Articles, Groups, Summaries and
// RunReport lives outside the processing core, per spec.md §3's ownership
// note ("Summary... persisted by the external store").
package store

import (
	"context"

	"github.com/talk-less/talkless/models"
)

// Sink is where a completed run's output goes. The processing core never
// reads back through a Sink; it is write-only from the Orchestrator's
// perspective.
type Sink interface {
	PersistArticles(ctx context.Context, runID string, articles []models.Article) error
	PersistGroups(ctx context.Context, runID string, groups []models.Group) error
	PersistSummaries(ctx context.Context, runID string, summaries []models.Summary) error
	PersistRunReport(ctx context.Context, report models.RunReport) error
}
