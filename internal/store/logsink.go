package store

import (
	"context"
	"log"

	"github.com/talk-less/talkless/models"
)

// LogSink is a Sink that writes a one-line summary of each persisted batch
// to a logger, standing in for a real external store (a document database,
// object storage, a search index) that this repository does not implement.
type LogSink struct {
	Logger *log.Logger
}

// NewLogSink wraps a logger, defaulting to log.Default() when nil.
func NewLogSink(logger *log.Logger) *LogSink {
	if logger == nil {
		logger = log.Default()
	}
	return &LogSink{Logger: logger}
}

func (s *LogSink) PersistArticles(_ context.Context, runID string, articles []models.Article) error {
	s.Logger.Printf("store: run %s persisting %d articles", runID, len(articles))
	return nil
}

func (s *LogSink) PersistGroups(_ context.Context, runID string, groups []models.Group) error {
	s.Logger.Printf("store: run %s persisting %d groups", runID, len(groups))
	return nil
}

func (s *LogSink) PersistSummaries(_ context.Context, runID string, summaries []models.Summary) error {
	s.Logger.Printf("store: run %s persisting %d summaries", runID, len(summaries))
	return nil
}

func (s *LogSink) PersistRunReport(_ context.Context, report models.RunReport) error {
	s.Logger.Printf("store: run %s finished, articles=%d groups=%d summaries=%d partial=%v",
		report.RunID, report.ArticlesFetched, report.GroupsFormed, report.SummariesOK, report.Partial)
	return nil
}
