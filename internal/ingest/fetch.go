// Package ingest implements the Ingestor: it turns a list of configured
// Sources into a deduplicated, age-filtered slice of Articles, respecting
// each source's own rate budget and never letting one source's failure
// abort the run.
package ingest

import (
	"context"
	"log"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/talk-less/talkless/internal/cache"
	"github.com/talk-less/talkless/internal/ratelimit"
	"github.com/talk-less/talkless/models"
)

// Fetcher retrieves the current articles for a single source.
type Fetcher interface {
	Fetch(ctx context.Context, source models.Source) ([]models.Article, error)
}

// FetchReport summarizes one source's contribution to a run, folded into
// the RunReport's per-stage stats.
type FetchReport struct {
	SourceID          string
	Attempted         bool
	Succeeded         bool
	SkippedCredential bool
	SkippedParse      bool
	ArticlesReturned  int
	CacheErrors       int
	Duration          time.Duration
	Err               error
}

// Ingestor fans a run out across every enabled source, using an RSS
// fetcher for SourceKindRSS and an API fetcher for SourceKindAPI, both
// paced by a shared rate limiter and backed by a shared cache.
type Ingestor struct {
	RSS     Fetcher
	API     Fetcher
	Limiter *ratelimit.Limiter
	Cache   cache.Cache
	MaxAge  time.Duration
	Logger  *log.Logger

	MaxConcurrent int

	// CacheTTL and CacheOpTimeout default to 30m/250ms respectively when
	// left zero, so Ingestors built by struct literal in tests still get
	// sane cache behavior.
	CacheTTL       time.Duration
	CacheOpTimeout time.Duration
}

// New builds an Ingestor with the standard RSS/API fetchers wired in.
func New(limiter *ratelimit.Limiter, c cache.Cache, maxAge, cacheTTL, cacheOpTimeout time.Duration, maxConcurrent int, strictRSSDates bool, logger *log.Logger) *Ingestor {
	if logger == nil {
		logger = log.Default()
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &Ingestor{
		RSS:            NewRSSFetcher(strictRSSDates),
		API:            NewAPIFetcher(),
		Limiter:        limiter,
		Cache:          c,
		MaxAge:         maxAge,
		Logger:         logger,
		MaxConcurrent:  maxConcurrent,
		CacheTTL:       cacheTTL,
		CacheOpTimeout: cacheOpTimeout,
	}
}

func (in *Ingestor) cacheTTL() time.Duration {
	if in.CacheTTL > 0 {
		return in.CacheTTL
	}
	return 30 * time.Minute
}

func (in *Ingestor) cacheOpTimeout() time.Duration {
	if in.CacheOpTimeout > 0 {
		return in.CacheOpTimeout
	}
	return 250 * time.Millisecond
}

// FetchAll fetches every enabled source concurrently, capped at
// MaxConcurrent in flight at once, and returns the combined, deduplicated,
// age-filtered article set plus a report per source.
func (in *Ingestor) FetchAll(ctx context.Context, sources []models.Source) ([]models.Article, []FetchReport) {
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		articles []models.Article
		reports  = make([]FetchReport, 0, len(sources))
	)

	sem := make(chan struct{}, in.MaxConcurrent)

	for _, src := range sources {
		if !src.Enabled {
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(source models.Source) {
			defer wg.Done()
			defer func() { <-sem }()

			rep := in.fetchOne(ctx, source)

			mu.Lock()
			defer mu.Unlock()
			reports = append(reports, rep.report)
			articles = append(articles, rep.articles...)
		}(src)
	}

	wg.Wait()

	sort.Slice(reports, func(i, j int) bool { return reports[i].SourceID < reports[j].SourceID })
	return dedupeAndFilter(articles, in.MaxAge), reports
}

type fetchOutcome struct {
	report   FetchReport
	articles []models.Article
}

func (in *Ingestor) fetchOne(ctx context.Context, source models.Source) fetchOutcome {
	start := time.Now()
	rep := FetchReport{SourceID: source.ID, Attempted: true}

	if source.Kind == models.SourceKindAPI && source.CredentialEnv != "" {
		if v := lookupCredential(source.CredentialEnv); v == "" {
			rep.SkippedCredential = true
			rep.Duration = time.Since(start)
			in.Logger.Printf("ingest: source %s skipped, credential env %s unset", source.ID, source.CredentialEnv)
			return fetchOutcome{report: rep}
		}
	}

	if in.Limiter != nil {
		if err := in.Limiter.Wait(ctx, source.ID, source.RequestsPerMinute); err != nil {
			rep.Err = err
			rep.Duration = time.Since(start)
			return fetchOutcome{report: rep}
		}
	}

	fetcher := in.fetcherFor(source.Kind)
	articles, err := fetcher.Fetch(ctx, source)
	rep.Duration = time.Since(start)
	if err != nil {
		rep.SkippedParse = true
		rep.Err = err
		in.Logger.Printf("ingest: source %s failed: %v", source.ID, err)
		return fetchOutcome{report: rep}
	}

	articles, cacheErrs := in.suppressRecentlySeen(ctx, articles)
	rep.CacheErrors = cacheErrs

	rep.Succeeded = true
	rep.ArticlesReturned = len(articles)
	return fetchOutcome{report: rep, articles: articles}
}

// suppressRecentlySeen consults the content cache to drop articles already
// delivered by a previous run and marks the survivors seen, per spec's
// "fetched-recently marker to suppress refetch". Any cache error is logged
// and treated as a cache miss so a cache outage never removes an article
// that would otherwise have been produced; the count of such errors is
// returned so the caller can surface them without this package depending
// on the caller's error types.
func (in *Ingestor) suppressRecentlySeen(ctx context.Context, articles []models.Article) ([]models.Article, int) {
	if in.Cache == nil {
		return articles, 0
	}
	kept := make([]models.Article, 0, len(articles))
	cacheErrs := 0
	for _, a := range articles {
		key := "article:" + a.ID

		seenCtx, cancel := context.WithTimeout(ctx, in.cacheOpTimeout())
		seen, err := in.Cache.SeenRecently(seenCtx, key)
		cancel()
		if err != nil {
			in.Logger.Printf("ingest: cache SeenRecently(%s) failed, degrading to uncached: %v", a.ID, err)
			cacheErrs++
		} else if seen {
			continue
		}

		kept = append(kept, a)

		markCtx, cancel := context.WithTimeout(ctx, in.cacheOpTimeout())
		err = in.Cache.MarkSeen(markCtx, key, in.cacheTTL())
		cancel()
		if err != nil {
			in.Logger.Printf("ingest: cache MarkSeen(%s) failed, degrading to uncached: %v", a.ID, err)
			cacheErrs++
		}
	}
	return kept, cacheErrs
}

func (in *Ingestor) fetcherFor(kind models.SourceKind) Fetcher {
	if kind == models.SourceKindAPI {
		return in.API
	}
	return in.RSS
}

// dedupeAndFilter drops age-filtered and duplicate-id articles, then groups
// the survivors by SourceID with a stable sort. A stable sort never
// reorders elements with equal keys, so each source's articles keep the
// order fetchOne originally returned them in,
// per spec's "articles within a source preserve publication order".
func dedupeAndFilter(articles []models.Article, maxAge time.Duration) []models.Article {
	cutoff := time.Now().Add(-maxAge)
	seen := make(map[string]bool, len(articles))
	out := make([]models.Article, 0, len(articles))
	for _, a := range articles {
		if maxAge > 0 && a.PublishedAt.Before(cutoff) {
			continue
		}
		if seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SourceID < out[j].SourceID })
	return out
}

// lookupCredential is a var so tests can stub credential presence without
// touching the process environment.
var lookupCredential = func(env string) string {
	return os.Getenv(env)
}
