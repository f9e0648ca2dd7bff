package group

import (
	"context"
	"log"
	"sort"

	"github.com/talk-less/talkless/models"
)

// Grouper partitions a batch of Articles into topical Groups using
// semantic similarity, then annotates each group with perspective and
// coverage metrics.
type Grouper struct {
	Embedder EmbeddingModel
	Logger   *log.Logger

	SimilarityThreshold  float64
	MinArticlesPerGroup  int
	MaxArticlesPerGroup  int
	EmbeddingBatchSize   int
	FirstNTokensForEmbed int
}

// New builds a Grouper from the grouping configuration.
func New(embedder EmbeddingModel, similarityThreshold float64, minPerGroup, maxPerGroup, batchSize, firstN int, logger *log.Logger) *Grouper {
	if logger == nil {
		logger = log.Default()
	}
	if batchSize <= 0 {
		batchSize = 64
	}
	return &Grouper{
		Embedder:             embedder,
		Logger:               logger,
		SimilarityThreshold:  similarityThreshold,
		MinArticlesPerGroup:  minPerGroup,
		MaxArticlesPerGroup:  maxPerGroup,
		EmbeddingBatchSize:   batchSize,
		FirstNTokensForEmbed: firstN,
	}
}

// EmbedFailure records one embedding batch that failed and was excluded,
// letting the caller decide how to surface it (logging, reporting) without
// this package depending on the caller's error types.
type EmbedFailure struct {
	BatchSize int
	Err       error
}

// GroupArticles embeds every article, clusters the resulting vectors, and
// returns the formed Groups plus any batches excluded by an embedding
// failure. It never fails the run: embedding errors on a batch exclude
// that batch's articles rather than aborting.
func (g *Grouper) GroupArticles(ctx context.Context, articles []models.Article, allSources []models.Source) ([]models.Group, []EmbedFailure) {
	articlesByID := make(map[string]models.Article, len(articles))
	for _, a := range articles {
		articlesByID[a.ID] = a
	}

	ids, vecs, failures := g.embedAll(ctx, articles)
	if len(ids) == 0 {
		return nil, failures
	}

	eps := 1 - g.SimilarityThreshold
	clusters := Cluster(ids, vecs, eps, g.MinArticlesPerGroup, g.MaxArticlesPerGroup)

	vecByID := make(map[string][]float32, len(ids))
	for i, id := range ids {
		vecByID[id] = vecs[i]
	}

	groups := make([]models.Group, 0, len(clusters))
	for _, memberIDs := range clusters {
		sort.Strings(memberIDs)
		groups = append(groups, models.Group{
			ID:               GroupID(memberIDs),
			MemberArticleIDs: memberIDs,
			SourceIDs:        SourceIDs(memberIDs, articlesByID),
			Centroid:         centroidVector(memberIDs, vecByID),
			Metrics:          Perspective(memberIDs, articlesByID, allSources),
		})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].ID < groups[j].ID })
	return groups, failures
}

func (g *Grouper) embedAll(ctx context.Context, articles []models.Article) ([]string, [][]float32, []EmbedFailure) {
	var ids []string
	var vecs [][]float32
	var failures []EmbedFailure

	for start := 0; start < len(articles); start += g.EmbeddingBatchSize {
		end := start + g.EmbeddingBatchSize
		if end > len(articles) {
			end = len(articles)
		}
		batch := articles[start:end]

		texts := make([]string, len(batch))
		for i, a := range batch {
			texts[i] = EmbeddingText(a.Title, a.Content, g.FirstNTokensForEmbed)
		}

		embedded, err := g.Embedder.Embed(ctx, texts)
		if err != nil {
			g.Logger.Printf("group: embedding batch [%d:%d) failed, excluding %d articles: %v", start, end, len(batch), err)
			failures = append(failures, EmbedFailure{BatchSize: len(batch), Err: err})
			continue
		}
		for i, a := range batch {
			ids = append(ids, a.ID)
			vecs = append(vecs, embedded[i])
		}
	}
	return ids, vecs, failures
}

func centroidVector(memberIDs []string, vecByID map[string][]float32) []float32 {
	if len(memberIDs) == 0 {
		return nil
	}
	dims := len(vecByID[memberIDs[0]])
	c := make([]float32, dims)
	for _, id := range memberIDs {
		v := vecByID[id]
		for d := 0; d < dims && d < len(v); d++ {
			c[d] += v[d]
		}
	}
	for d := range c {
		c[d] /= float32(len(memberIDs))
	}
	normalize(c)
	return c
}
