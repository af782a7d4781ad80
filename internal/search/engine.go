// Package search implements retrieval over a project's dual index: vector
// similarity, keyword overlap, and a weighted hybrid of the two.
package search

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hakobune/bunko/internal/config"
	"github.com/hakobune/bunko/internal/embedding"
	"github.com/hakobune/bunko/internal/keyword"
	"github.com/hakobune/bunko/internal/models"
	"github.com/hakobune/bunko/internal/storage"
	"github.com/hakobune/bunko/internal/vector"
)

// Search modes accepted by Search.
const (
	ModeVector  = "vector"
	ModeKeyword = "keyword"
	ModeHybrid  = "hybrid"
)

// Engine answers search queries against a project store. It is safe for
// concurrent use; reads never block each other.
type Engine struct {
	store     *storage.Store
	embedder  embedding.Embedder
	extractor keyword.Extractor
	cfg       *config.SearchConfig
	logger    *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// NewEngine creates a search engine over the given store and collaborators.
func NewEngine(store *storage.Store, embedder embedding.Embedder, extractor keyword.Extractor, cfg *config.SearchConfig, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		embedder:  embedder,
		extractor: extractor,
		cfg:       cfg,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search dispatches on mode and wraps the hits in a timed response. A k of 0
// uses the configured default; alpha only applies to hybrid mode and a
// negative alpha uses the configured default.
func (e *Engine) Search(ctx context.Context, projectID, query, mode string, k int, alpha float64) (*models.SearchResponse, error) {
	if k == 0 {
		k = e.cfg.DefaultK
	}
	if alpha < 0 {
		alpha = e.cfg.HybridAlpha
	}
	start := time.Now()

	var results []*models.SearchResult
	var err error
	switch mode {
	case ModeVector:
		results, err = e.SearchByVector(ctx, projectID, query, k)
	case ModeKeyword:
		results, err = e.SearchByKeyword(ctx, projectID, query, k)
	case ModeHybrid, "":
		results, err = e.SearchHybrid(ctx, projectID, query, k, alpha)
	default:
		err = fmt.Errorf("%w: unknown search mode %q", models.ErrInvalidArgument, mode)
	}
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)
	e.logger.Debug("search completed",
		zap.String("project", projectID),
		zap.String("mode", mode),
		zap.Int("results", len(results)),
		zap.Duration("elapsed", elapsed))
	return &models.SearchResponse{
		Results:   results,
		Total:     len(results),
		QueryTime: elapsed.Milliseconds(),
		Query:     query,
	}, nil
}

// SearchByVector embeds the query and ranks all chunks by cosine similarity.
func (e *Engine) SearchByVector(ctx context.Context, projectID, query string, k int) ([]*models.SearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", models.ErrInvalidArgument, k)
	}
	scores, err := e.vectorScores(ctx, projectID, query)
	if err != nil {
		return nil, err
	}
	ranked := rankScores(scores, k)
	return e.hydrate(ctx, projectID, ranked, func(r *models.SearchResult, s float64) {
		r.Score = s
		r.VectorScore = s
	})
}

// SearchByKeyword extracts keywords from the query and ranks chunks by how
// many distinct query keywords they carry. A query yielding no keywords
// returns no results rather than an error.
func (e *Engine) SearchByKeyword(ctx context.Context, projectID, query string, k int) ([]*models.SearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", models.ErrInvalidArgument, k)
	}
	scores, err := e.keywordScores(ctx, projectID, query)
	if err != nil {
		return nil, err
	}
	ranked := rankScores(scores, k)
	return e.hydrate(ctx, projectID, ranked, func(r *models.SearchResult, s float64) {
		r.Score = s
		r.KeywordScore = s
	})
}

// SearchHybrid runs the vector and keyword legs concurrently, min-max
// normalizes each signal over its own candidate set, and ranks the union by
// alpha*vector + (1-alpha)*keyword. The vector leg keeps a candidate pool of
// k*CandidateFactor so normalization has headroom beyond the final cut.
func (e *Engine) SearchHybrid(ctx context.Context, projectID, query string, k int, alpha float64) ([]*models.SearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", models.ErrInvalidArgument, k)
	}
	if alpha < 0 || alpha > 1 {
		return nil, fmt.Errorf("%w: alpha must be in [0, 1], got %g", models.ErrInvalidArgument, alpha)
	}

	var (
		wg            sync.WaitGroup
		vectorScores  map[int64]float64
		keywordScores map[int64]float64
	)
	errChan := make(chan error, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		scores, err := e.vectorScores(ctx, projectID, query)
		if err != nil {
			errChan <- err
			return
		}
		pool := k * e.cfg.CandidateFactor
		vectorScores = topScores(scores, pool)
	}()
	go func() {
		defer wg.Done()
		scores, err := e.keywordScores(ctx, projectID, query)
		if err != nil {
			errChan <- err
			return
		}
		keywordScores = scores
	}()
	wg.Wait()
	close(errChan)
	if err := <-errChan; err != nil {
		return nil, err
	}

	normVec := MinMaxNormalize(vectorScores)
	normKw := MinMaxNormalize(keywordScores)
	fused := Fuse(normVec, normKw, alpha)
	ranked := rankScores(fused, k)

	return e.hydrate(ctx, projectID, ranked, func(r *models.SearchResult, s float64) {
		r.Score = s
		r.VectorScore = normVec[r.ChunkID]
		r.KeywordScore = normKw[r.ChunkID]
	})
}

// vectorScores embeds the query and scores every stored chunk embedding.
func (e *Engine) vectorScores(ctx context.Context, projectID, query string) (map[int64]float64, error) {
	queryVec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	stored, err := e.store.AllChunkVectors(ctx, projectID)
	if err != nil {
		return nil, err
	}
	scores := make(map[int64]float64, len(stored))
	for _, cv := range stored {
		scores[cv.ChunkID] = vector.Cosine(queryVec, cv.Vector)
	}
	return scores, nil
}

// keywordScores counts, per chunk, how many distinct normalized query
// keywords post to it.
func (e *Engine) keywordScores(ctx context.Context, projectID, query string) (map[int64]float64, error) {
	raw, err := e.extractor.Extract(ctx, query)
	if err != nil {
		return nil, err
	}
	keywords := keyword.Normalize(raw)
	scores := make(map[int64]float64)
	for _, kw := range keywords {
		ids, err := e.store.PostingsFor(ctx, projectID, kw)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			scores[id]++
		}
	}
	return scores, nil
}

type scoredID struct {
	id    int64
	score float64
}

// rankScores orders by score descending, chunk id ascending on ties, and
// keeps the top k.
func rankScores(scores map[int64]float64, k int) []scoredID {
	ranked := make([]scoredID, 0, len(scores))
	for id, s := range scores {
		ranked = append(ranked, scoredID{id: id, score: s})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].id < ranked[j].id
	})
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked
}

// topScores keeps the best n entries of scores as a map, for candidate pools.
func topScores(scores map[int64]float64, n int) map[int64]float64 {
	if len(scores) <= n {
		return scores
	}
	out := make(map[int64]float64, n)
	for _, sc := range rankScores(scores, n) {
		out[sc.id] = sc.score
	}
	return out
}

// hydrate loads chunk content for ranked ids, preserving rank order. Chunks
// deleted between scoring and hydration are silently dropped.
func (e *Engine) hydrate(ctx context.Context, projectID string, ranked []scoredID, fill func(*models.SearchResult, float64)) ([]*models.SearchResult, error) {
	if len(ranked) == 0 {
		return []*models.SearchResult{}, nil
	}
	ids := make([]int64, len(ranked))
	for i, sc := range ranked {
		ids[i] = sc.id
	}
	chunks, err := e.store.GetChunksByIDs(ctx, projectID, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*models.Chunk, len(chunks))
	for _, ch := range chunks {
		byID[ch.ID] = ch
	}
	results := make([]*models.SearchResult, 0, len(ranked))
	for _, sc := range ranked {
		ch, ok := byID[sc.id]
		if !ok {
			continue
		}
		r := &models.SearchResult{
			ChunkID:    ch.ID,
			DocumentID: ch.DocumentID,
			Seq:        ch.Seq,
			Content:    ch.Content,
		}
		fill(r, sc.score)
		results = append(results, r)
	}
	return results, nil
}
