package services

import (
	"context"
	"fmt"
	"path"
	"sort"
	"time"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/ports/driven"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/logger"
)

var retrievalLog = logger.For("retrieval")

// rrfK is the rank offset of reciprocal rank fusion.
const rrfK = 60

// StageRerank names the re-ranking stage reported on chat streams.
const StageRerank = "rerank"

// IndexFactory creates the in-memory indexes an engine is mounted into.
type IndexFactory struct {
	// Vector creates a cosine index for dim-sized vectors.
	Vector func(dim int) driven.VectorIndex

	// Keyword creates a BM25 index. May be nil when BM25 is never enabled.
	Keyword func() driven.SearchEngine
}

// Engine is a mounted corpus: every chunk loaded into a dense index and,
// optionally, a keyword index.
type Engine struct {
	corpus     string
	generation uint64
	descriptor domain.Descriptor
	chunks     map[string]domain.Chunk
	vectors    driven.VectorIndex
	keyword    driven.SearchEngine
}

// Corpus returns the mounted corpus name.
func (e *Engine) Corpus() string {
	return e.corpus
}

// Len returns the number of mounted chunks.
func (e *Engine) Len() int {
	return len(e.chunks)
}

// Close releases the indexes.
func (e *Engine) Close() error {
	var err error
	if e.vectors != nil {
		err = e.vectors.Close()
	}
	if e.keyword != nil {
		if kerr := e.keyword.Close(); err == nil {
			err = kerr
		}
	}
	return err
}

// mountEngine loads a corpus snapshot into fresh indexes. The snapshot's
// descriptor must match the embedder dimension; a zero dimension marks a
// corpus that has never stored a vector.
func mountEngine(ctx context.Context, snap *driven.CorpusSnapshot, emb driven.EmbeddingService, factory IndexFactory, bm25 bool) (*Engine, error) {
	dim, err := embedderDim(ctx, emb)
	if err != nil {
		return nil, err
	}
	desc := snap.Descriptor
	if desc.VectorDim != 0 && !desc.Compatible(dim) {
		return nil, &domain.DimensionMismatchError{
			Corpus:        snap.Name,
			CorpusModel:   desc.EmbeddingModelID,
			CorpusDim:     desc.VectorDim,
			EmbedderModel: emb.ModelName(),
			EmbedderDim:   dim,
		}
	}

	e := &Engine{
		corpus:     snap.Name,
		descriptor: desc,
		chunks:     make(map[string]domain.Chunk),
		vectors:    factory.Vector(dim),
	}
	if bm25 && factory.Keyword != nil {
		e.keyword = factory.Keyword()
	}

	err = snap.Chunks.Iterate(ctx, func(c domain.Chunk) error {
		if err := e.vectors.Add(ctx, c.ID, c.Embedding); err != nil {
			return fmt.Errorf("%w: %s: chunk %s: %v", domain.ErrCorruptCorpus, snap.Name, c.ID, err)
		}
		if e.keyword != nil {
			if err := e.keyword.Index(ctx, c); err != nil {
				return err
			}
		}
		c.Embedding = nil
		e.chunks[c.ID] = c
		return nil
	})
	if err != nil {
		_ = e.Close()
		return nil, err
	}
	return e, nil
}

// retrieval is the outcome of one query against an engine.
type retrieval struct {
	chunks []domain.RetrievedChunk
	stage  *domain.StageInfo
}

// retrieve runs dense search, optional BM25 fusion and optional re-ranking.
func (e *Engine) retrieve(ctx context.Context, query string, cfg domain.Config, emb driven.EmbeddingService, reranker driven.Reranker) (*retrieval, error) {
	if len(e.chunks) == 0 {
		return &retrieval{}, nil
	}

	topK := cfg.RetrievalTopK
	if topK <= 0 {
		topK = domain.DefaultTopK
	}
	rerank := cfg.EnableRerank && reranker != nil
	want := topK
	if rerank {
		want = domain.RerankCandidates
	}

	qvec, err := emb.Embed(ctx, query)
	if err != nil {
		return nil, providerError("embedding query", err)
	}

	var ranked []scored
	if e.keyword != nil {
		dense, err := e.dense(ctx, qvec, domain.RerankCandidates)
		if err != nil {
			return nil, err
		}
		hits, err := e.keyword.Search(ctx, query, domain.RerankCandidates)
		if err != nil {
			return nil, fmt.Errorf("keyword search: %w", err)
		}
		lexical := make([]scored, len(hits))
		for i, h := range hits {
			lexical[i] = scored{id: h.ChunkID, score: h.Score}
		}
		ranked = fuseRRF(dense, lexical)
	} else {
		if ranked, err = e.dense(ctx, qvec, want); err != nil {
			return nil, err
		}
	}
	if len(ranked) > want {
		ranked = ranked[:want]
	}

	res := &retrieval{}
	if rerank && len(ranked) > 0 {
		ranked, res.stage = e.rerank(ctx, query, ranked, reranker)
	}
	res.chunks = e.hydrate(ranked)
	return res, nil
}

type scored struct {
	id    string
	score float64
}

func (e *Engine) dense(ctx context.Context, qvec []float32, k int) ([]scored, error) {
	hits, err := e.vectors.Search(ctx, qvec, k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	out := make([]scored, len(hits))
	for i, h := range hits {
		out[i] = scored{id: h.ChunkID, score: h.Similarity}
	}
	return out, nil
}

// fuseRRF merges ranked lists by reciprocal rank fusion with 1-based ranks.
// Ties keep the order in which chunks were first seen.
func fuseRRF(lists ...[]scored) []scored {
	total := make(map[string]float64)
	var order []string
	for _, list := range lists {
		for rank, s := range list {
			if _, seen := total[s.id]; !seen {
				order = append(order, s.id)
			}
			total[s.id] += 1.0 / float64(rank+1+rrfK)
		}
	}
	fused := make([]scored, len(order))
	for i, id := range order {
		fused[i] = scored{id: id, score: total[id]}
	}
	sort.SliceStable(fused, func(i, j int) bool {
		return fused[i].score > fused[j].score
	})
	return fused
}

// rerank scores candidates with the cross-encoder and keeps the best few.
// A failing reranker leaves the fused order in place.
func (e *Engine) rerank(ctx context.Context, query string, candidates []scored, reranker driven.Reranker) ([]scored, *domain.StageInfo) {
	start := time.Now()
	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = e.chunks[c.id].Content
	}

	keep := min(domain.RerankKeep, len(candidates))
	scores, err := reranker.Rerank(ctx, query, texts)
	if err == nil && len(scores) != len(candidates) {
		err = fmt.Errorf("%d scores for %d passages", len(scores), len(candidates))
	}
	stage := &domain.StageInfo{Name: StageRerank, Candidates: len(candidates), Elapsed: time.Since(start)}
	if err != nil {
		retrievalLog.Warn("%s: re-ranking failed, keeping retrieval order: %v", e.corpus, err)
		return candidates[:keep], stage
	}

	out := make([]scored, len(candidates))
	for i, c := range candidates {
		out[i] = scored{id: c.id, score: scores[i]}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].score > out[j].score
	})
	return out[:keep], stage
}

func (e *Engine) hydrate(ranked []scored) []domain.RetrievedChunk {
	out := make([]domain.RetrievedChunk, 0, len(ranked))
	for _, s := range ranked {
		c, ok := e.chunks[s.id]
		if !ok {
			continue
		}
		out = append(out, domain.RetrievedChunk{
			ChunkID:  c.ID,
			FilePath: c.FilePath,
			FileName: path.Base(c.FilePath),
			Content:  c.Content,
			Position: c.Position,
			Page:     c.Page,
			Score:    s.score,
		})
	}
	return out
}
