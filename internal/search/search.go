package search

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Match is one search hit, hydrated for display.
type Match struct {
	Score      float64
	File       string
	StartLine  int
	EndLine    int
	Kind       string
	Name       string
	Params     []string
	ReturnType string
	Extends    string
	Doc        string
	Calls      []string
	Snippet    string
}

// SyncStats summarizes one index pass.
type SyncStats struct {
	Scanned int // candidate files seen on disk
	Indexed int // files parsed and (re-)indexed
	Removed int // files dropped because they disappeared
	Chunks  int // chunks written this pass
}

// Options configure an Index.
type Options struct {
	// DataDir persists the text index and state database across restarts.
	// Empty keeps both in memory.
	DataDir     string
	Embedder    *Embedder // nil disables semantic re-ranking
	Logger      *zap.Logger
	Parallelism int // concurrent file parses during Sync
}

// Index ranks code chunks with a bleve text index. Chunk data and sync state
// live in the Store so hits can be hydrated without re-reading source files.
// Sync takes the write lock; queries share the read lock.
type Index struct {
	idx   bleve.Index
	store *Store
	embed *Embedder
	log   *zap.Logger
	par   int

	mu sync.RWMutex
}

const (
	snippetMaxLines = 12
	embedBatchSize  = 64
	embedMaxChars   = 2000
)

// Open creates the index described by opts.
func Open(opts Options) (*Index, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = runtime.NumCPU()
	}

	var (
		idx   bleve.Index
		store *Store
		err   error
	)
	if opts.DataDir == "" {
		idx, err = bleve.NewMemOnly(bleve.NewIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("creating index: %w", err)
		}
		store, err = OpenStore(":memory:")
	} else {
		if err := os.MkdirAll(opts.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data dir: %w", err)
		}
		blevePath := filepath.Join(opts.DataDir, "index.bleve")
		idx, err = bleve.Open(blevePath)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(blevePath, bleve.NewIndexMapping())
		}
		if err != nil {
			return nil, fmt.Errorf("opening index: %w", err)
		}
		store, err = OpenStore(filepath.Join(opts.DataDir, "state.db"))
	}
	if err != nil {
		idx.Close()
		return nil, err
	}

	return &Index{
		idx:   idx,
		store: store,
		embed: opts.Embedder,
		log:   opts.Logger,
		par:   opts.Parallelism,
	}, nil
}

// Sync walks the folders and brings the index up to date: new and changed
// files are re-parsed and re-indexed, unchanged files are skipped on their
// recorded mtime and size, and files that disappeared are dropped.
func (x *Index) Sync(ctx context.Context, folders, extensions, ignores []string) (SyncStats, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	var stats SyncStats

	known, err := x.store.FileStates(ctx)
	if err != nil {
		return stats, err
	}

	exts := make(map[string]bool, len(extensions))
	for _, e := range extensions {
		exts[strings.ToLower(strings.TrimPrefix(e, "."))] = true
	}
	ignore := make(map[string]bool, len(ignores))
	for _, ig := range ignores {
		ignore[ig] = true
	}

	type candidate struct {
		path  string
		state FileState
	}
	var candidates []candidate
	seen := make(map[string]bool)

	for _, folder := range folders {
		walkErr := filepath.WalkDir(folder, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				x.log.Debug("skipping unreadable entry", zap.String("path", path), zap.Error(err))
				return nil
			}
			if d.IsDir() {
				if ignore[d.Name()] {
					return fs.SkipDir
				}
				return nil
			}
			ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
			if !exts[ext] || seen[path] {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return nil
			}
			seen[path] = true
			stats.Scanned++
			st := FileState{MtimeNS: info.ModTime().UnixNano(), Size: info.Size()}
			if prev, ok := known[path]; ok && prev == st {
				return nil
			}
			candidates = append(candidates, candidate{path: path, state: st})
			return nil
		})
		if walkErr != nil {
			return stats, fmt.Errorf("walking %s: %w", folder, walkErr)
		}
	}

	// Parse changed files in parallel; index and store writes stay
	// single-threaded below.
	parsed := make([][]Chunk, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(x.par)
	for i, c := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			src, err := os.ReadFile(c.path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", c.path, err)
			}
			parsed[i] = Parse(c.path, src)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}

	batch := x.idx.NewBatch()
	var fresh []Chunk

	for i, c := range candidates {
		stale, err := x.store.ChunkIDsByPath(ctx, c.path)
		if err != nil {
			return stats, err
		}
		for _, id := range stale {
			batch.Delete(id)
		}
		for _, ch := range parsed[i] {
			if err := batch.Index(ch.ID, map[string]any{
				"name":    ch.Name,
				"doc":     ch.Doc,
				"content": ch.Content,
			}); err != nil {
				return stats, fmt.Errorf("indexing %s: %w", ch.ID, err)
			}
		}
		if err := x.store.ReplaceFile(ctx, c.path, c.state, parsed[i]); err != nil {
			return stats, err
		}
		stats.Indexed++
		stats.Chunks += len(parsed[i])
		fresh = append(fresh, parsed[i]...)
	}

	// Files known from an earlier pass over these folders that no longer
	// exist. Files indexed from other folders are left alone.
	for path := range known {
		if seen[path] || !underAny(path, folders) {
			continue
		}
		ids, err := x.store.ChunkIDsByPath(ctx, path)
		if err != nil {
			return stats, err
		}
		for _, id := range ids {
			batch.Delete(id)
		}
		if err := x.store.DeleteFile(ctx, path); err != nil {
			return stats, err
		}
		stats.Removed++
	}

	if batch.Size() > 0 {
		if err := x.idx.Batch(batch); err != nil {
			return stats, fmt.Errorf("writing index batch: %w", err)
		}
	}

	if x.embed != nil && len(fresh) > 0 {
		x.embedChunks(ctx, fresh)
	}

	return stats, nil
}

// Query returns the topK best chunks for the query text. Ranking is lexical
// (boosted name and doc fields); with an embedder configured, a wider
// candidate set is re-ranked by blending in cosine similarity.
func (x *Index) Query(ctx context.Context, queryText string, topK int) ([]Match, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if topK <= 0 {
		topK = 8
	}

	nameQ := bleve.NewMatchQuery(queryText)
	nameQ.SetField("name")
	nameQ.SetBoost(3)
	docQ := bleve.NewMatchQuery(queryText)
	docQ.SetField("doc")
	docQ.SetBoost(2)
	contentQ := bleve.NewMatchQuery(queryText)
	contentQ.SetField("content")
	q := bleve.NewDisjunctionQuery(nameQ, docQ, contentQ)

	fetch := topK
	var qvec []float64
	if x.embed != nil {
		vecs, err := x.embed.Embed(ctx, []string{queryText})
		if err != nil {
			x.log.Warn("query embedding failed, ranking lexically", zap.Error(err))
		} else if len(vecs) == 1 {
			qvec = vecs[0]
			fetch = topK * 3
		}
	}

	req := bleve.NewSearchRequestOptions(q, fetch, 0, false)
	res, err := x.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}
	if len(res.Hits) == 0 {
		return nil, nil
	}

	ids := make([]string, len(res.Hits))
	for i, h := range res.Hits {
		ids[i] = h.ID
	}
	stored, err := x.store.ChunksByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(res.Hits))
	for _, h := range res.Hits {
		sc, ok := stored[h.ID]
		if !ok {
			continue
		}
		score := h.Score
		if res.MaxScore > 0 {
			score = h.Score / res.MaxScore
		}
		if qvec != nil && len(sc.Embedding) > 0 {
			score = 0.7*score + 0.3*cosine(qvec, sc.Embedding)
		}
		matches = append(matches, toMatch(sc, score))
	}

	if qvec != nil {
		sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	}
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	ierr := x.idx.Close()
	serr := x.store.Close()
	if ierr != nil {
		return ierr
	}
	return serr
}

func (x *Index) embedChunks(ctx context.Context, chunks []Chunk) {
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := min(start+embedBatchSize, len(chunks))
		part := chunks[start:end]

		texts := make([]string, len(part))
		for i, c := range part {
			texts[i] = embedText(c)
		}
		vecs, err := x.embed.Embed(ctx, texts)
		if err != nil {
			x.log.Warn("chunk embedding failed", zap.Int("chunks", len(part)), zap.Error(err))
			return
		}
		for i, c := range part {
			if err := x.store.SetEmbedding(ctx, c.ID, vecs[i]); err != nil {
				x.log.Warn("caching embedding failed", zap.String("chunk", c.ID), zap.Error(err))
			}
		}
	}
}

func embedText(c Chunk) string {
	s := c.Name + "\n" + c.Doc + "\n" + c.Content
	if len(s) > embedMaxChars {
		s = s[:embedMaxChars]
	}
	return s
}

func toMatch(sc StoredChunk, score float64) Match {
	lines := strings.Split(sc.Content, "\n")
	snippet := sc.Content
	if len(lines) > snippetMaxLines {
		snippet = strings.Join(lines[:snippetMaxLines], "\n") + "\n..."
	}
	return Match{
		Score:      score,
		File:       sc.File,
		StartLine:  sc.StartLine,
		EndLine:    sc.EndLine,
		Kind:       sc.Kind,
		Name:       sc.Name,
		Params:     sc.Params,
		ReturnType: sc.ReturnType,
		Extends:    sc.Extends,
		Doc:        sc.Doc,
		Calls:      sc.Calls,
		Snippet:    snippet,
	}
}

func underAny(path string, folders []string) bool {
	for _, f := range folders {
		f = filepath.Clean(f)
		if path == f || strings.HasPrefix(path, f+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
