package search

import (
	"context"
	"path/filepath"
	"testing"
)

func memStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(":memory:")
	if err != nil {
		t.Fatalf("OpenStore(:memory:) error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreReplaceAndHydrate(t *testing.T) {
	s := memStore(t)
	ctx := context.Background()

	chunks := []Chunk{
		{
			ID:         "a.js#0",
			File:       "a.js",
			StartLine:  1,
			EndLine:    3,
			Kind:       "function",
			Name:       "sum",
			Params:     []string{"a", "b"},
			ReturnType: "number",
			Doc:        "Adds two numbers.",
			Calls:      []string{"clamp"},
			Content:    "function sum(a, b) {\n  return a + b;\n}",
		},
		{ID: "a.js#1", File: "a.js", StartLine: 5, EndLine: 5, Kind: "function", Name: "inc"},
	}

	if err := s.ReplaceFile(ctx, "a.js", FileState{MtimeNS: 100, Size: 42}, chunks); err != nil {
		t.Fatalf("ReplaceFile() error = %v", err)
	}

	states, err := s.FileStates(ctx)
	if err != nil {
		t.Fatalf("FileStates() error = %v", err)
	}
	if st, ok := states["a.js"]; !ok || st.MtimeNS != 100 || st.Size != 42 {
		t.Errorf("states[a.js] = %+v, ok=%v", st, ok)
	}

	ids, err := s.ChunkIDsByPath(ctx, "a.js")
	if err != nil {
		t.Fatalf("ChunkIDsByPath() error = %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("ids = %v, want 2 entries", ids)
	}

	hydrated, err := s.ChunksByIDs(ctx, []string{"a.js#0", "missing"})
	if err != nil {
		t.Fatalf("ChunksByIDs() error = %v", err)
	}
	if len(hydrated) != 1 {
		t.Fatalf("hydrated = %d chunks, want 1", len(hydrated))
	}
	got := hydrated["a.js#0"]
	if got.Name != "sum" || got.Kind != "function" || got.ReturnType != "number" {
		t.Errorf("chunk = %+v", got.Chunk)
	}
	if len(got.Params) != 2 || got.Params[1] != "b" {
		t.Errorf("Params = %v", got.Params)
	}
	if len(got.Calls) != 1 || got.Calls[0] != "clamp" {
		t.Errorf("Calls = %v", got.Calls)
	}
	if got.Embedding != nil {
		t.Errorf("Embedding = %v, want nil before SetEmbedding", got.Embedding)
	}
}

func TestStoreReplaceSwapsChunks(t *testing.T) {
	s := memStore(t)
	ctx := context.Background()

	first := []Chunk{{ID: "b.js#0", File: "b.js", Kind: "function", Name: "old"}}
	if err := s.ReplaceFile(ctx, "b.js", FileState{MtimeNS: 1, Size: 1}, first); err != nil {
		t.Fatal(err)
	}

	second := []Chunk{
		{ID: "b.js#0", File: "b.js", Kind: "function", Name: "new0"},
		{ID: "b.js#1", File: "b.js", Kind: "function", Name: "new1"},
	}
	if err := s.ReplaceFile(ctx, "b.js", FileState{MtimeNS: 2, Size: 2}, second); err != nil {
		t.Fatal(err)
	}

	ids, _ := s.ChunkIDsByPath(ctx, "b.js")
	if len(ids) != 2 {
		t.Fatalf("ids = %v, want 2 after swap", ids)
	}
	hydrated, _ := s.ChunksByIDs(ctx, ids)
	if hydrated["b.js#0"].Name != "new0" {
		t.Errorf("b.js#0 name = %q, want new0", hydrated["b.js#0"].Name)
	}

	states, _ := s.FileStates(ctx)
	if states["b.js"].MtimeNS != 2 {
		t.Errorf("MtimeNS = %d, want 2", states["b.js"].MtimeNS)
	}
}

func TestStoreDeleteFile(t *testing.T) {
	s := memStore(t)
	ctx := context.Background()

	chunks := []Chunk{{ID: "c.js#0", File: "c.js", Kind: "file", Name: "c.js"}}
	if err := s.ReplaceFile(ctx, "c.js", FileState{MtimeNS: 1, Size: 1}, chunks); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteFile(ctx, "c.js"); err != nil {
		t.Fatalf("DeleteFile() error = %v", err)
	}

	states, _ := s.FileStates(ctx)
	if _, ok := states["c.js"]; ok {
		t.Error("file state survived DeleteFile")
	}
	ids, _ := s.ChunkIDsByPath(ctx, "c.js")
	if len(ids) != 0 {
		t.Errorf("ids = %v, want none after DeleteFile", ids)
	}
}

func TestStoreEmbeddingRoundTrip(t *testing.T) {
	s := memStore(t)
	ctx := context.Background()

	chunks := []Chunk{{ID: "d.js#0", File: "d.js", Kind: "function", Name: "f"}}
	if err := s.ReplaceFile(ctx, "d.js", FileState{}, chunks); err != nil {
		t.Fatal(err)
	}

	vec := []float64{0.25, -0.5, 1.0}
	if err := s.SetEmbedding(ctx, "d.js#0", vec); err != nil {
		t.Fatalf("SetEmbedding() error = %v", err)
	}

	hydrated, _ := s.ChunksByIDs(ctx, []string{"d.js#0"})
	got := hydrated["d.js#0"].Embedding
	if len(got) != 3 || got[0] != 0.25 || got[2] != 1.0 {
		t.Errorf("Embedding = %v, want %v", got, vec)
	}
}

func TestStoreOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.db")
	s, err := OpenStore(path)
	if err != nil {
		t.Fatalf("OpenStore(%q) error = %v", path, err)
	}
	defer s.Close()

	ctx := context.Background()
	if err := s.ReplaceFile(ctx, "x.js", FileState{MtimeNS: 9, Size: 9}, nil); err != nil {
		t.Fatalf("ReplaceFile() error = %v", err)
	}
	states, err := s.FileStates(ctx)
	if err != nil || len(states) != 1 {
		t.Errorf("states = %v, err = %v", states, err)
	}
}
