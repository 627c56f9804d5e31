package search

import (
	"testing"
)

// ---------- Options + defaultConfig ----------
func TestOptionsAndDefaults(t *testing.T) {
	def := defaultConfig()
	if def.stopwords != nil || def.maxDocs != 0 {
		t.Fatalf("defaultConfig unexpected: %#v", def)
	}

	cfg := def
	WithStopwords([]string{"  The ", "", "An"})(&cfg)

	if _, ok := cfg.stopwords["the"]; !ok {
		t.Fatalf("WithStopwords failed (missing 'the'): %#v", cfg.stopwords)
	}
	if _, ok := cfg.stopwords["an"]; !ok {
		t.Fatalf("WithStopwords failed (missing 'an'): %#v", cfg.stopwords)
	}

	cfg2 := def
	WithStopwords(nil)(&cfg2) // remains nil (no change because m len==0)
	if cfg2.stopwords != nil {
		t.Fatalf("empty stopwords should remain nil")
	}

	WithMaxDocs(2)(&cfg)
	if cfg.maxDocs != 2 {
		t.Fatalf("WithMaxDocs failed: %d", cfg.maxDocs)
	}
	WithMaxDocs(0)(&cfg) // no-op
	if cfg.maxDocs != 2 {
		t.Fatalf("non-positive maxDocs should be ignored")
	}
}

// ---------- NewRanker ----------
func TestNewRanker_SkipsBlankAndTokenFreeDocs(t *testing.T) {
	r := NewRanker([]Document{
		{ID: "a", Text: "deploy the new build tonight"},
		{ID: "b", Text: "   "},
		{ID: "c", Text: "!!! ..."},
		{ID: "d", Text: "build finished"},
	})
	res := r.TopK("build", 10)
	if len(res) != 2 {
		t.Fatalf("expected 2 hits, got %d: %#v", len(res), res)
	}
	for _, h := range res {
		if h.ID != "a" && h.ID != "d" {
			t.Fatalf("unexpected hit id %q", h.ID)
		}
	}
}

func TestNewRanker_MaxDocsCapsInInputOrder(t *testing.T) {
	r := NewRanker([]Document{
		{ID: "1", Text: "alpha"},
		{ID: "2", Text: "alpha"},
		{ID: "3", Text: "alpha"},
	}, WithMaxDocs(2))
	res := r.TopK("alpha", 10)
	if len(res) != 2 {
		t.Fatalf("expected maxDocs cap of 2, got %d", len(res))
	}
	if res[0].ID != "1" || res[1].ID != "2" {
		t.Fatalf("expected ids 1,2 in order, got %#v", res)
	}
}

// ---------- TopK ----------
func TestTopK_EmptyInputs(t *testing.T) {
	empty := NewRanker(nil)
	if got := empty.TopK("anything", 3); got != nil {
		t.Fatalf("empty ranker should return nil, got %#v", got)
	}

	r := NewRanker([]Document{{ID: "a", Text: "hello world"}})
	if got := r.TopK("   ", 3); got != nil {
		t.Fatalf("blank query should return nil, got %#v", got)
	}
	if got := r.TopK("???", 3); got != nil {
		t.Fatalf("token-free query should return nil, got %#v", got)
	}
}

func TestTopK_ScoresAndOrdering(t *testing.T) {
	r := NewRanker([]Document{
		{ID: "m1", Text: "release notes for the api gateway"},
		{ID: "m2", Text: "api gateway"},
		{ID: "m3", Text: "lunch plans"},
	})

	res := r.TopK("api gateway", 10)
	if len(res) != 2 {
		t.Fatalf("expected 2 hits, got %d: %#v", len(res), res)
	}
	// Exact token match ranks first: |Q∩M|/|Q∪M| = 2/2 = 1.0
	if res[0].ID != "m2" || res[0].Score != 1.0 {
		t.Fatalf("expected m2 with score 1.0 first, got %#v", res[0])
	}
	if res[1].ID != "m1" {
		t.Fatalf("expected m1 second, got %#v", res[1])
	}
	if res[1].Score >= res[0].Score {
		t.Fatalf("scores not descending: %#v", res)
	}
}

func TestTopK_TieBreak_ShorterThenID(t *testing.T) {
	// Same token sets → identical scores; shorter text wins, then ID asc.
	r := NewRanker([]Document{
		{ID: "z", Text: "alpha beta"},
		{ID: "a", Text: "alpha beta"},
		{ID: "m", Text: "alpha  beta   gamma"},
	})
	res := r.TopK("alpha beta", 10)
	if len(res) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(res))
	}
	if res[0].ID != "a" || res[1].ID != "z" {
		t.Fatalf("expected tie broken by id asc among equal lengths, got %#v", res)
	}
	if res[2].ID != "m" {
		t.Fatalf("expected longer doc last, got %#v", res)
	}
}

func TestTopK_DefaultKAndClamp(t *testing.T) {
	docs := []Document{
		{ID: "1", Text: "ping one"},
		{ID: "2", Text: "ping two"},
		{ID: "3", Text: "ping three"},
		{ID: "4", Text: "ping four"},
		{ID: "5", Text: "ping five"},
	}
	r := NewRanker(docs)

	// k <= 0 falls back to 3
	if got := r.TopK("ping", 0); len(got) != 3 {
		t.Fatalf("default k should yield 3, got %d", len(got))
	}
	// k larger than hit count clamps
	if got := r.TopK("ping", 50); len(got) != 5 {
		t.Fatalf("expected clamp to 5, got %d", len(got))
	}
}

func TestTopK_StopwordsExcluded(t *testing.T) {
	r := NewRanker([]Document{
		{ID: "x", Text: "the standup is at ten"},
	}, WithStopwords([]string{"the", "is", "at"}))

	if got := r.TopK("the", 3); got != nil {
		t.Fatalf("stopword-only query should return nil, got %#v", got)
	}
	got := r.TopK("standup", 3)
	if len(got) != 1 || got[0].ID != "x" {
		t.Fatalf("expected standup hit, got %#v", got)
	}
}

// ---------- helpers ----------
func TestTokenizeAndOverlap(t *testing.T) {
	toks := tokenize("Hello, WORLD! v2 go1", nil)
	for _, w := range []string{"hello", "world", "v2", "go1"} {
		if _, ok := toks[w]; !ok {
			t.Fatalf("missing token %q in %#v", w, toks)
		}
	}
	if tokenize("!!!", nil) != nil {
		t.Fatalf("expected nil tokens for symbol-only input")
	}

	a := map[string]struct{}{"a": {}, "b": {}}
	b := map[string]struct{}{"b": {}, "c": {}, "d": {}}
	if overlap(a, b) != 1 {
		t.Fatalf("overlap mismatch")
	}
	if overlap(nil, b) != 0 || overlap(a, nil) != 0 {
		t.Fatalf("nil overlap should be 0")
	}
}

func TestNormalizeWhitespace(t *testing.T) {
	got := normalizeWhitespace("a\t b\r\n  c")
	if got != "a b c" {
		t.Fatalf("normalizeWhitespace mismatch: %q", got)
	}
}
