package exemplar

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkarpov/trustprobe/internal/event"
	"github.com/pkarpov/trustprobe/internal/rules"
)

func testBundle() *Bundle {
	events := []event.Event{
		{ID: "e001", Context: "ctx-test", Kind: event.AuthorityExercised, Source: "svc-alpha", Scope: "scope-x"},
	}
	violations := []rules.Violation{
		{Kind: rules.AuthorityDrift, CauseIDs: []string{"e001"}, DetectedAt: 42},
	}
	return New(Source{Origin: "test", Profile: "fast", Seed: 7}, "ctx-test", events, violations, nil)
}

func TestContentIDIgnoresVolatileFields(t *testing.T) {
	a := testBundle()
	time.Sleep(10 * time.Millisecond)
	b := testBundle()
	if a.ID != b.ID {
		t.Fatalf("identical content produced different ids: %s vs %s", a.ID, b.ID)
	}
	if a.RefViolations[0].DetectedAt != 0 {
		t.Fatal("detection time must be stripped from the stored bundle")
	}
	b.Source.RunID = "different-run"
	if b.ID != contentID(b) {
		t.Fatal("the capturing run's id must stay out of the content hash")
	}
}

func TestContentIDTracksContent(t *testing.T) {
	a := testBundle()
	b := testBundle()
	b.Events[0].Scope = "scope-y"
	b.ID = contentID(b)
	if a.ID == b.ID {
		t.Fatal("different sequences must have different ids")
	}
}

func TestStoreWriteCreatesArtifacts(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	b := testBundle()

	path, err := store.Write(b)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("bundle json missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "rendered", b.ID+".md")); err != nil {
		t.Fatalf("rendered page missing: %v", err)
	}

	index, err := os.ReadFile(filepath.Join(dir, "README.md"))
	if err != nil {
		t.Fatalf("index missing: %v", err)
	}
	if !strings.Contains(string(index), b.ID) {
		t.Fatal("index does not mention the bundle")
	}
}

func TestStoreWriteIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	b := testBundle()

	if _, err := store.Write(b); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Write(b); err != nil {
		t.Fatal(err)
	}

	ids, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 {
		t.Fatalf("expected one bundle, got %d", len(ids))
	}

	index, _ := os.ReadFile(filepath.Join(dir, "README.md"))
	if strings.Count(string(index), b.ID) != 1 {
		t.Fatal("index entry duplicated")
	}
}

func TestIndexIsAppendOnly(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	first := testBundle()
	if _, err := store.Write(first); err != nil {
		t.Fatal(err)
	}

	second := testBundle()
	second.Events[0].Scope = "scope-y"
	second.ID = contentID(second)
	if _, err := store.Write(second); err != nil {
		t.Fatal(err)
	}

	index, _ := os.ReadFile(filepath.Join(dir, "README.md"))
	text := string(index)
	if !strings.Contains(text, first.ID) || !strings.Contains(text, second.ID) {
		t.Fatal("index lost an entry")
	}
	if strings.Index(text, first.ID) > strings.Index(text, second.ID) {
		t.Fatal("entries must keep insertion order")
	}
}

func TestRenderMarkdownNamesViolationAndRemedy(t *testing.T) {
	md := testBundle().RenderMarkdown()
	for _, want := range []string{
		"# Exemplar",
		"authority_drift",
		"e001",
		"## What Would Make This Valid",
		remedies[rules.AuthorityDrift],
	} {
		if !strings.Contains(md, want) {
			t.Errorf("rendered page missing %q", want)
		}
	}
}

func TestListEmptyStore(t *testing.T) {
	ids, err := NewStore(t.TempDir()).List()
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected empty store, got %v", ids)
	}
}
