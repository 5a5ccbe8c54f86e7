package exemplar

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	capturesDir = "captures"
	renderedDir = "rendered"
	indexFile   = "README.md"
)

const indexHeader = `# Captured Exemplars

Each entry is a minimal failing sequence with its violations, captured as
canonical JSON under captures/ and a readable page under rendered/.
Entries are appended and never rewritten.
`

// Store persists bundles under a base directory.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Write persists the bundle and updates the index. Both artifacts are
// written to a temp file and renamed in, so readers never observe a partial
// bundle. Writing a bundle whose ID already exists is a no-op.
func (s *Store) Write(b *Bundle) (string, error) {
	jsonPath := filepath.Join(s.dir, capturesDir, b.ID+".json")
	if _, err := os.Stat(jsonPath); err == nil {
		return jsonPath, nil
	}

	for _, d := range []string{capturesDir, renderedDir} {
		if err := os.MkdirAll(filepath.Join(s.dir, d), 0o755); err != nil {
			return "", fmt.Errorf("exemplar: create store dir: %w", err)
		}
	}

	data, err := b.CanonicalJSON()
	if err != nil {
		return "", err
	}
	if err := atomicWrite(jsonPath, data); err != nil {
		return "", err
	}

	mdPath := filepath.Join(s.dir, renderedDir, b.ID+".md")
	if err := atomicWrite(mdPath, []byte(b.RenderMarkdown())); err != nil {
		return "", err
	}

	if err := s.appendIndex(b); err != nil {
		return "", err
	}
	return jsonPath, nil
}

func atomicWrite(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("exemplar: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("exemplar: write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("exemplar: sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("exemplar: close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("exemplar: rename into %s: %w", path, err)
	}
	return nil
}

// appendIndex adds one line per bundle to README.md. Existing entries are
// preserved; the index only grows.
func (s *Store) appendIndex(b *Bundle) error {
	path := filepath.Join(s.dir, indexFile)

	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("exemplar: read index: %w", err)
	}

	entry := fmt.Sprintf("- `%s` (%s) violations: %s\n",
		b.ID, b.Source.Origin, kindList(b))
	if strings.Contains(string(existing), "`"+b.ID+"`") {
		return nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("exemplar: open index: %w", err)
	}
	defer f.Close()

	if len(existing) == 0 {
		if _, err := f.WriteString(indexHeader + "\n"); err != nil {
			return fmt.Errorf("exemplar: write index header: %w", err)
		}
	}
	if _, err := f.WriteString(entry); err != nil {
		return fmt.Errorf("exemplar: append index entry: %w", err)
	}
	return nil
}

func kindList(b *Bundle) string {
	kinds := violationKinds(b.RefViolations)
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = string(k)
	}
	return strings.Join(parts, ", ")
}

// List returns the IDs of all captured bundles, sorted.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, capturesDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("exemplar: read store: %w", err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}
