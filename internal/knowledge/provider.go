// Package knowledge resolves policy knowledge refs to free-text context
// blobs that are injected into the classification prompt. An unresolvable
// ref always degrades to "not configured", never to an error, so the
// classifier must keep working when knowledge documents are absent.
package knowledge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Knowledge is a resolved context blob with metadata.
type Knowledge struct {
	Text            string
	Configured      bool
	DocCount        int
	EstimatedTokens int
}

// Provider resolves a knowledge ref (a policy-defined document name).
type Provider interface {
	Fetch(ctx context.Context, ref string) (Knowledge, error)
}

type cachedEntry struct {
	knowledge Knowledge
	fetched   time.Time
}

// FileProvider reads knowledge documents from a directory. A ref resolves to
// either <dir>/<ref>.md or every .md file under <dir>/<ref>/, concatenated in
// name order. Results are cached with a TTL so repeated cycles don't re-read
// the filesystem.
type FileProvider struct {
	dir string
	ttl time.Duration

	mu    sync.Mutex
	cache map[string]cachedEntry
	now   func() time.Time
}

// NewFileProvider creates a provider over the given directory. An empty dir
// means knowledge is unconfigured and every Fetch degrades to absent.
func NewFileProvider(dir string, ttl time.Duration) *FileProvider {
	return &FileProvider{
		dir:   dir,
		ttl:   ttl,
		cache: make(map[string]cachedEntry),
		now:   time.Now,
	}
}

// Fetch resolves a ref. Missing refs and read failures return
// Knowledge{Configured: false} with a nil error.
func (p *FileProvider) Fetch(ctx context.Context, ref string) (Knowledge, error) {
	if ref == "" || p.dir == "" {
		return Knowledge{}, nil
	}

	p.mu.Lock()
	if entry, ok := p.cache[ref]; ok && p.now().Sub(entry.fetched) < p.ttl {
		p.mu.Unlock()
		return entry.knowledge, nil
	}
	p.mu.Unlock()

	know := p.load(ref)

	p.mu.Lock()
	p.cache[ref] = cachedEntry{knowledge: know, fetched: p.now()}
	p.mu.Unlock()

	return know, nil
}

func (p *FileProvider) load(ref string) Knowledge {
	// Single file form first, directory form second.
	single := filepath.Join(p.dir, ref+".md")
	if text, err := os.ReadFile(single); err == nil {
		return makeKnowledge(string(text), 1)
	}

	docDir := filepath.Join(p.dir, ref)
	entries, err := os.ReadDir(docDir)
	if err != nil {
		log.Debug().Str("ref", ref).Msg("knowledge_ref_not_configured")
		return Knowledge{}
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".md") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var b strings.Builder
	count := 0
	for _, name := range names {
		text, err := os.ReadFile(filepath.Join(docDir, name))
		if err != nil {
			log.Warn().Err(err).Str("doc", name).Msg("knowledge_doc_read_failed")
			continue
		}
		if count > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(fmt.Sprintf("## %s\n\n", strings.TrimSuffix(name, ".md")))
		b.Write(text)
		count++
	}
	if count == 0 {
		return Knowledge{}
	}
	return makeKnowledge(b.String(), count)
}

func makeKnowledge(text string, docCount int) Knowledge {
	text = strings.TrimSpace(text)
	if text == "" {
		return Knowledge{}
	}
	return Knowledge{
		Text:            text,
		Configured:      true,
		DocCount:        docCount,
		EstimatedTokens: len(text) / 4,
	}
}
