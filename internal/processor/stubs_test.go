package processor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/require"

	"resume-matcher/internal/storage"
	"resume-matcher/internal/types"
)

// stubEmbedder 按预设表返回向量，未登记的文本返回 fallback
type stubEmbedder struct {
	mu       sync.Mutex
	dim      int
	vectors  map[string][]float64
	fallback []float64
	calls    [][]string
	err      error
}

func (s *stubEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, append([]string(nil), texts...))
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		if v, ok := s.vectors[t]; ok {
			out[i] = v
			continue
		}
		out[i] = s.fallback
	}
	return out, nil
}

func (s *stubEmbedder) GetDimensions() int { return s.dim }

func (s *stubEmbedder) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// memoryCache 内存版向量缓存
type memoryCache struct {
	entries map[string]cacheEntry
	getErr  error
	setErr  error
	sets    int
}

type cacheEntry struct {
	vec     []float64
	version string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string]cacheEntry{}}
}

func (c *memoryCache) GetTextVector(_ context.Context, hash string) ([]float64, string, error) {
	if c.getErr != nil {
		return nil, "", c.getErr
	}
	e, ok := c.entries[hash]
	if !ok {
		return nil, "", storage.ErrNotFound
	}
	return e.vec, e.version, nil
}

func (c *memoryCache) SetTextVector(_ context.Context, hash string, vec []float64, version string) error {
	c.sets++
	if c.setErr != nil {
		return c.setErr
	}
	c.entries[hash] = cacheEntry{vec: vec, version: version}
	return nil
}

// stubExtractor 按路径返回预设文本
type stubExtractor struct {
	texts map[string]string
	errs  map[string]error
	seen  []string
}

func (s *stubExtractor) Extract(ctx context.Context, path string) (string, error) {
	return s.ExtractText(ctx, path, types.DocumentPDF)
}

func (s *stubExtractor) ExtractText(_ context.Context, path string, _ types.DocumentKind) (string, error) {
	s.seen = append(s.seen, path)
	if err, ok := s.errs[path]; ok {
		return "", err
	}
	if t, ok := s.texts[path]; ok {
		return t, nil
	}
	return "", errors.New("no stub text for " + path)
}

// stubParser 按全文查表
type stubParser struct {
	resumes map[string]types.ResumeFields
	jds     map[string]types.JDFields
}

func (p stubParser) ParseResume(text string) types.ResumeFields {
	if f, ok := p.resumes[text]; ok {
		return f
	}
	return types.ResumeFields{Name: types.DefaultCandidateName}
}

func (p stubParser) ParseJD(text string) types.JDFields {
	return p.jds[text]
}

type memoryHistory struct {
	records []types.HistoryRecord
	err     error
}

func (m *memoryHistory) Load(context.Context) ([]types.HistoryRecord, error) {
	return append([]types.HistoryRecord{}, m.records...), nil
}

func (m *memoryHistory) Append(_ context.Context, r types.HistoryRecord) error {
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, r)
	return nil
}

type recordingEvents struct {
	events []types.ScreeningCompletedEvent
	err    error
}

func (r *recordingEvents) PublishScreeningCompleted(_ context.Context, e types.ScreeningCompletedEvent) error {
	r.events = append(r.events, e)
	return r.err
}

func touch(t *testing.T, dir string, names ...string) []string {
	t.Helper()
	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = filepath.Join(dir, n)
		require.NoError(t, os.WriteFile(paths[i], []byte("stub"), 0o644))
	}
	return paths
}
