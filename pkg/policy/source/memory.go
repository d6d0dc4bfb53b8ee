package source

import (
	"context"
	"sort"
	"sync"
)

// MemorySource is an in-memory document tree for tests and embedding.
type MemorySource struct {
	name string

	mu   sync.RWMutex
	docs map[string][]byte
}

// NewMemorySource creates an in-memory source. docs maps paths to content.
func NewMemorySource(name string, docs map[string]string) *MemorySource {
	s := &MemorySource{name: name, docs: make(map[string][]byte, len(docs))}
	for path, data := range docs {
		s.docs[path] = []byte(data)
	}
	return s
}

// Name returns the source name.
func (s *MemorySource) Name() string {
	return s.name
}

// Put adds or replaces a document.
func (s *MemorySource) Put(path string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[path] = append([]byte(nil), data...)
}

// Delete removes a document.
func (s *MemorySource) Delete(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, path)
}

// Walk visits documents ordered by path.
func (s *MemorySource) Walk(ctx context.Context, fn func(Document) error) error {
	s.mu.RLock()
	docs := make([]Document, 0, len(s.docs))
	for path, data := range s.docs {
		docs = append(docs, Document{Path: path, Data: data})
	}
	s.mu.RUnlock()

	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
	return nil
}
