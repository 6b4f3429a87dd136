package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/BrandonDHaskell/Janus/server/internal/janus/store"
)

type FaceTemplateStore struct {
	mu        sync.RWMutex
	templates map[string]store.FaceTemplate
}

func NewFaceTemplateStore() *FaceTemplateStore {
	return &FaceTemplateStore{templates: make(map[string]store.FaceTemplate)}
}

func (s *FaceTemplateStore) PutTemplate(_ context.Context, t store.FaceTemplate) error {
	emb := make([]float32, len(t.Embedding))
	copy(emb, t.Embedding)
	t.Embedding = emb

	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[t.UserID] = t
	return nil
}

func (s *FaceTemplateStore) GetTemplate(_ context.Context, userID string) (store.FaceTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.templates[userID]
	if !ok {
		return store.FaceTemplate{}, store.ErrNotFound
	}
	return t, nil
}

func (s *FaceTemplateStore) ListTemplates(_ context.Context) ([]store.FaceTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.FaceTemplate, 0, len(s.templates))
	for _, t := range s.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}
