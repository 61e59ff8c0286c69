package lsp

import (
	"sync"

	"github.com/sucicfilip/ruby-lsp-rails/internal/ruby"
	"github.com/sucicfilip/ruby-lsp-rails/internal/shared/util"
)

// DocumentStore holds the parsed tree for every open document. Sync is
// full-text: each change replaces the document wholesale.
type DocumentStore struct {
	mu   sync.RWMutex
	docs map[string]*ruby.Document
}

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{docs: make(map[string]*ruby.Document)}
}

// Get returns the open document for uri, or nil.
func (s *DocumentStore) Get(uri string) *ruby.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.docs[uri]
}

// Open parses and stores a newly opened document.
func (s *DocumentStore) Open(uri, text string) error {
	doc, err := ruby.Parse(uri, util.URIToPath(uri), []byte(text))
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if old := s.docs[uri]; old != nil {
		old.Close()
	}
	s.docs[uri] = doc
	return nil
}

// Update replaces the document's content with a full new text.
func (s *DocumentStore) Update(uri, text string) error {
	return s.Open(uri, text)
}

// Close discards the document for uri.
func (s *DocumentStore) Close(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc := s.docs[uri]; doc != nil {
		doc.Close()
		delete(s.docs, uri)
	}
}

// CloseAll releases every open document.
func (s *DocumentStore) CloseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for uri, doc := range s.docs {
		doc.Close()
		delete(s.docs, uri)
	}
}
