package search

import (
	"context"
	"log"
)

// Service fronts the two search backends. Queries go to Meilisearch
// while it is healthy and fall back to Postgres full-text search;
// index writes are fire-and-forget and only ever target Meilisearch,
// since Postgres indexes documents through its own generated column.
type Service struct {
	meili *Meili
	pgfts *PgFTS
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, pgfts *PgFTS) *Service {
	return &Service{meili: meili, pgfts: pgfts}
}

func (s *Service) meiliUp() bool {
	return s.meili != nil && s.meili.Healthy()
}

// Search answers from Meilisearch when available, Postgres otherwise.
func (s *Service) Search(q Query) Response {
	if s.meiliUp() {
		if results, total, err := s.meili.Search(q); err == nil {
			return newResponse(q.Text, results, total)
		} else {
			log.Printf("search: meilisearch error, falling back to pgfts: %v", err)
		}
	}

	results, total, err := s.pgfts.Search(q)
	if err != nil {
		log.Printf("search: pgfts error: %v", err)
		return newResponse(q.Text, nil, 0)
	}
	return newResponse(q.Text, results, total)
}

// async runs one index mutation in the background; failures are logged
// and the next reindex repairs the index.
func (s *Service) async(desc string, fn func() error) {
	if !s.meiliUp() {
		return
	}
	go func() {
		if err := fn(); err != nil {
			log.Printf("search: %s: %v", desc, err)
		}
	}()
}

// IndexDocument adds or refreshes one document in the index.
func (s *Service) IndexDocument(doc DocumentRecord) {
	s.async("index document "+doc.ID, func() error { return s.meili.IndexDocument(doc) })
}

// DeleteDocument drops one document from the index.
func (s *Service) DeleteDocument(id string) {
	s.async("delete document "+id, func() error { return s.meili.DeleteDocument(id) })
}

// ReindexAllFromPG reads every document from PostgreSQL and pushes the
// batch to Meilisearch. Called at startup when Meilisearch is healthy.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if !s.meiliUp() || s.pgfts == nil {
		return
	}
	documents, err := s.pgfts.LoadAllRecords(ctx)
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return
	}
	if len(documents) == 0 {
		return
	}
	if err := s.meili.IndexDocuments(documents); err != nil {
		log.Printf("search: reindex documents: %v", err)
	}
}

// Close releases backend resources.
func (s *Service) Close() {
	if s.meili != nil {
		s.meili.Close()
	}
}

func newResponse(query string, results []Result, total int) Response {
	if results == nil {
		results = []Result{}
	}
	return Response{Results: results, Total: total, Query: query}
}
