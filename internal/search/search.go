// Package search indexes document metadata and answers scoped queries,
// preferring Meilisearch with a Postgres full-text fallback.
package search

import "docuvault/api/internal/scope"

// Result is a single search hit returned to the caller.
type Result struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Title          string `json:"title"`
	Snippet        string `json:"snippet"`
	OrganizationID string `json:"organizationId"`
	DepartmentID   string `json:"departmentId"`
	CategoryID     string `json:"categoryId,omitempty"`
	Status         string `json:"status"`
}

// Query describes a search request. Scope carries the caller's row
// visibility; both backends apply it so a hit never leaks across tenants.
type Query struct {
	Text       string
	Status     string // empty = all statuses
	CategoryID string
	Scope      scope.Scope
	Limit      int
	Offset     int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// DocumentRecord is the data we index for a document.
type DocumentRecord struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	FileOwner      string `json:"fileOwner"`
	CategoryID     string `json:"categoryId"`
	OrganizationID string `json:"organizationId"`
	DepartmentID   string `json:"departmentId"`
	Status         string `json:"status"`
	FileCategory   string `json:"fileCategory"`
}
