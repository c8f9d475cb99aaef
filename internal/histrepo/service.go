// Package histrepo keeps a revision history of document metadata. Every
// metadata change is committed as meta.json to a small per-document git
// repository, and the revision endpoints read back the log.
package histrepo

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"docuvault/api/internal/store"
)

// ErrNoHistory is returned when a document has no revision repository,
// which happens when its initial commit failed or the repo was removed.
var ErrNoHistory = errors.New("histrepo: no history for document")

// ErrUnknownRevision is returned when a hash does not resolve to a
// commit in the document's repository.
var ErrUnknownRevision = errors.New("histrepo: unknown revision")

// Meta is the snapshot committed for each revision.
type Meta struct {
	Name         string `json:"name"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	CategoryCode string `json:"categoryCode,omitempty"`
	ExpireDate   string `json:"expireDate,omitempty"`
	Status       string `json:"status"`
}

type Service struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
	}
}

// EnsureRepo initializes the per-document repository with the first
// revision. Calling it again for an existing document is a no-op.
func (s *Service) EnsureRepo(documentID string, initial Meta, author string) error {
	lock := s.documentLock(documentID)
	lock.Lock()
	defer lock.Unlock()

	path := s.repoPath(documentID)
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat repo path: %w", err)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create repo dir: %w", err)
	}

	repo, err := git.PlainInit(path, false)
	if err != nil {
		return fmt.Errorf("init repo: %w", err)
	}

	hash, err := commitMeta(repo, path, initial, author, "Create document")
	if err != nil {
		return err
	}
	if err := repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewBranchReferenceName("main"), hash)); err != nil {
		return fmt.Errorf("set main branch ref: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("main"))); err != nil {
		return fmt.Errorf("set HEAD to main: %w", err)
	}
	return nil
}

// Commit records a metadata revision. Unchanged metadata commits nothing
// and returns no error.
func (s *Service) Commit(documentID string, meta Meta, author, message string) error {
	lock := s.documentLock(documentID)
	lock.Lock()
	defer lock.Unlock()

	path := s.repoPath(documentID)
	repo, err := git.PlainOpen(path)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return ErrNoHistory
		}
		return fmt.Errorf("open repo: %w", err)
	}

	head, err := headMeta(repo)
	if err == nil && head == meta {
		return nil
	}

	if _, err := commitMeta(repo, path, meta, author, message); err != nil {
		return err
	}
	return nil
}

// History lists revisions newest first, up to limit (0 = all).
func (s *Service) History(documentID string, limit int) ([]store.RevisionInfo, error) {
	lock := s.documentLock(documentID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(documentID))
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, ErrNoHistory
		}
		return nil, fmt.Errorf("open repo: %w", err)
	}

	ref, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolve head: %w", err)
	}

	iter, err := repo.Log(&git.LogOptions{From: ref.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]store.RevisionInfo, 0, limit)
	count := 0
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toRevisionInfo(commitObj))
		count++
		if limit > 0 && count >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

// MetaAt returns the metadata snapshot at a revision hash, full or
// abbreviated.
func (s *Service) MetaAt(documentID, hash string) (Meta, store.RevisionInfo, error) {
	lock := s.documentLock(documentID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(documentID))
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return Meta{}, store.RevisionInfo{}, ErrNoHistory
		}
		return Meta{}, store.RevisionInfo{}, fmt.Errorf("open repo: %w", err)
	}

	resolvedHash, err := resolveHash(repo, hash)
	if err != nil {
		return Meta{}, store.RevisionInfo{}, ErrUnknownRevision
	}
	commitObj, err := repo.CommitObject(resolvedHash)
	if err != nil {
		return Meta{}, store.RevisionInfo{}, ErrUnknownRevision
	}

	meta, err := readMetaFromCommit(commitObj)
	if err != nil {
		return Meta{}, store.RevisionInfo{}, err
	}
	return meta, toRevisionInfo(commitObj), nil
}

// Remove deletes the per-document repository. Used when the document is
// deleted.
func (s *Service) Remove(documentID string) error {
	lock := s.documentLock(documentID)
	lock.Lock()
	defer lock.Unlock()

	if err := os.RemoveAll(s.repoPath(documentID)); err != nil {
		return fmt.Errorf("remove repo: %w", err)
	}
	return nil
}

func (s *Service) repoPath(documentID string) string {
	return filepath.Join(s.baseDir, documentID)
}

func (s *Service) documentLock(documentID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[documentID]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	s.locks[documentID] = lock
	return lock
}

func commitMeta(repo *git.Repository, path string, meta Meta, author, message string) (plumbing.Hash, error) {
	worktree, err := repo.Worktree()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("open worktree: %w", err)
	}

	payload, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("marshal meta: %w", err)
	}
	if err := os.WriteFile(filepath.Join(path, "meta.json"), append(payload, '\n'), 0o644); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("write meta.json: %w", err)
	}
	if _, err := worktree.Add("meta.json"); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("git add meta: %w", err)
	}

	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  author,
			Email: fmt.Sprintf("%s@local.docuvault.dev", sanitizeEmail(author)),
			When:  time.Now(),
		},
	})
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("commit meta: %w", err)
	}
	return hash, nil
}

func headMeta(repo *git.Repository) (Meta, error) {
	ref, err := repo.Head()
	if err != nil {
		return Meta{}, err
	}
	commitObj, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return Meta{}, err
	}
	return readMetaFromCommit(commitObj)
}

func readMetaFromCommit(commitObj *object.Commit) (Meta, error) {
	file, err := commitObj.File("meta.json")
	if err != nil {
		return Meta{}, fmt.Errorf("load meta.json from commit: %w", err)
	}
	reader, err := file.Reader()
	if err != nil {
		return Meta{}, fmt.Errorf("open meta reader: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return Meta{}, fmt.Errorf("read meta bytes: %w", err)
	}

	var meta Meta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return Meta{}, fmt.Errorf("decode commit meta: %w", err)
	}
	return meta, nil
}

func toRevisionInfo(commitObj *object.Commit) store.RevisionInfo {
	return store.RevisionInfo{
		Hash:      commitObj.Hash.String()[:7],
		Message:   commitObj.Message,
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
}

func sanitizeEmail(input string) string {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out = append(out, r)
			continue
		}
		if r == ' ' || r == '-' || r == '_' {
			out = append(out, '.')
		}
	}
	if len(out) == 0 {
		return "user"
	}
	return string(out)
}

func resolveHash(repo *git.Repository, hash string) (plumbing.Hash, error) {
	if len(hash) == 40 {
		return plumbing.NewHash(hash), nil
	}
	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolve hash %s: %w", hash, err)
	}
	return *resolved, nil
}
