// Package memory is an in-process implementation of store.Store.
// It is safe for concurrent use and returns copies so callers cannot mutate
// stored state. Data is lost when the process exits.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cleared-dev/recon/internal/id"
	"github.com/cleared-dev/recon/internal/keylock"
	"github.com/cleared-dev/recon/internal/model"
	"github.com/cleared-dev/recon/internal/store"
)

// Store keeps everything in maps guarded by one RWMutex. Passes on the same
// project are serialized by a per-project writer lock.
type Store struct {
	mu       sync.RWMutex
	writers  *keylock.Map
	projects map[string]model.Project
	created  map[string]int // project id -> creation sequence
	seq      int
	files    map[string]model.StatementFile
	txns     map[string]model.Transaction
	order    []string // transaction ids in insertion order
	now      func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		projects: make(map[string]model.Project),
		writers:  keylock.New(),
		created:  make(map[string]int),
		files:    make(map[string]model.StatementFile),
		txns:     make(map[string]model.Transaction),
		now:      time.Now,
	}
}

// WithinProject implements store.Store. The project's writer lock is held
// from before fn runs until its marks are applied, so a second pass on the
// same project waits and then sees the first pass's result. Marks are staged
// on the Tx and applied only after fn succeeds.
func (s *Store) WithinProject(ctx context.Context, projectID string, fn func(store.Tx) error) error {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return err
	}

	unlock := s.writers.Lock(projectID)
	defer unlock()

	tx := &memTx{s: s, pending: make(map[string]model.Method)}
	if err := fn(tx); err != nil {
		return err
	}
	if len(tx.pending) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var missing []string
	for txnID := range tx.pending {
		if _, ok := s.txns[txnID]; !ok {
			missing = append(missing, txnID)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return &store.TransactionNotFoundError{IDs: missing}
	}
	for txnID, method := range tx.pending {
		t := s.txns[txnID]
		t.Reconciled = true
		t.Method = method
		s.txns[txnID] = t
	}
	return nil
}

// CreateProject implements store.Store.
func (s *Store) CreateProject(ctx context.Context, name, owner string) (model.Project, error) {
	if name == "" {
		return model.Project{}, fmt.Errorf("project name is required")
	}
	p := model.Project{ID: id.New(), Name: name, Owner: owner, CreatedAt: s.now().UTC()}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.projects[p.ID] = p
	s.created[p.ID] = s.seq
	return p, nil
}

// GetProject implements store.Store.
func (s *Store) GetProject(ctx context.Context, projectID string) (model.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[projectID]
	if !ok {
		return model.Project{}, fmt.Errorf("%w: %s", store.ErrProjectNotFound, projectID)
	}
	return p, nil
}

// ListProjects implements store.Store. Newest first; an empty owner lists all.
func (s *Store) ListProjects(ctx context.Context, owner string) ([]model.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Project
	for _, p := range s.projects {
		if owner != "" && p.Owner != owner {
			continue
		}
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool {
		return s.created[result[i].ID] > s.created[result[j].ID]
	})
	return result, nil
}

// DeleteProject implements store.Store. Files and transactions go with it.
func (s *Store) DeleteProject(ctx context.Context, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[projectID]; !ok {
		return fmt.Errorf("%w: %s", store.ErrProjectNotFound, projectID)
	}
	s.dropProjectDataLocked(projectID)
	delete(s.projects, projectID)
	delete(s.created, projectID)
	return nil
}

// ResetProject implements store.Store.
func (s *Store) ResetProject(ctx context.Context, projectID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[projectID]; !ok {
		return 0, fmt.Errorf("%w: %s", store.ErrProjectNotFound, projectID)
	}
	return s.dropProjectDataLocked(projectID), nil
}

func (s *Store) dropProjectDataLocked(projectID string) int {
	removed := 0
	for fileID, f := range s.files {
		if f.ProjectID == projectID {
			delete(s.files, fileID)
			removed++
		}
	}
	kept := s.order[:0]
	for _, txnID := range s.order {
		if s.txns[txnID].ProjectID == projectID {
			delete(s.txns, txnID)
			continue
		}
		kept = append(kept, txnID)
	}
	s.order = kept
	return removed
}

// AddStatement implements store.Store.
func (s *Store) AddStatement(ctx context.Context, projectID string, source model.SourceKind, fileName string, rows []store.Row) (model.StatementFile, error) {
	if !source.Valid() {
		return model.StatementFile{}, fmt.Errorf("invalid source %q", source)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[projectID]; !ok {
		return model.StatementFile{}, fmt.Errorf("%w: %s", store.ErrProjectNotFound, projectID)
	}

	f := model.StatementFile{
		ID:         id.New(),
		ProjectID:  projectID,
		Name:       fileName,
		Source:     source,
		UploadedAt: s.now().UTC(),
	}
	s.files[f.ID] = f

	for _, r := range rows {
		t := model.Transaction{
			ID:          id.New(),
			ProjectID:   projectID,
			FileID:      f.ID,
			Source:      source,
			Date:        r.Date,
			Description: r.Description,
			Reference:   r.Reference,
			Amount:      r.Amount,
			Method:      model.MethodNone,
		}
		s.txns[t.ID] = t
		s.order = append(s.order, t.ID)
	}
	return f, nil
}

// ListTransactions implements store.Store.
func (s *Store) ListTransactions(ctx context.Context, projectID string) ([]model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.projects[projectID]; !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrProjectNotFound, projectID)
	}

	var result []model.Transaction
	for _, txnID := range s.order {
		if t := s.txns[txnID]; t.ProjectID == projectID {
			result = append(result, t)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})
	return result, nil
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// memTx reads through to the store and stages marks until commit.
type memTx struct {
	s       *Store
	pending map[string]model.Method
}

func (tx *memTx) view(t model.Transaction) model.Transaction {
	if m, ok := tx.pending[t.ID]; ok {
		t.Reconciled = true
		t.Method = m
	}
	return t
}

func (tx *memTx) QueryUnreconciled(ctx context.Context, projectID string, source model.SourceKind) ([]model.Transaction, error) {
	tx.s.mu.RLock()
	defer tx.s.mu.RUnlock()

	var result []model.Transaction
	for _, txnID := range tx.s.order {
		t := tx.view(tx.s.txns[txnID])
		if t.ProjectID != projectID || t.Source != source || t.Reconciled {
			continue
		}
		result = append(result, t)
	}
	return result, nil
}

func (tx *memTx) Lookup(ctx context.Context, ids []string) ([]model.Transaction, error) {
	tx.s.mu.RLock()
	defer tx.s.mu.RUnlock()

	result := make([]model.Transaction, 0, len(ids))
	var missing []string
	for _, txnID := range ids {
		t, ok := tx.s.txns[txnID]
		if !ok {
			missing = append(missing, txnID)
			continue
		}
		result = append(result, tx.view(t))
	}
	if len(missing) > 0 {
		return nil, &store.TransactionNotFoundError{IDs: missing}
	}
	return result, nil
}

func (tx *memTx) MarkReconciled(ctx context.Context, ids []string, method model.Method) error {
	if err := store.CheckMethod(method); err != nil {
		return err
	}
	if _, err := tx.Lookup(ctx, ids); err != nil {
		return err
	}
	for _, txnID := range ids {
		tx.pending[txnID] = method
	}
	return nil
}

// Ensure Store implements store.Store.
var _ store.Store = (*Store)(nil)
