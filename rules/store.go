package rules

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	ierr "github.com/scau009/dwlite-sub002/internal/errors"
)

// RuleStore manages rule persistence. Rules are addressed by their code.
type RuleStore interface {
	// AddRule inserts r and sets its ID and timestamps.
	AddRule(ctx context.Context, r *Rule) error

	GetRule(ctx context.Context, code string) (*Rule, error)

	// ListRules returns matching rules in creation order.
	ListRules(ctx context.Context, filter RuleFilter) ([]*Rule, error)

	// UpdateRule replaces the mutable fields of the rule with r.Code.
	// CreatedAt and ID are preserved.
	UpdateRule(ctx context.Context, r *Rule) error

	DeleteRule(ctx context.Context, code string) error
}

// AssignmentStore manages rule-to-scope bindings.
type AssignmentStore interface {
	// AddAssignment inserts a, assigning an ID when empty. At most one
	// assignment may exist per (rule, scope type, scope id).
	AddAssignment(ctx context.Context, a *Assignment) error

	GetAssignment(ctx context.Context, id string) (*Assignment, error)

	ListAssignments(ctx context.Context, filter AssignmentFilter) ([]*Assignment, error)

	UpdateAssignment(ctx context.Context, a *Assignment) error

	DeleteAssignment(ctx context.Context, id string) error
}

// CandidateSource yields the active assignments of a scope joined with
// their active rules of the requested type. Order is unspecified.
type CandidateSource interface {
	Candidates(ctx context.Context, scopeType ScopeType, scopeID string, ruleType Type) ([]Candidate, error)
}

// Store is the full persistence surface used by the Engine.
type Store interface {
	RuleStore
	AssignmentStore
	CandidateSource
}

// InMemoryStore implements Store with maps guarded by a RWMutex.
// Values are copied on the way in and out.
type InMemoryStore struct {
	mu          sync.RWMutex
	rules       map[string]*Rule
	assignments map[string]*Assignment
	nextID      int64
	now         func() time.Time
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		rules:       make(map[string]*Rule),
		assignments: make(map[string]*Assignment),
		now:         time.Now,
	}
}

func ruleNotFound(code string) error {
	return ierr.NewErrorf("rule %s not found", code).Mark(ierr.ErrNotFound)
}

func assignmentNotFound(id string) error {
	return ierr.NewErrorf("assignment %s not found", id).Mark(ierr.ErrNotFound)
}

func (s *InMemoryStore) AddRule(_ context.Context, r *Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rules[r.Code]; exists {
		return ierr.NewErrorf("rule with code %s already exists", r.Code).Mark(ierr.ErrAlreadyExists)
	}

	s.nextID++
	now := s.now()
	r.ID = s.nextID
	r.CreatedAt = now
	r.UpdatedAt = now
	s.rules[r.Code] = r.Clone()
	return nil
}

func (s *InMemoryStore) GetRule(_ context.Context, code string) (*Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.rules[code]
	if !exists {
		return nil, ruleNotFound(code)
	}
	return r.Clone(), nil
}

func (s *InMemoryStore) ListRules(_ context.Context, filter RuleFilter) ([]*Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Rule, 0, len(s.rules))
	for _, r := range s.rules {
		if filter.Matches(r) {
			out = append(out, r.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *Rule) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *InMemoryStore) UpdateRule(_ context.Context, r *Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.rules[r.Code]
	if !exists {
		return ruleNotFound(r.Code)
	}

	r.ID = existing.ID
	r.CreatedAt = existing.CreatedAt
	r.UpdatedAt = s.now()
	s.rules[r.Code] = r.Clone()
	return nil
}

func (s *InMemoryStore) DeleteRule(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rules[code]; !exists {
		return ruleNotFound(code)
	}
	for _, a := range s.assignments {
		if a.RuleCode == code {
			return ierr.NewErrorf("rule %s still has assignments", code).
				WithHint("Remove its assignments or deactivate the rule instead").
				Mark(ierr.ErrInvalidOperation)
		}
	}
	delete(s.rules, code)
	return nil
}

func (s *InMemoryStore) AddAssignment(_ context.Context, a *Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rules[a.RuleCode]; !exists {
		return ruleNotFound(a.RuleCode)
	}
	for _, existing := range s.assignments {
		if existing.RuleCode == a.RuleCode && existing.ScopeType == a.ScopeType && existing.ScopeID == a.ScopeID {
			return ierr.NewErrorf("rule %s is already assigned to %s %s", a.RuleCode, a.ScopeType, a.ScopeID).
				Mark(ierr.ErrAlreadyExists)
		}
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	} else if _, exists := s.assignments[a.ID]; exists {
		return ierr.NewErrorf("assignment %s already exists", a.ID).Mark(ierr.ErrAlreadyExists)
	}

	now := s.now()
	a.CreatedAt = now
	a.UpdatedAt = now
	s.assignments[a.ID] = a.Clone()
	return nil
}

func (s *InMemoryStore) GetAssignment(_ context.Context, id string) (*Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, exists := s.assignments[id]
	if !exists {
		return nil, assignmentNotFound(id)
	}
	return a.Clone(), nil
}

func (s *InMemoryStore) ListAssignments(_ context.Context, filter AssignmentFilter) ([]*Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Assignment, 0)
	for _, a := range s.assignments {
		if filter.Matches(a) {
			out = append(out, a.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *Assignment) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

// UpdateAssignment replaces PriorityOverride and Active. Rule and scope
// are immutable.
func (s *InMemoryStore) UpdateAssignment(_ context.Context, a *Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.assignments[a.ID]
	if !exists {
		return assignmentNotFound(a.ID)
	}
	updated := existing.Clone()
	updated.Active = a.Active
	updated.PriorityOverride = a.Clone().PriorityOverride
	updated.UpdatedAt = s.now()
	s.assignments[a.ID] = updated
	*a = *updated.Clone()
	return nil
}

func (s *InMemoryStore) DeleteAssignment(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.assignments[id]; !exists {
		return assignmentNotFound(id)
	}
	delete(s.assignments, id)
	return nil
}

func (s *InMemoryStore) Candidates(_ context.Context, scopeType ScopeType, scopeID string, ruleType Type) ([]Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Candidate
	for _, a := range s.assignments {
		if !a.Active || a.ScopeType != scopeType || a.ScopeID != scopeID {
			continue
		}
		r, ok := s.rules[a.RuleCode]
		if !ok || !r.Active || r.Type != ruleType {
			continue
		}
		out = append(out, Candidate{Rule: r.Clone(), Assignment: a.Clone()})
	}
	return out, nil
}
