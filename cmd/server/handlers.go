package main

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	ierr "github.com/scau009/dwlite-sub002/internal/errors"
	"github.com/scau009/dwlite-sub002/internal/logger"
	"github.com/scau009/dwlite-sub002/internal/validator"
	"github.com/scau009/dwlite-sub002/rules"
)

// Health check handler
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "healthy", Storage: "memory", Counters: logger.Counters()}
	if s.db != nil {
		resp.Storage = "postgres"
	}
	if err := s.ping(r.Context()); err != nil {
		resp.Status = "unhealthy"
		resp.Error = err.Error()
		respondJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReference(w http.ResponseWriter, r *http.Request) {
	doc, err := rules.Reference(rules.Type(r.URL.Query().Get("type")))
	if err != nil {
		s.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, doc)
}

// handleValidate answers 200 for any well-formed request; the verdict is in
// the body.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondErr(w, err)
		return
	}
	if err := validator.ValidateRequest(req); err != nil {
		s.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rules.Validate(req.Expression, req.Type))
}

func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	var req TestRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondErr(w, err)
		return
	}
	if err := validator.ValidateRequest(req); err != nil {
		s.respondErr(w, err)
		return
	}
	res := s.tester.Test(rules.TestRequest{
		Expression:          req.Expression,
		ConditionExpression: req.ConditionExpression,
		Type:                req.Type,
		Context:             req.TestContext,
	})
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleRevalidate(w http.ResponseWriter, r *http.Request) {
	n, err := s.engine.Revalidate(r.Context())
	if err != nil {
		s.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, RevalidateResponse{Changed: n})
}

// Create rule handler
func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var req CreateRuleRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondErr(w, err)
		return
	}
	if err := validator.ValidateRequest(req); err != nil {
		s.respondErr(w, err)
		return
	}

	rule := &rules.Rule{
		Code:                req.Code,
		Name:                req.Name,
		Type:                req.Type,
		Category:            req.Category,
		Expression:          req.Expression,
		ConditionExpression: req.ConditionExpression,
		Active:              req.Active != nil && *req.Active,
	}
	if req.Priority != nil {
		rule.Priority = *req.Priority
	}

	// AddRule validates the expressions and records the outcome on the rule
	if err := s.engine.AddRule(r.Context(), rule); err != nil {
		s.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, rule)
}

// List rules handler
func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := rules.RuleFilter{
		Type:     rules.Type(q.Get("type")),
		Category: rules.Category(q.Get("category")),
	}
	if v := q.Get("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			s.respondErr(w, ierr.WithError(err).WithHint("active must be true or false").Mark(ierr.ErrValidation))
			return
		}
		filter.ActiveOnly = active
	}

	list, err := s.engine.ListRules(r.Context(), filter)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, RulesListResponse{Rules: list})
}

// Get rule handler
func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	rule, err := s.engine.GetRule(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		s.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rule)
}

// Update rule handler
func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	var req UpdateRuleRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondErr(w, err)
		return
	}
	if err := validator.ValidateRequest(req); err != nil {
		s.respondErr(w, err)
		return
	}

	rule, err := s.engine.UpdateRule(r.Context(), chi.URLParam(r, "code"), req.toUpdate())
	if err != nil {
		s.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rule)
}

// Delete rule handler
func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.DeleteRule(r.Context(), chi.URLParam(r, "code")); err != nil {
		s.respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateAssignment(w http.ResponseWriter, r *http.Request) {
	var req CreateAssignmentRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondErr(w, err)
		return
	}
	if err := validator.ValidateRequest(req); err != nil {
		s.respondErr(w, err)
		return
	}

	a := &rules.Assignment{
		RuleCode:         chi.URLParam(r, "code"),
		ScopeType:        req.ScopeType,
		ScopeID:          req.ScopeID,
		PriorityOverride: req.PriorityOverride,
		Active:           req.Active == nil || *req.Active,
	}
	if err := s.engine.Assign(r.Context(), a); err != nil {
		s.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, a)
}

func (s *Server) handleListAssignments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := rules.AssignmentFilter{
		RuleCode:  q.Get("ruleCode"),
		ScopeType: rules.ScopeType(q.Get("scopeType")),
		ScopeID:   q.Get("scopeId"),
	}
	list, err := s.engine.ListAssignments(r.Context(), filter)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, AssignmentsListResponse{Assignments: list})
}

func (s *Server) handleUpdateAssignment(w http.ResponseWriter, r *http.Request) {
	var req UpdateAssignmentRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondErr(w, err)
		return
	}
	if err := validator.ValidateRequest(req); err != nil {
		s.respondErr(w, err)
		return
	}

	a, err := s.engine.UpdateAssignment(r.Context(), chi.URLParam(r, "id"), rules.AssignmentUpdate{
		Active:                req.Active,
		PriorityOverride:      req.PriorityOverride,
		ClearPriorityOverride: req.ClearPriorityOverride,
	})
	if err != nil {
		s.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, a)
}

func (s *Server) handleDeleteAssignment(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Unassign(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
