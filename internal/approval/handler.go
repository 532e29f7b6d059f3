package approval

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/expenseflow/expense-approval/internal/expense"
	"github.com/expenseflow/expense-approval/internal/transport"
	"github.com/expenseflow/expense-approval/internal/user"
	"github.com/expenseflow/expense-approval/pkg/logger"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	Approve(actor *user.User, expenseID int64, comment string) (*DecisionResult, error)
	Reject(actor *user.User, expenseID int64, comment string) (*DecisionResult, error)
	CreateRule(actor *user.User, dto CreateRuleDTO) (*Rule, error)
	GetRule(actor *user.User, ruleID int64) (*Rule, error)
	ListRules(actor *user.User) ([]*Rule, error)
	UpdateRule(actor *user.User, ruleID int64, dto UpdateRuleDTO) (*Rule, error)
	DeleteRule(actor *user.User, ruleID int64) error
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI) *Handler {
	lg := logger.L()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
	}
}

func (h *Handler) ApproveExpense(w http.ResponseWriter, r *http.Request) {
	actor, expenseID, dto, ok := h.decisionRequest(w, r)
	if !ok {
		return
	}

	result, err := h.Service.Approve(actor, expenseID, dto.TrimmedComment())
	if err != nil {
		h.Logger.Warn("ApproveExpense: service error", "error", err, "expense_id", expenseID, "approver_id", actor.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("ApproveExpense: action recorded", "expense_id", expenseID, "approver_id", actor.ID)
	h.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) RejectExpense(w http.ResponseWriter, r *http.Request) {
	actor, expenseID, dto, ok := h.decisionRequest(w, r)
	if !ok {
		return
	}

	result, err := h.Service.Reject(actor, expenseID, dto.TrimmedComment())
	if err != nil {
		h.Logger.Warn("RejectExpense: service error", "error", err, "expense_id", expenseID, "approver_id", actor.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("RejectExpense: expense rejected", "expense_id", expenseID, "approver_id", actor.ID)
	h.WriteJSON(w, http.StatusOK, result)
}

// decisionRequest parses the pieces shared by approve and reject: the acting
// user from the session, the expense id from the path, and the optional
// comment body.
func (h *Handler) decisionRequest(w http.ResponseWriter, r *http.Request) (*user.User, int64, expense.DecisionDTO, bool) {
	var dto expense.DecisionDTO

	actor, ok := user.FromContext(r.Context())
	if !ok || actor == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return nil, 0, dto, false
	}

	expenseIDStr := chi.URLParam(r, "id")
	expenseID, err := strconv.ParseInt(expenseIDStr, 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid expense ID")
		return nil, 0, dto, false
	}

	// Body is optional: absent, empty, or {"comment": "..."}.
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil && !errors.Is(err, io.EOF) {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return nil, 0, dto, false
	}

	return actor, expenseID, dto, true
}

func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	actor, ok := user.FromContext(r.Context())
	if !ok || actor == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var dto CreateRuleDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rule, err := h.Service.CreateRule(actor, dto)
	if err != nil {
		h.Logger.Warn("CreateRule: service error", "error", err, "actor_id", actor.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, rule)
}

func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	actor, ruleID, ok := h.ruleRequest(w, r)
	if !ok {
		return
	}

	rule, err := h.Service.GetRule(actor, ruleID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, rule)
}

func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	actor, ok := user.FromContext(r.Context())
	if !ok || actor == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	rules, err := h.Service.ListRules(actor)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"rules": rules})
}

func (h *Handler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	actor, ruleID, ok := h.ruleRequest(w, r)
	if !ok {
		return
	}

	var dto UpdateRuleDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rule, err := h.Service.UpdateRule(actor, ruleID, dto)
	if err != nil {
		h.Logger.Warn("UpdateRule: service error", "error", err, "rule_id", ruleID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, rule)
}

func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	actor, ruleID, ok := h.ruleRequest(w, r)
	if !ok {
		return
	}

	if err := h.Service.DeleteRule(actor, ruleID); err != nil {
		h.Logger.Warn("DeleteRule: service error", "error", err, "rule_id", ruleID)
		h.HandleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ruleRequest(w http.ResponseWriter, r *http.Request) (*user.User, int64, bool) {
	actor, ok := user.FromContext(r.Context())
	if !ok || actor == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return nil, 0, false
	}

	ruleIDStr := chi.URLParam(r, "id")
	ruleID, err := strconv.ParseInt(ruleIDStr, 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid rule ID")
		return nil, 0, false
	}

	return actor, ruleID, true
}
