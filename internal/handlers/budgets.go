package handlers

import (
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"isometric/internal/binder"
	"isometric/internal/perm"
	"isometric/internal/storage"
)

// BudgetCreate creates a budget and grants the creator owner permissions.
// An optional previous_budget_id chains the new budget onto an earlier
// period; a predecessor may have at most one successor.
func (h *Handlers) BudgetCreate(args binder.Args) (any, int) {
	var previousID *int64
	if args.Has("previous_budget_id") {
		id := args.Int("previous_budget_id")
		previousID = &id
	}

	budgetID, err := h.db.CreateBudget(args.String("budget_name"), previousID, args.UserID())
	switch {
	case errors.Is(err, storage.ErrBudgetExists):
		return errorResponse("budget exists"), http.StatusBadRequest
	case errors.Is(err, storage.ErrPreviousBudgetMissing):
		return errorResponse("previous budget does not exist"), http.StatusBadRequest
	case errors.Is(err, storage.ErrPreviousBudgetHasChild):
		return errorResponse("parent budget has a child already"), http.StatusBadRequest
	case err != nil:
		return internalError("CreateBudget", err)
	}

	return map[string]any{"status": "success", "id": budgetID}, 0
}

// BudgetList lists every budget the caller has access to.
func (h *Handlers) BudgetList(args binder.Args) (any, int) {
	budgets, err := h.db.BudgetsForUser(args.UserID())
	if err != nil {
		return internalError("BudgetsForUser", err)
	}

	list := make([]map[string]any, 0, len(budgets))
	for _, b := range budgets {
		list = append(list, map[string]any{
			"id":          b.ID,
			"name":        b.Name,
			"permissions": int(b.Level),
		})
	}
	return map[string]any{"status": "success", "budgets": list}, 0
}

// BudgetInfo returns a budget's name and the caller's permission level.
func (h *Handlers) BudgetInfo(args binder.Args) (any, int) {
	budgetID := args.Int("budget_id")

	level, body, status := h.requireLevel(budgetID, args.UserID(), perm.View)
	if body != nil {
		return body, status
	}

	budget, err := h.db.GetBudget(budgetID)
	if errors.Is(err, storage.ErrNotFound) {
		return errorResponse("budget does not exist"), http.StatusBadRequest
	}
	if err != nil {
		return internalError("GetBudget", err)
	}

	info := map[string]any{
		"status":      "success",
		"id":          budget.ID,
		"name":        budget.Name,
		"permissions": int(level),
	}
	if budget.PreviousID != nil {
		info["previous_budget_id"] = *budget.PreviousID
	}
	return info, 0
}

// BudgetUpdate renames a budget.
func (h *Handlers) BudgetUpdate(args binder.Args) (any, int) {
	budgetID := args.Int("budget_id")

	if _, body, status := h.requireLevel(budgetID, args.UserID(), perm.Update); body != nil {
		return body, status
	}

	err := h.db.RenameBudget(budgetID, args.String("budget_name"))
	if errors.Is(err, storage.ErrBudgetExists) {
		return errorResponse("budget exists"), http.StatusBadRequest
	}
	if err != nil {
		return internalError("RenameBudget", err)
	}
	return map[string]any{"status": "success"}, 0
}

// BudgetDelete removes a budget and everything under it.
func (h *Handlers) BudgetDelete(args binder.Args) (any, int) {
	budgetID := args.Int("budget_id")

	if _, body, status := h.requireLevel(budgetID, args.UserID(), perm.Admin); body != nil {
		return body, status
	}

	if err := h.db.DeleteBudget(budgetID); err != nil {
		return internalError("DeleteBudget", err)
	}
	return map[string]any{"status": "success"}, 0
}

// BudgetSummary totals each category's expenses for a budget.
func (h *Handlers) BudgetSummary(args binder.Args) (any, int) {
	budgetID := args.Int("budget_id")

	if _, body, status := h.requireLevel(budgetID, args.UserID(), perm.View); body != nil {
		return body, status
	}

	totals, err := h.db.BudgetSummary(budgetID)
	if err != nil {
		return internalError("BudgetSummary", err)
	}

	overall := decimal.Zero
	categories := make([]map[string]any, 0, len(totals))
	for _, t := range totals {
		overall = overall.Add(t.Total)
		categories = append(categories, map[string]any{
			"id":    t.ID,
			"name":  t.Name,
			"total": t.Total.InexactFloat64(),
			"count": t.Count,
		})
	}
	return map[string]any{
		"status":     "success",
		"total":      overall.InexactFloat64(),
		"categories": categories,
	}, 0
}
