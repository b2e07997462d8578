package handlers

import (
	"errors"
	"net/http"

	"isometric/internal/binder"
	"isometric/internal/models"
	"isometric/internal/perm"
	"isometric/internal/storage"
)

func expenseResponse(e *models.Expense) map[string]any {
	return map[string]any{
		"id":          e.ID,
		"description": e.Description,
		"amount":      e.Amount.InexactFloat64(),
		"date":        e.Date.Format(binder.DateFormat),
	}
}

// ExpenseCreate records an expense under a category.
func (h *Handlers) ExpenseCreate(args binder.Args) (any, int) {
	budgetID := args.Int("budget_id")
	categoryID := args.Int("category_id")

	if _, body, status := h.requireLevel(budgetID, args.UserID(), perm.Update); body != nil {
		return body, status
	}
	if body, status := h.requireCategory(budgetID, categoryID); body != nil {
		return body, status
	}

	expenseID, err := h.db.CreateExpense(
		categoryID, args.String("description"),
		args.Number("expense_amount"), args.Date("expense_date"),
	)
	if err != nil {
		return internalError("CreateExpense", err)
	}
	return map[string]any{"status": "success", "id": expenseID}, 0
}

// ExpenseUpdate rewrites an expense's description, amount, and date.
func (h *Handlers) ExpenseUpdate(args binder.Args) (any, int) {
	budgetID := args.Int("budget_id")
	categoryID := args.Int("category_id")

	if _, body, status := h.requireLevel(budgetID, args.UserID(), perm.Update); body != nil {
		return body, status
	}
	if body, status := h.requireCategory(budgetID, categoryID); body != nil {
		return body, status
	}

	err := h.db.UpdateExpense(
		categoryID, args.Int("expense_id"), args.String("description"),
		args.Number("expense_amount"), args.Date("expense_date"),
	)
	if err != nil {
		return internalError("UpdateExpense", err)
	}
	return map[string]any{"status": "success"}, 0
}

// ExpenseDelete removes an expense.
func (h *Handlers) ExpenseDelete(args binder.Args) (any, int) {
	budgetID := args.Int("budget_id")
	categoryID := args.Int("category_id")

	if _, body, status := h.requireLevel(budgetID, args.UserID(), perm.Admin); body != nil {
		return body, status
	}
	if body, status := h.requireCategory(budgetID, categoryID); body != nil {
		return body, status
	}

	if err := h.db.DeleteExpense(categoryID, args.Int("expense_id")); err != nil {
		return internalError("DeleteExpense", err)
	}
	return map[string]any{"status": "success"}, 0
}

// ExpenseList lists a category's expenses.
func (h *Handlers) ExpenseList(args binder.Args) (any, int) {
	budgetID := args.Int("budget_id")
	categoryID := args.Int("category_id")

	if _, body, status := h.requireLevel(budgetID, args.UserID(), perm.View); body != nil {
		return body, status
	}
	if body, status := h.requireCategory(budgetID, categoryID); body != nil {
		return body, status
	}

	expenses, err := h.db.ListExpenses(categoryID)
	if err != nil {
		return internalError("ListExpenses", err)
	}

	list := make([]map[string]any, 0, len(expenses))
	for i := range expenses {
		list = append(list, expenseResponse(&expenses[i]))
	}
	return map[string]any{"status": "success", "expenses": list}, 0
}

// ExpenseInfo returns one expense's details.
func (h *Handlers) ExpenseInfo(args binder.Args) (any, int) {
	budgetID := args.Int("budget_id")
	categoryID := args.Int("category_id")

	if _, body, status := h.requireLevel(budgetID, args.UserID(), perm.View); body != nil {
		return body, status
	}
	if body, status := h.requireCategory(budgetID, categoryID); body != nil {
		return body, status
	}

	expense, err := h.db.GetExpense(categoryID, args.Int("expense_id"))
	if errors.Is(err, storage.ErrNotFound) {
		return errorResponse("expense does not exist"), http.StatusBadRequest
	}
	if err != nil {
		return internalError("GetExpense", err)
	}

	info := expenseResponse(expense)
	info["status"] = "success"
	return info, 0
}
