package handlers

import (
	"errors"
	"net/http"

	"isometric/internal/binder"
	"isometric/internal/perm"
	"isometric/internal/storage"
)

// CategoryCreate adds a category to a budget.
func (h *Handlers) CategoryCreate(args binder.Args) (any, int) {
	budgetID := args.Int("budget_id")

	if _, body, status := h.requireLevel(budgetID, args.UserID(), perm.Update); body != nil {
		return body, status
	}

	categoryID, err := h.db.CreateCategory(budgetID, args.String("category_name"))
	if errors.Is(err, storage.ErrCategoryExists) {
		return errorResponse("category exists"), http.StatusBadRequest
	}
	if err != nil {
		return internalError("CreateCategory", err)
	}
	return map[string]any{"status": "success", "id": categoryID}, 0
}

// CategoryUpdate renames a category within its budget.
func (h *Handlers) CategoryUpdate(args binder.Args) (any, int) {
	budgetID := args.Int("budget_id")
	categoryID := args.Int("category_id")

	if _, body, status := h.requireLevel(budgetID, args.UserID(), perm.Update); body != nil {
		return body, status
	}
	if body, status := h.requireCategory(budgetID, categoryID); body != nil {
		return body, status
	}

	err := h.db.RenameCategory(budgetID, categoryID, args.String("category_name"))
	if errors.Is(err, storage.ErrCategoryExists) {
		return errorResponse("category exists"), http.StatusBadRequest
	}
	if err != nil {
		return internalError("RenameCategory", err)
	}
	return map[string]any{"status": "success"}, 0
}

// CategoryDelete removes a category and its expenses.
func (h *Handlers) CategoryDelete(args binder.Args) (any, int) {
	budgetID := args.Int("budget_id")
	categoryID := args.Int("category_id")

	if _, body, status := h.requireLevel(budgetID, args.UserID(), perm.Admin); body != nil {
		return body, status
	}
	if body, status := h.requireCategory(budgetID, categoryID); body != nil {
		return body, status
	}

	if err := h.db.DeleteCategory(budgetID, categoryID); err != nil {
		return internalError("DeleteCategory", err)
	}
	return map[string]any{"status": "success"}, 0
}

// CategoryList lists a budget's categories.
func (h *Handlers) CategoryList(args binder.Args) (any, int) {
	budgetID := args.Int("budget_id")

	if _, body, status := h.requireLevel(budgetID, args.UserID(), perm.View); body != nil {
		return body, status
	}

	categories, err := h.db.ListCategories(budgetID)
	if err != nil {
		return internalError("ListCategories", err)
	}

	list := make([]map[string]any, 0, len(categories))
	for _, c := range categories {
		list = append(list, map[string]any{"id": c.ID, "name": c.Name})
	}
	return map[string]any{"status": "success", "categories": list}, 0
}

// CategoryInfo returns one category's details.
func (h *Handlers) CategoryInfo(args binder.Args) (any, int) {
	budgetID := args.Int("budget_id")
	categoryID := args.Int("category_id")

	if _, body, status := h.requireLevel(budgetID, args.UserID(), perm.View); body != nil {
		return body, status
	}

	category, err := h.db.GetCategory(budgetID, categoryID)
	if errors.Is(err, storage.ErrNotFound) {
		return errorResponse("budget category does not exist"), http.StatusBadRequest
	}
	if err != nil {
		return internalError("GetCategory", err)
	}
	return map[string]any{"status": "success", "id": category.ID, "name": category.Name}, 0
}
