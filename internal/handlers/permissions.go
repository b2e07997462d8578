package handlers

import (
	"errors"
	"net/http"

	"isometric/internal/binder"
	"isometric/internal/perm"
	"isometric/internal/storage"
)

// PermissionsList shows who has access to a budget. Callers see their own
// entry plus entries strictly below their own level, so owners see the whole
// roster while viewers see only themselves.
func (h *Handlers) PermissionsList(args binder.Args) (any, int) {
	budgetID := args.Int("budget_id")
	userID := args.UserID()

	level, body, status := h.requireLevel(budgetID, userID, perm.View)
	if body != nil {
		return body, status
	}

	entries, err := h.db.ListPermissions(budgetID)
	if err != nil {
		return internalError("ListPermissions", err)
	}

	list := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		if e.UserID != userID && e.Level >= level {
			continue
		}
		list = append(list, map[string]any{
			"user_id":     e.UserID,
			"username":    e.Username,
			"permissions": int(e.Level),
		})
	}
	return map[string]any{"status": "success", "users": list}, 0
}

// PermissionsSet grants or revokes another user's access. The caller needs
// admin, and both the target's current level and the new level must be
// strictly below the caller's own; owner can only move via transfer.
func (h *Handlers) PermissionsSet(args binder.Args) (any, int) {
	budgetID := args.Int("budget_id")
	targetID := args.Int("target_user_id")
	newLevel := perm.Level(args.Int("permissions"))

	callerLevel, body, status := h.requireLevel(budgetID, args.UserID(), perm.Admin)
	if body != nil {
		return body, status
	}

	if !newLevel.Valid() || newLevel == perm.Owner {
		return errorResponse("invalid permission level"), http.StatusBadRequest
	}
	if newLevel >= callerLevel {
		return errorResponse("insufficient permissions"), http.StatusForbidden
	}

	if targetID == args.UserID() {
		return errorResponse("cannot change own permissions"), http.StatusBadRequest
	}
	if _, err := h.db.GetUserByID(targetID); errors.Is(err, storage.ErrNotFound) {
		return errorResponse("user does not exist"), http.StatusBadRequest
	} else if err != nil {
		return internalError("GetUserByID", err)
	}

	targetLevel, err := h.db.PermissionLevel(budgetID, targetID)
	if err != nil {
		return internalError("PermissionLevel", err)
	}
	if targetLevel >= callerLevel {
		return errorResponse("insufficient permissions"), http.StatusForbidden
	}

	if err := h.db.SetPermission(budgetID, targetID, newLevel); err != nil {
		return internalError("SetPermission", err)
	}
	return map[string]any{"status": "success"}, 0
}

// PermissionsTransfer moves budget ownership to another user. Only the
// current owner may call it; the transfer demotes the caller to admin and
// promotes the target to owner atomically.
func (h *Handlers) PermissionsTransfer(args binder.Args) (any, int) {
	budgetID := args.Int("budget_id")
	targetID := args.Int("target_user_id")
	userID := args.UserID()

	level, err := h.db.PermissionLevel(budgetID, userID)
	if err != nil {
		return internalError("PermissionLevel", err)
	}
	if level != perm.Owner {
		return errorResponse("insufficient permissions"), http.StatusForbidden
	}

	if targetID == userID {
		return errorResponse("cannot transfer to self"), http.StatusBadRequest
	}
	if _, err := h.db.GetUserByID(targetID); errors.Is(err, storage.ErrNotFound) {
		return errorResponse("user does not exist"), http.StatusBadRequest
	} else if err != nil {
		return internalError("GetUserByID", err)
	}

	err = h.db.TransferOwnership(budgetID, userID, targetID)
	if errors.Is(err, storage.ErrNotOwner) {
		// Ownership moved between the check and the transaction.
		return errorResponse("insufficient permissions"), http.StatusForbidden
	}
	if err != nil {
		return internalError("TransferOwnership", err)
	}
	return map[string]any{"status": "success"}, 0
}

// PermissionsRelinquish drops the caller's own access to a budget. The owner
// cannot relinquish, since the budget would be left without one.
func (h *Handlers) PermissionsRelinquish(args binder.Args) (any, int) {
	budgetID := args.Int("budget_id")
	userID := args.UserID()

	level, body, status := h.requireLevel(budgetID, userID, perm.View)
	if body != nil {
		return body, status
	}
	if level == perm.Owner {
		return errorResponse("owner must transfer ownership first"), http.StatusBadRequest
	}

	if err := h.db.RemovePermission(budgetID, userID); err != nil {
		return internalError("RemovePermission", err)
	}
	return map[string]any{"status": "success"}, 0
}
