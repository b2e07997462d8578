package handlers

import (
	"errors"
	"log"
	"net/http"

	"isometric/internal/auth"
	"isometric/internal/authcache"
	"isometric/internal/binder"
	"isometric/internal/perm"
	"isometric/internal/storage"
)

// Handlers holds dependencies for API handlers.
type Handlers struct {
	db    *storage.DB
	cache *authcache.Cache
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *storage.DB, cache *authcache.Cache) *Handlers {
	return &Handlers{db: db, cache: cache}
}

// Register wires every API route onto mux using b for request binding.
func (h *Handlers) Register(mux *http.ServeMux, b *binder.Binder) {
	str := func(name string) binder.Param { return binder.Param{Name: name, Kind: binder.String} }
	num := func(name string) binder.Param { return binder.Param{Name: name, Kind: binder.Int} }

	routes := []struct {
		path    string
		params  []binder.Param
		handler binder.HandlerFunc
	}{
		{"/api/register", []binder.Param{str("username"), str("password")}, h.RegisterUser},
		{"/api/login", []binder.Param{str("username"), str("password")}, h.Login},
		{"/api/status", []binder.Param{binder.Auth()}, h.Status},

		{"/api/budget/create", []binder.Param{binder.Auth(), str("budget_name"),
			{Name: "previous_budget_id", Kind: binder.Int, Optional: true}}, h.BudgetCreate},
		{"/api/budget/list", []binder.Param{binder.Auth()}, h.BudgetList},
		{"/api/budget/info", []binder.Param{binder.Auth(), num("budget_id")}, h.BudgetInfo},
		{"/api/budget/update", []binder.Param{binder.Auth(), num("budget_id"),
			str("budget_name")}, h.BudgetUpdate},
		{"/api/budget/delete", []binder.Param{binder.Auth(), num("budget_id")}, h.BudgetDelete},
		{"/api/budget/summary", []binder.Param{binder.Auth(), num("budget_id")}, h.BudgetSummary},

		{"/api/category/create", []binder.Param{binder.Auth(), num("budget_id"),
			str("category_name")}, h.CategoryCreate},
		{"/api/category/update", []binder.Param{binder.Auth(), num("budget_id"),
			num("category_id"), str("category_name")}, h.CategoryUpdate},
		{"/api/category/delete", []binder.Param{binder.Auth(), num("budget_id"),
			num("category_id")}, h.CategoryDelete},
		{"/api/category/list", []binder.Param{binder.Auth(), num("budget_id")}, h.CategoryList},
		{"/api/category/info", []binder.Param{binder.Auth(), num("budget_id"),
			num("category_id")}, h.CategoryInfo},

		{"/api/expense/create", []binder.Param{binder.Auth(), num("budget_id"),
			num("category_id"), str("description"),
			{Name: "expense_amount", Kind: binder.Number},
			{Name: "expense_date", Kind: binder.Date}}, h.ExpenseCreate},
		{"/api/expense/update", []binder.Param{binder.Auth(), num("budget_id"),
			num("category_id"), num("expense_id"), str("description"),
			{Name: "expense_amount", Kind: binder.Number},
			{Name: "expense_date", Kind: binder.Date}}, h.ExpenseUpdate},
		{"/api/expense/delete", []binder.Param{binder.Auth(), num("budget_id"),
			num("category_id"), num("expense_id")}, h.ExpenseDelete},
		{"/api/expense/list", []binder.Param{binder.Auth(), num("budget_id"),
			num("category_id")}, h.ExpenseList},
		{"/api/expense/info", []binder.Param{binder.Auth(), num("budget_id"),
			num("category_id"), num("expense_id")}, h.ExpenseInfo},

		{"/api/budget/permissions/list", []binder.Param{binder.Auth(),
			num("budget_id")}, h.PermissionsList},
		{"/api/budget/permissions/set", []binder.Param{binder.Auth(), num("budget_id"),
			num("target_user_id"), num("permissions")}, h.PermissionsSet},
		{"/api/budget/permissions/transfer", []binder.Param{binder.Auth(), num("budget_id"),
			num("target_user_id")}, h.PermissionsTransfer},
		{"/api/budget/permissions/relinquish", []binder.Param{binder.Auth(),
			num("budget_id")}, h.PermissionsRelinquish},
	}

	for _, r := range routes {
		mux.HandleFunc(r.path, b.Endpoint(r.params, r.handler))
	}
}

func errorResponse(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func internalError(op string, err error) (any, int) {
	log.Printf("%s error: %v", op, err)
	return errorResponse("internal error"), http.StatusInternalServerError
}

// requireLevel looks up the caller's level on a budget and builds a 403
// response when it is below required. The authorization check always runs
// before any integrity check so that callers without access cannot probe
// which IDs exist.
func (h *Handlers) requireLevel(budgetID, userID int64, required perm.Level) (perm.Level, any, int) {
	level, err := h.db.PermissionLevel(budgetID, userID)
	if err != nil {
		body, status := internalError("PermissionLevel", err)
		return perm.None, body, status
	}
	if !level.AtLeast(required) {
		return level, errorResponse("insufficient permissions"), http.StatusForbidden
	}
	return level, nil, 0
}

// requireCategory verifies the category belongs to the budget. Call it only
// after requireLevel has passed.
func (h *Handlers) requireCategory(budgetID, categoryID int64) (any, int) {
	ok, err := h.db.CategoryInBudget(budgetID, categoryID)
	if err != nil {
		return internalError("CategoryInBudget", err)
	}
	if !ok {
		return errorResponse("budget category does not exist"), http.StatusBadRequest
	}
	return nil, 0
}

func (h *Handlers) issueToken(userID int64) (string, error) {
	token, err := auth.GenerateSessionToken()
	if err != nil {
		return "", err
	}
	h.cache.Put(token, userID)
	return token, nil
}

// RegisterUser creates a new account and logs it in.
func (h *Handlers) RegisterUser(args binder.Args) (any, int) {
	hash, salt, err := auth.HashPassword(args.String("password"))
	if err != nil {
		return internalError("HashPassword", err)
	}

	user, err := h.db.CreateUser(args.String("username"), hash, salt)
	if errors.Is(err, storage.ErrUsernameTaken) {
		return errorResponse("username is taken"), http.StatusBadRequest
	}
	if err != nil {
		return internalError("CreateUser", err)
	}

	token, err := h.issueToken(user.ID)
	if err != nil {
		return internalError("issueToken", err)
	}
	return map[string]any{"status": "success", "authtoken": token, "id": user.ID},
		http.StatusCreated
}

// Login checks credentials and issues a fresh session token.
func (h *Handlers) Login(args binder.Args) (any, int) {
	user, err := h.db.GetUserByUsername(args.String("username"))
	if errors.Is(err, storage.ErrNotFound) {
		return errorResponse("invalid credentials"), http.StatusUnauthorized
	}
	if err != nil {
		return internalError("GetUserByUsername", err)
	}

	if !auth.CheckPassword(args.String("password"), user.PasswordHash, user.PasswordSalt) {
		return errorResponse("invalid credentials"), http.StatusUnauthorized
	}

	token, err := h.issueToken(user.ID)
	if err != nil {
		return internalError("issueToken", err)
	}
	return map[string]any{"status": "success", "authtoken": token, "id": user.ID}, 0
}

// Status confirms that the caller's token is still valid.
func (h *Handlers) Status(args binder.Args) (any, int) {
	return map[string]any{"status": "success", "id": args.UserID()}, 0
}
