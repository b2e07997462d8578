package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"isometric/internal/models"
	"isometric/internal/perm"

	// Import sqlite driver
	_ "modernc.org/sqlite"
)

// Sentinel errors for business-rule violations surfaced by the store.
var (
	ErrNotFound               = errors.New("storage: not found")
	ErrUsernameTaken          = errors.New("storage: username is taken")
	ErrBudgetExists           = errors.New("storage: budget exists")
	ErrPreviousBudgetMissing  = errors.New("storage: previous budget does not exist")
	ErrPreviousBudgetHasChild = errors.New("storage: parent budget has a child already")
	ErrCategoryExists         = errors.New("storage: category exists")
	ErrNotOwner               = errors.New("storage: user is not the budget owner")
)

// DB wraps a sql.DB connection.
type DB struct {
	conn *sql.DB
}

// NewDB opens a database connection and runs migrations.
func NewDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(); err != nil {
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		return nil, err
	}

	return db, nil
}

func (db *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT UNIQUE NOT NULL,
			password_hash BLOB NOT NULL,
			password_salt BLOB NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS budgets (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT UNIQUE NOT NULL,
			previous_budget_id INTEGER REFERENCES budgets(id)
		)`,
		`CREATE TABLE IF NOT EXISTS budget_permissions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			budget_id INTEGER NOT NULL REFERENCES budgets(id),
			user_id INTEGER NOT NULL REFERENCES users(id),
			level INTEGER NOT NULL,
			UNIQUE (budget_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS categories (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			budget_id INTEGER NOT NULL REFERENCES budgets(id),
			name TEXT NOT NULL,
			UNIQUE (budget_id, name)
		)`,
		`CREATE TABLE IF NOT EXISTS expenses (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			category_id INTEGER NOT NULL REFERENCES categories(id),
			description TEXT NOT NULL,
			amount TEXT NOT NULL,
			date TEXT NOT NULL,
			entry_time DATETIME NOT NULL
		)`,
	}

	for _, m := range migrations {
		if _, err := db.conn.Exec(m); err != nil {
			return err
		}
	}

	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// withTx runs fn inside a transaction, rolling back on any error.
func (db *DB) withTx(fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// CreateUser creates a new user with the given credentials. It fails with
// ErrUsernameTaken if the username already exists.
func (db *DB) CreateUser(username string, hash, salt []byte) (*models.User, error) {
	var id int64
	err := db.withTx(func(tx *sql.Tx) error {
		var existing int64
		err := tx.QueryRow("SELECT id FROM users WHERE username = ?", username).Scan(&existing)
		if err == nil {
			return ErrUsernameTaken
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		result, err := tx.Exec(
			"INSERT INTO users (username, password_hash, password_salt) VALUES (?, ?, ?)",
			username, hash, salt,
		)
		if err != nil {
			return err
		}
		id, err = result.LastInsertId()
		return err
	})
	if err != nil {
		return nil, err
	}
	return db.GetUserByID(id)
}

// GetUserByID retrieves a user by ID.
func (db *DB) GetUserByID(id int64) (*models.User, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, password_hash, password_salt, created_at FROM users WHERE id = ?",
		id,
	)
	return scanUser(row)
}

// GetUserByUsername retrieves a user by username.
func (db *DB) GetUserByUsername(username string) (*models.User, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, password_hash, password_salt, created_at FROM users WHERE username = ?",
		username,
	)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.PasswordSalt, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UserCount returns the number of users in the database.
func (db *DB) UserCount() (int, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM users").Scan(&count)
	return count, err
}

// CreateBudget creates a budget and grants the creator owner permissions in
// one transaction. When previousID is set, the new budget continues that
// period; a predecessor may have at most one successor.
func (db *DB) CreateBudget(name string, previousID *int64, ownerID int64) (int64, error) {
	var id int64
	err := db.withTx(func(tx *sql.Tx) error {
		var existing int64
		err := tx.QueryRow("SELECT id FROM budgets WHERE name = ?", name).Scan(&existing)
		if err == nil {
			return ErrBudgetExists
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		if previousID != nil {
			err := tx.QueryRow("SELECT id FROM budgets WHERE id = ?", *previousID).Scan(&existing)
			if errors.Is(err, sql.ErrNoRows) {
				return ErrPreviousBudgetMissing
			}
			if err != nil {
				return err
			}

			err = tx.QueryRow(
				"SELECT id FROM budgets WHERE previous_budget_id = ?", *previousID,
			).Scan(&existing)
			if err == nil {
				return ErrPreviousBudgetHasChild
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return err
			}
		}

		result, err := tx.Exec(
			"INSERT INTO budgets (name, previous_budget_id) VALUES (?, ?)",
			name, previousID,
		)
		if err != nil {
			return err
		}
		id, err = result.LastInsertId()
		if err != nil {
			return err
		}

		_, err = tx.Exec(
			"INSERT INTO budget_permissions (budget_id, user_id, level) VALUES (?, ?, ?)",
			id, ownerID, int(perm.Owner),
		)
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// GetBudget retrieves a budget by ID.
func (db *DB) GetBudget(id int64) (*models.Budget, error) {
	var b models.Budget
	var previous sql.NullInt64
	err := db.conn.QueryRow(
		"SELECT id, name, previous_budget_id FROM budgets WHERE id = ?", id,
	).Scan(&b.ID, &b.Name, &previous)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if previous.Valid {
		b.PreviousID = &previous.Int64
	}
	return &b, nil
}

// GetBudgetByName retrieves a budget by its unique name.
func (db *DB) GetBudgetByName(name string) (*models.Budget, error) {
	var b models.Budget
	var previous sql.NullInt64
	err := db.conn.QueryRow(
		"SELECT id, name, previous_budget_id FROM budgets WHERE name = ?", name,
	).Scan(&b.ID, &b.Name, &previous)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if previous.Valid {
		b.PreviousID = &previous.Int64
	}
	return &b, nil
}

// RenameBudget changes a budget's name, failing with ErrBudgetExists if the
// name is already used by another budget.
func (db *DB) RenameBudget(id int64, name string) error {
	return db.withTx(func(tx *sql.Tx) error {
		var existing int64
		err := tx.QueryRow(
			"SELECT id FROM budgets WHERE name = ? AND id <> ?", name, id,
		).Scan(&existing)
		if err == nil {
			return ErrBudgetExists
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		_, err = tx.Exec("UPDATE budgets SET name = ? WHERE id = ?", name, id)
		return err
	})
}

// DeleteBudget removes a budget with its categories, expenses, and
// permission rows in one transaction. Any successor budget is unlinked.
func (db *DB) DeleteBudget(id int64) error {
	return db.withTx(func(tx *sql.Tx) error {
		steps := []string{
			"DELETE FROM expenses WHERE category_id IN (SELECT id FROM categories WHERE budget_id = ?)",
			"DELETE FROM categories WHERE budget_id = ?",
			"DELETE FROM budget_permissions WHERE budget_id = ?",
			"UPDATE budgets SET previous_budget_id = NULL WHERE previous_budget_id = ?",
			"DELETE FROM budgets WHERE id = ?",
		}
		for _, q := range steps {
			if _, err := tx.Exec(q, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// BudgetAccess pairs a budget with the caller's permission level on it.
type BudgetAccess struct {
	ID    int64
	Name  string
	Level perm.Level
}

// BudgetsForUser lists the budgets a user holds any permission on.
func (db *DB) BudgetsForUser(userID int64) ([]BudgetAccess, error) {
	rows, err := db.conn.Query(`
		SELECT b.id, b.name, p.level
		FROM budgets b
		JOIN budget_permissions p ON p.budget_id = b.id
		WHERE p.user_id = ?
		ORDER BY b.id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var budgets []BudgetAccess
	for rows.Next() {
		var b BudgetAccess
		var level int
		if err := rows.Scan(&b.ID, &b.Name, &level); err != nil {
			return nil, err
		}
		b.Level = perm.Level(level)
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}

// PermissionLevel returns the user's level on a budget; a missing row means
// perm.None, not an error.
func (db *DB) PermissionLevel(budgetID, userID int64) (perm.Level, error) {
	var level int
	err := db.conn.QueryRow(
		"SELECT level FROM budget_permissions WHERE budget_id = ? AND user_id = ?",
		budgetID, userID,
	).Scan(&level)
	if errors.Is(err, sql.ErrNoRows) {
		return perm.None, nil
	}
	if err != nil {
		return perm.None, err
	}
	return perm.Level(level), nil
}

// SetPermission upserts a user's level on a budget. Setting perm.None
// removes the row instead, keeping "no row" the only encoding of NONE.
func (db *DB) SetPermission(budgetID, userID int64, level perm.Level) error {
	if level == perm.None {
		return db.RemovePermission(budgetID, userID)
	}
	_, err := db.conn.Exec(`
		INSERT INTO budget_permissions (budget_id, user_id, level) VALUES (?, ?, ?)
		ON CONFLICT (budget_id, user_id) DO UPDATE SET level = excluded.level
	`, budgetID, userID, int(level))
	return err
}

// RemovePermission deletes a user's permission row on a budget.
func (db *DB) RemovePermission(budgetID, userID int64) error {
	_, err := db.conn.Exec(
		"DELETE FROM budget_permissions WHERE budget_id = ? AND user_id = ?",
		budgetID, userID,
	)
	return err
}

// PermissionEntry is one row of a budget's permission listing.
type PermissionEntry struct {
	UserID   int64
	Username string
	Level    perm.Level
}

// ListPermissions lists every permission row on a budget with usernames.
func (db *DB) ListPermissions(budgetID int64) ([]PermissionEntry, error) {
	rows, err := db.conn.Query(`
		SELECT p.user_id, u.username, p.level
		FROM budget_permissions p
		JOIN users u ON u.id = p.user_id
		WHERE p.budget_id = ?
		ORDER BY p.user_id
	`, budgetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []PermissionEntry
	for rows.Next() {
		var e PermissionEntry
		var level int
		if err := rows.Scan(&e.UserID, &e.Username, &level); err != nil {
			return nil, err
		}
		e.Level = perm.Level(level)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// TransferOwnership demotes the current owner to admin and promotes the
// recipient to owner in one transaction, so the budget never has zero or two
// owners between requests. It fails with ErrNotOwner unless fromUserID holds
// owner at commit time.
func (db *DB) TransferOwnership(budgetID, fromUserID, toUserID int64) error {
	return db.withTx(func(tx *sql.Tx) error {
		var level int
		err := tx.QueryRow(
			"SELECT level FROM budget_permissions WHERE budget_id = ? AND user_id = ?",
			budgetID, fromUserID,
		).Scan(&level)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotOwner
		}
		if err != nil {
			return err
		}
		if perm.Level(level) != perm.Owner {
			return ErrNotOwner
		}

		_, err = tx.Exec(
			"UPDATE budget_permissions SET level = ? WHERE budget_id = ? AND user_id = ?",
			int(perm.Admin), budgetID, fromUserID,
		)
		if err != nil {
			return err
		}

		_, err = tx.Exec(`
			INSERT INTO budget_permissions (budget_id, user_id, level) VALUES (?, ?, ?)
			ON CONFLICT (budget_id, user_id) DO UPDATE SET level = excluded.level
		`, budgetID, toUserID, int(perm.Owner))
		return err
	})
}

// CreateCategory creates a category in a budget, failing with
// ErrCategoryExists on a duplicate name within the budget.
func (db *DB) CreateCategory(budgetID int64, name string) (int64, error) {
	var id int64
	err := db.withTx(func(tx *sql.Tx) error {
		var existing int64
		err := tx.QueryRow(
			"SELECT id FROM categories WHERE budget_id = ? AND name = ?", budgetID, name,
		).Scan(&existing)
		if err == nil {
			return ErrCategoryExists
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		result, err := tx.Exec(
			"INSERT INTO categories (budget_id, name) VALUES (?, ?)", budgetID, name,
		)
		if err != nil {
			return err
		}
		id, err = result.LastInsertId()
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// RenameCategory changes a category's name within its budget.
func (db *DB) RenameCategory(budgetID, categoryID int64, name string) error {
	return db.withTx(func(tx *sql.Tx) error {
		var existing int64
		err := tx.QueryRow(
			"SELECT id FROM categories WHERE budget_id = ? AND name = ? AND id <> ?",
			budgetID, name, categoryID,
		).Scan(&existing)
		if err == nil {
			return ErrCategoryExists
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		_, err = tx.Exec(
			"UPDATE categories SET name = ? WHERE budget_id = ? AND id = ?",
			name, budgetID, categoryID,
		)
		return err
	})
}

// DeleteCategory removes a category and its expenses in one transaction.
func (db *DB) DeleteCategory(budgetID, categoryID int64) error {
	return db.withTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM expenses WHERE category_id = ?", categoryID); err != nil {
			return err
		}
		_, err := tx.Exec(
			"DELETE FROM categories WHERE budget_id = ? AND id = ?", budgetID, categoryID,
		)
		return err
	})
}

// ListCategories lists a budget's categories.
func (db *DB) ListCategories(budgetID int64) ([]models.Category, error) {
	rows, err := db.conn.Query(
		"SELECT id, budget_id, name FROM categories WHERE budget_id = ? ORDER BY id",
		budgetID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.BudgetID, &c.Name); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// GetCategory retrieves a category, scoped to its budget.
func (db *DB) GetCategory(budgetID, categoryID int64) (*models.Category, error) {
	var c models.Category
	err := db.conn.QueryRow(
		"SELECT id, budget_id, name FROM categories WHERE budget_id = ? AND id = ?",
		budgetID, categoryID,
	).Scan(&c.ID, &c.BudgetID, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CategoryInBudget reports whether the category belongs to the budget.
func (db *DB) CategoryInBudget(budgetID, categoryID int64) (bool, error) {
	var id int64
	err := db.conn.QueryRow(
		"SELECT id FROM categories WHERE budget_id = ? AND id = ?", budgetID, categoryID,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

const dateFormat = "2006-01-02"

// CreateExpense inserts a new expense and stamps its entry time.
func (db *DB) CreateExpense(categoryID int64, description string, amount decimal.Decimal, date time.Time) (int64, error) {
	result, err := db.conn.Exec(
		"INSERT INTO expenses (category_id, description, amount, date, entry_time) VALUES (?, ?, ?, ?, ?)",
		categoryID, description, amount.String(), date.Format(dateFormat), time.Now(),
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// UpdateExpense updates an expense, scoped to its category.
func (db *DB) UpdateExpense(categoryID, expenseID int64, description string, amount decimal.Decimal, date time.Time) error {
	_, err := db.conn.Exec(
		"UPDATE expenses SET description = ?, amount = ?, date = ? WHERE category_id = ? AND id = ?",
		description, amount.String(), date.Format(dateFormat), categoryID, expenseID,
	)
	return err
}

// DeleteExpense removes an expense, scoped to its category.
func (db *DB) DeleteExpense(categoryID, expenseID int64) error {
	_, err := db.conn.Exec(
		"DELETE FROM expenses WHERE category_id = ? AND id = ?", categoryID, expenseID,
	)
	return err
}

// ListExpenses lists a category's expenses ordered by date descending.
func (db *DB) ListExpenses(categoryID int64) ([]models.Expense, error) {
	rows, err := db.conn.Query(`
		SELECT id, category_id, description, amount, date, entry_time
		FROM expenses WHERE category_id = ?
		ORDER BY date DESC, id DESC
	`, categoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expenses []models.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, *e)
	}
	return expenses, rows.Err()
}

// GetExpense retrieves an expense, scoped to its category.
func (db *DB) GetExpense(categoryID, expenseID int64) (*models.Expense, error) {
	rows, err := db.conn.Query(`
		SELECT id, category_id, description, amount, date, entry_time
		FROM expenses WHERE category_id = ? AND id = ?
	`, categoryID, expenseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	return scanExpense(rows)
}

func scanExpense(rows *sql.Rows) (*models.Expense, error) {
	var e models.Expense
	var amount, date string
	if err := rows.Scan(&e.ID, &e.CategoryID, &e.Description, &amount, &date, &e.EntryTime); err != nil {
		return nil, err
	}

	var err error
	e.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("malformed amount for expense %d: %w", e.ID, err)
	}
	e.Date, err = time.Parse(dateFormat, date)
	if err != nil {
		return nil, fmt.Errorf("malformed date for expense %d: %w", e.ID, err)
	}
	return &e, nil
}

// CategoryTotal is one category's aggregate in a budget summary.
type CategoryTotal struct {
	ID    int64
	Name  string
	Total decimal.Decimal
	Count int
}

// BudgetSummary totals each category's expenses. Amounts are summed in Go so
// decimals never pass through floating point.
func (db *DB) BudgetSummary(budgetID int64) ([]CategoryTotal, error) {
	rows, err := db.conn.Query(`
		SELECT c.id, c.name, e.amount
		FROM categories c
		LEFT JOIN expenses e ON e.category_id = c.id
		WHERE c.budget_id = ?
		ORDER BY c.id
	`, budgetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var totals []CategoryTotal
	index := make(map[int64]int)
	for rows.Next() {
		var id int64
		var name string
		var amount sql.NullString
		if err := rows.Scan(&id, &name, &amount); err != nil {
			return nil, err
		}

		i, ok := index[id]
		if !ok {
			i = len(totals)
			index[id] = i
			totals = append(totals, CategoryTotal{ID: id, Name: name, Total: decimal.Zero})
		}
		if amount.Valid {
			d, err := decimal.NewFromString(amount.String)
			if err != nil {
				return nil, fmt.Errorf("malformed amount in category %d: %w", id, err)
			}
			totals[i].Total = totals[i].Total.Add(d)
			totals[i].Count++
		}
	}
	return totals, rows.Err()
}
