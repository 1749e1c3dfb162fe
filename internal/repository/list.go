package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/liiist/liiist/internal/model"
)

// ErrListNotFound is returned when a list does not exist or belongs to
// another user.
var ErrListNotFound = errors.New("shopping list not found")

const listColumns = `id, user_id, name, products, budget_cents, mode, created_at, updated_at`

// SaveList inserts a list or updates it when the caller already owns it.
// A list id owned by another user yields ErrListNotFound.
func (r *Repository) SaveList(ctx context.Context, list *model.ShoppingList) error {
	products, err := json.Marshal(list.Products)
	if err != nil {
		return fmt.Errorf("failed to encode products: %w", err)
	}

	query := `
		INSERT INTO shopping_lists (` + listColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    products = EXCLUDED.products,
		    budget_cents = EXCLUDED.budget_cents,
		    mode = EXCLUDED.mode,
		    updated_at = EXCLUDED.updated_at
		WHERE shopping_lists.user_id = EXCLUDED.user_id
	`

	result, err := r.db.Exec(ctx, query,
		list.ID,
		list.UserID,
		list.Name,
		products,
		list.BudgetCents,
		string(list.Mode),
		list.CreatedAt,
		list.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save list: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrListNotFound
	}
	return nil
}

// GetList returns the list id owned by userID.
func (r *Repository) GetList(ctx context.Context, userID, id string) (*model.ShoppingList, error) {
	query := `SELECT ` + listColumns + ` FROM shopping_lists WHERE id = $1 AND user_id = $2`

	list, err := scanList(r.db.QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrListNotFound
		}
		return nil, fmt.Errorf("failed to get list: %w", err)
	}
	return list, nil
}

// ListLists returns every list owned by userID, most recently updated first.
func (r *Repository) ListLists(ctx context.Context, userID string) ([]*model.ShoppingList, error) {
	query := `SELECT ` + listColumns + ` FROM shopping_lists WHERE user_id = $1 ORDER BY updated_at DESC, id DESC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list lists: %w", err)
	}
	defer rows.Close()

	var lists []*model.ShoppingList
	for rows.Next() {
		list, err := scanList(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan list: %w", err)
		}
		lists = append(lists, list)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lists: %w", err)
	}

	return lists, nil
}

func scanList(row pgx.Row) (*model.ShoppingList, error) {
	var list model.ShoppingList
	var products []byte
	var mode string
	err := row.Scan(
		&list.ID,
		&list.UserID,
		&list.Name,
		&products,
		&list.BudgetCents,
		&mode,
		&list.CreatedAt,
		&list.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(products) > 0 {
		if err := json.Unmarshal(products, &list.Products); err != nil {
			return nil, fmt.Errorf("decode products: %w", err)
		}
	}
	list.Mode = model.Mode(mode)
	return &list, nil
}
