package model

import (
	"errors"
	"time"
)

// Mode selects how the optimizer weighs a shopping list.
type Mode string

// Supported list modes.
const (
	ModeConvenience Mode = "convenience"
	ModeSavings     Mode = "savings"
)

// MinQuantity is the floor for a product quantity.
const MinQuantity = 1

// ErrProductIndex is returned when a product index is out of range.
var ErrProductIndex = errors.New("product index out of range")

// Product is one line of a shopping list.
type Product struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// ShoppingList is a user's list of products with a budget.
type ShoppingList struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Products    []Product `json:"products"`
	BudgetCents int64     `json:"budget_cents"`
	Mode        Mode      `json:"mode"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ToggleMode flips between convenience and savings.
func (l *ShoppingList) ToggleMode() {
	if l.Mode == ModeSavings {
		l.Mode = ModeConvenience
		return
	}
	l.Mode = ModeSavings
}

// IncreaseQuantity adds one unit to the product at index i.
func (l *ShoppingList) IncreaseQuantity(i int) error {
	if i < 0 || i >= len(l.Products) {
		return ErrProductIndex
	}
	l.Products[i].Quantity++
	return nil
}

// DecreaseQuantity removes one unit from the product at index i.
// Quantities never drop below MinQuantity.
func (l *ShoppingList) DecreaseQuantity(i int) error {
	if i < 0 || i >= len(l.Products) {
		return ErrProductIndex
	}
	if l.Products[i].Quantity > MinQuantity {
		l.Products[i].Quantity--
	}
	return nil
}

// Budget returns the budget in currency units.
func (l *ShoppingList) Budget() float64 {
	return float64(l.BudgetCents) / 100
}
