package service

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/liiist/liiist/internal/credential"
	"github.com/liiist/liiist/internal/model"
	"github.com/liiist/liiist/internal/schema"
)

const (
	maxPasswordLength = 100
	minPasswordLength = 8
	maxNameLength     = 100
	maxListNameLength = 120
	maxProducts       = 200
	maxIDLength       = 64
)

// SignInForm is the validated sign-in input.
type SignInForm struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Redirect string `json:"redirect"`
}

// SignInSchema validates the sign-in form. Password length beyond the
// upper bound is not checked so a wrong password is a business failure.
var SignInSchema = schema.New(
	func(in schema.Input, _ schema.FieldErrors) SignInForm {
		return SignInForm{
			Email:    strings.ToLower(schema.String(in, "email")),
			Password: schema.Raw(in, "password"),
			Redirect: schema.String(in, "redirect"),
		}
	},
	func(v *SignInForm) []*validation.FieldRules {
		return []*validation.FieldRules{
			validation.Field(&v.Email,
				validation.Required.Error("Email is required"),
				is.Email.Error("Invalid email address"),
			),
			validation.Field(&v.Password,
				validation.Required.Error("Password is required"),
				validation.RuneLength(0, maxPasswordLength).Error("Password is too long"),
			),
			validation.Field(&v.Redirect, validation.By(localPath("Invalid redirect target"))),
		}
	},
)

// SignUpForm is the validated registration input.
type SignUpForm struct {
	Email        string   `json:"email"`
	Password     string   `json:"password"`
	Name         string   `json:"name"`
	DateOfBirth  string   `json:"dateOfBirth"`
	Supermarkets []string `json:"supermarkets"`
}

// SignUpSchema validates the registration form. The retailer list is read
// from "supermarkets" or its alias "retailers".
var SignUpSchema = schema.New(
	func(in schema.Input, errs schema.FieldErrors) SignUpForm {
		in = schema.Alias(in, "supermarkets", "retailers")
		return SignUpForm{
			Email:        strings.ToLower(schema.String(in, "email")),
			Password:     schema.Raw(in, "password"),
			Name:         schema.String(in, "name"),
			DateOfBirth:  schema.String(in, "dateOfBirth"),
			Supermarkets: schema.JSON[[]string](in, "supermarkets", errs, "Supermarkets must be a list"),
		}
	},
	func(v *SignUpForm) []*validation.FieldRules {
		return []*validation.FieldRules{
			validation.Field(&v.Email,
				validation.Required.Error("Email is required"),
				validation.RuneLength(3, 254).Error("Invalid email address"),
				is.Email.Error("Invalid email address"),
			),
			validation.Field(&v.Password,
				validation.Required.Error("Password is required"),
				validation.RuneLength(minPasswordLength, maxPasswordLength).Error("Password must be between 8 and 100 characters"),
			),
			validation.Field(&v.Name,
				validation.Required.Error("Name is required"),
				validation.RuneLength(2, maxNameLength).Error("Name must be between 2 and 100 characters"),
			),
			validation.Field(&v.DateOfBirth,
				validation.Required.Error("Date of birth is required"),
				validation.Date("2006-01-02").Error("Date of birth must be YYYY-MM-DD"),
			),
			validation.Field(&v.Supermarkets,
				validation.Required.Error("Select at least one supermarket"),
				validation.By(schema.NonBlankItems("Supermarket names cannot be blank")),
				validation.By(retailerBounds),
			),
		}
	},
)

// PasswordForm is the validated password-change input.
type PasswordForm struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

// PasswordSchema validates the password-change form.
var PasswordSchema = schema.New(
	func(in schema.Input, _ schema.FieldErrors) PasswordForm {
		return PasswordForm{
			CurrentPassword: schema.Raw(in, "currentPassword"),
			NewPassword:     schema.Raw(in, "newPassword"),
			ConfirmPassword: schema.Raw(in, "confirmPassword"),
		}
	},
	func(v *PasswordForm) []*validation.FieldRules {
		return []*validation.FieldRules{
			validation.Field(&v.CurrentPassword,
				validation.Required.Error("Current password is required"),
			),
			validation.Field(&v.NewPassword,
				validation.Required.Error("New password is required"),
				validation.RuneLength(minPasswordLength, maxPasswordLength).Error("Password must be between 8 and 100 characters"),
			),
			validation.Field(&v.ConfirmPassword,
				validation.Required.Error("Please confirm the new password"),
				validation.By(schema.Equals(v.NewPassword, MsgPasswordMismatch)),
			),
		}
	},
)

// MsgBudgetInvalid rejects a budget that is negative or out of range.
const MsgBudgetInvalid = "Budget must be a non-negative amount"

// ListForm is the validated shopping-list input. ID comes from the route.
type ListForm struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Products []model.Product `json:"products"`
	Budget   int64           `json:"budget"`
	Mode     model.Mode      `json:"mode"`
}

// ListSchema validates a full shopping-list save.
var ListSchema = schema.New(
	func(in schema.Input, errs schema.FieldErrors) ListForm {
		products := schema.JSON[[]model.Product](in, "products", errs, "Products must be a list")
		for i := range products {
			products[i].Name = strings.TrimSpace(products[i].Name)
		}
		mode := model.Mode(schema.String(in, "mode"))
		if mode == "" {
			mode = model.ModeConvenience
		}
		return ListForm{
			ID:       schema.String(in, "id"),
			Name:     schema.String(in, "name"),
			Products: products,
			Budget:   schema.Cents(in, "budget", errs, MsgBudgetInvalid),
			Mode:     mode,
		}
	},
	listRules,
)

// listRules are the field rules of ListSchema.
func listRules(v *ListForm) []*validation.FieldRules {
	return []*validation.FieldRules{
		validation.Field(&v.ID,
			validation.Required.Error("List id is required"),
			validation.RuneLength(1, maxIDLength).Error("Invalid list id"),
		),
		validation.Field(&v.Name,
			validation.Required.Error("List name is required"),
			validation.RuneLength(1, maxListNameLength).Error("List name is too long"),
		),
		validation.Field(&v.Products,
			validation.Length(0, maxProducts).Error("Too many products"),
			validation.By(validProducts),
		),
		validation.Field(&v.Budget,
			validation.Min(int64(0)).Error(MsgBudgetInvalid),
		),
		validation.Field(&v.Mode,
			validation.In(model.ModeConvenience, model.ModeSavings).Error("Mode must be convenience or savings"),
		),
	}
}

// ListRefForm names a list owned by the caller.
type ListRefForm struct {
	ID string `json:"id"`
}

// ListRefSchema validates a list id taken from the route.
var ListRefSchema = schema.New(
	func(in schema.Input, _ schema.FieldErrors) ListRefForm {
		return ListRefForm{ID: schema.String(in, "id")}
	},
	func(v *ListRefForm) []*validation.FieldRules {
		return []*validation.FieldRules{
			validation.Field(&v.ID,
				validation.Required.Error("List id is required"),
				validation.RuneLength(1, maxIDLength).Error("Invalid list id"),
			),
		}
	},
)

// Adjustment operations accepted by AdjustSchema.
const (
	OpToggleMode = "toggle-mode"
	OpIncrease   = "increase"
	OpDecrease   = "decrease"
)

// AdjustForm is a single in-place edit of a saved list.
type AdjustForm struct {
	ID    string `json:"id"`
	Op    string `json:"op"`
	Index int    `json:"index"`
}

// AdjustSchema validates a list adjustment.
var AdjustSchema = schema.New(
	func(in schema.Input, errs schema.FieldErrors) AdjustForm {
		return AdjustForm{
			ID:    schema.String(in, "id"),
			Op:    schema.String(in, "op"),
			Index: schema.Int(in, "index", errs, "Index must be a whole number"),
		}
	},
	func(v *AdjustForm) []*validation.FieldRules {
		return []*validation.FieldRules{
			validation.Field(&v.ID,
				validation.Required.Error("List id is required"),
				validation.RuneLength(1, maxIDLength).Error("Invalid list id"),
			),
			validation.Field(&v.Op,
				validation.Required.Error("Operation is required"),
				validation.In(OpToggleMode, OpIncrease, OpDecrease).Error("Unknown operation"),
			),
			validation.Field(&v.Index, validation.Min(0).Error("Index must not be negative")),
		}
	},
)

// Empty accepts any input. It backs actions that take no fields.
var Empty = schema.New(
	func(schema.Input, schema.FieldErrors) struct{} { return struct{}{} },
	nil,
)

// localPath accepts blank values and same-origin absolute paths only.
func localPath(msg string) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if s == "" {
			return nil
		}
		if !strings.HasPrefix(s, "/") || strings.HasPrefix(s, "//") || strings.Contains(s, `\`) {
			return errors.New(msg)
		}
		return nil
	}
}

func retailerBounds(value interface{}) error {
	items, _ := value.([]string)
	if len(items) == 0 {
		return nil
	}
	if _, err := credential.NormalizeRetailers(items); err != nil {
		return errors.New("Select between 1 and 5 supermarkets")
	}
	return nil
}

func validProducts(value interface{}) error {
	products, _ := value.([]model.Product)
	for _, p := range products {
		if p.Name == "" {
			return errors.New("Every product needs a name")
		}
		if p.Quantity < model.MinQuantity {
			return errors.New("Quantities must be at least 1")
		}
	}
	return nil
}
