package schema

import (
	"reflect"
	"testing"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

type contactForm struct {
	Email   string   `json:"email"`
	Name    string   `json:"name"`
	Tags    []string `json:"tags"`
	Confirm string   `json:"confirm"`
}

var contactSchema = New(
	func(in Input, errs FieldErrors) contactForm {
		return contactForm{
			Email:   String(in, "email"),
			Name:    String(in, "name"),
			Tags:    JSON[[]string](in, "tags", errs, "Invalid tags"),
			Confirm: Raw(in, "confirm"),
		}
	},
	func(v *contactForm) []*validation.FieldRules {
		return []*validation.FieldRules{
			validation.Field(&v.Email, validation.Required.Error("Email is required"), is.Email.Error("Invalid email")),
			validation.Field(&v.Name, validation.Required.Error("Name is required"), validation.Length(2, 10).Error("Bad name")),
			validation.Field(&v.Tags, validation.Required.Error("Tags are required"), validation.By(NonBlankItems("Blank tag"))),
			validation.Field(&v.Confirm, validation.By(Equals(v.Name, "Must match name"))),
		}
	},
)

func TestSchema_Valid(t *testing.T) {
	t.Parallel()

	in := Input{
		"email":   {"  a@b.com "},
		"name":    {"Jo"},
		"tags":    {`["x","y"]`},
		"confirm": {"Jo"},
	}

	v, errs := contactSchema.Validate(in)
	if errs != nil {
		t.Fatalf("expected no errors, got %v", errs)
	}

	want := contactForm{Email: "a@b.com", Name: "Jo", Tags: []string{"x", "y"}, Confirm: "Jo"}
	if !reflect.DeepEqual(v, want) {
		t.Errorf("Validate() = %+v, want %+v", v, want)
	}
}

func TestSchema_EnumeratesEveryField(t *testing.T) {
	t.Parallel()

	in := Input{
		"email":   {"not-an-email"},
		"name":    {"J"},
		"confirm": {"x"},
	}

	v, errs := contactSchema.Validate(in)
	if !reflect.DeepEqual(v, contactForm{}) {
		t.Errorf("expected zero value on failure, got %+v", v)
	}

	want := FieldErrors{
		"email":   "Invalid email",
		"name":    "Bad name",
		"tags":    "Tags are required",
		"confirm": "Must match name",
	}
	if !reflect.DeepEqual(errs, want) {
		t.Errorf("Validate() errors = %v, want %v", errs, want)
	}
}

func TestSchema_CoercionErrorWins(t *testing.T) {
	t.Parallel()

	in := Input{
		"email":   {"a@b.com"},
		"name":    {"Jo"},
		"tags":    {"{not json"},
		"confirm": {"Jo"},
	}

	_, errs := contactSchema.Validate(in)
	if got := errs["tags"]; got != "Invalid tags" {
		t.Errorf("expected coercion message, got %q", got)
	}
	if len(errs) != 1 {
		t.Errorf("expected only tags to fail, got %v", errs)
	}
}

func TestSchema_Deterministic(t *testing.T) {
	t.Parallel()

	in := Input{"email": {"bad"}, "tags": {`[" "]`}}

	_, first := contactSchema.Validate(in)
	for i := 0; i < 10; i++ {
		_, again := contactSchema.Validate(in)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs: %v vs %v", i, again, first)
		}
	}
	if first["tags"] != "Blank tag" {
		t.Errorf("expected blank tag error, got %q", first["tags"])
	}
}

func TestSchema_NilInput(t *testing.T) {
	t.Parallel()

	_, errs := contactSchema.Validate(nil)
	if len(errs) == 0 {
		t.Fatal("expected errors for nil input")
	}
	if errs["email"] != "Email is required" {
		t.Errorf("unexpected email error: %q", errs["email"])
	}
}

func TestSchema_InvalidRulesPanics(t *testing.T) {
	t.Parallel()

	outside := ""
	broken := New(
		func(in Input, errs FieldErrors) contactForm { return contactForm{} },
		func(v *contactForm) []*validation.FieldRules {
			return []*validation.FieldRules{validation.Field(&outside, validation.Required)}
		},
	)

	defer func() {
		if recover() == nil {
			t.Error("expected panic for field pointer outside the struct")
		}
	}()
	broken.Validate(Input{})
}

func TestCents(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		want    int64
		wantErr bool
	}{
		{"empty", "", 0, false},
		{"integer", "12", 1200, false},
		{"decimal", "12.5", 1250, false},
		{"rounded", "0.126", 13, false},
		{"negative", "-1", 0, true},
		{"garbage", "abc", 0, true},
		{"nan", "NaN", 0, true},
		{"rounds to 2^63", "92233720368547758", 0, true},
		{"far too large", "1e300", 0, true},
		{"large but representable", "1000000000000", 100000000000000, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			errs := FieldErrors{}
			got := Cents(Input{"budget": {tt.raw}}, "budget", errs, "Invalid budget")
			if got != tt.want {
				t.Errorf("Cents(%q) = %d, want %d", tt.raw, got, tt.want)
			}
			if (len(errs) > 0) != tt.wantErr {
				t.Errorf("Cents(%q) errors = %v, wantErr %v", tt.raw, errs, tt.wantErr)
			}
		})
	}
}

func TestFieldErrors_Error(t *testing.T) {
	t.Parallel()

	errs := FieldErrors{"b": "two", "a": "one"}
	errs.Add("a", "ignored")

	if got := errs.Error(); got != "a: one; b: two" {
		t.Errorf("Error() = %q", got)
	}
}

func TestAlias(t *testing.T) {
	t.Parallel()

	in := Input{"retailers": {`["Lidl"]`}}
	got := Alias(in, "supermarkets", "retailers")
	if got.Get("supermarkets") != `["Lidl"]` {
		t.Errorf("Alias() supermarkets = %q", got.Get("supermarkets"))
	}
	if in.Has("supermarkets") {
		t.Error("Alias() modified its input")
	}

	both := Input{"supermarkets": {"a"}, "retailers": {"b"}}
	if got := Alias(both, "supermarkets", "retailers"); got.Get("supermarkets") != "a" {
		t.Errorf("Alias() should prefer the canonical key, got %q", got.Get("supermarkets"))
	}
}

func TestInt(t *testing.T) {
	t.Parallel()

	errs := FieldErrors{}
	if got := Int(Input{"index": {" 3 "}}, "index", errs, "bad"); got != 3 || len(errs) != 0 {
		t.Errorf("Int() = %d, errs %v", got, errs)
	}
	if got := Int(Input{}, "index", errs, "bad"); got != 0 || len(errs) != 0 {
		t.Errorf("Int() on absent key = %d, errs %v", got, errs)
	}
	if Int(Input{"index": {"1.5"}}, "index", errs, "bad"); errs["index"] != "bad" {
		t.Errorf("Int() errors = %v", errs)
	}
}
