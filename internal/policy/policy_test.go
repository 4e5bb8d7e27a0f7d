package policy

import (
	"errors"
	"testing"
)

func TestPolicy_Evaluate(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		input   Input
		allowed bool
	}{
		{
			name:    "any role",
			expr:    `role != ""`,
			input:   Input{Role: "staff"},
			allowed: true,
		},
		{
			name:    "no role",
			expr:    `role != ""`,
			input:   Input{},
			allowed: false,
		},
		{
			name:    "owners only",
			expr:    `role in ["owner", "editor"]`,
			input:   Input{Role: "staff"},
			allowed: false,
		},
		{
			name:    "recipient limit",
			expr:    `len(recipients) <= 2`,
			input:   Input{Role: "staff", Recipients: []string{"a@x.com", "b@x.com", "c@x.com"}},
			allowed: false,
		},
		{
			name:    "no self award",
			expr:    `!(email in recipients)`,
			input:   Input{Email: "a@x.com", Recipients: []string{"b@x.com"}},
			allowed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Compile(tt.expr)
			if err != nil {
				t.Fatalf("unexpected compile error: %v", err)
			}
			err = p.Evaluate(tt.input)
			if tt.allowed && err != nil {
				t.Errorf("expected allowed, got %v", err)
			}
			if !tt.allowed && !errors.Is(err, ErrDenied) {
				t.Errorf("expected ErrDenied, got %v", err)
			}
		})
	}
}

func TestCompile_Invalid(t *testing.T) {
	for _, src := range []string{`role +`, `"not a bool"`, `unknown_var == 1`} {
		if _, err := Compile(src); err == nil {
			t.Errorf("expected compile error for %q", src)
		}
	}
}
