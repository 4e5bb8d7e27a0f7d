package policy

import (
	"errors"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/rs/zerolog/log"
)

var ErrDenied = errors.New("award policy denied the request")

// Input is what an award policy expression can see.
type Input struct {
	// Role is the caller's staff role within the issuer ("owner", "editor", "staff").
	Role string

	// Email is the caller's Teams email.
	Email string

	// BadgeClass is the entity id of the badge class to award.
	BadgeClass string

	// Recipients are the recipient emails.
	Recipients []string
}

func (i Input) env() map[string]any {
	return map[string]any{
		"role":        i.Role,
		"email":       i.Email,
		"badge_class": i.BadgeClass,
		"recipients":  i.Recipients,
	}
}

// Policy is a compiled award policy.
type Policy struct {
	source  string
	program *vm.Program
}

// Compile compiles src against the policy environment. The expression must return a bool.
func Compile(src string) (*Policy, error) {
	program, err := expr.Compile(src, expr.Env(Input{}.env()), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compiling award policy: %w", err)
	}
	return &Policy{
		source:  src,
		program: program,
	}, nil
}

func (p *Policy) String() string {
	return p.source
}

// Evaluate returns nil if the policy allows in, ErrDenied if not.
// Evaluation errors deny as well.
func (p *Policy) Evaluate(in Input) error {
	out, err := expr.Run(p.program, in.env())
	if err != nil {
		log.Warn().Err(err).Str("policy", p.source).Msg("error evaluating award policy")
		return fmt.Errorf("%w: %v", ErrDenied, err)
	}
	if ok, isBool := out.(bool); !isBool || !ok {
		return ErrDenied
	}
	return nil
}
