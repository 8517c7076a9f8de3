package middleware

import (
	"context"

	"homestay/internal/app/apperr"
	"homestay/internal/app/commands"
	"homestay/internal/app/queries"
)

// Validator checks struct tags of a message.
type Validator interface {
	Validate(ctx context.Context, message any) error
}

// Checker is implemented by messages with rules struct tags cannot express.
// Check runs only after the tags passed.
type Checker interface {
	Check() error
}

// Validation rejects commands whose tags or Check fail before any unit of
// work is opened.
func Validation(v Validator) CommandMiddleware {
	if v == nil {
		panic("middleware: validator required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if err := validate(ctx, v, cmd); err != nil {
				return nil, err
			}
			return nextFn(ctx, cmd)
		})
	}
}

func QueryValidation(v Validator) QueryMiddleware {
	if v == nil {
		panic("middleware: validator required")
	}
	return func(next queries.Bus) queries.Bus {
		nextFn := wrapQuery(next)
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			if err := validate(ctx, v, q); err != nil {
				return nil, err
			}
			return nextFn(ctx, q)
		})
	}
}

func validate(ctx context.Context, v Validator, message any) error {
	if err := v.Validate(ctx, message); err != nil {
		return err
	}
	checker, ok := message.(Checker)
	if !ok {
		return nil
	}
	if err := checker.Check(); err != nil {
		if apperr.Classify(err) == apperr.KindInternal {
			return apperr.NewValidation("request", err.Error())
		}
		return err
	}
	return nil
}
