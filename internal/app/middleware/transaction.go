package middleware

import (
	"context"
	"errors"

	"homestay/internal/app/commands"
	"homestay/internal/app/uow"
)

// MaxTxAttempts bounds how often a command is replayed after a transient
// conflict.
const MaxTxAttempts = 3

type TxOptionsProvider func(cmd commands.Command) uow.TxOptions

// Transaction runs every command inside a fresh unit of work. A unit is
// committed only when the handler succeeds, so a failed price tag leaves no
// day rates behind. Attempts failing with uow.ErrTransient start over with a
// new unit.
func Transaction(factory uow.UoWFactory, optsProvider TxOptionsProvider) CommandMiddleware {
	if factory == nil {
		panic("middleware: uow factory required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			opts := uow.TxOptions{}
			if optsProvider != nil {
				opts = optsProvider(cmd)
			}
			var (
				res any
				err error
			)
			for attempt := 1; attempt <= MaxTxAttempts; attempt++ {
				res, err = runInUnit(ctx, factory, opts, func(execCtx context.Context) (any, error) {
					return nextFn(execCtx, cmd)
				})
				if !errors.Is(err, uow.ErrTransient) || ctx.Err() != nil {
					break
				}
			}
			return res, err
		})
	}
}

func runInUnit(ctx context.Context, factory uow.UoWFactory, opts uow.TxOptions, fn func(context.Context) (any, error)) (any, error) {
	unit, err := factory.Begin(ctx, opts)
	if err != nil {
		return nil, err
	}
	execCtx := uow.Bind(ctx, unit)
	committed := false
	defer func() {
		if !committed {
			_ = unit.Rollback(execCtx)
		}
	}()

	res, err := fn(execCtx)
	if err != nil {
		return nil, err
	}
	if err := unit.Commit(execCtx); err != nil {
		return nil, err
	}
	committed = true
	return res, nil
}
