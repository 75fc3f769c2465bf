package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/ecorvi/schmng-api/internal/models"
	"github.com/ecorvi/schmng-api/internal/viewstate"
)

// submitForm drives one form submission: build (validation only), then a single save.
// It returns the saved entity as built, with the id assigned by save.
func submitForm[In any, T models.Entity](ctx context.Context, logger *zap.Logger, in In, build func(In) (T, error), save func(context.Context, T) (T, error), notFound string) (T, error) {
	var saved T
	form := viewstate.NewFormController(viewstate.FormConfig[In, T]{
		Build: build,
		Save: func(ctx context.Context, entity T) (string, error) {
			out, err := save(ctx, entity)
			if err != nil {
				return "", err
			}
			saved = out
			return out.EntityID(), nil
		},
		Logger: logger,
	})
	defer form.Close()

	if _, err := form.SubmitAndWait(ctx, in); err != nil {
		var zero T
		return zero, gatewayError(err, notFound)
	}
	return saved, nil
}

// changeNotifier is told when a mutation may have changed aggregated counts.
type changeNotifier interface {
	Invalidate(ctx context.Context)
}

func notifyChange(ctx context.Context, n changeNotifier) {
	if n != nil {
		n.Invalidate(ctx)
	}
}

func requireAdmin(session models.Session) error {
	if !session.IsAdmin() {
		return forbidden("admin role required")
	}
	return nil
}
