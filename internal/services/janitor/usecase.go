package janitor

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Sweeper deletes rows that can no longer affect authentication.
type Sweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

type Target struct {
	Name    string
	Sweeper Sweeper
}

type Usecase struct {
	targets []Target
}

func NewUC(targets ...Target) *Usecase {
	return &Usecase{targets: targets}
}

// Result maps target name to rows removed.
type Result map[string]int64

// Sweep runs every target even when an earlier one fails; the errors are
// joined.
func (u *Usecase) Sweep(ctx context.Context) (Result, error) {
	tr := otel.Tracer("janitor.uc")
	ctx, span := tr.Start(ctx, "janitor.sweep")
	defer span.End()

	res := make(Result, len(u.targets))
	var errs []error
	for _, t := range u.targets {
		_, sp := tr.Start(ctx, "janitor.sweep."+t.Name)
		n, err := t.Sweeper.Sweep(ctx)
		if err != nil {
			sp.RecordError(err)
			sp.SetStatus(codes.Error, err.Error())
			sp.End()
			errs = append(errs, fmt.Errorf("%s: %w", t.Name, err))
			continue
		}
		res[t.Name] = n
		sp.SetAttributes(attribute.Int64("rows.deleted", n))
		sp.End()
	}
	err := errors.Join(errs...)
	if err != nil {
		span.RecordError(err)
	}
	return res, err
}
