package memory

import "context"

// Transactor runs the function directly. Memory repositories are individually
// atomic; callers that need all-or-nothing semantics use the postgres driver.
type Transactor struct{}

func (Transactor) WithTx(ctx context.Context, function func(ctx context.Context) error) error {
	return function(ctx)
}
