// Package resolver maps customer names from the import file to customer ids.
package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/ginjaninja78/invoice-batch-import/internal/logger"
	"github.com/ginjaninja78/invoice-batch-import/internal/types"
)

// CustomerLookup finds customers by exact name. Implementations must return
// matches in a stable order.
type CustomerLookup interface {
	FindCustomersByName(ctx context.Context, name string) ([]types.Customer, error)
}

type Resolver struct {
	lookup CustomerLookup
	log    *logger.Logger
}

func New(lookup CustomerLookup, log *logger.Logger) *Resolver {
	return &Resolver{lookup: lookup, log: logger.OrNop(log)}
}

// Resolve returns the id of the customer called name. No match yields a
// *types.ReferenceNotFoundError; several matches resolve to the first.
// Results are not cached between calls.
func (r *Resolver) Resolve(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", &types.ReferenceNotFoundError{Name: name}
	}

	customers, err := r.lookup.FindCustomersByName(ctx, name)
	if err != nil {
		return "", fmt.Errorf("lookup customer %q: %w", name, err)
	}

	switch len(customers) {
	case 0:
		return "", &types.ReferenceNotFoundError{Name: name}
	case 1:
	default:
		r.log.Warn("ambiguous customer name, using first match",
			"customer_name", name, "matches", len(customers), "customer_id", customers[0].ID)
	}
	return customers[0].ID, nil
}
