// Package store holds the persistence backends: customer lookup and
// invoice creation.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/ginjaninja78/invoice-batch-import/internal/config"
	"github.com/ginjaninja78/invoice-batch-import/internal/logger"
	"github.com/ginjaninja78/invoice-batch-import/internal/types"
)

// ErrDuplicateInvoice is returned when an invoice number already exists.
var ErrDuplicateInvoice = errors.New("invoice number already exists")

// Backend is everything the import pipeline needs from a store.
type Backend interface {
	FindCustomersByName(ctx context.Context, name string) ([]types.Customer, error)
	CreateInvoice(ctx context.Context, payload types.Payload) (string, error)
	Ping(ctx context.Context) error
	Close()
}

// Open builds the backend selected by settings.Driver.
func Open(ctx context.Context, settings config.StoreSettings, log *logger.Logger) (Backend, error) {
	log = logger.OrNop(log)
	switch settings.Driver {
	case config.DriverMemory:
		log.Warn("using in-memory store, nothing is persisted", "seed_customers", len(settings.SeedCustomers))
		return NewMemory(settings.SeedCustomers...), nil
	case config.DriverPostgres:
		p, err := NewPostgres(ctx, settings, log)
		if err != nil {
			return nil, err
		}
		if settings.Migrate {
			if err := p.EnsureSchema(ctx); err != nil {
				p.Close()
				return nil, err
			}
			log.Info("database schema ensured")
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", settings.Driver)
	}
}
