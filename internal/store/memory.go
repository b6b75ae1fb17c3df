package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/ginjaninja78/invoice-batch-import/internal/types"
)

// Memory is an in-process Backend. Customers are returned in the order they
// were added, matching the created_at ordering of the Postgres backend.
type Memory struct {
	mu        sync.Mutex
	customers []types.Customer
	invoices  map[string]StoredInvoice
	byNumber  map[string]string
}

// StoredInvoice is an invoice held by the Memory backend.
type StoredInvoice struct {
	ID      string
	Payload types.Payload
}

// NewMemory creates a Memory backend seeded with the given customer names.
func NewMemory(customers ...string) *Memory {
	m := &Memory{
		invoices: make(map[string]StoredInvoice),
		byNumber: make(map[string]string),
	}
	for _, name := range customers {
		m.AddCustomer(name)
	}
	return m
}

// AddCustomer registers a customer and returns its id.
func (m *Memory) AddCustomer(name string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.NewString()
	m.customers = append(m.customers, types.Customer{ID: id, Name: name})
	return id
}

func (m *Memory) FindCustomersByName(ctx context.Context, name string) ([]types.Customer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []types.Customer
	for _, c := range m.customers {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *Memory) CreateInvoice(ctx context.Context, payload types.Payload) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byNumber[payload.InvoiceNumber]; exists {
		return "", fmt.Errorf("%w: %s", ErrDuplicateInvoice, payload.InvoiceNumber)
	}
	if !m.hasCustomer(payload.CustomerID) {
		return "", fmt.Errorf("customer %s does not exist", payload.CustomerID)
	}

	id := uuid.NewString()
	m.invoices[id] = StoredInvoice{ID: id, Payload: payload}
	m.byNumber[payload.InvoiceNumber] = id
	return id, nil
}

func (m *Memory) hasCustomer(id string) bool {
	for _, c := range m.customers {
		if c.ID == id {
			return true
		}
	}
	return false
}

// Invoice returns a stored invoice by invoice number.
func (m *Memory) Invoice(number string) (StoredInvoice, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byNumber[number]
	if !ok {
		return StoredInvoice{}, false
	}
	return m.invoices[id], true
}

// InvoiceCount returns how many invoices have been created.
func (m *Memory) InvoiceCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.invoices)
}

func (m *Memory) Ping(ctx context.Context) error { return ctx.Err() }

func (m *Memory) Close() {}
