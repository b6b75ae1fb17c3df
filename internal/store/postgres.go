package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ginjaninja78/invoice-batch-import/internal/config"
	"github.com/ginjaninja78/invoice-batch-import/internal/logger"
	"github.com/ginjaninja78/invoice-batch-import/internal/types"
)

//go:embed schema.sql
var schemaSQL string

const (
	findCustomersSQL = `SELECT customer_id::text, name
		FROM customers
		WHERE name = $1
		ORDER BY created_at, customer_id`

	insertInvoiceSQL = `INSERT INTO invoices
		(invoice_number, customer_id, issue_date, due_date, status, total_amount)
		VALUES ($1, $2::uuid, NULLIF($3, '')::date, NULLIF($4, '')::date, $5, $6)
		RETURNING invoice_id::text`

	insertLineSQL = `INSERT INTO invoice_lines
		(invoice_id, line_no, description, quantity, unit_price, line_total)
		VALUES ($1::uuid, $2, $3, $4, $5, $6)`

	uniqueViolation = "23505"
)

// Postgres is a Backend on a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

// NewPostgres connects to settings.DatabaseURL and verifies the connection.
func NewPostgres(ctx context.Context, settings config.StoreSettings, log *logger.Logger) (*Postgres, error) {
	if settings.DatabaseURL == "" {
		return nil, errors.New("store.database_url (or DATABASE_URL) is required for the postgres driver")
	}

	poolCfg, err := pgxpool.ParseConfig(settings.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	if settings.MaxConns > 0 {
		poolCfg.MaxConns = settings.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log = logger.OrNop(log)
	log.Info("connected to postgres", "max_conns", poolCfg.MaxConns, "database_url", settings.DatabaseURL)
	return &Postgres{pool: pool, log: log}, nil
}

// EnsureSchema creates the tables used by this backend if they are missing.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (p *Postgres) FindCustomersByName(ctx context.Context, name string) ([]types.Customer, error) {
	rows, err := p.pool.Query(ctx, findCustomersSQL, name)
	if err != nil {
		return nil, fmt.Errorf("query customers: %w", err)
	}
	defer rows.Close()

	var customers []types.Customer
	for rows.Next() {
		var c types.Customer
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read customers: %w", err)
	}
	return customers, nil
}

// CreateInvoice inserts the invoice and its lines in one transaction. The
// connection is released and the transaction rolled back on every error
// path, so a failed invoice never holds a pool slot.
func (p *Postgres) CreateInvoice(ctx context.Context, payload types.Payload) (string, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return "", fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var invoiceID string
	err = tx.QueryRow(ctx, insertInvoiceSQL,
		payload.InvoiceNumber,
		payload.CustomerID,
		payload.IssueDate,
		payload.DueDate,
		payload.Status,
		payload.TotalAmount,
	).Scan(&invoiceID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return "", fmt.Errorf("%w: %s", ErrDuplicateInvoice, payload.InvoiceNumber)
		}
		return "", fmt.Errorf("insert invoice: %w", err)
	}

	if len(payload.Lines) > 0 {
		batch := &pgx.Batch{}
		for i, line := range payload.Lines {
			batch.Queue(insertLineSQL, invoiceID, i+1, line.Description, line.Quantity, line.UnitPrice, line.LineTotal)
		}

		br := tx.SendBatch(ctx, batch)
		for i := range payload.Lines {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return "", fmt.Errorf("insert line %d: %w", i+1, err)
			}
		}
		if err := br.Close(); err != nil {
			return "", fmt.Errorf("insert lines: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit invoice: %w", err)
	}

	p.log.Debug("invoice stored", "invoice_number", payload.InvoiceNumber, "invoice_id", invoiceID, "lines", len(payload.Lines))
	return invoiceID, nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Postgres) Close() {
	p.pool.Close()
}
