package counter

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

// PostgresStore keeps counters in the counters table. Each increment is one
// INSERT ... ON CONFLICT DO UPDATE ... RETURNING statement, so concurrent
// callers on any replica serialize on the row lock.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const incrementBillSQL = `
	insert into counters (branch_id, category, business_date, last_bill_number, last_invoice_number, last_kot_number)
	values ($1, $2, $3, 1, 1, 0)
	on conflict (branch_id, category, business_date) do update
	set last_bill_number = counters.last_bill_number + 1,
	    last_invoice_number = counters.last_bill_number + 1,
	    updated_at = now()
	returning last_bill_number
`

const incrementKOTSQL = `
	insert into counters (branch_id, category, business_date, last_bill_number, last_invoice_number, last_kot_number)
	values ($1, $2, $3, 0, 0, 1)
	on conflict (branch_id, category, business_date) do update
	set last_kot_number = counters.last_kot_number + 1,
	    updated_at = now()
	returning last_kot_number
`

func (s *PostgresStore) Increment(ctx context.Context, key Key, field Field) (int64, error) {
	query := incrementBillSQL
	if field == FieldKOT {
		query = incrementKOTSQL
	}

	var value int64
	if err := s.db.QueryRow(ctx, query, key.BranchID, string(key.Category), key.Date).Scan(&value); err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicateKey
		}
		return 0, fmt.Errorf("increment %s counter: %w", field, err)
	}
	return value, nil
}

const counterColumns = `branch_id, category, business_date, last_bill_number, last_invoice_number, last_kot_number, created_at, updated_at`

func (s *PostgresStore) Get(ctx context.Context, key Key) (Counter, bool, error) {
	row := s.db.QueryRow(ctx, `
		select `+counterColumns+`
		from counters
		where branch_id = $1 and category = $2 and business_date = $3
	`, key.BranchID, string(key.Category), key.Date)

	c, err := scanCounter(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Counter{}, false, nil
		}
		return Counter{}, false, fmt.Errorf("get counter: %w", err)
	}
	return c, true, nil
}

func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]Counter, error) {
	rows, err := s.db.Query(ctx, `
		select `+counterColumns+`
		from counters
		where business_date = $1
		  and ($2::text = '' or branch_id = $2)
		  and ($3::text = '' or category = $3)
		order by branch_id, category
	`, filter.Date, filter.BranchID, string(filter.Category))
	if err != nil {
		return nil, fmt.Errorf("list counters: %w", err)
	}
	defer rows.Close()

	out := make([]Counter, 0)
	for rows.Next() {
		c, err := scanCounter(rows)
		if err != nil {
			return nil, fmt.Errorf("scan counter: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list counters: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Reset(ctx context.Context, filter Filter, skipKOT bool, audit ResetAudit) (int64, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin reset: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		update counters
		set last_bill_number = 0,
		    last_invoice_number = 0,
		    last_kot_number = case when $4 then last_kot_number else 0 end,
		    updated_at = now()
		where business_date = $1
		  and ($2::text = '' or branch_id = $2)
		  and ($3::text = '' or category = $3)
	`, filter.Date, filter.BranchID, string(filter.Category), skipKOT)
	if err != nil {
		return 0, fmt.Errorf("reset counters: %w", err)
	}
	n := tag.RowsAffected()

	_, err = tx.Exec(ctx, `
		insert into counter_resets (business_date, branch_id, category, skip_kot, rows_reset, actor, reason, created_at)
		values ($1, nullif($2, ''), nullif($3, ''), $4, $5, $6, nullif($7, ''), $8)
	`, audit.Date, audit.BranchID, string(audit.Category), skipKOT, n, audit.Actor, audit.Reason, audit.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("record counter reset: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit reset: %w", err)
	}
	return n, nil
}

func scanCounter(row pgx.Row) (Counter, error) {
	var (
		c        Counter
		category string
	)
	err := row.Scan(
		&c.BranchID,
		&category,
		&c.Date,
		&c.LastBillNumber,
		&c.LastInvoiceNumber,
		&c.LastKOTNumber,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	c.Category = Category(category)
	return c, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}
