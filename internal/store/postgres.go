package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/limitless/market-engine/internal/model"
)

// Schema creates the accounts table. Lamports are NUMERIC so the full u64
// range survives.
const Schema = `
CREATE TABLE IF NOT EXISTS accounts (
	address    TEXT PRIMARY KEY,
	owner      TEXT NOT NULL,
	lamports   NUMERIC(20, 0) NOT NULL DEFAULT 0,
	data       BYTEA NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS accounts_owner_idx ON accounts (owner);
`

// PostgresStore implements Store using PostgreSQL as the source of truth.
// Atomic maps onto a database transaction.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate applies Schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate accounts: %w", err)
	}
	return nil
}

// querier is the part of pgxpool.Pool and pgx.Tx the store reads through.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const selectAccount = `SELECT address, owner, lamports::TEXT, data, created_at FROM accounts`

func scanAccount(row pgx.Row) (*model.Account, error) {
	var a model.Account
	var address, owner, lamports string
	if err := row.Scan(&address, &owner, &lamports, &a.Data, &a.CreatedAt); err != nil {
		return nil, err
	}
	var err error
	if a.Address, err = solana.PublicKeyFromBase58(address); err != nil {
		return nil, fmt.Errorf("parse address %q: %w", address, err)
	}
	if a.Owner, err = solana.PublicKeyFromBase58(owner); err != nil {
		return nil, fmt.Errorf("parse owner %q: %w", owner, err)
	}
	if a.Lamports, err = strconv.ParseUint(lamports, 10, 64); err != nil {
		return nil, fmt.Errorf("parse lamports %q: %w", lamports, err)
	}
	return &a, nil
}

func getAccount(ctx context.Context, q querier, addr solana.PublicKey, lock bool) (*model.Account, error) {
	sql := selectAccount + ` WHERE address = $1`
	if lock {
		sql += ` FOR UPDATE`
	}
	a, err := scanAccount(q.QueryRow(ctx, sql, addr.String()))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, addr)
	}
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", addr, err)
	}
	return a, nil
}

func (s *PostgresStore) GetAccount(ctx context.Context, addr solana.PublicKey) (*model.Account, error) {
	return getAccount(ctx, s.pool, addr, false)
}

func (s *PostgresStore) ListAccounts(ctx context.Context, owner solana.PublicKey) ([]model.Account, error) {
	rows, err := s.pool.Query(ctx, selectAccount+` WHERE owner = $1 ORDER BY created_at`, owner.String())
	if err != nil {
		return nil, fmt.Errorf("list accounts of %s: %w", owner, err)
	}
	defer rows.Close()

	accounts := make([]model.Account, 0)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

func (s *PostgresStore) Credit(ctx context.Context, addr solana.PublicKey, lamports uint64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO accounts (address, owner, lamports, data, created_at)
		 VALUES ($1, $2, $3::NUMERIC, '', $4)
		 ON CONFLICT (address) DO UPDATE SET lamports = accounts.lamports + EXCLUDED.lamports`,
		addr.String(), solana.SystemProgramID.String(),
		strconv.FormatUint(lamports, 10), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("credit %s: %w", addr, err)
	}
	return nil
}

func (s *PostgresStore) Atomic(ctx context.Context, fn func(tx Tx) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&pgTx{tx: tx})
	})
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) GetAccount(ctx context.Context, addr solana.PublicKey) (*model.Account, error) {
	return getAccount(ctx, t.tx, addr, false)
}

func (t *pgTx) Allocate(ctx context.Context, a Allocation) (*model.Account, bool, error) {
	if a.Space > model.MaxAccountSpace {
		return nil, false, fmt.Errorf("%w: %d bytes", ErrSpaceTooLarge, a.Space)
	}
	acct := &model.Account{
		Address:   a.Address,
		Owner:     a.Owner,
		Data:      make([]byte, a.Space),
		CreatedAt: time.Now().UTC(),
	}
	existing, err := getAccount(ctx, t.tx, a.Address, true)
	switch {
	case err == nil && !vacant(existing):
		if err := checkReuse(existing, a); err != nil {
			return nil, false, fmt.Errorf("%w: %s", err, a.Address)
		}
		return existing, false, nil
	case err == nil:
		acct.Lamports = existing.Lamports
		acct.CreatedAt = existing.CreatedAt
	case !errors.Is(err, ErrAccountNotFound):
		return nil, false, err
	}

	payer, err := getAccount(ctx, t.tx, a.Payer, true)
	if errors.Is(err, ErrAccountNotFound) {
		return nil, false, fmt.Errorf("%w: %s", ErrPayerNotFound, a.Payer)
	}
	if err != nil {
		return nil, false, err
	}
	due := topUp(acct.Lamports, a.Space)
	if err := checkPayer(payer, due); err != nil {
		return nil, false, fmt.Errorf("%w: payer %s has %d lamports", err, a.Payer, payer.Lamports)
	}
	acct.Lamports += due

	if existing != nil {
		// The row is locked by the SELECT FOR UPDATE above.
		_, err = t.tx.Exec(ctx,
			`UPDATE accounts SET owner = $2, lamports = $3::NUMERIC, data = $4 WHERE address = $1`,
			acct.Address.String(), acct.Owner.String(),
			strconv.FormatUint(acct.Lamports, 10), acct.Data,
		)
		if err != nil {
			return nil, false, fmt.Errorf("take over %s: %w", a.Address, err)
		}
	} else {
		tag, err := t.tx.Exec(ctx,
			`INSERT INTO accounts (address, owner, lamports, data, created_at)
			 VALUES ($1, $2, $3::NUMERIC, $4, $5)
			 ON CONFLICT (address) DO NOTHING`,
			acct.Address.String(), acct.Owner.String(),
			strconv.FormatUint(acct.Lamports, 10), acct.Data, acct.CreatedAt,
		)
		if err != nil {
			return nil, false, fmt.Errorf("allocate %s: %w", a.Address, err)
		}
		// A concurrent invocation committed the address between our read
		// and insert. The insert waited for it, so a fresh read sees its row
		// and the occupied-address rules apply.
		if tag.RowsAffected() == 0 {
			return t.Allocate(ctx, a)
		}
	}

	if due > 0 {
		if _, err := t.tx.Exec(ctx,
			`UPDATE accounts SET lamports = lamports - $2::NUMERIC WHERE address = $1`,
			a.Payer.String(), strconv.FormatUint(due, 10),
		); err != nil {
			return nil, false, fmt.Errorf("debit payer %s: %w", a.Payer, err)
		}
	}
	return acct, true, nil
}

func (t *pgTx) WriteData(ctx context.Context, addr solana.PublicKey, data []byte) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE accounts SET data = $2 WHERE address = $1 AND length(data) = $3`,
		addr.String(), data, len(data),
	)
	if err != nil {
		return fmt.Errorf("write account %s: %w", addr, err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := getAccount(ctx, t.tx, addr, false); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s", ErrSpaceMismatch, addr)
	}
	return nil
}
