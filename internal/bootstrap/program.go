// Package bootstrap creates the market and vault records a deployment needs
// before any trading can happen.
//
// Each operation runs as one store.Atomic invocation: either every account it
// allocates and writes is committed, or nothing is.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"

	"github.com/limitless/market-engine/internal/events"
	"github.com/limitless/market-engine/internal/metrics"
	"github.com/limitless/market-engine/internal/model"
	"github.com/limitless/market-engine/internal/pda"
	"github.com/limitless/market-engine/internal/store"
	"github.com/limitless/market-engine/internal/token"
)

// Program is the bootstrap layer bound to one program id.
type Program struct {
	deriver *pda.Deriver
	store   store.Store
	tokens  *token.Service
	events  events.Publisher
	now     func() time.Time
}

// NewProgram creates a Program. pub may be nil.
func NewProgram(programID solana.PublicKey, st store.Store, tokens *token.Service, pub events.Publisher) *Program {
	if pub == nil {
		pub = events.Fanout(nil)
	}
	return &Program{
		deriver: pda.NewDeriver(programID),
		store:   st,
		tokens:  tokens,
		events:  pub,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// ProgramID returns the id records are owned by.
func (p *Program) ProgramID() solana.PublicKey { return p.deriver.ProgramID() }

// InitializeMarketArgs are the references a market is created with.
type InitializeMarketArgs struct {
	Vault           solana.PublicKey
	Oracle          solana.PublicKey
	CollateralToken solana.PublicKey
}

// InitializeVaultArgs configure a vault.
type InitializeVaultArgs struct {
	Market  solana.PublicKey
	UtilPct uint64
}

// VaultSetup is everything InitializeVault created.
type VaultSetup struct {
	Vault          *model.Vault   `json:"vault"`
	Addresses      *pda.Addresses `json:"addresses"`
	ShareMint      *token.Mint    `json:"share_mint"`
	CustodyAccount *token.Account `json:"custody_account"`
}

// invocation accumulates what one operation did, for logging and events
// after commit.
type invocation struct {
	id      string
	started time.Time
	changes []events.Event
}

func (p *Program) begin() *invocation {
	return &invocation{id: uuid.NewString(), started: time.Now()}
}

func (inv *invocation) record(typ events.Type, kind model.Kind, addr, owner solana.PublicKey) {
	inv.changes = append(inv.changes, events.Event{
		Type:         typ,
		Kind:         kind,
		Address:      addr,
		Owner:        owner,
		InvocationID: inv.id,
	})
}

// finish records metrics and, on success, publishes the invocation's events.
func (p *Program) finish(ctx context.Context, inv *invocation, record string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.InitializationsTotal.WithLabelValues(record, result).Inc()
	metrics.InitializationLatency.WithLabelValues(record).Observe(time.Since(inv.started).Seconds())
	if err != nil {
		slog.Error("initialization failed", "record", record, "invocation_id", inv.id, "error", err)
		return
	}

	now := p.now()
	for _, evt := range inv.changes {
		if evt.Type == events.AccountCreated {
			metrics.AccountsAllocated.WithLabelValues(string(evt.Kind)).Inc()
		}
		evt.Timestamp = now
		if err := p.events.Publish(ctx, evt); err != nil {
			metrics.EventPublishFailures.WithLabelValues("publisher").Inc()
			slog.Warn("event publish failed", "type", evt.Type, "address", evt.Address, "invocation_id", inv.id, "error", err)
		}
	}
}

// InitializeMarket creates the market record, or re-seeds it if it already
// exists. Re-seeding replaces the references and zeroes the open-interest
// counters; it goes through the audited reset path.
func (p *Program) InitializeMarket(ctx context.Context, payer solana.PublicKey, args InitializeMarketArgs) (*model.Market, error) {
	return p.initializeMarket(ctx, payer, args, false)
}

// ResetMarket re-seeds an existing market. It fails with
// ErrMarketNotInitialized when there is nothing to reset.
func (p *Program) ResetMarket(ctx context.Context, payer solana.PublicKey, args InitializeMarketArgs) (*model.Market, error) {
	return p.initializeMarket(ctx, payer, args, true)
}

func (p *Program) initializeMarket(ctx context.Context, payer solana.PublicKey, args InitializeMarketArgs, requireExisting bool) (m *model.Market, err error) {
	inv := p.begin()
	defer func() { p.finish(ctx, inv, string(model.KindMarket), err) }()

	addr, err := p.deriver.Derive(pda.LabelMarketState, nil)
	if err != nil {
		return nil, classify(err)
	}

	var prior *model.Market
	err = p.store.Atomic(ctx, func(tx store.Tx) error {
		if requireExisting {
			if _, err := tx.GetAccount(ctx, addr.Address); err != nil {
				if errors.Is(err, store.ErrAccountNotFound) {
					return ErrMarketNotInitialized
				}
				return err
			}
		}

		acct, created, err := tx.Allocate(ctx, store.Allocation{
			Address: addr.Address,
			Owner:   p.ProgramID(),
			Space:   model.MarketSpace,
			Payer:   payer,
			Policy:  store.CreateOrReuse,
		})
		if err != nil {
			return fmt.Errorf("allocate market %s: %w", addr.Address, err)
		}
		if !model.IsZeroed(acct.Data) {
			if prior, err = model.DecodeMarket(acct.Data); err != nil {
				return fmt.Errorf("market %s: %w", addr.Address, err)
			}
		}

		m = model.NewMarket(args.Vault, args.Oracle, args.CollateralToken, addr.Bump)
		data, err := m.Encode()
		if err != nil {
			return err
		}
		if err := tx.WriteData(ctx, addr.Address, data); err != nil {
			return fmt.Errorf("write market %s: %w", addr.Address, err)
		}

		if created {
			inv.record(events.AccountCreated, model.KindMarket, addr.Address, p.ProgramID())
		} else {
			inv.record(events.AccountWritten, model.KindMarket, addr.Address, p.ProgramID())
		}
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}

	if prior != nil {
		p.auditReset(inv, addr.Address, payer, prior, m)
	}
	slog.Info("market initialized",
		"market", addr.Address,
		"vault", m.Vault,
		"oracle", m.Oracle,
		"collateral_token", m.CollateralToken,
		"bump", m.Bump,
		"reset", prior != nil,
		"invocation_id", inv.id,
	)
	return m, nil
}

// auditReset reports a market overwrite. Any open interest the prior record
// carried is gone after this point.
func (p *Program) auditReset(inv *invocation, addr, payer solana.PublicKey, prior, next *model.Market) {
	metrics.MarketResetsTotal.Inc()
	inv.record(events.MarketReset, model.KindMarket, addr, p.ProgramID())
	slog.Warn("market reset",
		"market", addr,
		"payer", payer,
		"prior_vault", prior.Vault,
		"prior_oracle", prior.Oracle,
		"prior_collateral_token", prior.CollateralToken,
		"prior_oi_usd_long", prior.OpenInterestUsdLong,
		"prior_oi_usd_short", prior.OpenInterestUsdShort,
		"prior_oi_underlying_long", prior.OpenInterestUnderlyingLong,
		"prior_oi_underlying_short", prior.OpenInterestUnderlyingShort,
		"had_open_interest", prior.HasOpenInterest(),
		"vault", next.Vault,
		"invocation_id", inv.id,
	)
}

// InitializeVault creates the vault record, its share mint and its custody
// account for underlyingMint. The share mint and custody account must not
// exist yet, so a second call fails with ErrAlreadyExists and changes
// nothing.
func (p *Program) InitializeVault(ctx context.Context, payer, underlyingMint solana.PublicKey, args InitializeVaultArgs) (setup *VaultSetup, err error) {
	inv := p.begin()
	defer func() { p.finish(ctx, inv, string(model.KindVault), err) }()

	addrs, err := p.deriver.All(underlyingMint)
	if err != nil {
		return nil, classify(err)
	}
	signer, err := p.deriver.Signer(pda.LabelCustodySigner)
	if err != nil {
		return nil, classify(err)
	}
	if !signer.Verify(p.ProgramID()) {
		return nil, fmt.Errorf("custody signer %s: %w", signer.Address(), ErrBumpMismatch)
	}

	setup = &VaultSetup{Addresses: addrs}
	err = p.store.Atomic(ctx, func(tx store.Tx) error {
		underlying, err := p.tokens.GetMint(ctx, tx, underlyingMint)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidUnderlyingMint, err)
		}

		acct, created, err := tx.Allocate(ctx, store.Allocation{
			Address: addrs.Vault.Address,
			Owner:   p.ProgramID(),
			Space:   model.VaultSpace,
			Payer:   payer,
			Policy:  store.CreateOrReuse,
		})
		if err != nil {
			return fmt.Errorf("allocate vault %s: %w", addrs.Vault.Address, err)
		}
		if !model.IsZeroed(acct.Data) && !model.IsVault(acct.Data) {
			return fmt.Errorf("vault %s: %w", addrs.Vault.Address, model.ErrInvalidDiscriminator)
		}
		if created {
			inv.record(events.AccountCreated, model.KindVault, addrs.Vault.Address, p.ProgramID())
		}

		if setup.ShareMint, err = p.tokens.InitializeMint(ctx, tx, token.MintParams{
			Address:       addrs.ShareMint.Address,
			Payer:         payer,
			Decimals:      underlying.Decimals,
			MintAuthority: signer.Address(),
		}); err != nil {
			return err
		}
		inv.record(events.AccountCreated, model.KindMint, addrs.ShareMint.Address, p.tokens.ProgramID())

		if setup.CustodyAccount, err = p.tokens.InitializeAccount(ctx, tx, token.AccountParams{
			Address: addrs.CustodyAccount.Address,
			Payer:   payer,
			Mint:    underlyingMint,
			Owner:   signer.Address(),
		}); err != nil {
			return err
		}
		inv.record(events.AccountCreated, model.KindTokenAccount, addrs.CustodyAccount.Address, p.tokens.ProgramID())

		setup.Vault = model.NewVault(args.Market, args.UtilPct, addrs.ShareMint.Address, signer.Bump())
		data, err := setup.Vault.Encode()
		if err != nil {
			return err
		}
		if err := tx.WriteData(ctx, addrs.Vault.Address, data); err != nil {
			return fmt.Errorf("write vault %s: %w", addrs.Vault.Address, err)
		}
		if !created {
			inv.record(events.AccountWritten, model.KindVault, addrs.Vault.Address, p.ProgramID())
		}
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}

	slog.Info("vault initialized",
		"vault", addrs.Vault.Address,
		"market", setup.Vault.Market,
		"underlying_mint", underlyingMint,
		"share_mint", addrs.ShareMint.Address,
		"custody_account", addrs.CustodyAccount.Address,
		"custody_signer", signer.Address(),
		"decimals", setup.ShareMint.Decimals,
		"max_util_percentage", setup.Vault.MaxUtilPercentage,
		"invocation_id", inv.id,
	)
	return setup, nil
}

// Market reads the market record.
func (p *Program) Market(ctx context.Context) (*model.Market, error) {
	addr, err := p.deriver.Derive(pda.LabelMarketState, nil)
	if err != nil {
		return nil, classify(err)
	}
	acct, err := p.store.GetAccount(ctx, addr.Address)
	if errors.Is(err, store.ErrAccountNotFound) {
		return nil, ErrMarketNotInitialized
	}
	if err != nil {
		return nil, err
	}
	m, err := model.DecodeMarket(acct.Data)
	if err != nil {
		return nil, err
	}
	if !pda.Verify(p.ProgramID(), pda.LabelMarketState, nil, pda.Derived{Address: addr.Address, Bump: m.Bump}) {
		return nil, fmt.Errorf("market %s bump %d: %w", addr.Address, m.Bump, ErrBumpMismatch)
	}
	return m, nil
}

// Vault reads the vault record.
func (p *Program) Vault(ctx context.Context) (*model.Vault, error) {
	addr, err := p.deriver.Derive(pda.LabelVaultState, nil)
	if err != nil {
		return nil, classify(err)
	}
	acct, err := p.store.GetAccount(ctx, addr.Address)
	if errors.Is(err, store.ErrAccountNotFound) {
		return nil, ErrVaultNotInitialized
	}
	if err != nil {
		return nil, err
	}
	v, err := model.DecodeVault(acct.Data)
	if err != nil {
		return nil, err
	}
	// The vault stores the custody signer's bump.
	signer, err := p.deriver.Signer(pda.LabelCustodySigner)
	if err != nil {
		return nil, classify(err)
	}
	if !pda.Verify(p.ProgramID(), pda.LabelCustodySigner, nil, pda.Derived{Address: signer.Address(), Bump: v.PdaBump}) {
		return nil, fmt.Errorf("vault %s bump %d: %w", addr.Address, v.PdaBump, ErrBumpMismatch)
	}
	return v, nil
}

// Addresses derives every record address for a vault over underlyingMint.
func (p *Program) Addresses(underlyingMint solana.PublicKey) (*pda.Addresses, error) {
	addrs, err := p.deriver.All(underlyingMint)
	if err != nil {
		return nil, classify(err)
	}
	return addrs, nil
}
