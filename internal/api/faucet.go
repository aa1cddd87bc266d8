package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gagliardetto/solana-go"

	"github.com/limitless/market-engine/internal/model"
	"github.com/limitless/market-engine/internal/store"
	"github.com/limitless/market-engine/internal/token"
)

const (
	// DefaultAirdrop is credited when a request names no amount (1 SOL).
	DefaultAirdrop uint64 = 1_000_000_000
	// MaxAirdrop caps a single airdrop.
	MaxAirdrop uint64 = 1000 * DefaultAirdrop
)

// Faucet funds payers and creates underlying mints on development
// deployments. It must not be mounted in production.
type Faucet struct {
	store  store.Store
	tokens *token.Service
	funder solana.PublicKey
}

// NewFaucet creates a faucet with its own funding account.
func NewFaucet(st store.Store, tokens *token.Service) *Faucet {
	return &Faucet{store: st, tokens: tokens, funder: solana.NewWallet().PublicKey()}
}

// AirdropRequest is the JSON body for POST /dev/airdrop.
type AirdropRequest struct {
	Address  string `json:"address"`
	Lamports uint64 `json:"lamports"`
}

// CreateMintRequest is the JSON body for POST /dev/mints.
type CreateMintRequest struct {
	Decimals  uint8  `json:"decimals"`
	Authority string `json:"authority"` // optional, defaults to the faucet
}

// CreateMintResponse is returned from POST /dev/mints.
type CreateMintResponse struct {
	Address solana.PublicKey `json:"address"`
	Mint    *token.Mint      `json:"mint"`
}

// Airdrop handles POST /api/v1/dev/airdrop
func (f *Faucet) Airdrop(w http.ResponseWriter, r *http.Request) {
	var req AirdropRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	addr, err := solana.PublicKeyFromBase58(req.Address)
	if err != nil {
		writeError(w, "address: invalid address", http.StatusBadRequest)
		return
	}
	lamports := req.Lamports
	if lamports == 0 {
		lamports = DefaultAirdrop
	}
	if lamports > MaxAirdrop {
		writeError(w, fmt.Sprintf("lamports must be at most %d", MaxAirdrop), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if err := f.store.Credit(ctx, addr, lamports); err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	acct, err := f.store.GetAccount(ctx, addr)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}

	slog.Info("airdrop", "address", addr, "lamports", lamports, "balance", acct.Lamports)
	writeJSON(w, http.StatusOK, acct)
}

// CreateMint handles POST /api/v1/dev/mints
func (f *Faucet) CreateMint(w http.ResponseWriter, r *http.Request) {
	var req CreateMintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	authority := f.funder
	if req.Authority != "" {
		k, err := solana.PublicKeyFromBase58(req.Authority)
		if err != nil {
			writeError(w, "authority: invalid address", http.StatusBadRequest)
			return
		}
		authority = k
	}

	ctx := r.Context()
	addr := solana.NewWallet().PublicKey()
	if err := f.store.Credit(ctx, f.funder, model.MinimumBalance(token.MintSize)); err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}

	var mint *token.Mint
	err := f.store.Atomic(ctx, func(tx store.Tx) error {
		var err error
		mint, err = f.tokens.InitializeMint(ctx, tx, token.MintParams{
			Address:       addr,
			Payer:         f.funder,
			Decimals:      req.Decimals,
			MintAuthority: authority,
		})
		return err
	})
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}

	slog.Info("mint created", "address", addr, "decimals", req.Decimals, "authority", authority)
	writeJSON(w, http.StatusCreated, CreateMintResponse{Address: addr, Mint: mint})
}
