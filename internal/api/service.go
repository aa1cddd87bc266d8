// Package api provides the HTTP handlers for the bootstrap program:
// initializing the market and vault, reading records back, and a
// development faucet.
package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gagliardetto/solana-go"
	"github.com/go-chi/chi/v5"

	"github.com/limitless/market-engine/internal/bootstrap"
	"github.com/limitless/market-engine/internal/instruction"
	"github.com/limitless/market-engine/internal/model"
	"github.com/limitless/market-engine/internal/store"
	"github.com/limitless/market-engine/internal/token"
)

// Service handles bootstrap requests. Payers authorize an initializer by
// signing its instruction data.
type Service struct {
	program *bootstrap.Program
	store   store.Store
	tokens  *token.Service
}

// NewService creates a new API service.
func NewService(program *bootstrap.Program, st store.Store, tokens *token.Service) *Service {
	return &Service{program: program, store: st, tokens: tokens}
}

// --- Request/Response types ---

// InitializeVaultRequest is the JSON body for POST /vault/initialize.
// Keys and the signature are base58. Data, when set, is the base64
// instruction data the payer signed and takes the place of Market and
// UtilPct.
type InitializeVaultRequest struct {
	Payer          string `json:"payer"`
	Signature      string `json:"signature"` // payer over program_id || instruction data
	UnderlyingMint string `json:"underlying_mint"`
	Market         string `json:"market,omitempty"`
	UtilPct        uint64 `json:"util_pct,omitempty"`
	Data           string `json:"data,omitempty"`
}

// InitializeMarketRequest is the JSON body for POST /market/initialize and
// POST /market/reset.
type InitializeMarketRequest struct {
	Payer           string `json:"payer"`
	Signature       string `json:"signature"`
	Vault           string `json:"vault,omitempty"`
	Oracle          string `json:"oracle,omitempty"`
	CollateralToken string `json:"collateral_token,omitempty"`
	Data            string `json:"data,omitempty"`
}

// AccountResponse is a raw account plus its decoded record, when recognized.
type AccountResponse struct {
	*model.Account
	Kind   model.Kind `json:"kind"`
	Record any        `json:"record,omitempty"`
}

// --- HTTP Handlers ---

// InitializeVault handles POST /api/v1/vault/initialize
func (s *Service) InitializeVault(w http.ResponseWriter, r *http.Request) {
	var req InitializeVaultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	fields := map[string]string{
		"payer":           req.Payer,
		"underlying_mint": req.UnderlyingMint,
	}
	if req.Data == "" {
		fields["market"] = req.Market
	}
	keys, err := parseKeys(fields)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var ix *instruction.InitializeVault
	var data []byte
	if req.Data != "" {
		data, ix, err = decodeData[*instruction.InitializeVault](req.Data)
	} else {
		ix = &instruction.InitializeVault{Market: keys["market"], UtilPct: req.UtilPct}
		data, err = ix.Data()
	}
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if status, err := s.authorize(keys["payer"], req.Signature, data); err != nil {
		writeError(w, err.Error(), status)
		return
	}

	setup, err := s.program.InitializeVault(r.Context(), keys["payer"], keys["underlying_mint"],
		bootstrap.InitializeVaultArgs{Market: ix.Market, UtilPct: ix.UtilPct})
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, http.StatusCreated, setup)
}

// InitializeMarket handles POST /api/v1/market/initialize
func (s *Service) InitializeMarket(w http.ResponseWriter, r *http.Request) {
	s.seedMarket(w, r, s.program.InitializeMarket)
}

// ResetMarket handles POST /api/v1/market/reset. It only re-seeds an
// existing market and answers 404 otherwise.
func (s *Service) ResetMarket(w http.ResponseWriter, r *http.Request) {
	s.seedMarket(w, r, s.program.ResetMarket)
}

type marketSeeder func(ctx context.Context, payer solana.PublicKey, args bootstrap.InitializeMarketArgs) (*model.Market, error)

func (s *Service) seedMarket(w http.ResponseWriter, r *http.Request, seed marketSeeder) {
	var req InitializeMarketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	fields := map[string]string{"payer": req.Payer}
	if req.Data == "" {
		fields["vault"] = req.Vault
		fields["oracle"] = req.Oracle
		fields["collateral_token"] = req.CollateralToken
	}
	keys, err := parseKeys(fields)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var ix *instruction.InitializeMarket
	var data []byte
	if req.Data != "" {
		data, ix, err = decodeData[*instruction.InitializeMarket](req.Data)
	} else {
		ix = &instruction.InitializeMarket{
			Vault:           keys["vault"],
			Oracle:          keys["oracle"],
			CollateralToken: keys["collateral_token"],
		}
		data, err = ix.Data()
	}
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if status, err := s.authorize(keys["payer"], req.Signature, data); err != nil {
		writeError(w, err.Error(), status)
		return
	}

	m, err := seed(r.Context(), keys["payer"], bootstrap.InitializeMarketArgs{
		Vault:           ix.Vault,
		Oracle:          ix.Oracle,
		CollateralToken: ix.CollateralToken,
	})
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, m)
}

// GetMarket handles GET /api/v1/market
func (s *Service) GetMarket(w http.ResponseWriter, r *http.Request) {
	m, err := s.program.Market(r.Context())
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// GetVault handles GET /api/v1/vault
func (s *Service) GetVault(w http.ResponseWriter, r *http.Request) {
	v, err := s.program.Vault(r.Context())
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// GetAddresses handles GET /api/v1/addresses?underlying_mint=...
func (s *Service) GetAddresses(w http.ResponseWriter, r *http.Request) {
	mint, err := solana.PublicKeyFromBase58(r.URL.Query().Get("underlying_mint"))
	if err != nil {
		writeError(w, "underlying_mint: invalid address", http.StatusBadRequest)
		return
	}
	addrs, err := s.program.Addresses(mint)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, addrs)
}

// GetAccount handles GET /api/v1/accounts/{address}
func (s *Service) GetAccount(w http.ResponseWriter, r *http.Request) {
	addr, err := solana.PublicKeyFromBase58(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, "invalid address", http.StatusBadRequest)
		return
	}

	acct, err := s.store.GetAccount(r.Context(), addr)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, s.describe(r.Context(), acct))
}

// ListAccounts handles GET /api/v1/accounts?owner=...
func (s *Service) ListAccounts(w http.ResponseWriter, r *http.Request) {
	owner, err := solana.PublicKeyFromBase58(r.URL.Query().Get("owner"))
	if err != nil {
		writeError(w, "owner: invalid address", http.StatusBadRequest)
		return
	}

	accounts, err := s.store.ListAccounts(r.Context(), owner)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}

	resp := make([]AccountResponse, 0, len(accounts))
	for i := range accounts {
		resp = append(resp, s.describe(r.Context(), &accounts[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// describe classifies an account by owner and decodes the records this
// service knows about.
func (s *Service) describe(ctx context.Context, acct *model.Account) AccountResponse {
	resp := AccountResponse{Account: acct}
	switch {
	case acct.Owner.Equals(solana.SystemProgramID):
		resp.Kind = model.KindSystem
	case acct.Owner.Equals(s.program.ProgramID()) && model.IsMarket(acct.Data):
		resp.Kind = model.KindMarket
		if m, err := model.DecodeMarket(acct.Data); err == nil {
			resp.Record = m
		}
	case acct.Owner.Equals(s.program.ProgramID()) && model.IsVault(acct.Data):
		resp.Kind = model.KindVault
		if v, err := model.DecodeVault(acct.Data); err == nil {
			resp.Record = v
		}
	case acct.Owner.Equals(s.tokens.ProgramID()) && len(acct.Data) == token.MintSize:
		resp.Kind = model.KindMint
		if m, err := s.tokens.GetMint(ctx, s.store, acct.Address); err == nil {
			resp.Record = m
		}
	case acct.Owner.Equals(s.tokens.ProgramID()) && len(acct.Data) == token.AccountSize:
		resp.Kind = model.KindTokenAccount
		if a, err := s.tokens.GetAccount(ctx, s.store, acct.Address); err == nil {
			resp.Record = a
		}
	}
	return resp
}

// authorize checks the payer's signature over data. It returns the HTTP
// status to reply with on failure.
func (s *Service) authorize(payer solana.PublicKey, signature string, data []byte) (int, error) {
	if signature == "" {
		return http.StatusUnauthorized, instruction.ErrMissingSignature
	}
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return http.StatusBadRequest, fmt.Errorf("signature: %w", err)
	}
	if err := instruction.VerifyPayer(s.program.ProgramID(), payer, sig, data); err != nil {
		slog.Warn("payer signature rejected", "payer", payer, "error", err)
		return http.StatusUnauthorized, err
	}
	return 0, nil
}

// --- Helpers ---

// decodeData parses base64 instruction data and checks it is a T.
func decodeData[T any](encoded string) ([]byte, T, error) {
	var zero T
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, zero, fmt.Errorf("data: %w", err)
	}
	decoded, err := instruction.Decode(data)
	if err != nil {
		return nil, zero, fmt.Errorf("data: %w", err)
	}
	ix, ok := decoded.(T)
	if !ok {
		return nil, zero, fmt.Errorf("data: unexpected instruction %T", decoded)
	}
	return data, ix, nil
}

func parseKeys(fields map[string]string) (map[string]solana.PublicKey, error) {
	keys := make(map[string]solana.PublicKey, len(fields))
	for name, v := range fields {
		if v == "" {
			return nil, fmt.Errorf("%s is required", name)
		}
		k, err := solana.PublicKeyFromBase58(v)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid address", name)
		}
		keys[name] = k
	}
	return keys, nil
}

// statusFor maps bootstrap and store errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, bootstrap.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, bootstrap.ErrAllocationFailure):
		return http.StatusUnprocessableEntity
	case errors.Is(err, bootstrap.ErrInvalidUnderlyingMint):
		return http.StatusBadRequest
	case errors.Is(err, bootstrap.ErrMarketNotInitialized),
		errors.Is(err, bootstrap.ErrVaultNotInitialized),
		errors.Is(err, store.ErrAccountNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
