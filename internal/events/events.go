// Package events announces account changes made by the bootstrap program to
// downstream consumers (websocket clients, NATS subscribers).
package events

import (
	"context"
	"errors"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/limitless/market-engine/internal/model"
)

// Type is what happened to an account.
type Type string

const (
	AccountCreated Type = "account_created"
	AccountWritten Type = "account_written"
	MarketReset    Type = "market_reset"
)

// Event describes one account change, emitted after the invocation that
// caused it committed.
type Event struct {
	Type         Type             `json:"type"`
	Kind         model.Kind       `json:"kind"`
	Address      solana.PublicKey `json:"address"`
	Owner        solana.PublicKey `json:"owner"`
	InvocationID string           `json:"invocation_id"`
	Timestamp    time.Time        `json:"timestamp"`
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Fanout publishes every event to each of its publishers. An empty Fanout
// drops events.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, evt Event) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
