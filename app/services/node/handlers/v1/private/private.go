// Package private maintains the group of handlers for operator access to
// the coin store.
package private

import (
	"context"
	"errors"
	"net/http"

	"github.com/ardanlabs/puzzlekit/business/core/wallet"
	"github.com/ardanlabs/puzzlekit/business/web/errs"
	"github.com/ardanlabs/puzzlekit/foundation/blockchain/database"
	"github.com/ardanlabs/puzzlekit/foundation/events"
	"github.com/ardanlabs/puzzlekit/foundation/validate"
	"github.com/ardanlabs/puzzlekit/foundation/web"
	"go.uber.org/zap"
)

// Handlers manages the set of private node endpoints.
type Handlers struct {
	Log    *zap.SugaredLogger
	Store  *database.Database
	Wallet *wallet.Wallet
	Evts   *events.Events
}

type addCoinsRequest struct {
	Height uint32          `json:"height"`
	Coins  []database.Coin `json:"coins" validate:"required,min=1"`
}

// Validate checks the data in the model is considered clean.
func (r addCoinsRequest) Validate() error {
	return validate.Check(r)
}

type applyRequest struct {
	Height     uint32               `json:"height"`
	CoinSpends []database.CoinSpend `json:"coin_spends" validate:"required,min=1"`
	Additions  []database.Coin      `json:"additions"`
}

// Validate checks the data in the model is considered clean.
func (r applyRequest) Validate() error {
	return validate.Check(r)
}

type status struct {
	Peak uint32 `json:"peak"`
}

// Status returns the current peak of the coin store.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, status{Peak: h.Store.Peak()}, http.StatusOK)
}

// AddCoins records coins created outside the node, such as farmed coins
// or coins imported from another store.
func (h Handlers) AddCoins(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var req addCoinsRequest
	if err := web.Decode(r, &req); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	height := req.Height
	if height == 0 {
		height = h.Store.Peak() + 1
	}

	for _, c := range req.Coins {
		if err := h.Store.AddCoin(c, height); err != nil {
			if errors.Is(err, database.ErrDuplicate) {
				return errs.NewTrusted(err, http.StatusConflict)
			}
			return err
		}
		h.Evts.Send("coins", "coins: added: coin[%s] puzzle hash[%s] amount[%d] height[%d]", c.CoinID(), c.PuzzleHash, c.Amount, height)
	}

	h.Log.Infow("add coins", "traceid", v.TraceID, "coins", len(req.Coins), "height", height)

	return web.Respond(ctx, w, status{Peak: h.Store.Peak()}, http.StatusOK)
}

// ApplySpends marks coins spent and records the coins the spends created.
// Nothing changes when any spent coin is unknown or already spent.
func (h Handlers) ApplySpends(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var req applyRequest
	if err := web.Decode(r, &req); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	height := req.Height
	if height == 0 {
		height = h.Store.Peak() + 1
	}

	if err := h.Store.ApplySpends(height, req.CoinSpends, req.Additions); err != nil {
		switch {
		case errors.Is(err, database.ErrNotFound):
			return errs.NewTrusted(err, http.StatusNotFound)
		case errors.Is(err, database.ErrAlreadySpent), errors.Is(err, database.ErrDuplicate):
			return errs.NewTrusted(err, http.StatusConflict)
		}
		return err
	}

	h.Log.Infow("apply spends", "traceid", v.TraceID, "spends", len(req.CoinSpends), "additions", len(req.Additions), "height", height)

	return web.Respond(ctx, w, status{Peak: h.Store.Peak()}, http.StatusOK)
}

// Reset removes every coin from the store.
func (h Handlers) Reset(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	if err := h.Store.Reset(); err != nil {
		return err
	}

	h.Log.Infow("reset", "traceid", v.TraceID)
	h.Evts.Send("coins", "coins: reset")

	return web.Respond(ctx, w, nil, http.StatusNoContent)
}
