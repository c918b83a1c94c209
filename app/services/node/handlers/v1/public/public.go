// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ardanlabs/puzzlekit/business/core/program"
	"github.com/ardanlabs/puzzlekit/business/core/wallet"
	"github.com/ardanlabs/puzzlekit/business/puzzles"
	"github.com/ardanlabs/puzzlekit/business/web/errs"
	"github.com/ardanlabs/puzzlekit/foundation/blockchain/database"
	"github.com/ardanlabs/puzzlekit/foundation/clvm"
	"github.com/ardanlabs/puzzlekit/foundation/events"
	"github.com/ardanlabs/puzzlekit/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of public node endpoints.
type Handlers struct {
	Log     *zap.SugaredLogger
	Library puzzles.Library
	Store   *database.Database
	Wallet  *wallet.Wallet
	WS      websocket.Upgrader
	Evts    *events.Events
}

// Events handles a web socket to provide events to a client. The topic
// query parameter takes a comma separated list of topics to receive.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var topics []string
	if t := r.URL.Query().Get("topic"); t != "" {
		topics = strings.Split(t, ",")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID, topics...)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case evt, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteJSON(evt); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// TreeHash returns the tree hash of a program.
func (h Handlers) TreeHash(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req programRequest
	if err := web.Decode(r, &req); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	hash, err := program.TreeHash(req.Program)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	return web.Respond(ctx, w, treeHash{TreeHash: hash}, http.StatusOK)
}

// Curry binds arguments to a mod.
func (h Handlers) Curry(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req curryRequest
	if err := web.Decode(r, &req); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	curried, err := program.Curry(req.Mod, req.Args)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	return web.Respond(ctx, w, curried, http.StatusOK)
}

// Uncurry splits a curried program into its mod and arguments.
func (h Handlers) Uncurry(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req programRequest
	if err := web.Decode(r, &req); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	u, err := program.Uncurry(req.Program)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	return web.Respond(ctx, w, u, http.StatusOK)
}

// MerkleProof proves a leaf is part of a list of leaves.
func (h Handlers) MerkleProof(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req proofRequest
	if err := web.Decode(r, &req); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	mp, err := program.Proof(req.Leaves, req.Leaf)
	if err != nil {
		if errors.Is(err, program.ErrLeafMissing) {
			return errs.NewTrusted(err, http.StatusNotFound)
		}
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	return web.Respond(ctx, w, mp, http.StatusOK)
}

// VaultHash returns the custody hash of a described vault.
func (h Handlers) VaultHash(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req vaultRequest
	if err := web.Decode(r, &req); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	hash, err := program.VaultHash(h.Library, req.toCustody())
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	return web.Respond(ctx, w, vaultHash{CustodyHash: hash}, http.StatusOK)
}

// Coins returns the unspent coins of a puzzle hash or key name.
func (h Handlers) Coins(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	ph, err := h.Wallet.Resolve(web.Param(r, "puzzlehash"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	unspent := h.Store.UnspentCoins(ph)

	resp := coins{
		PuzzleHash: ph,
		Owner:      h.Wallet.Lookup(ph),
		Coins:      h.toCoins(unspent),
	}
	for _, c := range unspent {
		resp.Balance += c.Amount
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// CoinState returns when a coin was created and spent.
func (h Handlers) CoinState(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	id, err := clvm.ParseBytes32(web.Param(r, "coinid"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	state, err := h.Store.CoinState(id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return errs.NewTrusted(err, http.StatusNotFound)
		}
		return err
	}

	return web.Respond(ctx, w, state, http.StatusOK)
}

// Balance returns the balance of a named key.
func (h Handlers) Balance(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	name := web.Param(r, "name")

	ph, amount, err := h.Wallet.Balance(name)
	if err != nil {
		return errs.NewTrusted(err, http.StatusNotFound)
	}

	return web.Respond(ctx, w, balance{Name: name, PuzzleHash: ph, Balance: amount}, http.StatusOK)
}

// Send plans a payment from a named key over the stored coins and returns
// the coin spends. With commit set the spends are applied to the store.
func (h Handlers) Send(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var req sendRequest
	if err := web.Decode(r, &req); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	to, err := h.Wallet.Resolve(req.To)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	send := wallet.Send{
		From:   req.From,
		To:     to,
		Amount: req.Amount,
		Fee:    req.Fee,
	}
	for _, m := range req.Memos {
		b, err := clvm.DecodeHex(m)
		if err != nil {
			return errs.NewTrusted(err, http.StatusBadRequest)
		}
		send.Memos = append(send.Memos, b)
	}

	h.Log.Infow("send", "traceid", v.TraceID, "from", req.From, "to", to, "amount", req.Amount, "fee", req.Fee, "commit", req.Commit)

	plan, err := h.Wallet.Plan(send)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	resp := sendResponse{
		Selected:   h.toCoins(plan.Selected),
		CoinSpends: plan.CoinSpends,
		Additions:  h.toCoins(plan.Additions),
		Fee:        plan.Fee,
	}

	if req.Commit {
		height, err := h.Wallet.Commit(plan)
		if err != nil {
			return errs.NewTrusted(err, http.StatusConflict)
		}
		resp.Height = height
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

func (h Handlers) toCoins(cs []database.Coin) []coin {
	out := make([]coin, len(cs))
	for i, c := range cs {
		out[i] = coin{
			CoinID:     c.CoinID(),
			Parent:     c.ParentCoinInfo,
			PuzzleHash: c.PuzzleHash,
			Owner:      h.Wallet.Lookup(c.PuzzleHash),
			Amount:     c.Amount,
		}
	}
	return out
}
