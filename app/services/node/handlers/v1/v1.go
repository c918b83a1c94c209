// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"github.com/ardanlabs/puzzlekit/app/services/node/handlers/v1/private"
	"github.com/ardanlabs/puzzlekit/app/services/node/handlers/v1/public"
	"github.com/ardanlabs/puzzlekit/business/core/wallet"
	"github.com/ardanlabs/puzzlekit/business/puzzles"
	"github.com/ardanlabs/puzzlekit/foundation/blockchain/database"
	"github.com/ardanlabs/puzzlekit/foundation/events"
	"github.com/ardanlabs/puzzlekit/foundation/web"
	"go.uber.org/zap"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log     *zap.SugaredLogger
	Library puzzles.Library
	Store   *database.Database
	Wallet  *wallet.Wallet
	Evts    *events.Events
}

// PublicRoutes binds all the version 1 public routes.
func PublicRoutes(app *web.App, cfg Config) {
	pbl := public.Handlers{
		Log:     cfg.Log,
		Library: cfg.Library,
		Store:   cfg.Store,
		Wallet:  cfg.Wallet,
		Evts:    cfg.Evts,
	}

	app.Handle(http.MethodGet, version, "/events", pbl.Events)
	app.Handle(http.MethodPost, version, "/clvm/treehash", pbl.TreeHash)
	app.Handle(http.MethodPost, version, "/clvm/curry", pbl.Curry)
	app.Handle(http.MethodPost, version, "/clvm/uncurry", pbl.Uncurry)
	app.Handle(http.MethodPost, version, "/merkle/proof", pbl.MerkleProof)
	app.Handle(http.MethodPost, version, "/vault/hash", pbl.VaultHash)
	app.Handle(http.MethodGet, version, "/coins/list/:puzzlehash", pbl.Coins)
	app.Handle(http.MethodGet, version, "/coins/state/:coinid", pbl.CoinState)
	app.Handle(http.MethodGet, version, "/balances/:name", pbl.Balance)
	app.Handle(http.MethodPost, version, "/spends/send", pbl.Send)
}

// PrivateRoutes binds all the version 1 private routes.
func PrivateRoutes(app *web.App, cfg Config) {
	prv := private.Handlers{
		Log:    cfg.Log,
		Store:  cfg.Store,
		Wallet: cfg.Wallet,
		Evts:   cfg.Evts,
	}

	app.Handle(http.MethodGet, version, "/node/status", prv.Status)
	app.Handle(http.MethodPost, version, "/node/coins/add", prv.AddCoins)
	app.Handle(http.MethodPost, version, "/node/spends/apply", prv.ApplySpends)
	app.Handle(http.MethodPost, version, "/node/reset", prv.Reset)
}
