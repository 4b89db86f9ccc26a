package http

import (
	"net/http"

	"github.com/gagliardetto/solana-go"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"multisig-dashboard/internal/app"
	"multisig-dashboard/internal/blockchain/squads"
	"multisig-dashboard/internal/ports/http/middleware/auth"
)

func (ser *server) getWalletMultisig(w http.ResponseWriter, r *http.Request) {
	wallet, err := squads.ParseAddress(mux.Vars(r)["wallet"])
	if err != nil {
		ser.badRequest(w, "wallet: "+err.Error())
		return
	}

	ctx, cancel := ser.requestContext(r)
	defer cancel()

	multisig, err := ser.app.DefaultMultisig(ctx, wallet)
	if err != nil {
		ser.fail(w, err)
		return
	}
	ser.respond(w, http.StatusOK, walletMultisig{Wallet: wallet.String(), Multisig: multisig.String()})
}

type linkRequest struct {
	Multisig string `json:"multisig"`
}

// linkWalletMultisig stores the default multisig of the connected wallet.
func (ser *server) linkWalletMultisig(w http.ResponseWriter, r *http.Request) {
	wallet, err := squads.ParseAddress(mux.Vars(r)["wallet"])
	if err != nil {
		ser.badRequest(w, "wallet: "+err.Error())
		return
	}
	connected, ok := auth.Wallet(r.Context())
	if !ok {
		ser.fail(w, app.ErrWalletNotConnected)
		return
	}
	if !connected.Equals(wallet) {
		ser.writeError(w, http.StatusForbidden, "can only link the connected wallet")
		return
	}

	var req linkRequest
	if err := decodeBody(r, &req); err != nil {
		ser.badRequest(w, err.Error())
		return
	}
	multisig, err := squads.ParseAddress(req.Multisig)
	if err != nil {
		ser.badRequest(w, "multisig: "+err.Error())
		return
	}

	ctx, cancel := ser.requestContext(r)
	defer cancel()

	if err := ser.app.LinkMultisig(ctx, wallet, multisig); err != nil {
		ser.fail(w, err)
		return
	}
	ser.logger.Info("wallet linked", zap.String("wallet", wallet.String()), zap.String("multisig", multisig.String()))
	ser.respond(w, http.StatusOK, walletMultisig{Wallet: wallet.String(), Multisig: multisig.String()})
}

func (ser *server) getRecipients(w http.ResponseWriter, r *http.Request) {
	wallet, err := squads.ParseAddress(mux.Vars(r)["wallet"])
	if err != nil {
		ser.badRequest(w, "wallet: "+err.Error())
		return
	}

	recipients, err := ser.app.RecentRecipients(wallet)
	if err != nil {
		ser.serverError(w, "getting the recipients failed: "+err.Error())
		return
	}
	if recipients == nil {
		recipients = []solana.PublicKey{}
	}
	ser.respond(w, http.StatusOK, keyStrings(recipients))
}
