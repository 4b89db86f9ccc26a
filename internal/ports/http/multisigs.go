package http

import (
	"net/http"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/gorilla/mux"

	"multisig-dashboard/internal/blockchain/squads"
	"multisig-dashboard/internal/ports/http/middleware/auth"
)

func (ser *server) multisigParam(w http.ResponseWriter, r *http.Request) (solana.PublicKey, bool) {
	multisig, err := squads.ParseAddress(mux.Vars(r)["multisig"])
	if err != nil {
		ser.badRequest(w, "multisig: "+err.Error())
		return solana.PublicKey{}, false
	}
	return multisig, true
}

func (ser *server) indexParam(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	index, err := strconv.ParseUint(mux.Vars(r)["index"], 10, 64)
	if err != nil {
		ser.badRequest(w, "index: "+err.Error())
		return 0, false
	}
	return index, true
}

func (ser *server) getMultisig(w http.ResponseWriter, r *http.Request) {
	multisig, ok := ser.multisigParam(w, r)
	if !ok {
		return
	}

	ctx, cancel := ser.requestContext(r)
	defer cancel()

	ms, err := ser.app.GetMultisig(ctx, multisig)
	if err != nil {
		ser.fail(w, err)
		return
	}
	ser.respond(w, http.StatusOK, newRetrievedMultisig(ms))
}

// getApprovals serves the approval view; the connected wallet, if any, is marked.
func (ser *server) getApprovals(w http.ResponseWriter, r *http.Request) {
	multisig, ok := ser.multisigParam(w, r)
	if !ok {
		return
	}
	index, ok := ser.indexParam(w, r)
	if !ok {
		return
	}
	connected, _ := auth.Wallet(r.Context())

	ctx, cancel := ser.requestContext(r)
	defer cancel()

	view, err := ser.app.ApprovalView(ctx, multisig, index, connected)
	if err != nil {
		ser.fail(w, err)
		return
	}
	ser.respond(w, http.StatusOK, newApprovalView(view))
}

func (ser *server) getPortfolio(w http.ResponseWriter, r *http.Request) {
	multisig, ok := ser.multisigParam(w, r)
	if !ok {
		return
	}

	ctx, cancel := ser.requestContext(r)
	defer cancel()

	p, err := ser.app.Portfolio(ctx, multisig)
	if err != nil {
		ser.fail(w, err)
		return
	}
	ser.respond(w, http.StatusOK, newPortfolio(p))
}
