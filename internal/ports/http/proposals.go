package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"multisig-dashboard/internal/app"
	"multisig-dashboard/internal/blockchain/squads"
	"multisig-dashboard/internal/model"
	"multisig-dashboard/internal/ports/http/middleware/auth"
)

const maxBodySize = 1 << 16

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("failed to parse the request body: " + err.Error())
	}
	return nil
}

// prepareAction returns the approve, reject, cancel or execute transaction for
// the connected wallet to sign.
func (ser *server) prepareAction(w http.ResponseWriter, r *http.Request) {
	member, ok := auth.Wallet(r.Context())
	if !ok {
		ser.fail(w, app.ErrWalletNotConnected)
		return
	}
	multisig, ok := ser.multisigParam(w, r)
	if !ok {
		return
	}
	index, ok := ser.indexParam(w, r)
	if !ok {
		return
	}

	action := model.Action(mux.Vars(r)["action"])
	switch action {
	case model.ActionApprove, model.ActionReject, model.ActionCancel, model.ActionExecute:
	default:
		ser.badRequest(w, fmt.Sprintf("unknown action %q", action))
		return
	}

	ctx, cancel := ser.requestContext(r)
	defer cancel()

	prepared, err := ser.app.Prepare(ctx, member, multisig, index, action)
	if err != nil {
		ser.fail(w, err)
		return
	}
	ser.logger.Info("transaction prepared",
		zap.String("action", string(action)),
		zap.String("multisig", multisig.String()),
		zap.Uint64("index", index),
		zap.String("member", member.String()))
	ser.respond(w, http.StatusOK, newPreparedTransaction(prepared))
}

type transferRequest struct {
	VaultIndex int    `json:"vaultIndex"`
	Recipient  string `json:"recipient"`
	Mint       string `json:"mint,omitempty"`
	Amount     string `json:"amount"`
	Memo       string `json:"memo,omitempty"`
}

func (t transferRequest) parse() (app.TransferRequest, error) {
	var (
		req  app.TransferRequest
		errs error
		err  error
	)

	if req.VaultIndex, err = squads.VaultIndexFromInt(t.VaultIndex); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("vaultIndex: %w", err))
	}
	if req.Recipient, err = squads.ParseAddress(t.Recipient); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("recipient: %w", err))
	}
	if t.Mint != "" {
		if req.Mint, err = squads.ParseAddress(t.Mint); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("mint: %w", err))
		}
	}
	if req.Amount, err = decimal.NewFromString(t.Amount); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("amount: %w", err))
	}
	req.Memo = t.Memo

	return req, errs
}

func (ser *server) prepareTransfer(w http.ResponseWriter, r *http.Request) {
	member, ok := auth.Wallet(r.Context())
	if !ok {
		ser.fail(w, app.ErrWalletNotConnected)
		return
	}
	multisig, ok := ser.multisigParam(w, r)
	if !ok {
		return
	}

	var body transferRequest
	if err := decodeBody(r, &body); err != nil {
		ser.badRequest(w, err.Error())
		return
	}
	req, err := body.parse()
	if err != nil {
		ser.badRequest(w, err.Error())
		return
	}
	req.Multisig = multisig

	ctx, cancel := ser.requestContext(r)
	defer cancel()

	prepared, err := ser.app.PrepareTransfer(ctx, member, req)
	if err != nil {
		ser.fail(w, err)
		return
	}
	ser.respond(w, http.StatusOK, newPreparedTransaction(prepared))
}
