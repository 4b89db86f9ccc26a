package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"multisig-dashboard/internal/app"
	"multisig-dashboard/internal/blockchain"
	"multisig-dashboard/internal/blockchain/squads"
	"multisig-dashboard/internal/model"
	"multisig-dashboard/internal/ports/http/middleware/auth"
	"multisig-dashboard/internal/ports/http/middleware/cors"
)

// Dashboard is what the HTTP API serves; app.App implements it.
type Dashboard interface {
	DefaultMultisig(ctx context.Context, wallet solana.PublicKey) (solana.PublicKey, error)
	LinkMultisig(ctx context.Context, wallet, multisig solana.PublicKey) error
	RecentRecipients(wallet solana.PublicKey) ([]solana.PublicKey, error)
	GetMultisig(ctx context.Context, multisig solana.PublicKey) (model.Multisig, error)
	ApprovalView(ctx context.Context, multisig solana.PublicKey, index uint64, connected solana.PublicKey) (model.ApprovalView, error)
	Portfolio(ctx context.Context, multisig solana.PublicKey) (model.Portfolio, error)
	Prepare(ctx context.Context, member, multisig solana.PublicKey, index uint64, action model.Action) (app.Prepared, error)
	PrepareTransfer(ctx context.Context, member solana.PublicKey, req app.TransferRequest) (app.Prepared, error)
}

type server struct {
	app        Dashboard
	auth       auth.TokenValidator
	httpServer *http.Server
	addr       string
	timeout    time.Duration
	logger     *zap.Logger
}

func NewServer(logger *zap.Logger, a Dashboard, validator auth.TokenValidator, address string, timeout time.Duration) *server {
	return &server{
		app:     a,
		auth:    validator,
		addr:    address,
		timeout: timeout,
		logger:  logger,
	}
}

func (ser *server) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorResponse{Error: message}); err != nil {
		ser.logger.Error("failed to write an error message: " + err.Error())
	}
}

func (ser *server) badRequest(w http.ResponseWriter, message string) {
	ser.logger.Warn(message)
	ser.writeError(w, http.StatusBadRequest, message)
}

func (ser *server) serverError(w http.ResponseWriter, message string) {
	ser.logger.Error(message)
	ser.writeError(w, http.StatusInternalServerError, message)
}

// fail maps a workflow error to its status code.
func (ser *server) fail(w http.ResponseWriter, err error) {
	var simErr *blockchain.SimulationError

	switch {
	case errors.Is(err, app.ErrWalletNotConnected):
		ser.writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, app.ErrNotFound):
		ser.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrNotMember):
		ser.writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, app.ErrInvalidProposalState):
		ser.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, app.ErrInvalidRequest),
		errors.Is(err, squads.ErrInvalidAddress),
		errors.Is(err, squads.ErrInvalidParams),
		errors.Is(err, squads.ErrInvalidMessage):
		ser.badRequest(w, err.Error())
	case errors.As(err, &simErr):
		ser.logger.Info("simulation failed", zap.String("reason", simErr.Message), zap.Strings("logs", simErr.Logs))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(errorResponse{Error: simErr.Error(), Logs: simErr.Logs})
	case errors.Is(err, context.DeadlineExceeded):
		ser.writeError(w, http.StatusGatewayTimeout, err.Error())
	default:
		ser.serverError(w, err.Error())
	}
}

func (ser *server) respond(w http.ResponseWriter, status int, body interface{}) {
	response, err := json.Marshal(body)
	if err != nil {
		ser.serverError(w, "marshalling the response failed: "+err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(response); err != nil {
		ser.logger.Error("failed to write the response: " + err.Error())
	}
}

// requestContext bounds a request by the configured timeout.
func (ser *server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if ser.timeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), ser.timeout)
}

func (ser *server) registerHandlers(router *mux.Router) {

	router.HandleFunc("/health", healthcheck)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(ser.auth.Connect)

	api.HandleFunc("/wallets/{wallet}/multisig", ser.getWalletMultisig).Methods(http.MethodGet)
	api.HandleFunc("/wallets/{wallet}/multisig", ser.linkWalletMultisig).Methods(http.MethodPost)
	api.HandleFunc("/wallets/{wallet}/recipients", ser.getRecipients).Methods(http.MethodGet)

	api.HandleFunc("/multisigs/{multisig}", ser.getMultisig).Methods(http.MethodGet)
	api.HandleFunc("/multisigs/{multisig}/portfolio", ser.getPortfolio).Methods(http.MethodGet)
	api.HandleFunc("/multisigs/{multisig}/transfers", ser.prepareTransfer).Methods(http.MethodPost)
	api.HandleFunc("/multisigs/{multisig}/proposals/{index}", ser.getApprovals).Methods(http.MethodGet)
	api.HandleFunc("/multisigs/{multisig}/proposals/{index}/{action}", ser.prepareAction).Methods(http.MethodPost)

}

func healthcheck(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte("all good here"))
}

func (ser *server) Handler() http.Handler {
	router := mux.NewRouter()
	ser.registerHandlers(router)
	return cors.AddCorsPolicy(router)
}

func (ser *server) Run() error {
	ser.httpServer = &http.Server{
		Handler:           ser.Handler(),
		Addr:              ser.addr,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ser.logger.Info("listening", zap.String("addr", ser.addr))
	return ser.httpServer.ListenAndServe()
}

func (ser *server) Shutdown(ctx context.Context) error {
	if ser.httpServer == nil {
		return nil
	}
	return ser.httpServer.Shutdown(ctx)
}
