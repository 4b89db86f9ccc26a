package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"gopkg.in/square/go-jose.v2"
	"gopkg.in/square/go-jose.v2/jwt"
)

const issuer = "multisig-dashboard"

type contextKey struct{}

// TokenValidator reads the connected wallet from an HS256 bearer token whose
// subject is the wallet address.
type TokenValidator struct {
	secret []byte
	logger *zap.Logger
}

func NewTokenValidator(logger *zap.Logger, secret string) TokenValidator {
	return TokenValidator{logger: logger, secret: []byte(secret)}
}

// Connect adds the wallet of a valid token to the request context. Requests
// without a token pass through with no wallet; an invalid token is rejected.
func (t TokenValidator) Connect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}

		wallet, err := t.parseToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			t.authError(w, errors.New("auth token validation: "+err.Error()))
			return
		}

		next.ServeHTTP(w, r.WithContext(WithWallet(r.Context(), wallet)))
	})
}

func (t TokenValidator) authError(w http.ResponseWriter, err error) {
	t.logger.Warn(err.Error())
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(err.Error()))
}

func (t TokenValidator) parseToken(tokenString string) (solana.PublicKey, error) {
	if len(t.secret) == 0 {
		return solana.PublicKey{}, errors.New("no secret configured")
	}

	token, err := jwt.ParseSigned(tokenString)
	if err != nil {
		return solana.PublicKey{}, err
	}

	var claims jwt.Claims
	if err := token.Claims(t.secret, &claims); err != nil {
		return solana.PublicKey{}, err
	}
	if err := claims.Validate(jwt.Expected{Issuer: issuer, Time: time.Now()}); err != nil {
		return solana.PublicKey{}, err
	}

	wallet, err := solana.PublicKeyFromBase58(claims.Subject)
	if err != nil {
		return solana.PublicKey{}, errors.New("subject is not a wallet address")
	}
	return wallet, nil
}

// IssueToken signs a session token for wallet, valid for ttl.
func IssueToken(secret string, wallet solana.PublicKey, ttl time.Duration) (string, error) {
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: []byte(secret)},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", err
	}

	now := time.Now()
	claims := jwt.Claims{
		Issuer:   issuer,
		Subject:  wallet.String(),
		IssuedAt: jwt.NewNumericDate(now),
		Expiry:   jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.Signed(signer).Claims(claims).CompactSerialize()
}

func WithWallet(ctx context.Context, wallet solana.PublicKey) context.Context {
	return context.WithValue(ctx, contextKey{}, wallet)
}

// Wallet returns the connected wallet of the request, if any.
func Wallet(ctx context.Context) (solana.PublicKey, bool) {
	wallet, ok := ctx.Value(contextKey{}).(solana.PublicKey)
	return wallet, ok && !wallet.IsZero()
}
