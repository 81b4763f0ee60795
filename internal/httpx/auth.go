package httpx

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shoplite/orders-api/internal/orders"
)

type ctxKey int

const callerKey ctxKey = iota

// Claims mirror what the auth service puts into the token.
type Claims struct {
	UserID  string `json:"userId"`
	IsAdmin bool   `json:"isAdmin"`
	jwt.RegisteredClaims
}

// Auth rejects unauthenticated requests and puts the decoded caller
// into the request context. Token issuing lives in the user service;
// this side only verifies.
type Auth struct {
	Key []byte
}

func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Auth failed"})
			return
		}
		claims := &Claims{}
		tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return a.Key, nil
		})
		if err != nil || !tok.Valid || claims.UserID == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Auth failed"})
			return
		}
		caller := orders.Caller{ID: claims.UserID, IsAdmin: claims.IsAdmin}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), callerKey, caller)))
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if tok, ok := strings.CutPrefix(h, "Bearer "); ok {
		return tok
	}
	return ""
}

func CallerFrom(ctx context.Context) (orders.Caller, bool) {
	c, ok := ctx.Value(callerKey).(orders.Caller)
	return c, ok
}
