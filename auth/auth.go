// Package auth issues and verifies the bearer tokens used by both API
// servers: backend login tokens, bridge tokens for the agents server, and
// Firebase ID tokens.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/golang-jwt/jwt/v5"

	"github.com/Sanidhya49/Invested/logger"
)

var ErrInvalidToken = errors.New("invalid token")

const bridgeTTL = time.Hour

// Issuer signs HS256 tokens with a shared secret.
type Issuer struct {
	Secret string
	TTL    time.Duration
	Now    func() time.Time
}

func (i *Issuer) now() time.Time {
	if i.Now != nil {
		return i.Now()
	}
	return time.Now()
}

func (i *Issuer) sign(claims jwt.MapClaims) (string, error) {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(i.Secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return tok, nil
}

// AccessToken issues a backend login token for phone.
func (i *Issuer) AccessToken(phone string) (string, error) {
	ttl := i.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return i.sign(jwt.MapClaims{"sub": phone, "exp": i.now().Add(ttl).Unix()})
}

// BridgeToken issues a token the agents server accepts in place of a
// Firebase ID token.
func (i *Issuer) BridgeToken(phone string) (string, error) {
	return i.sign(jwt.MapClaims{
		"uid":          phone,
		"phone_number": phone,
		"exp":          i.now().Add(bridgeTTL).Unix(),
	})
}

// ParseAccessToken returns the sub claim of a valid backend token.
func (i *Issuer) ParseAccessToken(token string) (string, error) {
	claims, err := parseHS256(token, i.Secret, i.now)
	if err != nil {
		return "", err
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", ErrInvalidToken
	}
	return sub, nil
}

func parseHS256(token, secret string, now func() time.Time) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if now != nil {
		opts = append(opts, jwt.WithTimeFunc(now))
	}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// IDTokenVerifier is satisfied by the Firebase auth client.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

// Verifier accepts a Firebase ID token, or failing that an HS256 bridge
// token signed with Secret.
type Verifier struct {
	Firebase IDTokenVerifier
	Secret   string
}

// Verify takes an Authorization header value and returns the user id.
func (v *Verifier) Verify(ctx context.Context, header string) (string, error) {
	fields := strings.Split(header, " ")
	token := fields[len(fields)-1]
	if token == "" {
		return "", ErrInvalidToken
	}

	if v.Firebase != nil {
		if t, err := v.Firebase.VerifyIDToken(ctx, token); err == nil && t.UID != "" {
			return t.UID, nil
		} else if err != nil {
			logger.Debugf("auth: firebase verification failed, trying bridge token: %v", err)
		}
	}

	claims, err := parseHS256(token, v.Secret, nil)
	if err != nil {
		return "", err
	}
	for _, k := range []string{"uid", "phone_number"} {
		if s, ok := claims[k].(string); ok && s != "" {
			return s, nil
		}
	}
	return "", ErrInvalidToken
}

type ctxKey struct{}

// WithSubject stores the authenticated user id in ctx.
func WithSubject(ctx context.Context, sub string) context.Context {
	return context.WithValue(ctx, ctxKey{}, sub)
}

// Subject returns the user id stored by the middleware.
func Subject(ctx context.Context) string {
	s, _ := ctx.Value(ctxKey{}).(string)
	return s
}

// RequireFirebase guards agents-server routes.
func RequireFirebase(v *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			uid, err := v.Verify(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				writeDetail(w, http.StatusUnauthorized, "Invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), uid)))
		})
	}
}

// RequireBearer guards backend routes with login tokens.
func RequireBearer(i *Issuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(h, "Bearer ")
			var phone string
			var err error
			if ok {
				phone, err = i.ParseAccessToken(strings.TrimSpace(token))
			}
			if !ok || err != nil {
				w.Header().Set("WWW-Authenticate", "Bearer")
				writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), phone)))
		})
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
