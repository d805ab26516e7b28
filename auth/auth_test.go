package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFirebase struct{ uid string }

func (f fakeFirebase) VerifyIDToken(_ context.Context, token string) (*fbauth.Token, error) {
	if token == "firebase-ok" {
		return &fbauth.Token{UID: f.uid}, nil
	}
	return nil, errors.New("not a firebase token")
}

func TestAccessTokenRoundTrip(t *testing.T) {
	i := &Issuer{Secret: "s3cret", TTL: time.Minute}
	tok, err := i.AccessToken("2222222222")
	require.NoError(t, err)

	sub, err := i.ParseAccessToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "2222222222", sub)

	_, err = (&Issuer{Secret: "other"}).ParseAccessToken(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := &Issuer{Secret: "s3cret", Now: func() time.Time { return time.Now().Add(2 * time.Hour) }}
	_, err = expired.ParseAccessToken(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsOtherAlgorithms(t *testing.T) {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{"sub": "x"}).SignedString([]byte("k"))
	require.NoError(t, err)
	_, err = (&Issuer{Secret: "k"}).ParseAccessToken(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifier(t *testing.T) {
	i := &Issuer{Secret: "k"}
	bridge, err := i.BridgeToken("3333333333")
	require.NoError(t, err)

	v := &Verifier{Firebase: fakeFirebase{uid: "fb-uid"}, Secret: "k"}
	ctx := context.Background()

	uid, err := v.Verify(ctx, "Bearer firebase-ok")
	require.NoError(t, err)
	assert.Equal(t, "fb-uid", uid)

	uid, err = v.Verify(ctx, "Bearer "+bridge)
	require.NoError(t, err)
	assert.Equal(t, "3333333333", uid)

	phoneOnly, err := i.sign(jwt.MapClaims{"phone_number": "4444444444", "exp": time.Now().Add(time.Minute).Unix()})
	require.NoError(t, err)
	uid, err = (&Verifier{Secret: "k"}).Verify(ctx, phoneOnly)
	require.NoError(t, err)
	assert.Equal(t, "4444444444", uid)

	_, err = v.Verify(ctx, "Bearer garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = v.Verify(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMiddleware(t *testing.T) {
	i := &Issuer{Secret: "k"}
	echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(Subject(r.Context())))
	})

	t.Run("firebase", func(t *testing.T) {
		h := RequireFirebase(&Verifier{Firebase: fakeFirebase{uid: "u9"}, Secret: "k"})(echo)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer firebase-ok")
		h.ServeHTTP(rec, req)
		assert.Equal(t, "u9", rec.Body.String())

		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"detail":"Invalid token"}`, rec.Body.String())
	})

	t.Run("bearer", func(t *testing.T) {
		h := RequireBearer(i)(echo)
		tok, err := i.AccessToken("5555555555")
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		h.ServeHTTP(rec, req)
		assert.Equal(t, "5555555555", rec.Body.String())

		rec = httptest.NewRecorder()
		req = httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Token "+tok)
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
		assert.JSONEq(t, `{"detail":"Could not validate credentials"}`, rec.Body.String())
	})
}
