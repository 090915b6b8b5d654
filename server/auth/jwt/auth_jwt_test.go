package jwt

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/zentrio/fabric/server/auth"
)

var testKey = []byte("jwt-signing-key-for-tests")

func mintToken(t *testing.T, key []byte, claims Claims) string {
	t.Helper()
	tok := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	signed, err := tok.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func TestVerifyValid(t *testing.T) {
	v, err := New(testKey, "zentrio")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	cred := mintToken(t, testKey, Claims{
		Email: "bob@example.com",
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   "u98765",
			Issuer:    "zentrio",
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	ident, err := v.Verify(cred)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if ident.ID != "u98765" || ident.Email != "bob@example.com" {
		t.Errorf("unexpected identity: %+v", ident)
	}
}

func TestVerifyExpired(t *testing.T) {
	v, _ := New(testKey, "")
	cred := mintToken(t, testKey, Claims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   "u1",
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	if _, err := v.Verify(cred); err != auth.ErrExpiredCredential {
		t.Errorf("expected ErrExpiredCredential, got %v", err)
	}
}

func TestVerifyRejections(t *testing.T) {
	v, _ := New(testKey, "zentrio")

	cases := []struct {
		name string
		cred string
		want error
	}{
		{"empty", "", auth.ErrMissingCredential},
		{"garbage", "xx.yy.zz", auth.ErrInvalidCredential},
		{"wrong key", mintToken(t, []byte("other-key"), Claims{
			RegisteredClaims: jwtlib.RegisteredClaims{
				Subject:   "u1",
				Issuer:    "zentrio",
				ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}), auth.ErrInvalidCredential},
		{"wrong issuer", mintToken(t, testKey, Claims{
			RegisteredClaims: jwtlib.RegisteredClaims{
				Subject:   "u1",
				Issuer:    "someone-else",
				ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}), auth.ErrInvalidCredential},
		{"no subject", mintToken(t, testKey, Claims{
			RegisteredClaims: jwtlib.RegisteredClaims{
				Issuer:    "zentrio",
				ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}), auth.ErrInvalidCredential},
		{"no expiration", mintToken(t, testKey, Claims{
			RegisteredClaims: jwtlib.RegisteredClaims{
				Subject: "u1",
				Issuer:  "zentrio",
			},
		}), auth.ErrInvalidCredential},
	}

	for _, tc := range cases {
		if _, err := v.Verify(tc.cred); err != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestNewRequiresKey(t *testing.T) {
	if _, err := New(nil, ""); err == nil {
		t.Error("expected error for missing key")
	}
}
