// Package token implements identity verification by HMAC-signed security token.
package token

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"time"

	"github.com/zentrio/fabric/server/auth"
)

// Token layout, all integers little-endian:
//   [4:expires][2:idLen][idLen:identityID][2:emailLen][emailLen:email][32:signature]
// convertible to base64 without padding.

const signatureSize = sha256.Size

// Verifier checks and mints HMAC-signed tokens.
type Verifier struct {
	hmacSalt []byte
	lifetime time.Duration
}

// New creates a token verifier. The key must be at least sha256.Size bytes
// long; lifetime is used when minting tokens with Sign.
func New(key []byte, lifetime time.Duration) (*Verifier, error) {
	if len(key) < sha256.Size {
		return nil, errors.New("auth_token: the key is missing or too short")
	}
	if lifetime <= 0 {
		return nil, errors.New("auth_token: invalid token lifetime")
	}
	return &Verifier{hmacSalt: key, lifetime: lifetime}, nil
}

// Verify checks validity of the provided token.
func (ta *Verifier) Verify(credential string) (*auth.Identity, error) {
	if credential == "" {
		return nil, auth.ErrMissingCredential
	}

	token, err := base64.URLEncoding.DecodeString(credential)
	if err != nil {
		return nil, auth.ErrInvalidCredential
	}
	if len(token) < 4+2+2+signatureSize {
		// Token is too short.
		return nil, auth.ErrInvalidCredential
	}

	body := token[:len(token)-signatureSize]

	// Check signature first, before trusting any of the fields.
	hasher := hmac.New(sha256.New, ta.hmacSalt)
	hasher.Write(body)
	if !hmac.Equal(token[len(body):], hasher.Sum(nil)) {
		return nil, auth.ErrInvalidCredential
	}

	buf := bytes.NewBuffer(body)
	var expires uint32
	if err := binary.Read(buf, binary.LittleEndian, &expires); err != nil {
		return nil, auth.ErrInvalidCredential
	}

	id, err := readString(buf)
	if err != nil || id == "" {
		return nil, auth.ErrInvalidCredential
	}
	email, err := readString(buf)
	if err != nil || buf.Len() != 0 {
		return nil, auth.ErrInvalidCredential
	}

	if time.Now().After(time.Unix(int64(expires), 0)) {
		return nil, auth.ErrExpiredCredential
	}

	return &auth.Identity{ID: id, Email: email}, nil
}

// Sign mints a new token for the given identity, expiring after the
// verifier's configured lifetime.
func (ta *Verifier) Sign(ident auth.Identity) (string, error) {
	return ta.SignExpiring(ident, time.Now().Add(ta.lifetime))
}

// SignExpiring mints a new token with an explicit expiration time.
func (ta *Verifier) SignExpiring(ident auth.Identity, expires time.Time) (string, error) {
	if ident.ID == "" {
		return "", errors.New("auth_token: empty identity id")
	}
	if len(ident.ID) > 0xffff || len(ident.Email) > 0xffff {
		return "", errors.New("auth_token: identity field too long")
	}

	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, uint32(expires.Unix()))
	writeString(buf, ident.ID)
	writeString(buf, ident.Email)

	hasher := hmac.New(sha256.New, ta.hmacSalt)
	hasher.Write(buf.Bytes())
	buf.Write(hasher.Sum(nil))

	return base64.URLEncoding.EncodeToString(buf.Bytes()), nil
}

func readString(buf *bytes.Buffer) (string, error) {
	var size uint16
	if err := binary.Read(buf, binary.LittleEndian, &size); err != nil {
		return "", err
	}
	if int(size) > buf.Len() {
		return "", errors.New("auth_token: truncated field")
	}
	return string(buf.Next(int(size))), nil
}

func writeString(buf *bytes.Buffer, s string) {
	binary.Write(buf, binary.LittleEndian, uint16(len(s)))
	buf.WriteString(s)
}
