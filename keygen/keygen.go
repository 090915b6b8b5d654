// Command line utility for issuing credentials: API keys for backend
// services and, for installations using the built-in token scheme, signed
// client tokens for testing.
package main

import (
	"bytes"
	"crypto/hmac"
	"crypto/md5"
	"encoding/base64"
	"encoding/binary"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/zentrio/fabric/server/auth"
	"github.com/zentrio/fabric/server/auth/token"
)

// API key composition:
//  [1:algorithm version][4:appid][2:key sequence][1:isRoot][16:signature] = 24 bytes
// convertible to base64 without padding.
// All integers are little-endian.
const (
	apikeyVersion   = 1
	apikeyAppID     = 4
	apikeySequence  = 2
	apikeyWho       = 1
	apikeySignature = 16
	apikeyLength    = apikeyVersion + apikeyAppID + apikeySequence + apikeyWho + apikeySignature
)

func main() {
	var appID = flag.Int("appid", 0, "App ID to sign into the API key")
	var sequence = flag.Int("sequence", 1, "Sequential number of the API key")
	var isRoot = flag.Int("isroot", 0, "Is this a root API key?")
	var apikey = flag.String("validate", "", "API key to validate")
	var salt = flag.String("salt", "", "Base64 of the API key salt from the server config")
	var mintFor = flag.String("mint", "", "Identity ID to mint a client token for")
	var mintEmail = flag.String("email", "", "Email to embed into the minted token")
	var tokenKey = flag.String("token_key", "", "Base64 of the token signing key from the server config")
	var lifetime = flag.Duration("lifetime", 14*24*time.Hour, "Lifetime of the minted token")

	flag.Parse()

	switch {
	case *mintFor != "":
		mint(*mintFor, *mintEmail, *tokenKey, *lifetime)
	case *appID != 0:
		generate(*appID, *sequence, *isRoot, decodeSalt(*salt))
	case *apikey != "":
		validate(*apikey, decodeSalt(*salt))
	default:
		flag.Usage()
	}
}

func decodeSalt(salt string) []byte {
	if salt == "" {
		fmt.Println("-salt is required")
		os.Exit(1)
	}
	raw, err := base64.StdEncoding.DecodeString(salt)
	if err != nil {
		fmt.Println("failed to decode salt:", err)
		os.Exit(1)
	}
	return raw
}

func generate(appID, sequence, isRoot int, salt []byte) {
	var data [apikeyLength]byte

	// [1:algorithm version][4:appid][2:key sequence][1:isRoot]
	data[0] = 1 // default algorithm
	binary.LittleEndian.PutUint32(data[apikeyVersion:], uint32(appID))
	binary.LittleEndian.PutUint16(data[apikeyVersion+apikeyAppID:], uint16(sequence))
	data[apikeyVersion+apikeyAppID+apikeySequence] = uint8(isRoot)

	hasher := hmac.New(md5.New, salt)
	hasher.Write(data[:apikeyVersion+apikeyAppID+apikeySequence+apikeyWho])
	signature := hasher.Sum(nil)

	copy(data[apikeyVersion+apikeyAppID+apikeySequence+apikeyWho:], signature)

	strIsRoot := "ordinary"
	if isRoot == 1 {
		strIsRoot = "ROOT"
	}

	fmt.Printf("API key v%d for (%d:%d), %s: %s\n", 1, appID, sequence, strIsRoot,
		base64.URLEncoding.EncodeToString(data[:]))
}

func validate(apikey string, salt []byte) {
	if declen := base64.URLEncoding.DecodedLen(len(apikey)); declen != apikeyLength {
		fmt.Println("INVALID:", apikey)
		return
	}

	data, err := base64.URLEncoding.DecodeString(apikey)
	if err != nil {
		fmt.Println("failed to decode.base64 apikey", err)
		return
	}
	if data[0] != 1 {
		fmt.Println("unknown apikey signature algorithm", data[0])
		return
	}

	hasher := hmac.New(md5.New, salt)
	hasher.Write(data[:apikeyVersion+apikeyAppID+apikeySequence+apikeyWho])
	signature := hasher.Sum(nil)

	if !bytes.Equal(data[apikeyVersion+apikeyAppID+apikeySequence+apikeyWho:], signature) {
		fmt.Println("INVALID signature:", apikey)
		return
	}

	appid := binary.LittleEndian.Uint32(data[apikeyVersion:])
	sequence := binary.LittleEndian.Uint16(data[apikeyVersion+apikeyAppID:])
	strIsRoot := "ordinary"
	if data[apikeyVersion+apikeyAppID+apikeySequence] == 1 {
		strIsRoot = "ROOT"
	}

	fmt.Printf("Valid (%d:%d), %s\n", appid, sequence, strIsRoot)
}

func mint(identityID, email, tokenKey string, lifetime time.Duration) {
	key := decodeSalt(tokenKey)

	verifier, err := token.New(key, lifetime)
	if err != nil {
		fmt.Println("failed to initialize token scheme:", err)
		os.Exit(1)
	}

	cred, err := verifier.Sign(auth.Identity{ID: identityID, Email: email})
	if err != nil {
		fmt.Println("failed to mint token:", err)
		os.Exit(1)
	}

	fmt.Printf("Token for '%s', valid for %s: %s\n", identityID, lifetime, cred)
}
