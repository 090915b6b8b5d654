/******************************************************************************
 *
 *  Description :
 *
 *    Validation of server-to-server API keys used by the publish endpoint.
 *
 *****************************************************************************/

package main

import (
	"bytes"
	"crypto/hmac"
	"crypto/md5"
	"encoding/base64"
	"net/http"

	"github.com/zentrio/fabric/server/logs"
)

// Signed API key. Composition:
//   [1:algorithm version][4:appid][2:key sequence][1:isRoot][16:signature] = 24 bytes
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

// checkAPIKey validates an API key against the configured salt. Returns
// whether the key is valid and whether it grants root access.
func checkAPIKey(apikey string) (isValid, isRoot bool) {
	if declen := base64.URLEncoding.DecodedLen(len(apikey)); declen != apikeyLength {
		return
	}

	data, err := base64.URLEncoding.DecodeString(apikey)
	if err != nil {
		logs.Warn.Println("failed to decode.base64 apikey", err)
		return
	}
	if data[0] != 1 {
		logs.Warn.Println("unknown apikey signature algorithm", data[0])
		return
	}

	hasher := hmac.New(md5.New, globals.apiKeySalt)
	hasher.Write(data[:apikeyVersion+apikeyAppID+apikeySequence+apikeyWho])
	check := hasher.Sum(nil)
	if !bytes.Equal(data[apikeyVersion+apikeyAppID+apikeySequence+apikeyWho:], check) {
		logs.Warn.Println("invalid apikey signature")
		return
	}

	isRoot = data[apikeyVersion+apikeyAppID+apikeySequence] == 1

	isValid = true

	return
}

// getAPIKey extracts the API key from an HTTP request: the X-Fabric-APIKey
// header, the Authorization header, or the 'apikey' query parameter.
func getAPIKey(req *http.Request) string {
	var apikey string
	authhdr := req.Header.Get("Authorization")
	if len(authhdr) > 7 && authhdr[:7] == "ApiKey " {
		apikey = authhdr[7:]
	} else if apikey = req.Header.Get("X-Fabric-APIKey"); apikey == "" {
		apikey = req.URL.Query().Get("apikey")
	}
	return apikey
}
