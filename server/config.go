/******************************************************************************
 *
 *  Description :
 *
 *    Parsing of the JSON config file. Comments are allowed in the file.
 *
 *****************************************************************************/

package main

import (
	"encoding/json"
	"errors"
	"os"
	"time"

	jcr "github.com/tinode/jsonco"

	"github.com/zentrio/fabric/server/auth"
	"github.com/zentrio/fabric/server/auth/jwt"
	"github.com/zentrio/fabric/server/auth/token"
	"github.com/zentrio/fabric/server/logs"
	"github.com/zentrio/fabric/server/queue"
)

// tokenAuthConfig configures the built-in HMAC token scheme.
type tokenAuthConfig struct {
	// Key for signature verification, base64 in the config file, 32 bytes min.
	Key []byte `json:"key"`
	// Token lifetime in seconds, used only when minting.
	ExpireIn int `json:"expire_in"`
}

// jwtAuthConfig configures verification of JWTs minted by the main
// application backend.
type jwtAuthConfig struct {
	// Shared HMAC key, base64 in the config file.
	Key []byte `json:"key"`
	// Expected token issuer. Not checked if empty.
	Issuer string `json:"issuer"`
}

type authConfig struct {
	// Active credential scheme: "token" or "jwt".
	Scheme string           `json:"scheme"`
	Token  *tokenAuthConfig `json:"token"`
	JWT    *jwtAuthConfig   `json:"jwt"`
}

// Contents of the configuration file.
type configType struct {
	// Address:port to listen on for websocket and API clients.
	Listen string `json:"listen"`
	// Salt used to sign API keys issued to backend services.
	APIKeySalt []byte `json:"api_key_salt"`

	// Maximum accepted message size, bytes.
	MaxMessageSize int64 `json:"max_message_size"`
	// Take client IP from the X-Forwarded-For header.
	UseXForwardedFor bool `json:"use_x_forwarded_for"`
	// Enable websocket per message compression.
	WSCompression bool `json:"ws_compression"`

	// Path to expose expvar counters at, "-" to disable.
	ExpvarPath string `json:"expvar"`
	// Path to expose Prometheus metrics at, "-" to disable.
	PromPath string `json:"prom_metrics"`

	// Snowflake worker ID for session ID generation, 0-1023.
	WorkerID uint `json:"worker_id"`
	// 16-byte key to obfuscate session IDs, base64 in the config file.
	SidKey []byte `json:"sid_key"`

	Auth authConfig `json:"auth"`
	TLS  *tlsConfig `json:"tls"`

	// Optional broker ingress; disabled when the section is missing.
	AMQP *queue.Config `json:"amqp"`
}

// loadConfig reads and parses the config file, applying defaults.
func loadConfig(path string) *configType {
	file, err := os.Open(path)
	if err != nil {
		logs.Err.Fatalln("Failed to read config file:", err)
	}
	defer file.Close()

	config := configType{
		Listen:         ":6060",
		MaxMessageSize: 1 << 19,
		ExpvarPath:     "/stats/expvar/",
		PromPath:       "/metrics",
	}

	jr := jcr.New(file)
	if err = json.NewDecoder(jr).Decode(&config); err != nil {
		switch jerr := err.(type) {
		case *json.UnmarshalTypeError:
			lnum, cnum, _ := jr.LineAndChar(jerr.Offset)
			logs.Err.Fatalf("Unmarshall error in config file in %s at %d:%d (offset %d bytes): %s",
				jerr.Field, lnum, cnum, jerr.Offset, jerr.Error())
		case *json.SyntaxError:
			lnum, cnum, _ := jr.LineAndChar(jerr.Offset)
			logs.Err.Fatalf("Syntax error in config file at %d:%d (offset %d bytes): %s",
				lnum, cnum, jerr.Offset, jerr.Error())
		default:
			logs.Err.Fatalln("Failed to parse config file:", err)
		}
	}

	return &config
}

// makeVerifier instantiates the credential verifier named in the config.
func makeVerifier(config *authConfig) (auth.Verifier, error) {
	switch config.Scheme {
	case "token":
		if config.Token == nil {
			return nil, errors.New("config: auth.token section is missing")
		}
		return token.New(config.Token.Key, time.Duration(config.Token.ExpireIn)*time.Second)

	case "jwt":
		if config.JWT == nil {
			return nil, errors.New("config: auth.jwt section is missing")
		}
		return jwt.New(config.JWT.Key, config.JWT.Issuer)

	default:
		return nil, errors.New("config: unknown auth scheme '" + config.Scheme + "'")
	}
}
