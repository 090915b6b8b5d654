package main

import (
	"encoding/base64"
	"encoding/binary"

	sf "github.com/tinode/snowflake"
	"golang.org/x/crypto/xtea"
)

// sidGenerator produces process-unique session IDs. Snowflake guarantees
// uniqueness, the xtea pass makes consecutive IDs random-looking so session
// IDs are not guessable from one another.
type sidGenerator struct {
	seq    *sf.SnowFlake
	cipher *xtea.Cipher
}

// Init initialises the generator. The key must be 16 bytes long.
func (sg *sidGenerator) Init(workerID uint, key []byte) error {
	var err error
	if sg.seq == nil {
		sg.seq, err = sf.NewSnowFlake(uint32(workerID))
	}
	if err == nil && sg.cipher == nil {
		sg.cipher, err = xtea.NewCipher(key)
	}
	return err
}

// Get generates a unique id and returns it as an 11-character base64 string.
func (sg *sidGenerator) Get() string {
	id, err := sg.seq.Next()
	if err != nil {
		return ""
	}

	src := make([]byte, 8)
	dst := make([]byte, 8)
	binary.LittleEndian.PutUint64(src, id)
	sg.cipher.Encrypt(dst, src)

	return base64.URLEncoding.EncodeToString(dst)[:11]
}
