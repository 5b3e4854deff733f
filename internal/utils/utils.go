package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"hash/crc32"
)

// CalculateHash generates a CRC32 hash of the data, used as the version tag
// of a redlined file.
func CalculateHash(data []byte) string {
	table := crc32.MakeTable(crc32.IEEE)
	return fmt.Sprintf("\"%08x\"", crc32.Checksum(data, table))
}

// GenerateToken generates an unguessable download token.
func GenerateToken() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
