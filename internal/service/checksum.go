package service

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// checksum hex BLAKE2b-256 содержимого файла.
func checksum(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}
