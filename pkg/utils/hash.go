package utils

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

func HashString(input string) string {
	hash := md5.Sum([]byte(input))
	return fmt.Sprintf("%x", hash)
}

// AnonymizeID returns a stable, non-reversible 12 hex char token for id.
func AnonymizeID(id, salt string) string {
	sum := sha256.Sum256([]byte(salt + ":" + id))
	return hex.EncodeToString(sum[:])[:12]
}
