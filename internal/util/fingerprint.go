package util

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Fingerprint computes a stable hash for a finding key. Locations are passed
// pre-formatted so the hash does not depend on struct layout.
func Fingerprint(ruleID, file, contract, function string, locations string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%s", ruleID, file, contract, function, locations)
	return hex.EncodeToString(h.Sum(nil))
}
