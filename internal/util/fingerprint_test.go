package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintStable(t *testing.T) {
	a := Fingerprint("DOS-UNCHECKED-CALL", "a.sol", "C", "pay", "1:0,1:1")
	b := Fingerprint("DOS-UNCHECKED-CALL", "a.sol", "C", "pay", "1:0,1:1")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestFingerprintDistinguishesInputs(t *testing.T) {
	base := Fingerprint("DOS-UNCHECKED-CALL", "a.sol", "C", "pay", "1:0")
	assert.NotEqual(t, base, Fingerprint("DOS-GAS-GRIEFING", "a.sol", "C", "pay", "1:0"))
	assert.NotEqual(t, base, Fingerprint("DOS-UNCHECKED-CALL", "b.sol", "C", "pay", "1:0"))
	assert.NotEqual(t, base, Fingerprint("DOS-UNCHECKED-CALL", "a.sol", "C", "pay", "1:1"))
}
