package payments

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignSortedParams_OrderIndependent(t *testing.T) {
	a := SignSortedParams(map[string]string{
		"amt": "1000",
		"pid": "order-1",
		"scd": "MERCHANT",
	}, "secret")
	b := SignSortedParams(map[string]string{
		"scd": "MERCHANT",
		"pid": "order-1",
		"amt": "1000",
	}, "secret")

	assert.Equal(t, a, b)
	assert.Len(t, a, 64) // hex-encoded sha256
}

func TestSignSortedParams_FieldTamperFlipsSignature(t *testing.T) {
	params := map[string]string{
		"amt": "1000",
		"pid": "order-1",
		"scd": "MERCHANT",
	}
	original := SignSortedParams(params, "secret")

	params["amt"] = "1001"
	tampered := SignSortedParams(params, "secret")

	assert.NotEqual(t, original, tampered)
}

func TestSignSortedParams_KeyMismatchFlipsSignature(t *testing.T) {
	params := map[string]string{"amt": "1000", "pid": "order-1"}

	withKey := SignSortedParams(params, "secret")
	withOtherKey := SignSortedParams(params, "another-secret")

	assert.NotEqual(t, withKey, withOtherKey)
}

func TestSignDelimited_Deterministic(t *testing.T) {
	a := SignDelimited([]string{"1000", "0", "0", "0", "1000", "order-1", "MERCHANT"}, "|")
	b := SignDelimited([]string{"1000", "0", "0", "0", "1000", "order-1", "MERCHANT"}, "|")

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestSignDelimited_OrderMatters(t *testing.T) {
	a := SignDelimited([]string{"1000", "order-1"}, "|")
	b := SignDelimited([]string{"order-1", "1000"}, "|")

	assert.NotEqual(t, a, b)
}

func TestSignatureEqual(t *testing.T) {
	sig := SignSortedParams(map[string]string{"amt": "1000"}, "secret")

	assert.True(t, SignatureEqual(sig, sig))
	assert.False(t, SignatureEqual(sig, sig+"00"))
	assert.False(t, SignatureEqual(sig, ""))
}
