package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// SignSortedParams signs a parameter set the way eSewa's checkout expects:
// keys sorted lexicographically, joined as key=value pairs with '&', then
// HMAC-SHA256 under the merchant secret, hex encoded. Signing and
// verification must run over the exact same stored parameter set or the
// recomputed value will never match.
func SignSortedParams(params map[string]string, secret string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%s", k, params[k]))
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strings.Join(pairs, "&")))
	return hex.EncodeToString(mac.Sum(nil))
}

// SignDelimited is the legacy eSewa convention: the given values joined in
// order with the delimiter and plain SHA-256 hashed, no keyed secret.
func SignDelimited(values []string, delim string) string {
	sum := sha256.Sum256([]byte(strings.Join(values, delim)))
	return hex.EncodeToString(sum[:])
}

// SignatureEqual compares in constant time.
func SignatureEqual(expected, received string) bool {
	return hmac.Equal([]byte(expected), []byte(received))
}
