package exchange

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// param is one entry of an ordered request parameter set. The exchange
// signs the query string exactly as sent, so parameter order matters.
type param struct {
	key   string
	value string
}

// encodeParams joins parameters in order into a canonical query string.
// Values are exchange symbols and formatted numbers, never characters
// that need escaping.
func encodeParams(params []param) string {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		parts = append(parts, p.key+"="+p.value)
	}
	return strings.Join(parts, "&")
}

// Sign computes the hex-encoded HMAC-SHA256 of payload with the
// account private key.
func Sign(privateKey, payload string) string {
	h := hmac.New(sha256.New, []byte(privateKey))
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}

// signedQuery builds the canonical query string and appends its signature.
func signedQuery(params []param, creds Credentials) string {
	qs := encodeParams(params)
	return qs + "&signature=" + Sign(creds.PrivateKey, qs)
}
