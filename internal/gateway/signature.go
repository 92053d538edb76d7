package gateway

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"sort"
	"strings"
)

// SignatureField is the payload field the gateway puts its MAC in.
const SignatureField = "mac"

// Sign computes the webhook MAC: HMAC-SHA1 keyed by salt over the payload's
// key=value pairs sorted by key (case-insensitive) and joined with "|".
// The MAC field itself is excluded.
func Sign(payload map[string]string, salt string) string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		if k == SignatureField {
			continue
		}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return strings.ToLower(keys[i]) < strings.ToLower(keys[j])
	})

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+payload[k])
	}

	mac := hmac.New(sha1.New, []byte(salt))
	mac.Write([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature is the MAC of payload under salt.
// An empty salt or signature never verifies.
func VerifySignature(payload map[string]string, signature, salt string) bool {
	if salt == "" || signature == "" {
		return false
	}
	expected := Sign(payload, salt)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}
