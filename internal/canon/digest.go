package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for digests. The version suffix allows the encoding to
// change without colliding with digests already stored.
const (
	DomainTrace  = "fifosched/trace/v1"
	DomainConfig = "fifosched/config/v1"
)

// Digest computes SHA256(domain + 0x00 + data) as lowercase hex.
func Digest(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// DigestValue canonicalizes v and digests it under domain.
func DigestValue(domain string, v any) (string, error) {
	b, err := Marshal(v)
	if err != nil {
		return "", fmt.Errorf("digest %s: %w", domain, err)
	}
	return Digest(domain, b), nil
}
