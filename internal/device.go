package internal

import "crypto/sha256"

// Fingerprint derives a stable device identifier from the caller's user
// agent and client IP. The digest covers userAgent + "|" + clientIP; the
// separator keeps ("ab","c") and ("a","bc") distinct. Either input may be
// empty, in which case the fingerprint simply carries less entropy.
func Fingerprint(userAgent, clientIP string) [32]byte {
	h := sha256.New()
	h.Write([]byte(userAgent))
	h.Write([]byte("|"))
	h.Write([]byte(clientIP))
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
