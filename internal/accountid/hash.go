// Package accountid derives the stable, one-way hashed identifier that
// stands in for a raw account id everywhere state is persisted or logged.
package accountid

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Hashed is a one-way salted hash of an AccountId. It is the only
// account-identifying token that may appear in a persisted row or a log
// line — the raw id lives only in the in-memory session context.
type Hashed string

// salt is mixed into every derivation so the hash cannot be reversed by a
// rainbow-table lookup against bare SHA-256 of common account id shapes.
// It is fixed at build time rather than per-install: the hash only needs to
// be stable for the life of one account, not cryptographically secret.
const salt = "drivesync.accountid.v1"

// Hash derives the HashedAccountId for a raw account id. The derivation is
// deterministic: the same raw id always yields the same Hashed value, which
// is required because SyncRecord, ConflictRow, and SessionLog rows are all
// keyed by it across process restarts.
func Hash(raw string) Hashed {
	mac := hmac.New(sha256.New, []byte(salt))
	mac.Write([]byte(raw))

	return Hashed(hex.EncodeToString(mac.Sum(nil)))
}

func (h Hashed) String() string {
	return string(h)
}
