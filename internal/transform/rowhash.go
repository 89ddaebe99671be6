package transform

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// RowHash digests the JSON form of a record. Provenance fields are excluded from JSON,
// so two records with the same business content hash the same across runs.
func RowHash(record any) string {
	b, err := json.Marshal(record)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
