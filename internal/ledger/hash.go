package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/gowebpki/jcs"
)

// requestShape is the canonical payload hashed for idempotency. No floats, no
// maps; amounts travel as decimal strings so the hash is stable across
// resubmissions.
type requestShape struct {
	Kind        string `json:"kind"`
	Number      string `json:"number"`
	From        string `json:"from,omitempty"`
	To          string `json:"to,omitempty"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
}

// hashRequest returns the hex sha256 of the RFC 8785 canonical form of the
// shape. Stored on the transaction row; a replay with the same number but a
// different hash is an idempotency conflict, not a retry.
func hashRequest(shape requestShape) (string, error) {
	raw, err := json.Marshal(shape)
	if err != nil {
		return "", err
	}
	canon, err := jcs.Transform(raw)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canon)
	return hex.EncodeToString(sum[:]), nil
}
