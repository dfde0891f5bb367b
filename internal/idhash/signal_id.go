package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"solana-copy-trader/internal/domain"
)

// ComputeSignalID computes a deterministic signal_id using SHA256.
// Formula: SHA256(tx_signature|source|mint|direction)
// Returns hex-encoded hash (64 characters).
func ComputeSignalID(
	txSignature string,
	source string,
	mint string,
	direction domain.Direction,
) string {
	data := fmt.Sprintf("%s|%s|%s|%s",
		txSignature,
		source,
		mint,
		string(direction),
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeFillID computes a deterministic fill_id for the ledger.
// Formula: SHA256(plan_id|tx_signature)
// Replays of the same confirmation always map to the same ID.
func ComputeFillID(planID string, txSignature string) string {
	hash := sha256.Sum256([]byte(planID + "|" + txSignature))
	return hex.EncodeToString(hash[:])
}
