package wire

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// canonicalForm is the exact field order/shape an event id hashes over,
// per spec.md §3: "id = hash(canonical(pubkey, created_at, kind, tags,
// content))".
type canonicalForm struct {
	Pubkey    string     `json:"pubkey"`
	CreatedAt uint64     `json:"created_at"`
	Kind      Kind       `json:"kind"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
}

// CanonicalID computes the hex-encoded SHA-256 of the canonical form,
// the value an event's id field must equal.
func CanonicalID(pubkey string, createdAt uint64, kind Kind, tags [][]string, content string) (string, error) {
	if tags == nil {
		tags = [][]string{}
	}
	data, err := json.Marshal(canonicalForm{
		Pubkey:    pubkey,
		CreatedAt: createdAt,
		Kind:      kind,
		Tags:      tags,
		Content:   content,
	})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
