package audit

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Node prefixes keep a leaf from being read as an inner node.
const (
	leafPrefix byte = 0x00
	nodePrefix byte = 0x01
)

// MerkleRoot computes a binary Keccak Merkle root from 0x-prefixed hex leaves.
// An odd node is promoted to the next level unchanged. Returns "" for no input
// or undecodable leaves.
func MerkleRoot(leaves []string) string {
	if len(leaves) == 0 {
		return ""
	}
	level := make([][]byte, 0, len(leaves))
	for _, l := range leaves {
		b, err := hex.DecodeString(strings.TrimPrefix(strings.ToLower(l), "0x"))
		if err != nil || len(b) == 0 {
			return ""
		}
		level = append(level, hashNode(leafPrefix, b))
	}
	for len(level) > 1 {
		next := make([][]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, level[i])
				continue
			}
			next = append(next, hashNode(nodePrefix, level[i], level[i+1]))
		}
		level = next
	}
	return "0x" + hex.EncodeToString(level[0])
}

func hashNode(prefix byte, parts ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte{prefix})
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}
