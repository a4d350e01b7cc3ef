package conversation

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// historyHashLen is the number of hex characters kept from the digest.
// Collisions here cost a mis-correlated continuation, not a security
// failure, so 64 bits of entropy is plenty.
const historyHashLen = 16

// HistoryHash computes a stable fingerprint over the system and user text
// of a message sequence.
//
// Storage mode (excludeLastUser=false) hashes the full system/user content
// and becomes the lookup target for the next turn. Lookup mode
// (excludeLastUser=true) drops the newest user segment, provided at least
// one assistant message exists, so that a continuation request reproduces
// the fingerprint stored after the previous turn.
//
// Assistant and tool messages never contribute content; the presence of an
// assistant message only gates the exclusion. Returns "" when no
// system/user content remains, meaning the sequence is unhashable and must
// not be indexed.
func HistoryHash(messages []Message, excludeLastUser bool) string {
	if len(messages) == 0 {
		return ""
	}

	segments := make([]string, 0, len(messages))
	hasAssistant := false
	lastUser := -1

	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			segments = append(segments, "system:"+FlattenText(msg))
		case RoleUser:
			lastUser = len(segments)
			segments = append(segments, "user:"+FlattenText(msg))
		case RoleAssistant:
			hasAssistant = true
		}
	}

	// Lookup mode: a follow-up request carries one user turn the stored
	// fingerprint has not seen yet.
	if excludeLastUser && hasAssistant && lastUser >= 0 {
		segments = append(segments[:lastUser], segments[lastUser+1:]...)
	}

	if len(segments) == 0 {
		return ""
	}

	sum := sha256.Sum256([]byte(strings.Join(segments, "\n")))
	return hex.EncodeToString(sum[:])[:historyHashLen]
}
