package websocket

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// DeriveRoomID maps an unordered participant pair to a stable broadcast
// scope: sha256 over the sorted, underscore-joined pair, hex encoded.
// DeriveRoomID(a, b) == DeriveRoomID(b, a). Rooms are never persisted; a room
// exists only while at least one connection has joined it.
func DeriveRoomID(userID, targetUserID string) string {
	pair := []string{userID, targetUserID}
	sort.Strings(pair)
	sum := sha256.Sum256([]byte(strings.Join(pair, "_")))
	return hex.EncodeToString(sum[:])
}
