package matching

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// MatchID derives the canonical id for an unordered pair of users. Both
// orderings hash the same bytes, so concurrent creators agree on the id.
// Each uid is length-prefixed so ("ab","c") and ("a","bc") never collide.
func MatchID(a, b string) string {
	lo, hi := SortPair(a, b)
	buf := make([]byte, 0, len(lo)+len(hi)+8)
	buf = strconv.AppendInt(buf, int64(len(lo)), 10)
	buf = append(buf, ':')
	buf = append(buf, lo...)
	buf = strconv.AppendInt(buf, int64(len(hi)), 10)
	buf = append(buf, ':')
	buf = append(buf, hi...)
	h := sha256.Sum256(buf)
	return hex.EncodeToString(h[:16]) // 32-char hex prefix
}

// SortPair returns a and b in ascending order.
func SortPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}
