package push

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"sort"
)

// hashBuilder writes length-prefixed fields so ("ab","c") and ("a","bc") differ.
type hashBuilder struct {
	h hash.Hash
}

func newHashBuilder() *hashBuilder {
	return &hashBuilder{h: sha256.New()}
}

func (b *hashBuilder) int(n int) *hashBuilder {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(n))
	b.h.Write(buf[:])
	return b
}

func (b *hashBuilder) string(s string) *hashBuilder {
	b.int(len(s))
	b.h.Write([]byte(s))
	return b
}

func (b *hashBuilder) stringMap(m map[string]string) *hashBuilder {
	keys := sortedKeys(m)
	b.int(len(keys))
	for _, k := range keys {
		b.string(k)
		b.string(m[k])
	}
	return b
}

func (b *hashBuilder) build() string {
	return hex.EncodeToString(b.h.Sum(nil))
}

// ContentHash digests a desired-state map. Equal maps hash equally regardless
// of insertion order.
func ContentHash(desired map[string]string) string {
	return newHashBuilder().stringMap(desired).build()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
