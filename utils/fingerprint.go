package utils

import "hash/fnv"

func U64ToBytes(u uint64) []byte {
	return []byte{
		byte(u >> 56), byte(u >> 48), byte(u >> 40), byte(u >> 32),
		byte(u >> 24), byte(u >> 16), byte(u >> 8), byte(u),
	}
}

// FingerprintString hashes template text for cache keys.
func FingerprintString(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

// FingerprintFragments hashes a fragment list so that ["a b"] and
// ["a", "b"] produce different keys.
func FingerprintFragments(fragments []string) uint64 {
	h := fnv.New64a()
	for _, f := range fragments {
		h.Write(U64ToBytes(uint64(len(f))))
		h.Write([]byte(f))
	}
	return h.Sum64()
}
