package pmap

// Str hashes string-like keys with FNV-1a.
type Str[K ~string] struct{}

func (Str[K]) Hash(k K) uint32 { return HashString(string(k)) }

func (Str[K]) Equal(a, b K) bool { return a == b }

// Int hashes integer keys.
type Int[K ~int | ~int32 | ~int64 | ~uint32 | ~uint64] struct{}

func (Int[K]) Hash(k K) uint32 {
	x := uint64(k)
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	return uint32(x)
}

func (Int[K]) Equal(a, b K) bool { return a == b }

// HashString computes the 32-bit FNV-1a hash of s.
func HashString(s string) uint32 {
	h := uint32(2166136261)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}
