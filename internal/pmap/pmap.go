package pmap

// Persistent Hash Array Mapped Trie (HAMT) implementation.
// Every update returns a new map sharing all untouched nodes with the old one,
// so keeping an old *Map around is a complete, O(1) snapshot.

const (
	hamtBits = 5
	hamtSize = 1 << hamtBits // 32
	hamtMask = hamtSize - 1
)

// Hasher supplies hashing and equality for keys of type K.
// Implementations are expected to be zero-size value types.
type Hasher[K any] interface {
	Hash(K) uint32
	Equal(a, b K) bool
}

// Map is an immutable hash map.
type Map[K any, V any, H Hasher[K]] struct {
	root  *node[K, V]
	count int
}

type node[K any, V any] struct {
	bitmap uint32 // which indices are populated
	nodes  []any  // entry[K, V] or *node[K, V]
}

type entry[K any, V any] struct {
	hash  uint32
	key   K
	value V
}

// New returns an empty persistent map.
func New[K any, V any, H Hasher[K]]() *Map[K, V, H] {
	return &Map[K, V, H]{}
}

func (m *Map[K, V, H]) hasher() H {
	var h H
	return h
}

// Len returns the number of entries
func (m *Map[K, V, H]) Len() int {
	if m == nil {
		return 0
	}
	return m.count
}

// Get returns the value for a key.
func (m *Map[K, V, H]) Get(key K) (V, bool) {
	if m == nil || m.root == nil {
		var zero V
		return zero, false
	}
	h := m.hasher()
	return m.root.get(h, h.Hash(key), key, 0)
}

// Contains checks if a key exists
func (m *Map[K, V, H]) Contains(key K) bool {
	_, ok := m.Get(key)
	return ok
}

// Put returns a new map with the key-value pair added/updated
func (m *Map[K, V, H]) Put(key K, value V) *Map[K, V, H] {
	h := m.hasher()
	hash := h.Hash(key)

	root := &node[K, V]{}
	if m != nil && m.root != nil {
		root = m.root
	}
	newRoot, added := root.put(h, hash, key, value, 0)

	newCount := m.Len()
	if added {
		newCount++
	}
	return &Map[K, V, H]{root: newRoot, count: newCount}
}

// Remove returns a new map with the key removed
func (m *Map[K, V, H]) Remove(key K) *Map[K, V, H] {
	if m == nil || m.root == nil {
		return m
	}
	h := m.hasher()
	newRoot, removed := m.root.remove(h, h.Hash(key), key, 0)
	if !removed {
		return m
	}
	return &Map[K, V, H]{root: newRoot, count: m.count - 1}
}

// Range calls f for every entry until f returns false. Order is unspecified.
func (m *Map[K, V, H]) Range(f func(K, V) bool) {
	if m == nil || m.root == nil {
		return
	}
	m.root.each(f)
}

// Keys returns all keys as a slice
func (m *Map[K, V, H]) Keys() []K {
	keys := make([]K, 0, m.Len())
	m.Range(func(k K, _ V) bool {
		keys = append(keys, k)
		return true
	})
	return keys
}

// --- node methods ---

func (n *node[K, V]) get(h Hasher[K], hash uint32, key K, shift uint) (V, bool) {
	var zero V
	if shift >= 32 {
		// Collision bucket search
		for _, child := range n.nodes {
			if e, ok := child.(entry[K, V]); ok && h.Equal(e.key, key) {
				return e.value, true
			}
		}
		return zero, false
	}

	idx := (hash >> shift) & hamtMask
	bit := uint32(1) << idx
	if n.bitmap&bit == 0 {
		return zero, false
	}

	pos := popcount(n.bitmap & (bit - 1))
	switch v := n.nodes[pos].(type) {
	case entry[K, V]:
		if v.hash == hash && h.Equal(v.key, key) {
			return v.value, true
		}
		return zero, false
	case *node[K, V]:
		return v.get(h, hash, key, shift+hamtBits)
	}
	return zero, false
}

func (n *node[K, V]) clone() *node[K, V] {
	c := &node[K, V]{bitmap: n.bitmap, nodes: make([]any, len(n.nodes))}
	copy(c.nodes, n.nodes)
	return c
}

func (n *node[K, V]) put(h Hasher[K], hash uint32, key K, value V, shift uint) (*node[K, V], bool) {
	// Hash bits exhausted: identical hashes share a collision bucket.
	if shift >= 32 {
		newNode := n.clone()
		for i, child := range newNode.nodes {
			if e, ok := child.(entry[K, V]); ok && h.Equal(e.key, key) {
				newNode.nodes[i] = entry[K, V]{hash: hash, key: key, value: value}
				return newNode, false
			}
		}
		newNode.nodes = append(newNode.nodes, entry[K, V]{hash: hash, key: key, value: value})
		return newNode, true
	}

	idx := (hash >> shift) & hamtMask
	bit := uint32(1) << idx
	newNode := n.clone()

	if n.bitmap&bit == 0 {
		newNode.bitmap |= bit
		pos := popcount(newNode.bitmap & (bit - 1))
		newNode.nodes = append(newNode.nodes, nil)
		copy(newNode.nodes[pos+1:], newNode.nodes[pos:])
		newNode.nodes[pos] = entry[K, V]{hash: hash, key: key, value: value}
		return newNode, true
	}

	pos := popcount(n.bitmap & (bit - 1))
	switch v := newNode.nodes[pos].(type) {
	case entry[K, V]:
		if v.hash == hash && h.Equal(v.key, key) {
			newNode.nodes[pos] = entry[K, V]{hash: hash, key: key, value: value}
			return newNode, false
		}
		// Push both entries one level down
		child := &node[K, V]{}
		child, _ = child.put(h, v.hash, v.key, v.value, shift+hamtBits)
		child, _ = child.put(h, hash, key, value, shift+hamtBits)
		newNode.nodes[pos] = child
		return newNode, true

	case *node[K, V]:
		newChild, added := v.put(h, hash, key, value, shift+hamtBits)
		newNode.nodes[pos] = newChild
		return newNode, added
	}
	return newNode, false
}

func (n *node[K, V]) remove(h Hasher[K], hash uint32, key K, shift uint) (*node[K, V], bool) {
	if shift >= 32 {
		for i, child := range n.nodes {
			if e, ok := child.(entry[K, V]); ok && h.Equal(e.key, key) {
				newNode := &node[K, V]{bitmap: n.bitmap, nodes: make([]any, len(n.nodes)-1)}
				copy(newNode.nodes[:i], n.nodes[:i])
				copy(newNode.nodes[i:], n.nodes[i+1:])
				return newNode, true
			}
		}
		return n, false
	}

	idx := (hash >> shift) & hamtMask
	bit := uint32(1) << idx
	if n.bitmap&bit == 0 {
		return n, false
	}

	pos := popcount(n.bitmap & (bit - 1))
	switch v := n.nodes[pos].(type) {
	case entry[K, V]:
		if v.hash != hash || !h.Equal(v.key, key) {
			return n, false
		}
		return n.without(pos, bit), true

	case *node[K, V]:
		newChild, removed := v.remove(h, hash, key, shift+hamtBits)
		if !removed {
			return n, false
		}
		if len(newChild.nodes) == 0 {
			return n.without(pos, bit), true
		}
		newNode := n.clone()
		// Entries keep their full hash, so a lone leaf can move up a level.
		if e, ok := newChild.nodes[0].(entry[K, V]); ok && len(newChild.nodes) == 1 {
			newNode.nodes[pos] = e
		} else {
			newNode.nodes[pos] = newChild
		}
		return newNode, true
	}
	return n, false
}

func (n *node[K, V]) without(pos int, bit uint32) *node[K, V] {
	newNode := &node[K, V]{bitmap: n.bitmap &^ bit, nodes: make([]any, len(n.nodes)-1)}
	copy(newNode.nodes[:pos], n.nodes[:pos])
	copy(newNode.nodes[pos:], n.nodes[pos+1:])
	return newNode
}

func (n *node[K, V]) each(f func(K, V) bool) bool {
	for _, child := range n.nodes {
		switch v := child.(type) {
		case entry[K, V]:
			if !f(v.key, v.value) {
				return false
			}
		case *node[K, V]:
			if !v.each(f) {
				return false
			}
		}
	}
	return true
}

// popcount counts set bits
func popcount(x uint32) int {
	x = x - ((x >> 1) & 0x55555555)
	x = (x & 0x33333333) + ((x >> 2) & 0x33333333)
	x = (x + (x >> 4)) & 0x0f0f0f0f
	x = x + (x >> 8)
	x = x + (x >> 16)
	return int(x & 0x3f)
}
