package kvstore

// Separator joins a namespace and a logical key.
const Separator = ":"

// PhysicalKey qualifies key with namespace. An empty namespace leaves the key
// untouched.
func PhysicalKey(namespace, key string) []byte {
	if namespace == "" {
		return []byte(key)
	}
	return []byte(namespace + Separator + key)
}

// PrefixRange returns the half-open range [start, limit) holding every key
// that begins with prefix. limit is the shortest key sorting after all such
// keys; it is nil when no such key exists (empty prefix or all 0xff bytes),
// meaning the range is unbounded above.
func PrefixRange(prefix []byte) (start, limit []byte) {
	start = append([]byte{}, prefix...)
	for i := len(prefix) - 1; i >= 0; i-- {
		if c := prefix[i]; c < 0xff {
			limit = make([]byte, i+1)
			copy(limit, prefix)
			limit[i] = c + 1
			return start, limit
		}
	}
	return start, nil
}
