package hash

// Size is the size of the hash output in bytes.
const Size = 32

// Sum returns the blake3 hash of the concatenated chunks.
func Sum(chunks ...[]byte) (out [Size]byte) {
	h := GetHasher()
	defer PutHasher(h)
	for _, chunk := range chunks {
		h.Write(chunk)
	}
	h.Sum(out[:0])
	return out
}
