package codec

// BitLayout assigns each named signal a bit mask inside a packed word.
type BitLayout map[string]uint64

// Remap extracts every signal of from out of word and re-emits it at the
// position the signal has in to. Signals missing from to are dropped.
// Multi-bit fields keep their value; only their position changes.
func Remap(word uint64, from, to BitLayout) uint64 {
	var out uint64
	for name, src := range from {
		dst, ok := to[name]
		if !ok || src == 0 || dst == 0 {
			continue
		}
		v := (word & src) >> shift(src)
		out |= (v << shift(dst)) & dst
	}
	return out
}

func shift(mask uint64) uint {
	var n uint
	for mask&1 == 0 {
		mask >>= 1
		n++
	}
	return n
}
