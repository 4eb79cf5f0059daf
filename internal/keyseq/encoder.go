package keyseq

// Encode returns the event sequence that types r. It is total over the
// Unicode domain and never fails: characters with a direct key on the US
// layout use the precomputed table, everything else goes through the
// Unicode entry gesture.
func Encode(r rune) Sequence {
	if seq, ok := latinSequences[r]; ok {
		return seq
	}
	return encodeFallback(r)
}

// EncodeString returns the ordered concatenation of the per-rune sequences
// of s, with no reordering or merging across character boundaries. The
// empty string encodes to an empty sequence: no events, no marker.
func EncodeString(s string) Sequence {
	var seq Sequence
	for _, r := range s {
		seq = append(seq, Encode(r)...)
	}
	return seq
}
