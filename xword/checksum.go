package xword

import "math/bits"

// Checksum folds b into seed: for each byte the accumulator is rotated right
// by one bit and the byte is added, modulo 2^16. Seeding with the checksum of
// a preceding region checksums the concatenation of both regions.
func Checksum(b []byte, seed uint16) uint16 {
	sum := seed
	for _, c := range b {
		sum = bits.RotateLeft16(sum, -1) + uint16(c)
	}
	return sum
}

// checksumString checksums a metadata string together with its terminating
// NUL. Empty strings contribute nothing.
func checksumString(s []byte, seed uint16) uint16 {
	if len(s) == 0 {
		return seed
	}
	return Checksum([]byte{0}, Checksum(s, seed))
}
