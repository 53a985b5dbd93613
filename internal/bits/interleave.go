package bits

// ForwardPermutation and ReversePermutation implement the two-step
// 802.11a block interleaver. ncbps is the number of coded bits per OFDM
// symbol for the active rate, nbpsc the number of coded bits per
// subcarrier (1, 2, 4 or 6). Permute(in, perm) then gathers
// out[j] = in[perm[j]].

// ForwardPermutation builds the encode-side interleaving permutation.
func ForwardPermutation(ncbps, nbpsc int) []int {
	s := nbpsc / 2
	if s < 1 {
		s = 1
	}
	perm := make([]int, ncbps)
	for j := 0; j < ncbps; j++ {
		i := s*(j/s) + (j+16*j/ncbps)%s
		perm[j] = 16*i - (ncbps-1)*(16*i/ncbps)
	}
	return perm
}

// ReversePermutation builds the decode-side deinterleaving permutation,
// the inverse of ForwardPermutation for the same (ncbps, nbpsc).
func ReversePermutation(ncbps, nbpsc int) []int {
	s := nbpsc / 2
	if s < 1 {
		s = 1
	}
	perm := make([]int, ncbps)
	for j := 0; j < ncbps; j++ {
		i := (ncbps/16)*(j%16) + j/16
		perm[j] = s*(i/s) + (i+ncbps-(16*i/ncbps))%s
	}
	return perm
}

// Permute gathers out[j] = in[perm[j]] for an arbitrary element type, so
// the same permutation tables drive both the encoder (over hard bits)
// and the decoder (over soft LLRs).
func Permute[T any](in []T, perm []int) []T {
	out := make([]T, len(perm))
	for j, p := range perm {
		out[j] = in[p]
	}
	return out
}
