package bits

import "testing"

func TestInterleaverIsInvolution(t *testing.T) {
	cases := []struct{ ncbps, nbpsc int }{
		{48, 1}, {96, 2}, {192, 4}, {288, 6},
	}
	for _, c := range cases {
		fwd := ForwardPermutation(c.ncbps, c.nbpsc)
		rev := ReversePermutation(c.ncbps, c.nbpsc)

		in := make([]byte, c.ncbps)
		for i := range in {
			in[i] = byte(i % 2)
		}
		interleaved := Permute(in, fwd)
		restored := Permute(interleaved, rev)
		for i := range in {
			if restored[i] != in[i] {
				t.Fatalf("ncbps=%d nbpsc=%d: bit %d not restored: got %d want %d", c.ncbps, c.nbpsc, i, restored[i], in[i])
			}
		}
	}
}

func TestInterleaverPermutationIsBijection(t *testing.T) {
	fwd := ForwardPermutation(192, 4)
	seen := make([]bool, len(fwd))
	for _, p := range fwd {
		if p < 0 || p >= len(fwd) {
			t.Fatalf("permutation index out of range: %d", p)
		}
		if seen[p] {
			t.Fatalf("permutation index %d repeated", p)
		}
		seen[p] = true
	}
}
