package modem

import (
	"log"
	"math"
	"math/cmplx"
	"sync"

	"github.com/klauspost/cpuid/v2"
)

// twiddleCache memoizes per-size twiddle factor tables so repeated
// 64-point OFDM symbol transforms don't recompute cmplx.Exp on every
// call. The detected CPU's brand, cache line width and AVX2/FMA3
// support are only logged once at init; they do not change the cache
// or the transform.
var (
	twiddleMu    sync.Mutex
	twiddleCache = map[int][]complex128{}
)

func init() {
	log.Printf("modem: cpu=%s cacheline=%dB avx2=%v fma3=%v",
		cpuid.CPU.BrandName, cpuid.CPU.CacheLine, cpuid.CPU.Supports(cpuid.AVX2), cpuid.CPU.Supports(cpuid.FMA3))
}

// twiddles returns the n-element forward-transform twiddle factor table
// exp(-2*pi*i*k/n) for k in [0, n), building and caching it on first use
// for this size.
func twiddles(n int) []complex128 {
	twiddleMu.Lock()
	defer twiddleMu.Unlock()
	if t, ok := twiddleCache[n]; ok {
		return t
	}
	t := make([]complex128, n)
	for k := 0; k < n; k++ {
		t[k] = cmplx.Exp(complex(0, -2*math.Pi*float64(k)/float64(n)))
	}
	twiddleCache[n] = t
	return t
}

// FFT computes the Discrete Fourier Transform using Cooley-Tukey radix-2.
// Input length must be a power of 2.
func FFT(x []complex128) []complex128 {
	n := len(x)
	if n <= 1 {
		out := make([]complex128, n)
		copy(out, x)
		return out
	}
	if n&(n-1) != 0 {
		panic("FFT: length must be a power of 2")
	}

	out := make([]complex128, n)
	copy(out, x)
	bitReverse(out)
	fftIterative(out, false)
	return out
}

// IFFT computes the Inverse Discrete Fourier Transform.
func IFFT(x []complex128) []complex128 {
	n := len(x)
	if n <= 1 {
		out := make([]complex128, n)
		copy(out, x)
		return out
	}

	out := make([]complex128, n)
	copy(out, x)
	bitReverse(out)
	fftIterative(out, true)

	scale := 1.0 / float64(n)
	for i := range out {
		out[i] *= complex(scale, 0)
	}
	return out
}

func fftIterative(x []complex128, inverse bool) {
	n := len(x)
	base := twiddles(n)
	for size := 2; size <= n; size <<= 1 {
		halfSize := size >> 1
		stride := n / size
		for start := 0; start < n; start += size {
			for j := 0; j < halfSize; j++ {
				w := base[j*stride]
				if inverse {
					w = cmplx.Conj(w)
				}
				u := x[start+j]
				v := w * x[start+j+halfSize]
				x[start+j] = u + v
				x[start+j+halfSize] = u - v
			}
		}
	}
}

func bitReverse(x []complex128) {
	n := len(x)
	bits := 0
	for tmp := n; tmp > 1; tmp >>= 1 {
		bits++
	}
	for i := 0; i < n; i++ {
		j := reverseBits(i, bits)
		if i < j {
			x[i], x[j] = x[j], x[i]
		}
	}
}

func reverseBits(x, bits int) int {
	result := 0
	for i := 0; i < bits; i++ {
		result = (result << 1) | (x & 1)
		x >>= 1
	}
	return result
}

// RealFFT performs FFT on real-valued input.
func RealFFT(x []float64) []complex128 {
	n := len(x)
	cx := make([]complex128, n)
	for i, v := range x {
		cx[i] = complex(v, 0)
	}
	return FFT(cx)
}

// RealIFFT performs IFFT and returns only the real part.
func RealIFFT(x []complex128) []float64 {
	result := IFFT(x)
	out := make([]float64, len(result))
	for i, v := range result {
		out[i] = real(v)
	}
	return out
}
