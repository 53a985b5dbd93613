package modem

import (
	"math/cmplx"
	"testing"
)

func TestEncodeDecodeSymbolRoundTrip(t *testing.T) {
	data := make([]complex128, NumDataSubcarriers)
	for i := range data {
		if i%2 == 0 {
			data[i] = 1
		} else {
			data[i] = -1
		}
	}
	symbol := EncodeSymbol(data, 1)
	if len(symbol) != SymbolLen {
		t.Fatalf("symbol length = %d, want %d", len(symbol), SymbolLen)
	}

	spectrum := DecodeSymbol(symbol)
	got := ExtractData(spectrum)
	for i := range data {
		if cmplx.Abs(got[i]-data[i]) > 1e-9 {
			t.Fatalf("data subcarrier %d = %v, want %v", i, got[i], data[i])
		}
	}

	pilots := ExtractPilots(spectrum)
	for i, p := range pilots {
		want := complex(pilotTemplate[i], 0)
		if cmplx.Abs(p-want) > 1e-9 {
			t.Fatalf("pilot %d = %v, want %v", i, p, want)
		}
	}
}

func TestDataAndPilotSubcarriersPartitionUsedBand(t *testing.T) {
	data := DataSubcarriers()
	pilots := PilotSubcarriers()
	if len(data) != NumDataSubcarriers {
		t.Fatalf("got %d data subcarriers, want %d", len(data), NumDataSubcarriers)
	}
	if len(pilots) != NumPilots {
		t.Fatalf("got %d pilots, want %d", len(pilots), NumPilots)
	}
	seen := map[int]bool{}
	for _, k := range data {
		seen[k] = true
	}
	for _, k := range pilots {
		if seen[k] {
			t.Fatalf("pilot %d also classified as data", k)
		}
	}
}

func TestBlendSymbolsLength(t *testing.T) {
	data := make([]complex128, NumDataSubcarriers)
	sym1 := EncodeSymbol(data, 1)
	sym2 := EncodeSymbol(data, -1)
	out := BlendSymbols([][]complex128{sym1, sym2})
	want := 2*FFTSize + CPLen
	if len(out) != want {
		t.Fatalf("blended length = %d, want %d", len(out), want)
	}
}

func TestTrainingSpectraAreBitExact(t *testing.T) {
	sts := ShortTrainingSpectrum()
	nonzero := 0
	for _, v := range sts {
		if v != 0 {
			nonzero++
		}
	}
	if nonzero != 12 {
		t.Fatalf("STS should have 12 nonzero tones, got %d", nonzero)
	}

	lts := LongTrainingSpectrum()
	if lts[binIndex(0)] != 0 {
		t.Fatalf("LTS DC tone must be zero")
	}
	nonzero = 0
	for _, v := range lts {
		if v != 0 {
			nonzero++
		}
	}
	if nonzero != 52 {
		t.Fatalf("LTS should have 52 nonzero tones, got %d", nonzero)
	}
}
