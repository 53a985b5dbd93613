package modem

import (
	"math/cmplx"
	"testing"
)

func TestChannelEstimatorRecoversKnownGain(t *testing.T) {
	const gr, gi = 0.5, -0.2
	gain := complex(gr, gi)

	lts := LongTrainingSpectrum()
	var rx [FFTSize]complex128
	for i, v := range lts {
		rx[i] = v * gain
	}

	var ce ChannelEstimator
	ce.EstimateFromLTS(rx, rx)

	igr, igi := ce.InitialGain()
	if cmplx.Abs(complex(igr, igi)-gain) > 1e-9 {
		t.Fatalf("initial gain = %v+%vi, want %v", igr, igi, gain)
	}
	if ce.Dispersion() > 1e-3 {
		t.Fatalf("dispersion should be near zero for identical repetitions, got %v", ce.Dispersion())
	}
}

func TestChannelEstimatorEqualizeUndoesGain(t *testing.T) {
	const gr, gi = 1.5, 0.3
	gain := complex(gr, gi)

	lts := LongTrainingSpectrum()
	var rx [FFTSize]complex128
	for i, v := range lts {
		rx[i] = v * gain
	}
	var ce ChannelEstimator
	ce.EstimateFromLTS(rx, rx)

	data := make([]complex128, NumDataSubcarriers)
	for i := range data {
		data[i] = 1
	}
	spec := InsertSymbol(data, 1)
	var received [FFTSize]complex128
	for i, v := range spec {
		received[i] = v * gain
	}

	eq := ce.Equalize(received)
	got := ExtractData(eq)
	for i, v := range got {
		if cmplx.Abs(v-data[i]) > 1e-6 {
			t.Fatalf("equalized data[%d] = %v, want %v", i, v, data[i])
		}
	}
}
