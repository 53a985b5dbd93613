package modem

import (
	"math/cmplx"
	"testing"
)

func TestPilotTrackerConvergesOnStaticGain(t *testing.T) {
	const gr, gi = 0.8, 0.1
	gain := complex(gr, gi)

	tracker := NewPilotTracker(1, 0)
	for symbol := 0; symbol < 40; symbol++ {
		tracker.Predict(1e-5, 1e-7)
		polarity := 1.0
		if symbol%2 == 1 {
			polarity = -1.0
		}
		observed := make([]complex128, NumPilots)
		for i, tmpl := range pilotTemplate {
			observed[i] = complex(tmpl*polarity, 0) * gain
		}
		tracker.UpdatePilots(observed, polarity, 1e-6)
	}

	got := tracker.Gain()
	if cmplx.Abs(got-gain) > 0.05 {
		t.Fatalf("tracker gain %v did not converge to %v", got, gain)
	}
}

func TestPilotTrackerDerotatesData(t *testing.T) {
	tracker := NewPilotTracker(2, 0)
	data := []complex128{2, -2, 4}
	derotated := tracker.DerotateData(data)
	for i, v := range derotated {
		want := data[i] / complex(2, 0)
		if cmplx.Abs(v-want) > 1e-9 {
			t.Fatalf("derotated[%d] = %v, want %v", i, v, want)
		}
	}
}
