package modem

import "math"

// PilotTracker runs an extended Kalman filter over the four pilot
// subcarriers of each received OFDM symbol, tracking a common residual
// complex gain (gr, gi) and a slowly accumulating residual phase theta
// left over after the initial long-training-symbol channel estimate
// and coarse CFO correction. Because the measurement model multiplies
// the complex gain by exp(j*theta), it is nonlinear in theta and is
// linearized (small-angle, exp(j*theta) ~= 1 + j*theta) each update,
// hence "extended" rather than a plain linear Kalman filter.
//
// Measurements are folded in one pilot at a time as a 3-state/
// 2-measurement update (a 3x2 Kalman gain and a 2x2 innovation
// covariance), rather than stacking all four pilots into one 8-wide
// update, matching how the rest of this package avoids pulling in a
// matrix library for small fixed-size linear algebra.
type PilotTracker struct {
	x [3]float64    // gr, gi, theta
	p [3][3]float64 // state covariance
}

// NewPilotTracker starts tracking from an initial common gain (gr, gi)
// derived from the long training symbols, with zero residual phase.
func NewPilotTracker(gr, gi float64) *PilotTracker {
	return &PilotTracker{
		x: [3]float64{gr, gi, 0},
		p: [3][3]float64{
			{0.05, 0, 0},
			{0, 0.05, 0},
			{0, 0, 1e-3},
		},
	}
}

// Predict advances the filter by one OFDM symbol, inflating the
// covariance by the given per-state process noise to account for
// continued channel and CFO drift.
func (t *PilotTracker) Predict(qGain, qPhase float64) {
	t.p[0][0] += qGain
	t.p[1][1] += qGain
	t.p[2][2] += qPhase
}

func (t *PilotTracker) update(known float64, observed complex128, measVar float64) {
	gr, gi, theta := t.x[0], t.x[1], t.x[2]
	r := gr - gi*theta
	im := gi + gr*theta

	innov := [2]float64{real(observed) - known*r, imag(observed) - known*im}

	h := [2][3]float64{
		{known, -known * theta, -known * gi},
		{known * theta, known, known * gr},
	}

	var hp [2][3]float64
	for i := 0; i < 2; i++ {
		for j := 0; j < 3; j++ {
			var s float64
			for k := 0; k < 3; k++ {
				s += h[i][k] * t.p[k][j]
			}
			hp[i][j] = s
		}
	}

	var s [2][2]float64
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			var acc float64
			for k := 0; k < 3; k++ {
				acc += hp[i][k] * h[j][k]
			}
			s[i][j] = acc
		}
	}
	s[0][0] += measVar
	s[1][1] += measVar

	det := s[0][0]*s[1][1] - s[0][1]*s[1][0]
	if math.Abs(det) < 1e-15 {
		return
	}
	inv := [2][2]float64{
		{s[1][1] / det, -s[0][1] / det},
		{-s[1][0] / det, s[0][0] / det},
	}

	var pht [3][2]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 2; j++ {
			var acc float64
			for k := 0; k < 3; k++ {
				acc += t.p[i][k] * h[j][k]
			}
			pht[i][j] = acc
		}
	}

	var k [3][2]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 2; j++ {
			k[i][j] = pht[i][0]*inv[0][j] + pht[i][1]*inv[1][j]
		}
	}

	for i := 0; i < 3; i++ {
		t.x[i] += k[i][0]*innov[0] + k[i][1]*innov[1]
	}

	var kh [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			kh[i][j] = k[i][0]*h[0][j] + k[i][1]*h[1][j]
		}
	}
	var newP [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var acc float64
			for kk := 0; kk < 3; kk++ {
				ikh := -kh[i][kk]
				if i == kk {
					ikh += 1
				}
				acc += ikh * t.p[kk][j]
			}
			newP[i][j] = acc
		}
	}
	t.p = newP
}

// UpdatePilots folds the four observed pilot tones (in PilotSubcarriers
// order) against their known, polarity-scaled template values into the
// filter, one pilot at a time.
func (t *PilotTracker) UpdatePilots(observed []complex128, polarity, measVar float64) {
	for i, known := range pilotTemplate {
		t.update(known*polarity, observed[i], measVar)
	}
}

// Gain returns the filter's current complex correction gain
// (gr+j*gi)*(1+j*theta), the common multiplicative error to divide out
// of every data subcarrier in this symbol.
func (t *PilotTracker) Gain() complex128 {
	gr, gi, theta := t.x[0], t.x[1], t.x[2]
	g := complex(gr, gi)
	return g * complex(1, theta)
}

// Dispersion reports the filter's current estimate of per-subcarrier
// noise variance, derived from the averaged diagonal of its state
// covariance, for use as the soft demapper's sigma^2.
func (t *PilotTracker) Dispersion() float64 {
	d := (t.p[0][0] + t.p[1][1]) / 2
	if d < 1e-6 {
		d = 1e-6
	}
	return d
}

// DerotateData divides the estimated common gain out of 48 data
// subcarrier values.
func (t *PilotTracker) DerotateData(data []complex128) []complex128 {
	g := t.Gain()
	out := make([]complex128, len(data))
	for i, v := range data {
		out[i] = v / g
	}
	return out
}
