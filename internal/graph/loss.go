package graph

import "math"

// Supported per-output loss functions
const (
	LossBinaryCrossentropy = "binary_crossentropy"
	LossMeanSquaredError   = "mean_squared_error"
)

func validLoss(kind string) bool {
	return kind == LossBinaryCrossentropy || kind == LossMeanSquaredError
}

// clip keeps predicted probabilities away from 0 and 1 so the logs stay finite
func clip(p float32) float64 {
	const eps = 1e-7
	if p < eps {
		return eps
	}
	if p > 1-eps {
		return 1 - eps
	}
	return float64(p)
}

// lossValue computes the unweighted loss of a single prediction against its target,
// averaged over the output's units
func lossValue(kind string, p, t []float32) float32 {
	var sum float64
	switch kind {
	case LossBinaryCrossentropy:
		for j := range p {
			pj := clip(p[j])
			sum -= float64(t[j])*math.Log(pj) + (1-float64(t[j]))*math.Log(1-pj)
		}
	case LossMeanSquaredError:
		for j := range p {
			d := float64(p[j] - t[j])
			sum += d * d
		}
	}
	return float32(sum / float64(len(p)))
}

// lossDelta computes the error at a head's pre-activations for a single sample, scaled
// by the sample's weight. For cross entropy paired with softmax or sigmoid the usual
// cancellation applies and the delta collapses to p - t
func lossDelta(kind, act string, p, t []float32, sw float32) []float32 {
	delta := make([]float32, len(p))
	switch kind {
	case LossBinaryCrossentropy:
		for j := range p {
			delta[j] = (p[j] - t[j]) * sw
		}
	case LossMeanSquaredError:
		scale := 2 / float32(len(p))
		for j := range p {
			delta[j] = scale * (p[j] - t[j]) * derive(act, p[j]) * sw
		}
	}
	return delta
}
