package audio

import (
	"math"

	apperrors "github.com/awslabs/aws-lex-browser-audio-capture/internal/errors"
)

// Downsample decimates in from fromRate to toRate by averaging each bucket of
// source samples. Equal rates return in unchanged. Upsampling is rejected.
//
// Output sample i averages the inputs in [round(i*r), round((i+1)*r)) with
// r = fromRate/toRate. A bucket that ends up empty yields 0.
func Downsample(in []float32, fromRate, toRate int) ([]float32, error) {
	if fromRate <= 0 || toRate <= 0 {
		return nil, apperrors.Newf(apperrors.CodeInvalidArgument, "sample rates must be positive, got %d -> %d", fromRate, toRate)
	}
	if fromRate == toRate {
		return in, nil
	}
	if toRate > fromRate {
		return nil, apperrors.Newf(apperrors.CodeInvalidArgument, "upsampling %d -> %d is not supported", fromRate, toRate)
	}

	ratio := float64(fromRate) / float64(toRate)
	out := make([]float32, int(math.Round(float64(len(in))/ratio)))

	start := 0
	for i := range out {
		end := int(math.Round(float64(i+1) * ratio))
		if end > len(in) {
			end = len(in)
		}
		var sum float64
		count := 0
		for j := start; j < end; j++ {
			sum += float64(in[j])
			count++
		}
		if count > 0 {
			out[i] = float32(sum / float64(count))
		}
		start = end
	}
	return out, nil
}
