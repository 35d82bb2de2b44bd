// ABOUTME: Linear resampler for converting track sample rates to the output rate
// ABOUTME: Carries pending input frames and phase across calls so blocks join cleanly
package resample

import "math"

// Resampler performs linear interpolation to convert between sample rates.
// Input frames that later output still interpolates from are carried into the
// next call, along with the fractional read position, so a stream split into
// blocks resamples exactly like the whole stream. It is not safe for
// concurrent use.
type Resampler struct {
	inputRate  int
	outputRate int
	channels   int
	ratio      float64
	position   float64 // in frames from the start of tail
	tail       []int32 // carried input frames, interleaved
	work       []int32
}

// New creates a new resampler
func New(inputRate, outputRate, channels int) *Resampler {
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		ratio:      float64(inputRate) / float64(outputRate),
	}
}

// InputRate returns the current input rate
func (r *Resampler) InputRate() int {
	return r.inputRate
}

// SetInputRate changes the input rate, keeping the carried frames
func (r *Resampler) SetInputRate(rate int) {
	if rate == r.inputRate || rate <= 0 {
		return
	}
	r.inputRate = rate
	r.ratio = float64(rate) / float64(r.outputRate)
}

// Resample converts input samples to output sample rate using linear interpolation.
// input: interleaved samples at inputRate
// output: interleaved samples at outputRate
// Returns the number of samples written to output.
func (r *Resampler) Resample(input []int32, output []int32) int {
	frames := input
	if len(r.tail) > 0 {
		r.work = append(append(r.work[:0], r.tail...), input...)
		frames = r.work
	}

	total := len(frames) / r.channels
	if total == 0 {
		return 0
	}
	outputFrames := len(output) / r.channels

	outIdx := 0
	for outIdx < outputFrames {
		idx := int(math.Floor(r.position))

		// Interpolation needs the frame after idx
		if idx+1 >= total {
			break
		}

		frac := r.position - float64(idx)
		for ch := 0; ch < r.channels; ch++ {
			s1 := frames[idx*r.channels+ch]
			s2 := frames[(idx+1)*r.channels+ch]
			output[outIdx*r.channels+ch] = int32(float64(s1)*(1.0-frac) + float64(s2)*frac)
		}

		outIdx++
		r.position += r.ratio
	}

	// Drop whole frames behind the read position and carry the rest
	drop := min(int(math.Floor(r.position)), total)
	r.tail = append(r.tail[:0], frames[drop*r.channels:total*r.channels]...)
	r.position -= float64(drop)

	return outIdx * r.channels
}

// Reset drops the carried frames and fractional position
func (r *Resampler) Reset() {
	r.position = 0
	r.tail = r.tail[:0]
}

// InputFramesNeeded returns how many new input frames produce exactly
// outputFrames frames from the current position
func (r *Resampler) InputFramesNeeded(outputFrames int) int {
	if outputFrames <= 0 {
		return 0
	}
	last := int(math.Floor(r.position + float64(outputFrames-1)*r.ratio))
	return max(last+2-len(r.tail)/r.channels, 0)
}

// OutputFramesFor estimates how many output frames inputFrames will produce
func (r *Resampler) OutputFramesFor(inputFrames int) int {
	return int(float64(inputFrames) / r.ratio)
}
