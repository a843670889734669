package graph

import (
	algofft "github.com/MeKo-Christian/algo-fft"

	"fxrack/debug"
)

// convolverProc is a uniformly partitioned FFT convolver: the impulse
// response is split into quantum-sized partitions whose spectra are
// multiplied against a frequency-domain delay line of input blocks.
// Swapping the impulse is instant; no crossfade is attempted.
type convolverProc struct {
	quantum  int
	fftSize  int
	plan     *algofft.Plan[complex128]
	invScale float64

	parts [2][][]complex128 // impulse partition spectra per channel
	fdl   [2][][]complex128 // input block spectra, newest at pos
	pos   int
	tail  [2][]float64 // overlap carried into the next block

	scratch []complex128
	acc     []complex128
	time    []complex128
}

func newConvolverProc(quantum int) (*convolverProc, error) {
	fftSize := 2 * quantum
	plan, err := algofft.NewPlan64(fftSize)
	if err != nil {
		return nil, err
	}

	// Inverse scaling conventions differ between FFT libraries;
	// calibrate once with a unit impulse round trip.
	probe := make([]complex128, fftSize)
	spec := make([]complex128, fftSize)
	back := make([]complex128, fftSize)
	probe[0] = 1
	if err := plan.Forward(spec, probe); err != nil {
		return nil, err
	}
	if err := plan.Inverse(back, spec); err != nil {
		return nil, err
	}
	invScale := 1.0
	if mag := real(back[0]); mag != 0 {
		invScale = 1 / mag
	}

	c := &convolverProc{
		quantum:  quantum,
		fftSize:  fftSize,
		plan:     plan,
		invScale: invScale,
		scratch:  make([]complex128, fftSize),
		acc:      make([]complex128, fftSize),
		time:     make([]complex128, fftSize),
	}
	for ch := 0; ch < 2; ch++ {
		c.tail[ch] = make([]float64, quantum)
	}
	return c, nil
}

// setImpulse repartitions the impulse response. The input history is
// reset, so the reverb tail restarts from the swap point.
func (c *convolverProc) setImpulse(ir [][2]float64) error {
	if len(ir) == 0 {
		c.parts = [2][][]complex128{}
		c.fdl = [2][][]complex128{}
		return nil
	}

	numParts := (len(ir) + c.quantum - 1) / c.quantum
	for ch := 0; ch < 2; ch++ {
		parts := make([][]complex128, numParts)
		for p := 0; p < numParts; p++ {
			for i := range c.scratch {
				c.scratch[i] = 0
			}
			start := p * c.quantum
			end := start + c.quantum
			if end > len(ir) {
				end = len(ir)
			}
			for i := start; i < end; i++ {
				c.scratch[i-start] = complex(ir[i][ch], 0)
			}
			spec := make([]complex128, c.fftSize)
			if err := c.plan.Forward(spec, c.scratch); err != nil {
				return err
			}
			parts[p] = spec
		}
		c.parts[ch] = parts

		fdl := make([][]complex128, numParts)
		for p := range fdl {
			fdl[p] = make([]complex128, c.fftSize)
		}
		c.fdl[ch] = fdl
		for i := range c.tail[ch] {
			c.tail[ch][i] = 0
		}
	}
	c.pos = 0
	return nil
}

func (c *convolverProc) process(in, out [][2]float64) {
	if len(c.parts[0]) == 0 {
		copy(out, in)
		return
	}
	numParts := len(c.parts[0])
	frames := len(in)

	for ch := 0; ch < 2; ch++ {
		// FFT the current input block into the delay line.
		for i := range c.scratch {
			c.scratch[i] = 0
		}
		for i := 0; i < frames; i++ {
			c.scratch[i] = complex(in[i][ch], 0)
		}
		if err := c.plan.Forward(c.fdl[ch][c.pos], c.scratch); err != nil {
			debug.Warn("graph", "convolver forward FFT: %v", err)
			copy(out, in)
			return
		}

		for i := range c.acc {
			c.acc[i] = 0
		}
		for p := 0; p < numParts; p++ {
			block := c.fdl[ch][(c.pos-p+numParts)%numParts]
			part := c.parts[ch][p]
			for i := range c.acc {
				c.acc[i] += block[i] * part[i]
			}
		}
		if err := c.plan.Inverse(c.time, c.acc); err != nil {
			debug.Warn("graph", "convolver inverse FFT: %v", err)
			copy(out, in)
			return
		}

		for i := 0; i < frames; i++ {
			out[i][ch] = real(c.time[i])*c.invScale + c.tail[ch][i]
		}
		for i := 0; i < c.quantum; i++ {
			c.tail[ch][i] = real(c.time[c.quantum+i]) * c.invScale
		}
	}
	c.pos = (c.pos + 1) % numParts
}

// NewConvolver creates a convolver node. Until an impulse is set it
// passes audio through untouched. Returns nil if the FFT plan cannot
// be built.
func (c *Context) NewConvolver() *Node {
	proc, err := newConvolverProc(c.quantum)
	if err != nil {
		debug.Warn("graph", "convolver plan: %v", err)
		return nil
	}
	return c.newNode(KindConvolver, proc)
}

// SetImpulse swaps the convolver's impulse response immediately.
func (n *Node) SetImpulse(ir [][2]float64) error {
	p, ok := n.proc.(*convolverProc)
	if !ok {
		return ErrWrongKind
	}
	return p.setImpulse(ir)
}
