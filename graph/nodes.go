package graph

import "math"

type passthrough struct{}

func (passthrough) process(in, out [][2]float64) { copy(out, in) }

// StreamFunc fills buf with frames and reports how many were written
// and whether the stream can produce more. Same shape as a beep
// streamer so media decoders drop straight in.
type StreamFunc func(buf [][2]float64) (n int, ok bool)

type sourceProc struct {
	stream StreamFunc
}

func (s *sourceProc) process(in, out [][2]float64) {
	if s.stream == nil {
		for i := range out {
			out[i] = [2]float64{}
		}
		return
	}
	n, _ := s.stream(out)
	for i := n; i < len(out); i++ {
		out[i] = [2]float64{}
	}
}

// NewSource creates a node fed by stream. A nil stream renders silence.
func (c *Context) NewSource(stream StreamFunc) *Node {
	return c.newNode(KindSource, &sourceProc{stream: stream})
}

type gainProc struct {
	value float64
}

func (g *gainProc) process(in, out [][2]float64) {
	for i := range in {
		out[i][0] = in[i][0] * g.value
		out[i][1] = in[i][1] * g.value
	}
}

// NewGain creates a gain node with the given initial value.
func (c *Context) NewGain(value float64) *Node {
	return c.newNode(KindGain, &gainProc{value: value})
}

// SetGain updates a gain node's multiplier.
func (n *Node) SetGain(value float64) error {
	g, ok := n.proc.(*gainProc)
	if !ok {
		return ErrWrongKind
	}
	g.value = value
	return nil
}

// Gain reads a gain node's multiplier.
func (n *Node) Gain() (float64, error) {
	g, ok := n.proc.(*gainProc)
	if !ok {
		return 0, ErrWrongKind
	}
	return g.value, nil
}

type waveshaperProc struct {
	curve []float64
}

func (w *waveshaperProc) process(in, out [][2]float64) {
	if len(w.curve) < 2 {
		copy(out, in)
		return
	}
	for i := range in {
		out[i][0] = w.shape(in[i][0])
		out[i][1] = w.shape(in[i][1])
	}
}

// shape maps x in [-1,1] through the curve table with linear
// interpolation; values outside the domain clamp to the table edges.
func (w *waveshaperProc) shape(x float64) float64 {
	pos := (x + 1) / 2 * float64(len(w.curve)-1)
	if pos <= 0 {
		return w.curve[0]
	}
	if pos >= float64(len(w.curve)-1) {
		return w.curve[len(w.curve)-1]
	}
	i := int(pos)
	frac := pos - float64(i)
	return w.curve[i] + (w.curve[i+1]-w.curve[i])*frac
}

// NewWaveshaper creates a waveshaper node. Until a curve is set it
// passes audio through untouched.
func (c *Context) NewWaveshaper() *Node {
	return c.newNode(KindWaveshaper, &waveshaperProc{})
}

// SetCurve replaces the waveshaper transfer table.
func (n *Node) SetCurve(curve []float64) error {
	w, ok := n.proc.(*waveshaperProc)
	if !ok {
		return ErrWrongKind
	}
	w.curve = curve
	return nil
}

// FilterKind selects the biquad response.
type FilterKind int

const (
	HighPass FilterKind = iota
	LowPass
)

type biquadProc struct {
	kind       FilterKind
	sampleRate float64
	freq       float64
	q          float64

	b0, b1, b2, a1, a2 float64
	x1, x2, y1, y2     [2]float64
}

// recompute derives RBJ cookbook coefficients from freq/Q.
func (b *biquadProc) recompute() {
	freq := b.freq
	nyquist := b.sampleRate / 2
	if freq < 1 {
		freq = 1
	}
	if freq > nyquist*0.999 {
		freq = nyquist * 0.999
	}
	q := b.q
	if q < 0.0001 {
		q = 0.0001
	}

	w := 2 * math.Pi * freq / b.sampleRate
	cosw := math.Cos(w)
	alpha := math.Sin(w) / (2 * q)

	var b0, b1, b2 float64
	switch b.kind {
	case LowPass:
		b0 = (1 - cosw) / 2
		b1 = 1 - cosw
		b2 = (1 - cosw) / 2
	case HighPass:
		b0 = (1 + cosw) / 2
		b1 = -(1 + cosw)
		b2 = (1 + cosw) / 2
	}
	a0 := 1 + alpha
	b.b0 = b0 / a0
	b.b1 = b1 / a0
	b.b2 = b2 / a0
	b.a1 = -2 * cosw / a0
	b.a2 = (1 - alpha) / a0
}

func (b *biquadProc) process(in, out [][2]float64) {
	for ch := 0; ch < 2; ch++ {
		x1, x2 := b.x1[ch], b.x2[ch]
		y1, y2 := b.y1[ch], b.y2[ch]
		for i := range in {
			x := in[i][ch]
			y := b.b0*x + b.b1*x1 + b.b2*x2 - b.a1*y1 - b.a2*y2
			x2, x1 = x1, x
			y2, y1 = y1, y
			out[i][ch] = y
		}
		b.x1[ch], b.x2[ch] = x1, x2
		b.y1[ch], b.y2[ch] = y1, y2
	}
}

// NewBiquad creates a resonant high-pass or low-pass filter node.
func (c *Context) NewBiquad(kind FilterKind, freq, q float64) *Node {
	b := &biquadProc{kind: kind, sampleRate: float64(c.sampleRate), freq: freq, q: q}
	b.recompute()
	return c.newNode(KindBiquad, b)
}

// SetFrequency retunes a biquad node, keeping its filter state.
func (n *Node) SetFrequency(freq float64) error {
	b, ok := n.proc.(*biquadProc)
	if !ok {
		return ErrWrongKind
	}
	b.freq = freq
	b.recompute()
	return nil
}

// SetQ changes a biquad node's resonance.
func (n *Node) SetQ(q float64) error {
	b, ok := n.proc.(*biquadProc)
	if !ok {
		return ErrWrongKind
	}
	b.q = q
	b.recompute()
	return nil
}
