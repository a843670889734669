// Package graph implements a small pull-based stereo audio graph:
// nodes connect into a DAG, the destination pulls one render quantum
// at a time, and fan-in edges are summed. Nodes cache their output per
// quantum so a node feeding two consumers renders exactly once.
package graph

import "errors"

// DefaultQuantum is the render block size in frames.
const DefaultQuantum = 512

var (
	ErrWrongKind  = errors.New("graph: operation does not match node kind")
	ErrNilNode    = errors.New("graph: nil node")
	ErrCrossGraph = errors.New("graph: nodes belong to different contexts")
)

// Kind identifies what a node does.
type Kind int

const (
	KindSource Kind = iota
	KindGain
	KindWaveshaper
	KindBiquad
	KindConvolver
	KindDestination
)

// Context owns the graph: sample rate, render quantum and the
// destination sink every audible chain ends in.
type Context struct {
	sampleRate int
	quantum    int
	seq        uint64
	dest       *Node

	// frames rendered ahead of the caller when a requested length is
	// not a quantum multiple
	carry    [][2]float64
	carryPos int
	carryLen int
}

// NewContext creates a graph context with the default render quantum.
func NewContext(sampleRate int) *Context {
	c := &Context{sampleRate: sampleRate, quantum: DefaultQuantum}
	c.dest = c.newNode(KindDestination, passthrough{})
	return c
}

func (c *Context) SampleRate() int { return c.sampleRate }
func (c *Context) Quantum() int    { return c.quantum }

// Destination returns the sink node. Connect chain tails here.
func (c *Context) Destination() *Node { return c.dest }

// Render pulls len(out) frames through the destination. Nodes always
// process whole quanta: when the requested length is not a quantum
// multiple, the excess of the final block is carried into the next
// call, so stateful processors see one uninterrupted stream no matter
// how the caller sizes its buffers.
func (c *Context) Render(out [][2]float64) {
	for off := 0; off < len(out); {
		if c.carryPos < c.carryLen {
			n := copy(out[off:], c.carry[c.carryPos:c.carryLen])
			c.carryPos += n
			off += n
			continue
		}
		c.seq++
		block := c.dest.render(c.seq)
		n := copy(out[off:], block)
		off += n
		if n < c.quantum {
			if c.carry == nil {
				c.carry = make([][2]float64, c.quantum)
			}
			c.carryLen = copy(c.carry, block[n:])
			c.carryPos = 0
		}
	}
}

// processor implementations always receive exactly one quantum of
// frames; Render guarantees it.
type processor interface {
	process(in, out [][2]float64)
}

// Node is one processing unit in the graph. All mutation happens on
// the render owner's goroutine; the graph does no internal locking.
type Node struct {
	ctx     *Context
	kind    Kind
	inputs  []*Node
	outputs []*Node
	seq     uint64
	out     [][2]float64
	sum     [][2]float64
	proc    processor
}

func (c *Context) newNode(kind Kind, proc processor) *Node {
	return &Node{
		ctx:  c,
		kind: kind,
		out:  make([][2]float64, c.quantum),
		sum:  make([][2]float64, c.quantum),
		proc: proc,
	}
}

func (n *Node) Kind() Kind { return n.kind }

// Connect routes this node's output into dst.
func (n *Node) Connect(dst *Node) error {
	if dst == nil {
		return ErrNilNode
	}
	if dst.ctx != n.ctx {
		return ErrCrossGraph
	}
	dst.inputs = append(dst.inputs, n)
	n.outputs = append(n.outputs, dst)
	return nil
}

// Disconnect removes every outgoing edge of this node.
func (n *Node) Disconnect() {
	for _, dst := range n.outputs {
		kept := dst.inputs[:0]
		for _, in := range dst.inputs {
			if in != n {
				kept = append(kept, in)
			}
		}
		dst.inputs = kept
	}
	n.outputs = nil
}

// Outputs returns a snapshot of the nodes this node feeds.
func (n *Node) Outputs() []*Node {
	out := make([]*Node, len(n.outputs))
	copy(out, n.outputs)
	return out
}

// Inputs returns a snapshot of the nodes feeding this node.
func (n *Node) Inputs() []*Node {
	in := make([]*Node, len(n.inputs))
	copy(in, n.inputs)
	return in
}

func (n *Node) render(seq uint64) [][2]float64 {
	if n.seq == seq {
		return n.out
	}
	n.seq = seq
	for i := range n.sum {
		n.sum[i] = [2]float64{}
	}
	for _, in := range n.inputs {
		block := in.render(seq)
		for i := range block {
			n.sum[i][0] += block[i][0]
			n.sum[i][1] += block[i][1]
		}
	}
	n.proc.process(n.sum, n.out)
	return n.out
}
