package effects

import (
	"fxrack/debug"
	"fxrack/graph"
)

// EffectNode is the live processing subgraph for one enabled effect.
// Compound effects carry distinct input and output taps; simple
// effects use the same node for both.
type EffectNode struct {
	effect string
	input  *graph.Node
	output *graph.Node

	// distortion
	shaper *graph.Node

	// reverb
	dry       *graph.Node
	wet       *graph.Node
	convolver *graph.Node
	bank      [][][2]float64

	// filter
	highPass *graph.Node
	lowPass  *graph.Node
}

func (n *EffectNode) Effect() string         { return n.effect }
func (n *EffectNode) InputTap() *graph.Node  { return n.input }
func (n *EffectNode) OutputTap() *graph.Node { return n.output }

// Detach removes every outgoing edge of the node's constituent graph
// nodes, leaving nothing dangling into the live topology.
func (n *EffectNode) Detach() {
	for _, gn := range []*graph.Node{n.input, n.output, n.shaper, n.dry, n.wet, n.convolver, n.highPass, n.lowPass} {
		if gn != nil {
			gn.Disconnect()
		}
	}
}

type factory struct {
	create func(*graph.Context) *EffectNode
	update func(*EffectNode, string, float64) bool
}

var factories = map[string]factory{
	Distortion: {create: createDistortion, update: updateDistortion},
	Reverb:     {create: createReverb, update: updateReverb},
	Filter:     {create: createFilter, update: updateFilter},
}

// Create builds a fresh subgraph for the named effect. Returns nil on
// unknown effects or internal failure; the caller treats the effect
// as unavailable and omits it from the chain.
func Create(ctx *graph.Context, effect string) *EffectNode {
	if ctx == nil {
		debug.Warn("effects", "create %s: no graph context", effect)
		return nil
	}
	f, ok := factories[effect]
	if !ok {
		debug.Warn("effects", "create: unknown effect %q", effect)
		return nil
	}
	return f.create(ctx)
}

// UpdateParameter applies a new value to a live node. Shape mismatches
// and unknown parameters log and no-op; the chain keeps running.
func UpdateParameter(node *EffectNode, parameter string, value float64) {
	if node == nil {
		debug.Warn("effects", "update %s: nil node", parameter)
		return
	}
	f, ok := factories[node.effect]
	if !ok {
		debug.Warn("effects", "update: unknown effect %q", node.effect)
		return
	}
	if !f.update(node, parameter, value) {
		debug.Warn("effects", "update %s.%s: unknown parameter or bad node shape", node.effect, parameter)
	}
}

func createDistortion(ctx *graph.Context) *EffectNode {
	shaper := ctx.NewWaveshaper()
	if err := shaper.SetCurve(DistortionCurve(DistortionAmount(30))); err != nil {
		debug.Warn("effects", "distortion curve: %v", err)
		return nil
	}
	return &EffectNode{effect: Distortion, input: shaper, output: shaper, shaper: shaper}
}

func updateDistortion(n *EffectNode, parameter string, value float64) bool {
	if parameter != "amount" || n.shaper == nil {
		return false
	}
	return n.shaper.SetCurve(DistortionCurve(DistortionAmount(value))) == nil
}

func createReverb(ctx *graph.Context) *EffectNode {
	conv := ctx.NewConvolver()
	if conv == nil {
		return nil
	}
	bank := impulseBank(ctx.SampleRate())
	if err := conv.SetImpulse(bank[RoomIndex(50)]); err != nil {
		debug.Warn("effects", "reverb impulse: %v", err)
		return nil
	}

	input := ctx.NewGain(1)
	dry := ctx.NewGain(0.7)
	wet := ctx.NewGain(0.3)
	output := ctx.NewGain(1)

	input.Connect(dry)
	dry.Connect(output)
	input.Connect(conv)
	conv.Connect(wet)
	wet.Connect(output)

	return &EffectNode{
		effect:    Reverb,
		input:     input,
		output:    output,
		dry:       dry,
		wet:       wet,
		convolver: conv,
		bank:      bank,
	}
}

func updateReverb(n *EffectNode, parameter string, value float64) bool {
	switch parameter {
	case "roomSize":
		if n.convolver == nil || len(n.bank) != RoomCount {
			return false
		}
		if err := n.convolver.SetImpulse(n.bank[RoomIndex(value)]); err != nil {
			debug.Warn("effects", "reverb room switch: %v", err)
			return false
		}
		return true
	case "mix":
		if n.wet == nil || n.dry == nil {
			return false
		}
		wet := value / 100
		return n.wet.SetGain(wet) == nil && n.dry.SetGain(1-wet) == nil
	}
	return false
}

func createFilter(ctx *graph.Context) *EffectNode {
	hp := ctx.NewBiquad(graph.HighPass, FilterFrequency(0), FilterQ(10))
	lp := ctx.NewBiquad(graph.LowPass, FilterFrequency(100), FilterQ(10))
	hp.Connect(lp)
	return &EffectNode{effect: Filter, input: hp, output: lp, highPass: hp, lowPass: lp}
}

func updateFilter(n *EffectNode, parameter string, value float64) bool {
	if n.highPass == nil || n.lowPass == nil {
		return false
	}
	switch parameter {
	case "highPassFreq":
		return n.highPass.SetFrequency(FilterFrequency(value)) == nil
	case "highPassQ":
		return n.highPass.SetQ(FilterQ(value)) == nil
	case "lowPassFreq":
		return n.lowPass.SetFrequency(FilterFrequency(value)) == nil
	case "lowPassQ":
		return n.lowPass.SetQ(FilterQ(value)) == nil
	}
	return false
}
