package effects

import (
	"math"
	"testing"

	"fxrack/graph"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func TestDistortionCurveIdentityAtZero(t *testing.T) {
	curve := DistortionCurve(0)
	if len(curve) != CurveSamples {
		t.Fatalf("curve length = %d, want %d", len(curve), CurveSamples)
	}
	for _, i := range []int{0, CurveSamples / 4, CurveSamples / 2, CurveSamples - 1} {
		x := float64(i)*2/float64(CurveSamples) - 1
		if !almostEqual(curve[i], x, 1e-12) {
			t.Errorf("curve[%d] = %v, want identity %v", i, curve[i], x)
		}
	}
}

func TestDistortionCurveFormula(t *testing.T) {
	amount := 400.0
	curve := DistortionCurve(amount)
	deg := math.Pi / 180
	for _, i := range []int{0, 1000, CurveSamples / 2, CurveSamples - 1} {
		x := float64(i)*2/float64(CurveSamples) - 1
		want := (3 + amount) * x * 20 * deg / (math.Pi + amount*math.Abs(x))
		if !almostEqual(curve[i], want, 1e-12) {
			t.Errorf("curve[%d] = %v, want %v", i, curve[i], want)
		}
	}
}

func TestDistortionAmountTaper(t *testing.T) {
	if got := DistortionAmount(0); got != 0 {
		t.Errorf("amount 0 -> %v, want 0", got)
	}
	if got := DistortionAmount(100); !almostEqual(got, 800, 1e-9) {
		t.Errorf("amount 100 -> %v, want 800", got)
	}
	want50 := math.Pow(0.5, 2.5) * 800
	if got := DistortionAmount(50); !almostEqual(got, want50, 1e-9) {
		t.Errorf("amount 50 -> %v, want %v", got, want50)
	}
	prev := -1.0
	for ui := 0.0; ui <= 100; ui++ {
		got := DistortionAmount(ui)
		if got < prev {
			t.Fatalf("taper not monotonic at %v", ui)
		}
		prev = got
	}
}

func TestRoomIndexCoversBank(t *testing.T) {
	if got := RoomIndex(0); got != 0 {
		t.Errorf("roomSize 0 -> index %d, want 0", got)
	}
	if got := RoomIndex(100); got != RoomCount-1 {
		t.Errorf("roomSize 100 -> index %d, want %d", got, RoomCount-1)
	}
	if got := RoomIndex(50); got != 10 {
		t.Errorf("roomSize 50 -> index %d, want 10", got)
	}
	prev := 0
	seen := make(map[int]bool)
	for ui := 0.0; ui <= 100; ui += 0.5 {
		idx := RoomIndex(ui)
		if idx < prev {
			t.Fatalf("room index not monotonic at %v", ui)
		}
		prev = idx
		seen[idx] = true
	}
	if len(seen) != RoomCount {
		t.Errorf("sweep covered %d bank entries, want %d", len(seen), RoomCount)
	}
}

func TestFilterFrequencyMapping(t *testing.T) {
	if got := FilterFrequency(0); !almostEqual(got, 20, 1e-9) {
		t.Errorf("freq(0) = %v, want 20", got)
	}
	if got := FilterFrequency(100); !almostEqual(got, 20000, 1e-6) {
		t.Errorf("freq(100) = %v, want 20000", got)
	}
	prev := 0.0
	for ui := 0.0; ui <= 100; ui++ {
		got := FilterFrequency(ui)
		if got <= prev {
			t.Fatalf("frequency mapping not increasing at %v", ui)
		}
		prev = got
	}
}

func TestFilterQMapping(t *testing.T) {
	if got := FilterQ(0); !almostEqual(got, 0.1, 1e-9) {
		t.Errorf("Q(0) = %v, want 0.1", got)
	}
	if got := FilterQ(100); !almostEqual(got, 50, 1e-6) {
		t.Errorf("Q(100) = %v, want 50", got)
	}
}

func TestImpulseBankShape(t *testing.T) {
	bank := impulseBank(44100)
	if len(bank) != RoomCount {
		t.Fatalf("bank size = %d, want %d", len(bank), RoomCount)
	}
	if got, want := len(bank[0]), int(0.3*44100); absInt(got-want) > 1 {
		t.Errorf("smallest room length = %d, want ~%d", got, want)
	}
	if got, want := len(bank[RoomCount-1]), 4*44100; absInt(got-want) > 1 {
		t.Errorf("largest room length = %d, want ~%d", got, want)
	}
	for i := 1; i < RoomCount; i++ {
		if len(bank[i]) <= len(bank[i-1]) {
			t.Fatalf("bank lengths not increasing at %d", i)
		}
	}
	// Samples stay inside the decay envelope.
	ir := bank[0]
	for n, frame := range ir {
		env := math.Pow(1-float64(n)/float64(len(ir)), 1.0)
		if math.Abs(frame[0]) > env+1e-12 || math.Abs(frame[1]) > env+1e-12 {
			t.Fatalf("sample %d exceeds envelope: %v > %v", n, frame, env)
		}
	}
}

func TestCatalogCopies(t *testing.T) {
	defs := Catalog()
	if len(defs) != 3 {
		t.Fatalf("catalog has %d effects, want 3", len(defs))
	}
	defs[0].Parameters[0].Default = -999
	fresh, ok := Definition(defs[0].Name)
	if !ok {
		t.Fatal("definition lookup failed")
	}
	if fresh.Parameters[0].Default == -999 {
		t.Fatal("catalog mutated through returned copy")
	}
}

func TestParameterLookup(t *testing.T) {
	p, ok := Parameter(Reverb, "roomSize")
	if !ok || p.Default != 50 {
		t.Fatalf("reverb roomSize = %+v, ok=%v", p, ok)
	}
	if _, ok := Parameter(Reverb, "nope"); ok {
		t.Fatal("unknown parameter resolved")
	}
	if _, ok := Parameter("nope", "roomSize"); ok {
		t.Fatal("unknown effect resolved")
	}
}

func TestCreateUnknown(t *testing.T) {
	ctx := graph.NewContext(44100)
	if node := Create(ctx, "chorus"); node != nil {
		t.Fatal("unknown effect created a node")
	}
	if node := Create(nil, Distortion); node != nil {
		t.Fatal("nil context created a node")
	}
}

func TestCreateDistortion(t *testing.T) {
	ctx := graph.NewContext(44100)
	node := Create(ctx, Distortion)
	if node == nil {
		t.Fatal("create failed")
	}
	if node.InputTap() != node.OutputTap() {
		t.Fatal("distortion is a simple effect; taps should be the same node")
	}
	if node.InputTap().Kind() != graph.KindWaveshaper {
		t.Fatalf("tap kind = %v, want waveshaper", node.InputTap().Kind())
	}
}

func TestCreateFilter(t *testing.T) {
	ctx := graph.NewContext(44100)
	node := Create(ctx, Filter)
	if node == nil {
		t.Fatal("create failed")
	}
	if node.InputTap() == node.OutputTap() {
		t.Fatal("filter is compound; taps should differ")
	}
	if node.InputTap().Kind() != graph.KindBiquad || node.OutputTap().Kind() != graph.KindBiquad {
		t.Fatal("filter taps should both be biquads")
	}
	// high-pass feeds low-pass
	outs := node.InputTap().Outputs()
	if len(outs) != 1 || outs[0] != node.OutputTap() {
		t.Fatal("high-pass is not cascaded into low-pass")
	}
}

func TestCreateReverb(t *testing.T) {
	ctx := graph.NewContext(44100)
	node := Create(ctx, Reverb)
	if node == nil {
		t.Fatal("create failed")
	}
	if node.InputTap() == node.OutputTap() {
		t.Fatal("reverb is compound; taps should differ")
	}
	// input fans out to the dry path and the convolver
	if len(node.InputTap().Outputs()) != 2 {
		t.Fatalf("reverb input fan-out = %d, want 2", len(node.InputTap().Outputs()))
	}
	// both paths land on the output tap
	if len(node.OutputTap().Inputs()) != 2 {
		t.Fatalf("reverb output fan-in = %d, want 2", len(node.OutputTap().Inputs()))
	}
}

func TestUpdateParameterBadShapes(t *testing.T) {
	ctx := graph.NewContext(44100)

	// Must not panic on any of these.
	UpdateParameter(nil, "amount", 1)

	node := Create(ctx, Distortion)
	UpdateParameter(node, "roomSize", 1) // wrong parameter for the effect
	UpdateParameter(node, "amount", 55)  // valid

	filter := Create(ctx, Filter)
	UpdateParameter(filter, "amount", 1)
	UpdateParameter(filter, "highPassFreq", 30)
}

func TestReverbMixUpdate(t *testing.T) {
	ctx := graph.NewContext(44100)
	node := Create(ctx, Reverb)
	if node == nil {
		t.Fatal("create failed")
	}
	UpdateParameter(node, "mix", 80)
	wet, err := node.wet.Gain()
	if err != nil {
		t.Fatal(err)
	}
	dry, err := node.dry.Gain()
	if err != nil {
		t.Fatal(err)
	}
	if !almostEqual(wet, 0.8, 1e-12) || !almostEqual(dry, 0.2, 1e-12) {
		t.Fatalf("mix 80 -> wet=%v dry=%v, want 0.8/0.2", wet, dry)
	}
}

func TestDetachRemovesEdges(t *testing.T) {
	ctx := graph.NewContext(44100)
	src := ctx.NewSource(nil)
	node := Create(ctx, Filter)
	src.Connect(node.InputTap())
	node.OutputTap().Connect(ctx.Destination())

	node.Detach()
	if n := len(node.OutputTap().Outputs()); n != 0 {
		t.Fatalf("output tap still has %d outgoing edges", n)
	}
	if n := len(ctx.Destination().Inputs()); n != 0 {
		t.Fatalf("destination still fed by %d nodes", n)
	}
}
