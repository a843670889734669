package effects

import (
	"math"
	"math/rand"
)

// CurveSamples is the waveshaper transfer table size (a table size,
// not a duration, even though it matches a common sample rate).
const CurveSamples = 44100

// RoomCount is the number of pre-rendered reverb impulse responses.
const RoomCount = 20

// DistortionAmount maps the UI amount (0-100) into the curve's
// internal domain. The exponential taper keeps low settings subtle
// and pushes the top of the range hard.
func DistortionAmount(ui float64) float64 {
	return math.Pow(ui/100, 2.5) * 800
}

// DistortionCurve builds the waveshaper transfer table for an
// internal amount. Amount zero is the identity line.
func DistortionCurve(amount float64) []float64 {
	curve := make([]float64, CurveSamples)
	deg := math.Pi / 180
	for i := range curve {
		x := float64(i)*2/float64(CurveSamples) - 1
		if amount == 0 {
			curve[i] = x
		} else {
			curve[i] = (3 + amount) * x * 20 * deg / (math.Pi + amount*math.Abs(x))
		}
	}
	return curve
}

// FilterFrequency maps a 0-100 control value onto 20 Hz .. 20 kHz
// logarithmically.
func FilterFrequency(ui float64) float64 {
	return 20 * math.Pow(1000, ui/100)
}

// FilterQ maps a 0-100 control value onto 0.1 .. 50 exponentially.
func FilterQ(ui float64) float64 {
	return 0.1 * math.Pow(500, ui/100)
}

// RoomIndex selects the impulse bank entry for a roomSize value.
func RoomIndex(roomSize float64) int {
	i := int(math.Round(roomSize / 100 * (RoomCount - 1)))
	if i < 0 {
		i = 0
	}
	if i > RoomCount-1 {
		i = RoomCount - 1
	}
	return i
}

// impulseBank renders RoomCount synthetic stereo impulse responses of
// increasing length and decay. Generated once per reverb instance so
// room switches are a plain buffer swap.
func impulseBank(sampleRate int) [][][2]float64 {
	bank := make([][][2]float64, RoomCount)
	for i := range bank {
		t := float64(i) / float64(RoomCount-1)
		duration := 0.3 + t*3.7
		decay := 1 + t*4
		length := int(duration * float64(sampleRate))
		ir := make([][2]float64, length)
		for n := range ir {
			env := math.Pow(1-float64(n)/float64(length), decay)
			ir[n][0] = (rand.Float64()*2 - 1) * env
			ir[n][1] = (rand.Float64()*2 - 1) * env
		}
		bank[i] = ir
	}
	return bank
}
