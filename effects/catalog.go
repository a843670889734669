// Package effects holds the static effect catalog and the factory
// that builds and updates the processing subgraph for each effect.
package effects

// Effect names. The catalog is closed: adding an effect means adding
// a definition here and a factory entry in effects.go.
const (
	Distortion = "distortion"
	Reverb     = "reverb"
	Filter     = "filter"
)

// ParameterDefinition declares the valid numeric domain for one control.
type ParameterDefinition struct {
	Name    string  `json:"name"`
	Label   string  `json:"label"`
	Default float64 `json:"defaultValue"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Step    float64 `json:"step,omitempty"`
	Unit    string  `json:"unit,omitempty"`
}

// EffectDefinition is one static catalog entry.
type EffectDefinition struct {
	Name       string                `json:"name"`
	Label      string                `json:"label"`
	Parameters []ParameterDefinition `json:"parameters"`
}

var catalog = []EffectDefinition{
	{
		Name:  Distortion,
		Label: "Distortion",
		Parameters: []ParameterDefinition{
			{Name: "amount", Label: "Amount", Default: 30, Min: 0, Max: 100, Step: 1},
		},
	},
	{
		Name:  Reverb,
		Label: "Reverb",
		Parameters: []ParameterDefinition{
			{Name: "roomSize", Label: "Room Size", Default: 50, Min: 0, Max: 100, Step: 1},
			{Name: "mix", Label: "Mix", Default: 30, Min: 0, Max: 100, Step: 1},
		},
	},
	{
		Name:  Filter,
		Label: "Filter",
		Parameters: []ParameterDefinition{
			{Name: "highPassFreq", Label: "High Pass Freq", Default: 0, Min: 0, Max: 100, Step: 1},
			{Name: "highPassQ", Label: "High Pass Q", Default: 10, Min: 0, Max: 100, Step: 1},
			{Name: "lowPassFreq", Label: "Low Pass Freq", Default: 100, Min: 0, Max: 100, Step: 1},
			{Name: "lowPassQ", Label: "Low Pass Q", Default: 10, Min: 0, Max: 100, Step: 1},
		},
	},
}

// Catalog returns a copy of all effect definitions.
func Catalog() []EffectDefinition {
	out := make([]EffectDefinition, len(catalog))
	for i, def := range catalog {
		out[i] = copyDefinition(def)
	}
	return out
}

// Definition looks up one effect's catalog entry by name.
func Definition(effect string) (EffectDefinition, bool) {
	for _, def := range catalog {
		if def.Name == effect {
			return copyDefinition(def), true
		}
	}
	return EffectDefinition{}, false
}

// Parameter looks up one parameter definition within an effect.
func Parameter(effect, parameter string) (ParameterDefinition, bool) {
	for _, def := range catalog {
		if def.Name != effect {
			continue
		}
		for _, p := range def.Parameters {
			if p.Name == parameter {
				return p, true
			}
		}
	}
	return ParameterDefinition{}, false
}

func copyDefinition(def EffectDefinition) EffectDefinition {
	params := make([]ParameterDefinition, len(def.Parameters))
	copy(params, def.Parameters)
	def.Parameters = params
	return def
}
