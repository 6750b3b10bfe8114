package setups

import (
	"sort"

	"github.com/pkg/errors"
)

var constructors = map[string]func(Parameters) (*Setup, error){
	"single-bethe":     NewSingleBethe,
	"single-bethe-afm": NewSingleBetheAFM,
	"hypercubic":       NewHypercubic,
	"dimer-bethe":      NewDimerBethe,
	"triangle-bethe":   NewTriangleBethe,
	"plaquette-bethe":  NewPlaquetteBethe,
	"aiao-bethe":       NewAIAOBethe,
	"nambu-plaquette-bethe": func(p Parameters) (*Setup, error) {
		st, err := NewNambuPlaquetteBethe(p)
		if err != nil {
			return nil, err
		}
		return st.Setup, nil
	},
}

// Names lists the setups New can build.
func Names() (names []string) {
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return
}

// New builds the setup registered under name.
func New(name string, p Parameters) (*Setup, error) {
	c, ok := constructors[name]
	if !ok {
		return nil, errors.Errorf("unknown setup %q, have %v", name, Names())
	}
	return c(p)
}
