package InputParameters

import (
	"fmt"
	"sort"

	"github.com/ghodss/yaml"
	"github.com/pkg/errors"

	"github.com/notargets/gobethe/bethe"
	"github.com/notargets/gobethe/gf"
	"github.com/notargets/gobethe/setups"
)

// DOSParameters selects a density of states quadrature for the closure
type DOSParameters struct {
	Kind    string  `yaml:"Kind"` // Semicircle or Gaussian
	W1      float64 `yaml:"W1"`
	W2      float64 `yaml:"W2"`
	NPoints int     `yaml:"NPoints"`
}

// Parameters obtained from the YAML input file
type InputParametersDMFT struct {
	Title             string             `yaml:"Title"`
	Setup             string             `yaml:"Setup"`
	Beta              float64            `yaml:"Beta"`
	Mu                float64            `yaml:"Mu"`
	U                 float64            `yaml:"U"`
	TBethe            float64            `yaml:"TBethe"`
	NIw               int                `yaml:"NIw"`
	Hoppings          map[string]float64 `yaml:"Hoppings"` // TTriangle, TNN, TNNN, TDimer, TAIAO
	NSites            int                `yaml:"NSites"`
	OrbitalLabels     []string           `yaml:"OrbitalLabels"`
	SymmetricOrbitals []string           `yaml:"SymmetricOrbitals"`
	DOS               *DOSParameters     `yaml:"DOS"`
	Tolerance         float64            `yaml:"Tolerance"`
	Parallel          int                `yaml:"Parallel"`
	ClosureMixing     float64            `yaml:"ClosureMixing"`
	StaggeredField    float64            `yaml:"StaggeredField"`
}

func (ip *InputParametersDMFT) Parse(data []byte) error {
	return yaml.Unmarshal(data, ip)
}

var hoppingNames = []string{"TTriangle", "TNN", "TNNN", "TDimer", "TAIAO"}

// SetupParameters converts the input into the parameters of the setup
// constructors.
func (ip *InputParametersDMFT) SetupParameters() (p setups.Parameters, err error) {
	p = setups.Parameters{
		Beta:              ip.Beta,
		Mu:                ip.Mu,
		U:                 ip.U,
		TBethe:            ip.TBethe,
		NIw:               ip.NIw,
		NSites:            ip.NSites,
		OrbitalLabels:     ip.OrbitalLabels,
		SymmetricOrbitals: ip.SymmetricOrbitals,
		Tolerance:         ip.Tolerance,
		Parallel:          ip.Parallel,
		ClosureMixing:     ip.ClosureMixing,
	}
	for name := range ip.Hoppings {
		known := false
		for _, h := range hoppingNames {
			known = known || h == name
		}
		if !known {
			return p, errors.Errorf("unknown hopping %q, have %v", name, hoppingNames)
		}
	}
	p.TTriangle = ip.Hoppings["TTriangle"]
	p.TNN = ip.Hoppings["TNN"]
	p.TNNN = ip.Hoppings["TNNN"]
	p.TDimer = ip.Hoppings["TDimer"]
	p.TAIAO = ip.Hoppings["TAIAO"]
	if ip.DOS != nil {
		dos := &bethe.DOS{W1: ip.DOS.W1, W2: ip.DOS.W2, NPoints: ip.DOS.NPoints}
		switch ip.DOS.Kind {
		case "", "Semicircle":
			dos.Kind = bethe.Semicircle
		case "Gaussian":
			dos.Kind = bethe.Gaussian
		default:
			return p, errors.Errorf("unknown density of states %q", ip.DOS.Kind)
		}
		p.DOS = dos
	}
	return
}

// NewSetup builds the setup named in the input.
func (ip *InputParametersDMFT) NewSetup() (st *setups.Setup, err error) {
	var p setups.Parameters
	if p, err = ip.SetupParameters(); err != nil {
		return
	}
	if st, err = setups.New(ip.Setup, p); err != nil {
		return
	}
	if ip.StaggeredField != 0 {
		var field *gf.BlockMatrix
		if field, err = st.StaggeredField(ip.StaggeredField); err != nil {
			return nil, err
		}
		if err = st.AddStaticField(field); err != nil {
			return nil, err
		}
	}
	return
}

func (ip *InputParametersDMFT) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", ip.Title)
	fmt.Printf("[%s]\t= Setup\n", ip.Setup)
	fmt.Printf("%8.5f\t\t= Beta\n", ip.Beta)
	fmt.Printf("%8.5f\t\t= Mu\n", ip.Mu)
	fmt.Printf("%8.5f\t\t= U\n", ip.U)
	fmt.Printf("%8.5f\t\t= TBethe\n", ip.TBethe)
	fmt.Printf("[%d]\t\t\t= NIw\n", ip.NIw)
	keys := make([]string, len(ip.Hoppings))
	i := 0
	for k := range ip.Hoppings {
		keys[i] = k
		i++
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Printf("Hoppings[%s] = %v\n", key, ip.Hoppings[key])
	}
	if ip.DOS != nil {
		fmt.Printf("DOS[%s] = [%v, %v] x %d\n", ip.DOS.Kind, ip.DOS.W1, ip.DOS.W2, ip.DOS.NPoints)
	}
}
