package snapshot

import (
	"fmt"

	"github.com/wehubfusion/nucleares/pkg/observable"
	"github.com/wehubfusion/nucleares/pkg/source"
)

// SteamGeneratorCount is the fixed number of steam generators in a plant.
const SteamGeneratorCount = 3

// Plant is the root of the plant tree: one Reactor and three steam generators.
type Plant struct {
	node

	circulationPumpsPresent *observable.Field[string]
	freightPumpsPresent     *observable.Field[string]
	auxDivertSurplusKw      *observable.Field[string]
	auxEffectivelyDerivedKw *observable.Field[string]

	reactor    *Reactor
	generators []*SteamGenerator
}

// NewPlant creates a Plant and its whole subtree bound to src. A nil src creates
// it detached.
func NewPlant(src source.DataSource) *Plant {
	p := &Plant{}
	p.build(src)
	return p
}

func (p *Plant) build(src source.DataSource) {
	p.init("Plant", src)
	p.circulationPumpsPresent = p.bind("circulationPumpsPresent", "COOLANT_CORE_QUANTITY_CIRCULATION_PUMPS_PRESENT")
	p.freightPumpsPresent = p.bind("freightPumpsPresent", "COOLANT_CORE_QUANTITY_FREIGHT_PUMPS_PRESENT")
	p.auxDivertSurplusKw = p.bind("auxDivertSurplusKw", "AUX_DIVERT_SURPLUS_FROM_KW")
	p.auxEffectivelyDerivedKw = p.bind("auxEffectivelyDerivedKw", "AUX_EFFECTIVELY_DERIVED_ENERGY_KW")

	p.reactor = NewReactor(src)
	p.generators = make([]*SteamGenerator, SteamGeneratorCount)
	for i := range p.generators {
		p.generators[i] = NewSteamGenerator(i, src)
	}

	p.child("reactor", &p.reactor.node)
	p.childList("steamGenerators", nodesOf(p.generators, func(g *SteamGenerator) *node { return &g.node }))
}

// CirculationPumpsPresent returns the number of installed circulation pumps.
func (p *Plant) CirculationPumpsPresent() string { return p.get(p.circulationPumpsPresent) }

// FreightPumpsPresent returns the number of installed freight pumps.
func (p *Plant) FreightPumpsPresent() string { return p.get(p.freightPumpsPresent) }

// AuxDivertSurplusKw returns the auxiliary divert threshold in kW.
func (p *Plant) AuxDivertSurplusKw() string { return p.get(p.auxDivertSurplusKw) }

// AuxEffectivelyDerivedKw returns the energy actually diverted to auxiliaries in kW.
func (p *Plant) AuxEffectivelyDerivedKw() string { return p.get(p.auxEffectivelyDerivedKw) }

// Reactor returns the plant's reactor.
func (p *Plant) Reactor() *Reactor { return p.reactor }

// SteamGenerators returns the generators ordered by id.
func (p *Plant) SteamGenerators() []*SteamGenerator {
	out := make([]*SteamGenerator, len(p.generators))
	copy(out, p.generators)
	return out
}

// SteamGenerator returns generator i, or nil when i is out of range.
func (p *Plant) SteamGenerator(i int) *SteamGenerator {
	if i < 0 || i >= len(p.generators) {
		return nil
	}
	return p.generators[i]
}

// UnmarshalJSON decodes a Plant snapshot. A zero Plant is built detached first.
func (p *Plant) UnmarshalJSON(data []byte) error {
	if p.name == "" {
		p.build(nil)
	}
	return p.decode(data)
}

// Reactor groups the core. It has no fields of its own.
type Reactor struct {
	node

	core *Core
}

// NewReactor creates a Reactor bound to src.
func NewReactor(src source.DataSource) *Reactor {
	r := &Reactor{}
	r.build(src)
	return r
}

func (r *Reactor) build(src source.DataSource) {
	r.init("Reactor", src)
	r.core = NewCore(src)
	r.child("core", &r.core.node)
}

// Core returns the reactor core.
func (r *Reactor) Core() *Core { return r.core }

// UnmarshalJSON decodes a Reactor snapshot.
func (r *Reactor) UnmarshalJSON(data []byte) error {
	if r.name == "" {
		r.build(nil)
	}
	return r.decode(data)
}

// SteamGenerator is one of the plant's turbine generators.
type SteamGenerator struct {
	node

	id            int
	activePowerKw *observable.Field[string]
	activePowerV  *observable.Field[string]
	activePowerA  *observable.Field[string]
	activePowerHz *observable.Field[string]
	breakerStatus *observable.Field[string]
}

// NewSteamGenerator creates generator id bound to src.
func NewSteamGenerator(id int, src source.DataSource) *SteamGenerator {
	g := &SteamGenerator{}
	g.build(id, src)
	return g
}

func (g *SteamGenerator) build(id int, src source.DataSource) {
	g.init(fmt.Sprintf("SteamGenerator[%d]", id), src)
	g.id = id

	prefix := fmt.Sprintf("GENERATOR_%d_", id)
	g.activePowerKw = g.bind("activePowerKw", prefix+"KW")
	g.activePowerV = g.bind("activePowerV", prefix+"V")
	g.activePowerA = g.bind("activePowerA", prefix+"A")
	g.activePowerHz = g.bind("activePowerHz", prefix+"HERTZ")
	g.breakerStatus = g.bind("breakerStatus", prefix+"BREAKER")

	g.extras = append(g.extras, extra{key: "id", value: func() any { return g.id }})
}

// ID returns the generator index, 0 to SteamGeneratorCount-1.
func (g *SteamGenerator) ID() int { return g.id }

// ActivePowerKw returns the generated power in kW.
func (g *SteamGenerator) ActivePowerKw() string { return g.get(g.activePowerKw) }

// ActivePowerV returns the output voltage.
func (g *SteamGenerator) ActivePowerV() string { return g.get(g.activePowerV) }

// ActivePowerA returns the output current.
func (g *SteamGenerator) ActivePowerA() string { return g.get(g.activePowerA) }

// ActivePowerHz returns the output frequency.
func (g *SteamGenerator) ActivePowerHz() string { return g.get(g.activePowerHz) }

// BreakerStatus returns the generator breaker state.
func (g *SteamGenerator) BreakerStatus() string { return g.get(g.breakerStatus) }

// UnmarshalJSON decodes a SteamGenerator snapshot. A zero SteamGenerator takes
// its id from the data.
func (g *SteamGenerator) UnmarshalJSON(data []byte) error {
	if g.name == "" {
		id, err := decodeID(data, "SteamGenerator", SteamGeneratorCount)
		if err != nil {
			return err
		}
		g.build(id, nil)
	}
	return g.decode(data)
}
