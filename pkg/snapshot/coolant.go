package snapshot

import (
	"fmt"

	"github.com/wehubfusion/nucleares/pkg/observable"
	"github.com/wehubfusion/nucleares/pkg/source"
)

// PumpCount is the fixed number of circulation pumps in the coolant circuit.
const PumpCount = 3

// Coolant is the primary coolant circuit of the core.
type Coolant struct {
	node

	state             *observable.Field[string]
	pressure          *observable.Field[string]
	maxPressure       *observable.Field[string]
	vesselTemperature *observable.Field[string]
	quantityInVessel  *observable.Field[string]
	primaryLoopLevel  *observable.Field[string]
	flowSpeed         *observable.Field[string]
	flowOrderedSpeed  *observable.Field[string]
	flowReachedSpeed  *observable.Field[string]

	pumps []*Pump
}

// NewCoolant creates a Coolant circuit and its pumps bound to src.
func NewCoolant(src source.DataSource) *Coolant {
	c := &Coolant{}
	c.build(src)
	return c
}

func (c *Coolant) build(src source.DataSource) {
	c.init("Coolant", src)
	c.state = c.bind("state", "COOLANT_CORE_STATE")
	c.pressure = c.bind("pressure", "COOLANT_CORE_PRESSURE")
	c.maxPressure = c.bind("maxPressure", "COOLANT_CORE_MAX_PRESSURE")
	c.vesselTemperature = c.bind("vesselTemperature", "COOLANT_CORE_VESSEL_TEMPERATURE")
	c.quantityInVessel = c.bind("quantityInVessel", "COOLANT_CORE_QUANTITY_IN_VESSEL")
	c.primaryLoopLevel = c.bind("primaryLoopLevel", "COOLANT_CORE_PRIMARY_LOOP_LEVEL")
	c.flowSpeed = c.bind("flowSpeed", "COOLANT_CORE_FLOW_SPEED")
	c.flowOrderedSpeed = c.bind("flowOrderedSpeed", "COOLANT_CORE_FLOW_ORDERED_SPEED")
	c.flowReachedSpeed = c.bind("flowReachedSpeed", "COOLANT_CORE_FLOW_REACHED_SPEED")

	c.pumps = make([]*Pump, PumpCount)
	for i := range c.pumps {
		c.pumps[i] = NewPump(i, src)
	}
	c.childList("pumps", nodesOf(c.pumps, func(p *Pump) *node { return &p.node }))
}

// State returns the coolant circuit state.
func (c *Coolant) State() string { return c.get(c.state) }

// Pressure returns the coolant pressure.
func (c *Coolant) Pressure() string { return c.get(c.pressure) }

// MaxPressure returns the coolant pressure limit.
func (c *Coolant) MaxPressure() string { return c.get(c.maxPressure) }

// VesselTemperature returns the temperature of the coolant vessel.
func (c *Coolant) VesselTemperature() string { return c.get(c.vesselTemperature) }

// QuantityInVessel returns the amount of coolant in the vessel.
func (c *Coolant) QuantityInVessel() string { return c.get(c.quantityInVessel) }

// PrimaryLoopLevel returns the primary loop fill level.
func (c *Coolant) PrimaryLoopLevel() string { return c.get(c.primaryLoopLevel) }

// FlowSpeed returns the current coolant flow speed.
func (c *Coolant) FlowSpeed() string { return c.get(c.flowSpeed) }

// FlowOrderedSpeed returns the commanded coolant flow speed.
func (c *Coolant) FlowOrderedSpeed() string { return c.get(c.flowOrderedSpeed) }

// FlowReachedSpeed returns whether the flow reached the ordered speed.
func (c *Coolant) FlowReachedSpeed() string { return c.get(c.flowReachedSpeed) }

// Pumps returns the circulation pumps ordered by id.
func (c *Coolant) Pumps() []*Pump {
	out := make([]*Pump, len(c.pumps))
	copy(out, c.pumps)
	return out
}

// Pump returns pump i, or nil when i is out of range.
func (c *Coolant) Pump(i int) *Pump {
	if i < 0 || i >= len(c.pumps) {
		return nil
	}
	return c.pumps[i]
}

// UnmarshalJSON decodes a Coolant snapshot. The pumps array must hold exactly
// PumpCount entries.
func (c *Coolant) UnmarshalJSON(data []byte) error {
	if c.name == "" {
		c.build(nil)
	}
	return c.decode(data)
}

// Pump is one circulation pump of the coolant circuit.
type Pump struct {
	node

	id             int
	status         *observable.Field[string]
	dryStatus      *observable.Field[string]
	overloadStatus *observable.Field[string]
	orderedSpeed   *observable.Field[string]
	speed          *observable.Field[string]
}

// NewPump creates pump id bound to src.
func NewPump(id int, src source.DataSource) *Pump {
	p := &Pump{}
	p.build(id, src)
	return p
}

func (p *Pump) build(id int, src source.DataSource) {
	p.init(fmt.Sprintf("Pump[%d]", id), src)
	p.id = id

	prefix := fmt.Sprintf("COOLANT_CORE_CIRCULATION_PUMP_%d_", id)
	p.status = p.bind("status", prefix+"STATUS")
	p.dryStatus = p.bind("dryStatus", prefix+"DRY_STATUS")
	p.overloadStatus = p.bind("overloadStatus", prefix+"OVERLOAD_STATUS")
	p.orderedSpeed = p.bind("orderedSpeed", prefix+"ORDERED_SPEED")
	p.speed = p.bind("speed", prefix+"SPEED")

	p.extras = append(p.extras, extra{key: "id", value: func() any { return p.id }})
}

// ID returns the pump index, 0 to PumpCount-1.
func (p *Pump) ID() int { return p.id }

// Status returns the pump status.
func (p *Pump) Status() string { return p.get(p.status) }

// DryStatus returns whether the pump runs dry.
func (p *Pump) DryStatus() string { return p.get(p.dryStatus) }

// OverloadStatus returns whether the pump is overloaded.
func (p *Pump) OverloadStatus() string { return p.get(p.overloadStatus) }

// OrderedSpeed returns the commanded pump speed.
func (p *Pump) OrderedSpeed() string { return p.get(p.orderedSpeed) }

// Speed returns the current pump speed.
func (p *Pump) Speed() string { return p.get(p.speed) }

// UnmarshalJSON decodes a Pump snapshot. A zero Pump takes its id from the data.
func (p *Pump) UnmarshalJSON(data []byte) error {
	if p.name == "" {
		id, err := decodeID(data, "Pump", PumpCount)
		if err != nil {
			return err
		}
		p.build(id, nil)
	}
	return p.decode(data)
}
