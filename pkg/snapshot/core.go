package snapshot

import (
	"context"
	"strconv"

	"github.com/wehubfusion/nucleares/pkg/observable"
	"github.com/wehubfusion/nucleares/pkg/source"
)

// Core is the reactor core with its control rods and coolant circuit.
type Core struct {
	node

	temperature                *observable.Field[string]
	operativeTemperature       *observable.Field[string]
	maxTemperature             *observable.Field[string]
	minTemperature             *observable.Field[string]
	residual                   *observable.Field[string]
	pressure                   *observable.Field[string]
	maxPressure                *observable.Field[string]
	operativePressure          *observable.Field[string]
	integrity                  *observable.Field[string]
	wear                       *observable.Field[string]
	state                      *observable.Field[string]
	stateCriticality           *observable.Field[string]
	criticalMassReached        *observable.Field[string]
	criticalMassReachedCounter *observable.Field[string]
	imminentFusion             *observable.Field[string]
	readyForStart              *observable.Field[string]
	steamPresent               *observable.Field[string]
	highSteamPresent           *observable.Field[string]

	rods    *ControlRodBundle
	coolant *Coolant
}

// NewCore creates a Core bound to src.
func NewCore(src source.DataSource) *Core {
	c := &Core{}
	c.build(src)
	return c
}

func (c *Core) build(src source.DataSource) {
	c.init("Core", src)
	c.temperature = c.bind("temperature", "CORE_TEMP")
	c.operativeTemperature = c.bind("operativeTemperature", "CORE_TEMP_OPERATIVE")
	c.maxTemperature = c.bind("maxTemperature", "CORE_TEMP_MAX")
	c.minTemperature = c.bind("minTemperature", "CORE_TEMP_MIN")
	c.residual = c.bind("residual", "CORE_TEMP_RESIDUAL")
	c.pressure = c.bind("pressure", "CORE_PRESSURE")
	c.maxPressure = c.bind("maxPressure", "CORE_PRESSURE_MAX")
	c.operativePressure = c.bind("operativePressure", "CORE_PRESSURE_OPERATIVE")
	c.integrity = c.bind("integrity", "CORE_INTEGRITY")
	c.wear = c.bind("wear", "CORE_WEAR")
	c.state = c.bind("state", "CORE_STATE")
	c.stateCriticality = c.bind("stateCriticality", "CORE_STATE_CRITICALITY")
	c.criticalMassReached = c.bind("criticalMassReached", "CORE_CRITICAL_MASS_REACHED")
	c.criticalMassReachedCounter = c.bind("criticalMassReachedCounter", "CORE_CRITICAL_MASS_REACHED_COUNTER")
	c.imminentFusion = c.bind("imminentFusion", "CORE_IMMINENT_FUSION")
	c.readyForStart = c.bind("readyForStart", "CORE_READY_FOR_START")
	c.steamPresent = c.bind("steamPresent", "CORE_STEAM_PRESENT")
	c.highSteamPresent = c.bind("highSteamPresent", "CORE_HIGH_STEAM_PRESENT")

	c.rods = NewControlRodBundle(src)
	c.coolant = NewCoolant(src)
	c.child("controlRods", &c.rods.node)
	c.child("coolant", &c.coolant.node)
}

// Temperature returns the core temperature in °C.
func (c *Core) Temperature() string { return c.get(c.temperature) }

// OperativeTemperature returns the target operating temperature.
func (c *Core) OperativeTemperature() string { return c.get(c.operativeTemperature) }

// MaxTemperature returns the temperature limit of the core.
func (c *Core) MaxTemperature() string { return c.get(c.maxTemperature) }

// MinTemperature returns the lowest allowed core temperature.
func (c *Core) MinTemperature() string { return c.get(c.minTemperature) }

// Residual returns the residual heat reported by the game.
func (c *Core) Residual() string { return c.get(c.residual) }

// Pressure returns the core pressure in bar.
func (c *Core) Pressure() string { return c.get(c.pressure) }

// MaxPressure returns the pressure limit of the core.
func (c *Core) MaxPressure() string { return c.get(c.maxPressure) }

// OperativePressure returns the target operating pressure.
func (c *Core) OperativePressure() string { return c.get(c.operativePressure) }

// Integrity returns the structural integrity in percent.
func (c *Core) Integrity() string { return c.get(c.integrity) }

// Wear returns the accumulated core wear in percent.
func (c *Core) Wear() string { return c.get(c.wear) }

// State returns the core state label.
func (c *Core) State() string { return c.get(c.state) }

// StateCriticality returns the criticality of the core state.
func (c *Core) StateCriticality() string { return c.get(c.stateCriticality) }

// CriticalMassReached returns whether the core has reached critical mass.
func (c *Core) CriticalMassReached() string { return c.get(c.criticalMassReached) }

// CriticalMassReachedCounter returns how many times critical mass was reached.
func (c *Core) CriticalMassReachedCounter() string { return c.get(c.criticalMassReachedCounter) }

// ImminentFusion returns whether a meltdown is imminent.
func (c *Core) ImminentFusion() string { return c.get(c.imminentFusion) }

// ReadyForStart returns whether the core can be started.
func (c *Core) ReadyForStart() string { return c.get(c.readyForStart) }

// SteamPresent returns whether steam is present in the core.
func (c *Core) SteamPresent() string { return c.get(c.steamPresent) }

// HighSteamPresent returns whether a high amount of steam is present.
func (c *Core) HighSteamPresent() string { return c.get(c.highSteamPresent) }

// ControlRods returns the control rod bundle.
func (c *Core) ControlRods() *ControlRodBundle { return c.rods }

// Coolant returns the core coolant circuit.
func (c *Core) Coolant() *Coolant { return c.coolant }

// UnmarshalJSON decodes a Core snapshot.
func (c *Core) UnmarshalJSON(data []byte) error {
	if c.name == "" {
		c.build(nil)
	}
	return c.decode(data)
}

// ControlRodBundle is the set of control rods, commanded as one.
type ControlRodBundle struct {
	node

	status                                *observable.Field[string]
	movementSpeed                         *observable.Field[string]
	movementSpeedDecreasedHighTemperature *observable.Field[string]
	deformed                              *observable.Field[string]
	temperature                           *observable.Field[string]
	maxTemperature                        *observable.Field[string]
	orderedPosition                       *observable.Field[string]
	actualPosition                        *observable.Field[string]
	reachedPosition                       *observable.Field[string]
	quantity                              *observable.Field[string]
	aligned                               *observable.Field[string]
}

// NewControlRodBundle creates a ControlRodBundle bound to src.
func NewControlRodBundle(src source.DataSource) *ControlRodBundle {
	r := &ControlRodBundle{}
	r.build(src)
	return r
}

func (r *ControlRodBundle) build(src source.DataSource) {
	r.init("ControlRodBundle", src)
	r.status = r.bind("status", "RODS_STATUS")
	r.movementSpeed = r.bind("movementSpeed", "RODS_MOVEMENT_SPEED")
	r.movementSpeedDecreasedHighTemperature = r.bind("movementSpeedDecreasedHighTemperature", "RODS_MOVEMENT_SPEED_DECREASED_HIGH_TEMPERATURE")
	r.deformed = r.bind("deformed", "RODS_DEFORMED")
	r.temperature = r.bind("temperature", "RODS_TEMPERATURE")
	r.maxTemperature = r.bind("maxTemperature", "RODS_MAX_TEMPERATURE")
	r.orderedPosition = r.bind("orderedPosition", "RODS_POS_ORDERED")
	r.actualPosition = r.bind("actualPosition", "RODS_POS_ACTUAL")
	r.reachedPosition = r.bind("reachedPosition", "RODS_POS_REACHED")
	r.quantity = r.bind("quantity", "RODS_QUANTITY")
	r.aligned = r.bind("aligned", "RODS_ALIGNED")
}

// Status returns the rod bundle status.
func (r *ControlRodBundle) Status() string { return r.get(r.status) }

// MovementSpeed returns the rod movement speed.
func (r *ControlRodBundle) MovementSpeed() string { return r.get(r.movementSpeed) }

// MovementSpeedDecreasedHighTemperature returns whether movement is slowed by high temperature.
func (r *ControlRodBundle) MovementSpeedDecreasedHighTemperature() string {
	return r.get(r.movementSpeedDecreasedHighTemperature)
}

// Deformed returns whether the rods are deformed.
func (r *ControlRodBundle) Deformed() string { return r.get(r.deformed) }

// Temperature returns the rod temperature.
func (r *ControlRodBundle) Temperature() string { return r.get(r.temperature) }

// MaxTemperature returns the rod temperature limit.
func (r *ControlRodBundle) MaxTemperature() string { return r.get(r.maxTemperature) }

// OrderedPosition returns the commanded position in percent inserted.
func (r *ControlRodBundle) OrderedPosition() string { return r.get(r.orderedPosition) }

// ActualPosition returns the current position in percent inserted.
func (r *ControlRodBundle) ActualPosition() string { return r.get(r.actualPosition) }

// ReachedPosition returns whether the rods reached the ordered position.
func (r *ControlRodBundle) ReachedPosition() string { return r.get(r.reachedPosition) }

// Quantity returns the number of rods.
func (r *ControlRodBundle) Quantity() string { return r.get(r.quantity) }

// Aligned returns whether the rods are aligned.
func (r *ControlRodBundle) Aligned() string { return r.get(r.aligned) }

// SetOrderedPosition commands every rod to position, in percent inserted.
// The write is not synchronized with refreshes; the new ordered position shows
// up on a later refresh.
func (r *ControlRodBundle) SetOrderedPosition(ctx context.Context, position float64) error {
	return r.write(ctx, source.RodsOrderedPosition, strconv.FormatFloat(position, 'f', -1, 64))
}

// UnmarshalJSON decodes a ControlRodBundle snapshot.
func (r *ControlRodBundle) UnmarshalJSON(data []byte) error {
	if r.name == "" {
		r.build(nil)
	}
	return r.decode(data)
}
