package snapshot

import (
	"strconv"
	"strings"

	"github.com/wehubfusion/nucleares/pkg/observable"
	"github.com/wehubfusion/nucleares/pkg/source"
)

const minutesPerDay = 60 * 24

// World holds the in-game clock.
type World struct {
	node

	time       *observable.Field[string]
	timeStamp  *observable.Field[string]
	currentDay *observable.Derived[string, int]
}

// NewWorld creates a World bound to src. A nil src creates it detached.
func NewWorld(src source.DataSource) *World {
	w := &World{}
	w.build(src)
	return w
}

func (w *World) build(src source.DataSource) {
	w.init("World", src)
	w.time = w.bind("time", "TIME")
	w.timeStamp = w.bind("timeStamp", "TIME_STAMP")
	w.currentDay = observable.Derive("currentDay", w.timeStamp, dayOf)
	w.extras = append(w.extras, extra{
		key:      "currentDay",
		notifier: w.currentDay,
		value:    func() any { return w.currentDay.Get() },
	})
}

// dayOf converts a timestamp in in-game minutes to a day number. Unparsable
// timestamps map to day 0.
func dayOf(timeStamp string) int {
	minutes, err := strconv.Atoi(strings.TrimSpace(timeStamp))
	if err != nil {
		return 0
	}
	return minutes / minutesPerDay
}

// Time returns the in-game time of day as reported by the game.
func (w *World) Time() string { return w.get(w.time) }

// TimeStamp returns the in-game timestamp in minutes.
func (w *World) TimeStamp() string { return w.get(w.timeStamp) }

// CurrentDay returns the in-game day derived from TimeStamp.
func (w *World) CurrentDay() int {
	if w.currentDay == nil {
		return 0
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.currentDay.Get()
}

// UnmarshalJSON decodes a World snapshot. A zero World is built detached first.
func (w *World) UnmarshalJSON(data []byte) error {
	if w.name == "" {
		w.build(nil)
	}
	return w.decode(data)
}
