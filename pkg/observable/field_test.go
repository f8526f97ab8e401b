package observable

import (
	"encoding/json"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetSameValueDoesNotNotify(t *testing.T) {
	f := NewField("temperature", "350")
	calls := 0
	f.Subscribe(func(string) { calls++ })

	assert.False(t, f.Set("350"))
	assert.Equal(t, 0, calls)
}

func TestSetNewValueNotifiesOnceWithName(t *testing.T) {
	f := NewField("temperature", "350")
	var names []string
	f.Subscribe(func(name string) { names = append(names, name) })

	assert.True(t, f.Set("355"))
	assert.Equal(t, []string{"temperature"}, names)
	assert.Equal(t, "355", f.Get())

	assert.False(t, f.Set("355"))
	assert.Len(t, names, 1)
}

func TestNotifyPreservesSubscriptionOrder(t *testing.T) {
	f := NewField("pressure", 0)
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		f.Subscribe(func(string) { order = append(order, i) })
	}

	f.Set(1)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestUnsubscribe(t *testing.T) {
	f := NewField("wear", "")
	var a, b int
	unsubA := f.Subscribe(func(string) { a++ })
	f.Subscribe(func(string) { b++ })

	f.Set("1")
	unsubA()
	unsubA()
	f.Set("2")

	assert.Equal(t, 1, a)
	assert.Equal(t, 2, b)
}

func TestSwapDefersNotification(t *testing.T) {
	f := NewField("state", "OFF")
	calls := 0
	f.Subscribe(func(string) { calls++ })

	require.True(t, f.Swap("ON"))
	assert.Equal(t, 0, calls)
	f.Notify()
	assert.Equal(t, 1, calls)
}

func TestListenerReadsNewValue(t *testing.T) {
	f := NewField("status", "a")
	var seen string
	f.Subscribe(func(string) { seen = f.Get() })

	f.Set("b")
	assert.Equal(t, "b", seen)
}

func TestFieldJSON(t *testing.T) {
	f := NewField("temperature", "350")
	data, err := json.Marshal(f)
	require.NoError(t, err)
	assert.JSONEq(t, `"350"`, string(data))

	g := NewField("temperature", "")
	require.NoError(t, json.Unmarshal([]byte(`"412"`), g))
	assert.Equal(t, "412", g.Get())
}

func TestDerivedNotifiesWhenSourceChanges(t *testing.T) {
	stamp := NewField("timeStamp", "0")
	day := Derive("currentDay", stamp, func(s string) int {
		n, _ := strconv.Atoi(s)
		return n / 60 / 24
	})

	var names []string
	stamp.Subscribe(func(name string) { names = append(names, name) })
	day.Subscribe(func(name string) { names = append(names, name) })

	stamp.Set("2880")
	assert.Equal(t, 2, day.Get())
	assert.ElementsMatch(t, []string{"timeStamp", "currentDay"}, names)

	stamp.Set("2880")
	assert.Len(t, names, 2)

	data, err := json.Marshal(day)
	require.NoError(t, err)
	assert.Equal(t, "2", string(data))
}
