// Package snapshot mirrors the game state as a tree of typed nodes.
//
// Every node owns a fixed table of string fields bound to remote variables and a
// fixed set of children. A node is either attached to a DataSource or detached;
// only attached nodes fetch or write. Refresh fetches a node's own fields and
// refreshes its children concurrently, then applies the node's values in one
// step so readers never see a half-updated node. Change notifications are
// delivered after the node's lock is released.
//
// The zero value of a node is detached and becomes usable once it is decoded
// from JSON. Use the NewX constructors otherwise.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	sdkerrors "github.com/wehubfusion/nucleares/pkg/errors"
	"github.com/wehubfusion/nucleares/pkg/observable"
	"github.com/wehubfusion/nucleares/pkg/source"
)

type node struct {
	name string

	mu        sync.RWMutex
	src       source.DataSource
	fields    []*observable.Field[string]
	variables []string
	extras    []extra
	children  []childSlot
}

// extra is a read-only JSON member that is not fetched, such as an id or a derived value.
type extra struct {
	key      string
	notifier observable.Notifier
	value    func() any
}

type childSlot struct {
	key   string
	nodes []*node
	list  bool
}

func (n *node) init(name string, src source.DataSource) {
	n.name = name
	n.src = src
}

// bind declares an own field with JSON key key fetched from variable.
func (n *node) bind(key, variable string) *observable.Field[string] {
	f := observable.NewField(key, "")
	n.fields = append(n.fields, f)
	n.variables = append(n.variables, variable)
	return f
}

func (n *node) child(key string, c *node) {
	n.children = append(n.children, childSlot{key: key, nodes: []*node{c}})
}

func (n *node) childList(key string, cs []*node) {
	n.children = append(n.children, childSlot{key: key, nodes: cs, list: true})
}

// Name returns the node's display name.
func (n *node) Name() string {
	return n.name
}

func (n *node) source() source.DataSource {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.src
}

// get reads f under the node lock.
func (n *node) get(f *observable.Field[string]) string {
	if f == nil {
		return ""
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	return f.Get()
}

// Attach connects the node and all its descendants to src, parent first.
// Attaching nil detaches the subtree.
func (n *node) Attach(src source.DataSource) {
	n.mu.Lock()
	n.src = src
	n.mu.Unlock()

	for _, slot := range n.children {
		for _, c := range slot.nodes {
			c.Attach(src)
		}
	}
}

// Attached reports whether the node and every descendant have a data source.
func (n *node) Attached() bool {
	return n.checkAttached() == nil
}

func (n *node) checkAttached() error {
	if n.source() == nil {
		return sdkerrors.NewNotInitializedError(n.displayName())
	}
	for _, slot := range n.children {
		for _, c := range slot.nodes {
			if err := c.checkAttached(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (n *node) displayName() string {
	if n.name == "" {
		return "snapshot node"
	}
	return n.name
}

// Refresh fetches the node's fields and refreshes its children concurrently.
//
// The node's own values are applied only when all of its fetches and all of its
// child refreshes succeeded, so a failure deep in the tree leaves every ancestor
// unchanged. A failure in one branch does not cancel or roll back its siblings;
// the first error is returned once every branch has finished. A detached node anywhere in
// the subtree fails the call before any fetch is issued.
func (n *node) Refresh(ctx context.Context) error {
	if err := n.checkAttached(); err != nil {
		return err
	}
	return n.refresh(ctx)
}

func (n *node) refresh(ctx context.Context) error {
	src := n.source()
	if src == nil {
		return sdkerrors.NewNotInitializedError(n.displayName())
	}

	values := make([]string, len(n.variables))
	var own, kids errgroup.Group

	for i, variable := range n.variables {
		own.Go(func() error {
			v, err := src.Read(ctx, variable)
			if err != nil {
				return err
			}
			values[i] = v
			return nil
		})
	}
	for _, slot := range n.children {
		for _, c := range slot.nodes {
			kids.Go(func() error {
				return c.refresh(ctx)
			})
		}
	}

	ownErr := own.Wait()
	kidErr := kids.Wait()

	if ownErr != nil {
		return fmt.Errorf("%s: %w", n.displayName(), ownErr)
	}
	// A failed child keeps this node, and through it every ancestor, at its
	// previous values.
	if kidErr != nil {
		return fmt.Errorf("%s: %w", n.displayName(), kidErr)
	}
	n.apply(values)
	return nil
}

// apply stores values in field order under the write lock and notifies afterwards.
func (n *node) apply(values []string) {
	changed := make([]*observable.Field[string], 0, len(values))

	n.mu.Lock()
	for i, f := range n.fields {
		if f.Swap(values[i]) {
			changed = append(changed, f)
		}
	}
	n.mu.Unlock()

	for _, f := range changed {
		f.Notify()
	}
}

// write sends value to variable through the node's source.
func (n *node) write(ctx context.Context, variable, value string) error {
	src := n.source()
	if src == nil {
		return sdkerrors.NewNotInitializedError(n.displayName())
	}
	return src.Write(ctx, variable, value)
}

// Values returns a consistent copy of the node's own fields keyed by field name.
func (n *node) Values() map[string]string {
	n.mu.RLock()
	defer n.mu.RUnlock()

	out := make(map[string]string, len(n.fields))
	for _, f := range n.fields {
		out[f.Name()] = f.Get()
	}
	return out
}

// Fields returns the names of the node's own fields in declaration order.
func (n *node) Fields() []string {
	out := make([]string, len(n.fields))
	for i, f := range n.fields {
		out[i] = f.Name()
	}
	return out
}

// Variables returns the remote variable bound to each own field.
func (n *node) Variables() map[string]string {
	out := make(map[string]string, len(n.fields))
	for i, f := range n.fields {
		out[f.Name()] = n.variables[i]
	}
	return out
}

// Subscribe registers fn on every own field of the node, including derived ones.
// fn receives the name of the field that changed.
func (n *node) Subscribe(fn observable.Listener) (unsubscribe func()) {
	cancels := make([]func(), 0, len(n.fields)+len(n.extras))
	for _, f := range n.fields {
		cancels = append(cancels, f.Subscribe(fn))
	}
	for _, e := range n.extras {
		if e.notifier != nil {
			cancels = append(cancels, e.notifier.Subscribe(fn))
		}
	}
	return func() {
		for _, cancel := range cancels {
			cancel()
		}
	}
}

// SubscribeField registers fn on the single field named field.
// It reports false when the node has no such field.
func (n *node) SubscribeField(field string, fn observable.Listener) (unsubscribe func(), ok bool) {
	for _, f := range n.fields {
		if f.Name() == field {
			return f.Subscribe(fn), true
		}
	}
	for _, e := range n.extras {
		if e.key == field && e.notifier != nil {
			return e.notifier.Subscribe(fn), true
		}
	}
	return nil, false
}

// MarshalJSON encodes own fields, extras and children as one object, in declaration order.
func (n *node) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	first := true
	member := func(key string, v any) error {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", n.displayName(), key, err)
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		k, _ := json.Marshal(key)
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(raw)
		return nil
	}

	n.mu.RLock()
	for _, e := range n.extras {
		if err := member(e.key, e.value()); err != nil {
			n.mu.RUnlock()
			return nil, err
		}
	}
	for _, f := range n.fields {
		if err := member(f.Name(), f.Get()); err != nil {
			n.mu.RUnlock()
			return nil, err
		}
	}
	n.mu.RUnlock()

	for _, slot := range n.children {
		var v any = slot.nodes[0]
		if slot.list {
			v = slot.nodes
		}
		if err := member(slot.key, v); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// decode applies a JSON object produced by MarshalJSON. Unknown members and
// extras are ignored; missing members keep their current value. Child lists
// must have exactly the node's fixed cardinality.
func (n *node) decode(data []byte) error {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return fmt.Errorf("%s: %w", n.displayName(), err)
	}

	values := make([]string, len(n.fields))
	present := make([]bool, len(n.fields))
	for i, f := range n.fields {
		raw, ok := members[f.Name()]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, &values[i]); err != nil {
			return fmt.Errorf("%s.%s: %w", n.displayName(), f.Name(), err)
		}
		present[i] = true
	}

	for _, slot := range n.children {
		raw, ok := members[slot.key]
		if !ok {
			continue
		}
		if !slot.list {
			if err := slot.nodes[0].decode(raw); err != nil {
				return err
			}
			continue
		}
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return fmt.Errorf("%s.%s: %w", n.displayName(), slot.key, err)
		}
		if len(items) != len(slot.nodes) {
			return fmt.Errorf("%s.%s: expected %d entries, got %d", n.displayName(), slot.key, len(slot.nodes), len(items))
		}
		for i, item := range items {
			if err := slot.nodes[i].decode(item); err != nil {
				return err
			}
		}
	}

	changed := make([]*observable.Field[string], 0, len(values))
	n.mu.Lock()
	for i, f := range n.fields {
		if present[i] && f.Swap(values[i]) {
			changed = append(changed, f)
		}
	}
	n.mu.Unlock()

	for _, f := range changed {
		f.Notify()
	}
	return nil
}

func nodesOf[T any](items []*T, base func(*T) *node) []*node {
	out := make([]*node, len(items))
	for i, item := range items {
		out[i] = base(item)
	}
	return out
}

// decodeID reads the id member of a list entry and checks it against the
// fixed cardinality of the list it belongs to.
func decodeID(data []byte, kind string, count int) (int, error) {
	var v struct {
		ID *int `json:"id"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return 0, fmt.Errorf("%s: %w", kind, err)
	}
	if v.ID == nil {
		return 0, fmt.Errorf("%s: missing id", kind)
	}
	if *v.ID < 0 || *v.ID >= count {
		return 0, fmt.Errorf("%s: id %d out of range [0, %d)", kind, *v.ID, count)
	}
	return *v.ID, nil
}
