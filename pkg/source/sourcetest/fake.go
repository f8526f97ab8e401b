// Package sourcetest provides a scripted in-memory DataSource for tests.
package sourcetest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Fake serves variables from a map. It counts calls and tracks how many reads
// overlap so tests can assert on concurrency.
type Fake struct {
	mu      sync.Mutex
	values  map[string]string
	fail    map[string]error
	writes  []Write
	delay   time.Duration
	gate    chan struct{}
	reads   map[string]int
	onRead  func(name string)
	missing error

	readCount  atomic.Int64
	writeCount atomic.Int64
	active     atomic.Int64
	peak       atomic.Int64
}

// Write records one call to Fake.Write.
type Write struct {
	Name  string
	Value string
}

// New creates a fake serving values. Unknown variables read as "0".
func New(values map[string]string) *Fake {
	f := &Fake{
		values: make(map[string]string, len(values)),
		fail:   make(map[string]error),
		reads:  make(map[string]int),
	}
	for k, v := range values {
		f.values[k] = v
	}
	return f
}

// Set changes the value served for name.
func (f *Fake) Set(name, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[name] = value
}

// Fail makes every read of name return err. A nil err clears the failure.
func (f *Fake) Fail(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fail, name)
		return
	}
	f.fail[name] = err
}

// FailUnknown makes reads of variables without a scripted value return err.
func (f *Fake) FailUnknown(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.missing = err
}

// SetDelay makes every read sleep for d, or until its context is done.
func (f *Fake) SetDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
}

// Block makes reads wait until Unblock is called or their context is done.
func (f *Fake) Block() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = make(chan struct{})
}

// Unblock releases every read waiting on Block.
func (f *Fake) Unblock() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gate != nil {
		close(f.gate)
		f.gate = nil
	}
}

// OnRead registers a hook called at the start of every read.
func (f *Fake) OnRead(fn func(name string)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onRead = fn
}

// Read implements source.DataSource.
func (f *Fake) Read(ctx context.Context, name string) (string, error) {
	f.readCount.Add(1)
	current := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		peak := f.peak.Load()
		if current <= peak || f.peak.CompareAndSwap(peak, current) {
			break
		}
	}

	f.mu.Lock()
	f.reads[name]++
	delay, gate, hook := f.delay, f.gate, f.onRead
	f.mu.Unlock()

	if hook != nil {
		hook(name)
	}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.fail[name]; ok {
		return "", err
	}
	v, ok := f.values[name]
	if !ok {
		if f.missing != nil {
			return "", fmt.Errorf("%s: %w", name, f.missing)
		}
		return "0", nil
	}
	return v, nil
}

// Write implements source.DataSource.
func (f *Fake) Write(ctx context.Context, name, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.writeCount.Add(1)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, Write{Name: name, Value: value})
	return nil
}

// Reads returns the total number of reads.
func (f *Fake) Reads() int64 {
	return f.readCount.Load()
}

// ReadsOf returns the number of reads of name.
func (f *Fake) ReadsOf(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads[name]
}

// Writes returns every recorded write in call order.
func (f *Fake) Writes() []Write {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Write, len(f.writes))
	copy(out, f.writes)
	return out
}

// PeakConcurrent returns the largest number of reads that overlapped.
func (f *Fake) PeakConcurrent() int64 {
	return f.peak.Load()
}

// Reset clears counters but keeps scripted values and failures.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads = make(map[string]int)
	f.writes = nil
	f.readCount.Store(0)
	f.writeCount.Store(0)
	f.peak.Store(0)
}
