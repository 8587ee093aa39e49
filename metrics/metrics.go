package metrics

import (
	"bytes"
	"encoding/json"
	"iter"
	"time"
)

// Metrics is an insertion-ordered mapping from dotted metric name
// (cpu.load.1, memory.used.percent, net.eth0.rx.bytes) to Value, stamped
// with the time the sample was taken. Keys are unique: setting an existing
// name replaces its value in place.
type Metrics struct {
	// Timestamp is when the sample was taken. Live samples carry a monotonic
	// clock reading so Sub between two timestamps is safe for rates.
	Timestamp time.Time

	keys   []string
	values map[string]Value
}

// New returns an empty Metrics stamped with ts.
func New(ts time.Time) *Metrics {
	return &Metrics{Timestamp: ts, values: make(map[string]Value)}
}

// Set stores v under name.
func (m *Metrics) Set(name string, v Value) {
	if m.values == nil {
		m.values = make(map[string]Value)
	}
	if _, ok := m.values[name]; !ok {
		m.keys = append(m.keys, name)
	}
	m.values[name] = v
}

// SetGauge stores a gauge.
func (m *Metrics) SetGauge(name string, v float64) { m.Set(name, Gauge(v)) }

// SetCounter stores a counter.
func (m *Metrics) SetCounter(name string, v uint64) { m.Set(name, Counter(v)) }

// SetRate stores a rate.
func (m *Metrics) SetRate(name string, v float64) { m.Set(name, Rate(v)) }

// Get returns the raw value stored under name.
func (m *Metrics) Get(name string) (Value, bool) {
	if m == nil {
		return Value{}, false
	}
	v, ok := m.values[name]
	return v, ok
}

// Gauge returns the gauge stored under name. Unknown names and values of
// another kind report false.
func (m *Metrics) Gauge(name string) (float64, bool) {
	v, ok := m.Get(name)
	if !ok || v.kind != KindGauge {
		return 0, false
	}
	return v.f, true
}

// Counter returns the counter stored under name.
func (m *Metrics) Counter(name string) (uint64, bool) {
	v, ok := m.Get(name)
	if !ok || v.kind != KindCounter {
		return 0, false
	}
	return v.u, true
}

// Rate returns the rate stored under name.
func (m *Metrics) Rate(name string) (float64, bool) {
	v, ok := m.Get(name)
	if !ok || v.kind != KindRate {
		return 0, false
	}
	return v.f, true
}

// Histogram returns a copy of the histogram stored under name.
func (m *Metrics) Histogram(name string) (Histogram, bool) {
	v, ok := m.Get(name)
	if !ok || v.kind != KindHistogram || v.h == nil {
		return Histogram{}, false
	}
	h := *v.h
	h.Buckets = append([]Bucket(nil), v.h.Buckets...)
	return h, true
}

// Len returns the number of metrics.
func (m *Metrics) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns the metric names in insertion order.
func (m *Metrics) Keys() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.keys...)
}

// All yields name/value pairs in insertion order.
func (m *Metrics) All() iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		if m == nil {
			return
		}
		for _, k := range m.keys {
			if !yield(k, m.values[k]) {
				return
			}
		}
	}
}

// Merge copies every entry of other into m, replacing same-named entries.
// The receiver's timestamp is kept.
func (m *Metrics) Merge(other *Metrics) {
	for k, v := range other.All() {
		m.Set(k, v)
	}
}

// Clone returns a deep copy.
func (m *Metrics) Clone() *Metrics {
	out := New(m.Timestamp)
	out.keys = make([]string, 0, len(m.keys))
	for k, v := range m.All() {
		if v.kind == KindHistogram && v.h != nil {
			v = Hist(*v.h)
		}
		out.Set(k, v)
	}
	return out
}

// MarshalJSON encodes the metrics as an object whose keys keep insertion
// order.
func (m *Metrics) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"timestamp":`)
	ts, err := json.Marshal(m.Timestamp)
	if err != nil {
		return nil, err
	}
	buf.Write(ts)
	buf.WriteString(`,"metrics":{`)
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, _ := json.Marshal(k)
		buf.Write(name)
		buf.WriteByte(':')
		val, err := m.values[k].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteString("}}")
	return buf.Bytes(), nil
}
