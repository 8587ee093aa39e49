// Package metrics defines the value model exchanged between collectors,
// analyzers and the application: a tagged Value (gauge, counter, rate or
// histogram summary) stored in an insertion-ordered Metrics map.
package metrics

import (
	"encoding/json"
	"fmt"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindGauge Kind = iota + 1
	KindCounter
	KindRate
	KindHistogram
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case KindGauge:
		return "gauge"
	case KindCounter:
		return "counter"
	case KindRate:
		return "rate"
	case KindHistogram:
		return "histogram"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Bucket is one cumulative histogram bucket.
type Bucket struct {
	UpperBound float64 `json:"le"`
	Count      uint64  `json:"count"`
}

// Histogram is a summary of observations.
type Histogram struct {
	Count   uint64   `json:"count"`
	Sum     float64  `json:"sum"`
	Buckets []Bucket `json:"buckets,omitempty"`
}

// Value is a single metric reading. It is value-typed and replaced on every
// sample.
type Value struct {
	kind Kind
	f    float64
	u    uint64
	h    *Histogram
}

// Gauge returns an instantaneous value.
func Gauge(v float64) Value { return Value{kind: KindGauge, f: v} }

// Counter returns a monotonic counter reading.
func Counter(v uint64) Value { return Value{kind: KindCounter, u: v} }

// Rate returns a per-second value derived from two counter readings.
func Rate(v float64) Value { return Value{kind: KindRate, f: v} }

// Hist returns a histogram summary. The buckets are copied.
func Hist(h Histogram) Value {
	cp := h
	cp.Buckets = append([]Bucket(nil), h.Buckets...)
	return Value{kind: KindHistogram, h: &cp}
}

// Kind reports which variant v holds.
func (v Value) Kind() Kind { return v.kind }

// Float returns the numeric reading as float64 regardless of kind. Histograms
// report their mean.
func (v Value) Float() float64 {
	switch v.kind {
	case KindCounter:
		return float64(v.u)
	case KindHistogram:
		if v.h == nil || v.h.Count == 0 {
			return 0
		}
		return v.h.Sum / float64(v.h.Count)
	default:
		return v.f
	}
}

// String formats the value for debugging and the snapshot command.
func (v Value) String() string {
	switch v.kind {
	case KindCounter:
		return fmt.Sprintf("%d", v.u)
	case KindHistogram:
		if v.h == nil {
			return "hist{}"
		}
		return fmt.Sprintf("hist{count=%d sum=%g}", v.h.Count, v.h.Sum)
	default:
		return fmt.Sprintf("%g", v.f)
	}
}

// MarshalJSON encodes the value as {"kind": ..., "value": ...}.
func (v Value) MarshalJSON() ([]byte, error) {
	out := struct {
		Kind  string `json:"kind"`
		Value any    `json:"value"`
	}{Kind: v.kind.String()}
	switch v.kind {
	case KindCounter:
		out.Value = v.u
	case KindHistogram:
		out.Value = v.h
	default:
		out.Value = v.f
	}
	return json.Marshal(out)
}
