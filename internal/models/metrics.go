package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// MetricKey enumerates the per-file evolution metrics
type MetricKey int

const (
	NumberOfRevisions MetricKey = iota
	AverageChangeSetSize
	MaxChangeSetSize
	LOC
	LOCAdded
	MaxLOCAdded
	AverageLOCAdded
	LOCTouched
	Churn
	MaxChurn
	AverageChurn
	AgeInWeeks
	WeightedAgeInWeeks
	NumberOfAuthors

	metricKeyCount
)

var metricKeyNames = [metricKeyCount]string{
	NumberOfRevisions:    "NUMBER_OF_REVISIONS",
	AverageChangeSetSize: "AVERAGE_CHANGE_SET_SIZE",
	MaxChangeSetSize:     "MAX_CHANGE_SET_SIZE",
	LOC:                  "LOC",
	LOCAdded:             "LOC_ADDED",
	MaxLOCAdded:          "MAX_LOC_ADDED",
	AverageLOCAdded:      "AVERAGE_LOC_ADDED",
	LOCTouched:           "LOC_TOUCHED",
	Churn:                "CHURN",
	MaxChurn:             "MAX_CHURN",
	AverageChurn:         "AVERAGE_CHURN",
	AgeInWeeks:           "AGE_IN_WEEKS",
	WeightedAgeInWeeks:   "WEIGHTED_AGE_IN_WEEKS",
	NumberOfAuthors:      "NUMBER_OF_AUTHORS",
}

// String returns the canonical upper-case metric name
func (k MetricKey) String() string {
	if k < 0 || k >= metricKeyCount {
		return "MetricKey(" + strconv.Itoa(int(k)) + ")"
	}
	return metricKeyNames[k]
}

// Kind returns the value kind a metric holds when it is defined
func (k MetricKey) Kind() ValueKind {
	switch k {
	case AgeInWeeks, WeightedAgeInWeeks:
		return KindFloat
	default:
		return KindInteger
	}
}

// AllMetricKeys returns every metric key in enumeration order
func AllMetricKeys() []MetricKey {
	keys := make([]MetricKey, 0, metricKeyCount)
	for k := MetricKey(0); k < metricKeyCount; k++ {
		keys = append(keys, k)
	}
	return keys
}

// ParseMetricKey resolves a canonical metric name
func ParseMetricKey(name string) (MetricKey, error) {
	for k, n := range metricKeyNames {
		if n == name {
			return MetricKey(k), nil
		}
	}
	return 0, fmt.Errorf("unknown metric %q", name)
}

// MarshalText encodes the key by name so it can be used as a map key in JSON and YAML
func (k MetricKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a key from its canonical name
func (k *MetricKey) UnmarshalText(text []byte) error {
	parsed, err := ParseMetricKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ValueKind tags the representation held by a Value
type ValueKind uint8

const (
	KindInteger ValueKind = iota + 1
	KindFloat
	KindTime
	// KindUndefined marks a degenerate metric, e.g. a ratio over a zero denominator
	KindUndefined
)

// Value is a typed metric value
type Value struct {
	Kind   ValueKind
	Int    int64
	Float  float64
	Time   time.Time
	Reason string
}

// Integer builds an integer count value
func Integer(v int64) Value {
	return Value{Kind: KindInteger, Int: v}
}

// Float builds a floating-point ratio value
func Float(v float64) Value {
	return Value{Kind: KindFloat, Float: v}
}

// Timestamp builds a date-time value
func Timestamp(t time.Time) Value {
	return Value{Kind: KindTime, Time: t}
}

// Undefined builds a flagged value for a metric that has no numeric result
func Undefined(reason string) Value {
	return Value{Kind: KindUndefined, Reason: reason}
}

// IsDefined reports whether the value carries a number or timestamp
func (v Value) IsDefined() bool {
	return v.Kind == KindInteger || v.Kind == KindFloat || v.Kind == KindTime
}

// String formats the value for tabular output; undefined values render empty
func (v Value) String() string {
	switch v.Kind {
	case KindInteger:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'f', -1, 64)
	case KindTime:
		return v.Time.Format(time.RFC3339)
	default:
		return ""
	}
}

// Interface returns the native Go value; nil when undefined
func (v Value) Interface() interface{} {
	switch v.Kind {
	case KindInteger:
		return v.Int
	case KindFloat:
		return v.Float
	case KindTime:
		return v.Time
	default:
		return nil
	}
}

// MarshalJSON encodes the native value, or null when undefined
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// MarshalYAML encodes the native value, or null when undefined
func (v Value) MarshalYAML() (interface{}, error) {
	return v.Interface(), nil
}
