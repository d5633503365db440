package models

// File is a single blob in the tree of a commit together with the metrics
// computed for it. A File is owned by one worker at a time and is not safe for
// concurrent mutation.
type File struct {
	Name string `json:"name" yaml:"name"`
	Hash string `json:"hash" yaml:"hash"`

	commit  string
	metrics map[MetricKey]Value
}

// NewFile creates an unpopulated file record
func NewFile(name, hash string) *File {
	return &File{
		Name:    name,
		Hash:    hash,
		metrics: make(map[MetricKey]Value),
	}
}

// Reset clears all metrics and binds the record to the given release commit.
// Metrics are only meaningful relative to a single commit.
func (f *File) Reset(commitHash string) {
	f.commit = commitHash
	f.metrics = make(map[MetricKey]Value)
}

// Commit returns the release commit the current metrics belong to
func (f *File) Commit() string {
	return f.commit
}

// Set stores a metric value
func (f *File) Set(key MetricKey, v Value) {
	if f.metrics == nil {
		f.metrics = make(map[MetricKey]Value)
	}
	f.metrics[key] = v
}

// SetInt stores an integer metric
func (f *File) SetInt(key MetricKey, v int64) {
	f.Set(key, Integer(v))
}

// SetFloat stores a floating-point metric
func (f *File) SetFloat(key MetricKey, v float64) {
	f.Set(key, Float(v))
}

// Value returns the stored value for key
func (f *File) Value(key MetricKey) (Value, bool) {
	v, ok := f.metrics[key]
	return v, ok
}

// Int returns an integer metric; ok is false when absent or not an integer
func (f *File) Int(key MetricKey) (int64, bool) {
	v, ok := f.metrics[key]
	if !ok || v.Kind != KindInteger {
		return 0, false
	}
	return v.Int, true
}

// Float returns a floating-point metric; ok is false when absent or not a float
func (f *File) Float(key MetricKey) (float64, bool) {
	v, ok := f.metrics[key]
	if !ok || v.Kind != KindFloat {
		return 0, false
	}
	return v.Float, true
}

// Metrics returns a copy of the metric map
func (f *File) Metrics() map[MetricKey]Value {
	out := make(map[MetricKey]Value, len(f.metrics))
	for k, v := range f.metrics {
		out[k] = v
	}
	return out
}

// Populated reports whether every metric key has a value
func (f *File) Populated() bool {
	for _, k := range AllMetricKeys() {
		if _, ok := f.metrics[k]; !ok {
			return false
		}
	}
	return true
}
