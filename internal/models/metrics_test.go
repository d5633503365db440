package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestMetricKeyNames(t *testing.T) {
	keys := AllMetricKeys()
	require.Len(t, keys, 14)
	assert.Equal(t, NumberOfRevisions, keys[0])
	assert.Equal(t, NumberOfAuthors, keys[len(keys)-1])

	for _, k := range keys {
		parsed, err := ParseMetricKey(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}

	_, err := ParseMetricKey("LOC_REMOVED")
	assert.Error(t, err)
	assert.Equal(t, "MetricKey(99)", MetricKey(99).String())
}

func TestMetricKeyKind(t *testing.T) {
	assert.Equal(t, KindFloat, AgeInWeeks.Kind())
	assert.Equal(t, KindFloat, WeightedAgeInWeeks.Kind())
	assert.Equal(t, KindInteger, LOCTouched.Kind())
	assert.Equal(t, KindInteger, NumberOfAuthors.Kind())
}

func TestValueString(t *testing.T) {
	ts := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	tests := []struct {
		name  string
		value Value
		want  string
	}{
		{"integer", Integer(42), "42"},
		{"negative integer", Integer(-7), "-7"},
		{"float", Float(2.5), "2.5"},
		{"timestamp", Timestamp(ts), "2020-01-02T03:04:05Z"},
		{"undefined", Undefined("zero lines touched"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.value.String())
		})
	}
}

func TestValueEncoding(t *testing.T) {
	metrics := map[MetricKey]Value{
		LOC:                Integer(10),
		WeightedAgeInWeeks: Undefined("zero lines touched"),
	}

	raw, err := json.Marshal(metrics)
	require.NoError(t, err)
	assert.JSONEq(t, `{"LOC":10,"WEIGHTED_AGE_IN_WEEKS":null}`, string(raw))

	out, err := yaml.Marshal(map[string]Value{"loc": Integer(10), "age": Float(1.5)})
	require.NoError(t, err)
	assert.Contains(t, string(out), "loc: 10")
	assert.Contains(t, string(out), "age: 1.5")
}

func TestFileLifecycle(t *testing.T) {
	f := NewFile("src/Main.java", "abc")
	assert.False(t, f.Populated())

	for _, k := range AllMetricKeys() {
		f.SetInt(k, 1)
	}
	f.SetFloat(AgeInWeeks, 3.5)
	assert.True(t, f.Populated())

	age, ok := f.Float(AgeInWeeks)
	assert.True(t, ok)
	assert.Equal(t, 3.5, age)

	_, ok = f.Int(AgeInWeeks)
	assert.False(t, ok, "float metric must not read as integer")

	snapshot := f.Metrics()
	f.Reset("deadbeef")
	assert.Equal(t, "deadbeef", f.Commit())
	assert.False(t, f.Populated())
	assert.Len(t, snapshot, 14, "snapshot must be a copy")
}

func TestCommitShort(t *testing.T) {
	c := NewCommit("0123456789abcdef", time.Time{})
	assert.Equal(t, "01234567", c.Short())
	assert.False(t, c.IsZero())
	assert.True(t, Commit{}.IsZero())
}
