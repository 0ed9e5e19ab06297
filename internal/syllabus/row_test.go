package syllabus

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitTable(t *testing.T) {
	_, _, err := SplitTable([]RawRow{{Fields: []string{"Module"}}})
	var se *SkipError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, ReasonTooFewRows, se.Reason)

	header, data, err := SplitTable([]RawRow{
		{Index: 0, Fields: []string{"Module"}},
		{Index: 1, Fields: []string{"M1"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, header.Index)
	assert.Len(t, data, 1)
}

func TestParseModuleRow(t *testing.T) {
	row, err := ParseModuleRow(RawRow{Fields: []string{
		"M1", "Week 1 (Jan. 5-10)", "Quiz 1", "Zoom", "TRUE", "false", "2.5", "extra",
	}})
	require.NoError(t, err)
	assert.Equal(t, ModuleRow{
		Module:     "M1",
		DateExpr:   "Week 1 (Jan. 5-10)",
		Activities: "Quiz 1",
		Technology: "Zoom",
		Onsite:     true,
		Async:      false,
		Hours:      2.5,
	}, row)
}

func TestParseModuleRow_TooFewFields(t *testing.T) {
	_, err := ParseModuleRow(RawRow{Fields: []string{"M1", "Week 1 (Jan. 5-10)", "Quiz", "Zoom", "true"}})
	var se *SkipError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, ReasonTooFewFields, se.Reason)
}

func TestParseFlag(t *testing.T) {
	assert.True(t, parseFlag("true"))
	assert.True(t, parseFlag("True"))
	assert.True(t, parseFlag(" TRUE "))
	assert.False(t, parseFlag("yes"))
	assert.False(t, parseFlag(""))
	assert.False(t, parseFlag("false"))
}

func TestParseHours(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"2", 2},
		{"1.5", 1.5},
		{"3 hrs", 3},
		{".5", 0.5},
		{"", DefaultHours},
		{"TBA", DefaultHours},
		{"0", DefaultHours},
		{"-2", DefaultHours},
		{"1e400", DefaultHours},
		{"3000000", DefaultHours},
		{"1e-300", DefaultHours},
		{"0.0001", DefaultHours},
		{"2000000", 2000000},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseHours(tt.in))
		})
	}
}
