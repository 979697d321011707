package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScanRecord_Rank(t *testing.T) {
	tests := []struct {
		name   string
		record ScanRecord
		want   int
	}{
		{"unclassified", ScanRecord{ID: "ABC-123"}, 0},
		{"classified unnamed", ScanRecord{ID: "ABC-123", Group: "Data"}, 1},
		{"unknown placeholder", ScanRecord{ID: "ABC-123", Group: "Data", Name: "Unknown"}, 1},
		{"unknown placeholder case-insensitive", ScanRecord{ID: "ABC-123", Group: "Data", Name: "unknown"}, 1},
		{"fully resolved", ScanRecord{ID: "ABC-123", Group: "Data", Name: "Sparking Site"}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.record.Rank())
		})
	}
}

func TestScanRecord_Partial(t *testing.T) {
	assert.True(t, ScanRecord{ID: "ABC"}.Partial())
	assert.True(t, ScanRecord{ID: "ABC-12"}.Partial())
	assert.False(t, ScanRecord{ID: "ABC-123"}.Partial())
	assert.False(t, ScanRecord{ID: "ABC-1234"}.Partial())
}
