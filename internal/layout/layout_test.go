// SPDX-License-Identifier: MIT

package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestColumns(t *testing.T) {
	tests := []struct {
		name   string
		count  int
		width  int
		height int
		want   int
	}{
		{name: "single camera", count: 1, width: 1920, height: 1080, want: 1},
		{name: "single camera tiny viewport", count: 1, width: 100, height: 100, want: 1},
		{name: "two cameras", count: 2, width: 1920, height: 1080, want: 2},
		{name: "four cameras", count: 4, width: 1920, height: 1080, want: 2},
		{name: "five cameras", count: 5, width: 1920, height: 1080, want: 3},
		{name: "nine cameras wide", count: 9, width: 2000, height: 1000, want: 3},
		{name: "nine cameras narrow clamps", count: 9, width: 400, height: 1000, want: 2},
		{name: "ten cameras", count: 10, width: 1920, height: 1080, want: 4},
		{name: "sixteen cameras", count: 16, width: 1920, height: 1080, want: 4},
		{name: "large wall landscape", count: 20, width: 2560, height: 1440, want: 5},
		{name: "large wall portrait capped", count: 20, width: 1440, height: 2560, want: 4},
		{name: "zero width floors at one", count: 9, width: 0, height: 1000, want: 1},
		{name: "zero cameras", count: 0, width: 1920, height: 1080, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Columns(tt.count, tt.width, tt.height))
		})
	}
}

func TestColumnsMin_CustomCellWidth(t *testing.T) {
	// 1200 / 300 = 4 clamps the ideal 5 for a large wall.
	assert.Equal(t, 4, ColumnsMin(20, 1200, 800, 300))
	// Degenerate min cell width falls back to the default.
	assert.Equal(t, 3, ColumnsMin(9, 2000, 1000, 0))
}

func TestColumns_Deterministic(t *testing.T) {
	for i := 0; i < 5; i++ {
		assert.Equal(t, Columns(7, 1280, 720), Columns(7, 1280, 720))
	}
}
