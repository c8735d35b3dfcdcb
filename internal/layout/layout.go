// SPDX-License-Identifier: MIT

// Package layout computes the wall grid column count from camera count and
// viewport geometry. Pure functions only; the engine re-evaluates on every
// geometry change instead of caching layout state.
package layout

// DefaultMinCellWidth is the minimum usable cell width in logical units.
const DefaultMinCellWidth = 200

// Columns returns the grid column count for cameraCount cameras in a
// viewport of the given size, using the default minimum cell width.
func Columns(cameraCount, viewportWidth, viewportHeight int) int {
	return ColumnsMin(cameraCount, viewportWidth, viewportHeight, DefaultMinCellWidth)
}

// ColumnsMin is Columns with an explicit minimum cell width.
//
// The ideal count follows the camera count: 1 camera gets 1 column, up to 4
// get 2, up to 9 get 3, up to 16 get 4, more get 5. Landscape orientation
// raises the ceiling for very large walls; portrait keeps it at 4. The
// result is always clamped so no cell is narrower than minCellWidth.
func ColumnsMin(cameraCount, viewportWidth, viewportHeight, minCellWidth int) int {
	if minCellWidth < 1 {
		minCellWidth = DefaultMinCellWidth
	}

	ideal := idealColumns(cameraCount)
	if ideal > 4 && viewportWidth <= viewportHeight {
		ideal = 4
	}

	maxByWidth := viewportWidth / minCellWidth
	if maxByWidth < 1 {
		maxByWidth = 1
	}
	if ideal > maxByWidth {
		return maxByWidth
	}
	return ideal
}

func idealColumns(cameraCount int) int {
	switch {
	case cameraCount <= 1:
		return 1
	case cameraCount <= 4:
		return 2
	case cameraCount <= 9:
		return 3
	case cameraCount <= 16:
		return 4
	default:
		return 5
	}
}
