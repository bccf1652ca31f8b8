package viewctl

import "github.com/tomaslejdung/goview/pkg/message"

// Tile divides a width x height area into rows*columns cells in row-major
// order. Cell sides are floored to a multiple of 4 pixels so the regions
// stay encoder-friendly; remainder pixels are left undistributed at the
// right and bottom edges. rows and columns must both be at least 1.
func Tile(width, height uint32, rows, columns int) []message.LayoutRect {
	if rows < 1 || columns < 1 {
		panic("viewctl: tile needs at least one row and one column")
	}

	cellWidth := width / uint32(columns) / 4 * 4
	cellHeight := height / uint32(rows) / 4 * 4

	layouts := make([]message.LayoutRect, 0, rows*columns)
	for y := uint32(0); y < uint32(rows); y++ {
		for x := uint32(0); x < uint32(columns); x++ {
			layouts = append(layouts, message.LayoutRect{
				X:      x * cellWidth,
				Y:      y * cellHeight,
				Width:  cellWidth,
				Height: cellHeight,
			})
		}
	}
	return layouts
}
