package viewctl

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tomaslejdung/goview/pkg/message"
)

func TestTileSingleCell(t *testing.T) {
	layouts := Tile(1024, 768, 1, 1)
	require.Equal(t, []message.LayoutRect{{X: 0, Y: 0, Width: 1024, Height: 768}}, layouts)
}

func TestTileRowMajorOrder(t *testing.T) {
	layouts := Tile(800, 600, 2, 2)
	require.Equal(t, []message.LayoutRect{
		{X: 0, Y: 0, Width: 400, Height: 300},
		{X: 400, Y: 0, Width: 400, Height: 300},
		{X: 0, Y: 300, Width: 400, Height: 300},
		{X: 400, Y: 300, Width: 400, Height: 300},
	}, layouts)
}

func TestTileFloorsToMultipleOfFour(t *testing.T) {
	layouts := Tile(1030, 770, 2, 3)
	// 1030/3 = 343 -> 340, 770/2 = 385 -> 384
	for _, l := range layouts {
		require.Equal(t, uint32(340), l.Width)
		require.Equal(t, uint32(384), l.Height)
		require.Zero(t, l.Width%4)
		require.Zero(t, l.Height%4)
	}
	// Remainder pixels stay undistributed at the right and bottom edges.
	last := layouts[len(layouts)-1]
	require.Equal(t, uint32(680), last.X)
	require.Equal(t, uint32(384), last.Y)
	require.Less(t, last.X+last.Width, uint32(1030))
}

func TestTileDegeneratePanics(t *testing.T) {
	require.Panics(t, func() { Tile(100, 100, 0, 1) })
	require.Panics(t, func() { Tile(100, 100, 1, 0) })
}
