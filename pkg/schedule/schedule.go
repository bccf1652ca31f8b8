// Package schedule maps a region's pixel area to an encoder bitrate and a
// spatial downscale factor. Rates were measured per resolution breakpoint
// for visually lossless playback; areas between breakpoints interpolate
// linearly, areas below the smallest breakpoint scale through the origin,
// and areas past the largest follow the last segment's slope.
package schedule

import "strings"

// Schedule selects one of the fixed bitrate/scaling policy variants.
type Schedule uint8

const (
	// Default uses the base rate table at full resolution.
	Default Schedule = iota
	// Performance trades resolution for rate at larger sizes.
	Performance
	// Quality keeps full resolution and boosts the base rate by 20%.
	Quality
)

// breakpoints are the calibrated resolutions, smallest to largest.
var breakpoints = [5]ViewportArea{
	{320, 240},
	{640, 480},
	{1280, 720},
	{1920, 1080},
	{2560, 1360},
}

var (
	defaultRates       = [5]float32{2.0, 3.5, 5.0, 7.0, 10.0}
	defaultScaling     = [5]float32{1.0, 1.0, 1.0, 1.0, 1.0}
	performanceRates   = [5]float32{2.0, 3.5, 4.0, 5.5, 7.0}
	performanceScaling = [5]float32{1.0, 1.0, 0.75, 0.75, 0.75}
)

// ViewportArea is a width x height pair in pixels.
type ViewportArea struct {
	Width  uint32
	Height uint32
}

func (v ViewportArea) area() uint32 {
	return v.Width * v.Height
}

// Parse maps a policy name to a Schedule. Unknown names fall back to
// Default.
func Parse(name string) Schedule {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "performance":
		return Performance
	case "quality":
		return Quality
	default:
		return Default
	}
}

// String returns the policy name as accepted by Parse.
func (s Schedule) String() string {
	switch s {
	case Performance:
		return "performance"
	case Quality:
		return "quality"
	default:
		return "default"
	}
}

// bin locates the bracketing breakpoints for an area. upper is the smallest
// breakpoint with at least the given area (the last one if the area is off
// the table); lower is -1 when there is no previous breakpoint.
func bin(size ViewportArea) (lower, upper int) {
	area := size.area()
	upper = len(breakpoints) - 1
	for idx, bp := range breakpoints {
		if bp.area() >= area {
			upper = idx
			break
		}
	}
	return upper - 1, upper
}

func interpolate(rates *[5]float32, lower, upper int, size ViewportArea) float32 {
	lowArea := breakpoints[lower].area()
	highArea := breakpoints[upper].area()
	span := float32(highArea - lowArea)
	factor := float32(size.area()-lowArea) / span
	return rates[lower]*(1-factor) + factor*rates[upper]
}

func extrapolate(rates *[5]float32, upper int, size ViewportArea) float32 {
	factor := float32(size.area()) / float32(breakpoints[upper].area())
	return factor * rates[upper]
}

// Bitrate returns the target bitrate in Mbit/s for a region of the given
// size under this policy.
func (s Schedule) Bitrate(size ViewportArea) float32 {
	rates := &defaultRates
	if s == Performance {
		rates = &performanceRates
	}

	lower, upper := bin(size)
	var rate float32
	if lower >= 0 {
		rate = interpolate(rates, lower, upper, size)
	} else {
		rate = extrapolate(rates, upper, size)
	}
	if s == Quality {
		rate *= 1.2
	}
	return rate
}

// Scaling returns the spatial downscale factor for a region of the given
// size. Scaling does not interpolate; the lower bin's factor applies.
func (s Schedule) Scaling(size ViewportArea) float32 {
	lower, _ := bin(size)
	if lower < 0 {
		lower = 0
	}
	switch s {
	case Performance:
		return performanceScaling[lower]
	case Quality:
		return 1.0
	default:
		return defaultScaling[lower]
	}
}
