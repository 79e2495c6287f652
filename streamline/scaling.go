package streamline

import "math"

// earthRadius is the WGS84 semi-major axis used by Web Mercator.
const earthRadius = 6378137.0

// maxMercatorLat is the latitude at which Web Mercator is clipped.
const maxMercatorLat = 85.05112878

// BoundingBox is a rectangle in Web Mercator metres.
type BoundingBox struct {
	MinX, MinY, MaxX, MaxY float64
}

// Width returns the horizontal extent.
func (b BoundingBox) Width() float64 { return b.MaxX - b.MinX }

// Height returns the vertical extent.
func (b BoundingBox) Height() float64 { return b.MaxY - b.MinY }

// IsEmpty reports whether the box has no area.
func (b BoundingBox) IsEmpty() bool { return !(b.Width() > 0 && b.Height() > 0) }

// GeoBoundingBox is a rectangle in degrees longitude/latitude.
type GeoBoundingBox struct {
	West, South, East, North float64
}

// Mercator projects the box into Web Mercator (EPSG:3857) metres.
func (g GeoBoundingBox) Mercator() BoundingBox {
	x0, y0 := LonLatToMercator(g.West, g.South)
	x1, y1 := LonLatToMercator(g.East, g.North)
	return BoundingBox{MinX: x0, MinY: y0, MaxX: x1, MaxY: y1}
}

// LonLatToMercator projects a single coordinate.
func LonLatToMercator(lon, lat float64) (x, y float64) {
	lat = math.Max(-maxMercatorLat, math.Min(maxMercatorLat, lat))
	x = earthRadius * lon * math.Pi / 180
	y = earthRadius * math.Log(math.Tan(math.Pi/4+lat*math.Pi/360))
	return x, y
}

// MercatorToLonLat inverts LonLatToMercator.
func MercatorToLonLat(x, y float64) (lon, lat float64) {
	lon = x / earthRadius * 180 / math.Pi
	lat = (2*math.Atan(math.Exp(y/earthRadius)) - math.Pi/2) * 180 / math.Pi
	return lon, lat
}

// Scaling maps clip coordinates of the current viewport into clip coordinates
// of the viewport the velocity raster was fetched for.
type Scaling struct {
	ScaleX, ScaleY   float64
	OffsetX, OffsetY float64
}

// IdentityScaling is the scaling for an unchanged viewport.
var IdentityScaling = Scaling{ScaleX: 1, ScaleY: 1}

// ComputeScaling derives the scaling from the bounds at fetch time and the
// current viewport bounds. Empty fetch bounds yield the identity.
func ComputeScaling(fetched, current BoundingBox) Scaling {
	if fetched.IsEmpty() || current.IsEmpty() {
		return IdentityScaling
	}
	if fetched == current {
		return IdentityScaling
	}
	sx := current.Width() / fetched.Width()
	sy := current.Height() / fetched.Height()
	return Scaling{
		ScaleX:  sx,
		ScaleY:  sy,
		OffsetX: (2*(current.MinX-fetched.MinX)+current.Width())/fetched.Width() - 1,
		OffsetY: (2*(current.MinY-fetched.MinY)+current.Height())/fetched.Height() - 1,
	}
}

// Apply maps a current-viewport clip coordinate into fetched clip space.
func (s Scaling) Apply(x, y float64) (float64, float64) {
	return x*s.ScaleX + s.OffsetX, y*s.ScaleY + s.OffsetY
}

// IsIdentity reports whether s leaves coordinates unchanged.
func (s Scaling) IsIdentity() bool { return s == IdentityScaling }
