// Package domain maps geographic coordinates onto a weather radar's native
// polar sampling grid and extracts point and neighborhood values from it.
//
// # Grid Conventions
//
// A [Volume] holds one sweep sampled as rays × gates. Every field array and
// every gate coordinate array shares that shape.
//
//	ray 0      azimuth 0° (geographic north); ray index grows clockwise,
//	           one ray per degree, so ray index == rounded bearing.
//	gate 0     the gate nearest the radar along a ray; gate index grows
//	           with distance.
//
// The origin is the first latitude/longitude sample of the volume.
//
// # Local Cartesian Frame
//
// Targets are projected with an azimuthal-equidistant projection centered on
// the radar (spherical earth, R = 6370997 m):
//
//	x  east component, meters
//	y  north component, meters
//
// See [Project].
//
// # Bearing
//
// The bearing is computed with an explicit case split on the signs of x and
// y rather than a two-argument arctangent. Each case takes the arctangent of
// an absolute ratio and adds the quadrant offset:
//
//	x>0, y>0   atan(x/y)
//	x>0, y<0   atan(|y|/x) + 90
//	x<0, y<0   atan(x/y)   + 180
//	x<0, y>0   atan(y/|x|) + 270
//
// Axis points are assigned to the quadrant that starts at them: north (x=0,
// y>0) is 0°, east 90°, south 180°, west 270°. The radar site itself (x=y=0)
// is 0°. See [Bearing].
//
// # Gate Spacing
//
// Gate spacing is measured from the volume's own coordinate table: the radii
// of ray 0 gate 0 and ray 0 gate 1 give r0 and Δr, and
//
//	gate = round((r − r0) / Δr)
//
// Rounding (bearing and gate) is half-to-even.
//
// # Neighborhood Layout
//
// A 3×3 [Neighborhood] is indexed [row][col]:
//
//	        | az-1  | az    | az+1  |
//	--------+-------+-------+-------+
//	gate+1  | [0,0] | [0,1] | [0,2] |
//	gate    | [1,0] | [1,1] | [1,2] |
//	gate-1  | [2,0] | [2,1] | [2,2] |
//
// # Boundaries
//
// Gates never wrap: a window whose gate-1 or gate+1 falls off the volume is
// an [*IndexError]. Rays at the 0°/360° seam follow the [SeamPolicy] chosen
// by the caller: [SeamWrap] (default) indexes modulo the ray count,
// [SeamStrict] reports an [*IndexError].
//
// # Missing Values
//
// Masked samples are stored as NaN inside the volume and surface as a
// [Cell] with Valid=false. A quality mask marks a sample missing when the
// mask field at the same position is below the threshold or is itself
// missing.
package domain
