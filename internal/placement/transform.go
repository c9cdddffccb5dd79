package placement

import (
	"math"

	"github.com/arstudio/api/internal/model"
)

// Vec3 is an x, y, z triple
type Vec3 [3]float64

// Transform is the render-ready placement of an object. Matrix is a
// column-major 4x4 world matrix composed as T·R·S. Meshes are recentered on
// their bounding box by the client after loading, before Matrix applies.
type Transform struct {
	Position    Vec3        `json:"position"`
	RotationRad Vec3        `json:"rotationRad"`
	Scale       Vec3        `json:"scale"`
	Matrix      [16]float64 `json:"matrix"`
}

// Placement pairs a normalized object with its computed transform
type Placement struct {
	Object
	Transform Transform `json:"transform"`
}

// DegToRad converts degrees to radians
func DegToRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// PlaneScale sizes a textured plane so its longest side is one unit before
// zoom applies. Unknown dimensions render as a unit square.
func PlaneScale(width, height int, zoom model.Zoom) Vec3 {
	w, h := float64(width), float64(height)
	if width <= 0 || height <= 0 {
		w, h = 1, 1
	}
	m := math.Max(math.Max(w, h), 1)
	return Vec3{w / m * zoom.X, h / m * zoom.Z, zoom.Z}
}

// RotationMatrix returns the 3x3 rotation for radians r applied in
// Y, X, Z order (R = Ry·Rx·Rz), row-major.
func RotationMatrix(r Vec3) [3][3]float64 {
	sx, cx := math.Sincos(r[0])
	sy, cy := math.Sincos(r[1])
	sz, cz := math.Sincos(r[2])

	rx := [3][3]float64{{1, 0, 0}, {0, cx, -sx}, {0, sx, cx}}
	ry := [3][3]float64{{cy, 0, sy}, {0, 1, 0}, {-sy, 0, cy}}
	rz := [3][3]float64{{cz, -sz, 0}, {sz, cz, 0}, {0, 0, 1}}
	return mul3(mul3(ry, rx), rz)
}

func mul3(a, b [3][3]float64) [3][3]float64 {
	var out [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				out[i][j] += a[i][k] * b[k][j]
			}
		}
	}
	return out
}

// ComputeTransform derives the transform of o. Planes are normalized to a
// unit long side; Info-Balls and models scale by zoom alone.
func ComputeTransform(o Object) Transform {
	t := Transform{
		Position:    Vec3{o.Location.X, o.Location.Y, o.Location.Z},
		RotationRad: Vec3{DegToRad(o.Location.RotateX), DegToRad(o.Location.RotateY), DegToRad(o.Location.RotateZ)},
	}

	plane := o.MediaInfo.Kind == model.MediaKindImage || o.MediaInfo.Kind == model.MediaKindVideo
	if plane && !o.InfoBall {
		t.Scale = PlaneScale(o.MediaInfo.Width, o.MediaInfo.Height, o.Zoom)
	} else {
		t.Scale = Vec3{o.Zoom.X, o.Zoom.Y, o.Zoom.Z}
	}

	t.Matrix = compose(t.Position, RotationMatrix(t.RotationRad), t.Scale)
	return t
}

func compose(pos Vec3, r [3][3]float64, s Vec3) [16]float64 {
	var m [16]float64
	for col := 0; col < 3; col++ {
		for row := 0; row < 3; row++ {
			m[col*4+row] = r[row][col] * s[col]
		}
	}
	for row := 0; row < 3; row++ {
		m[12+row] = pos[row]
	}
	m[15] = 1
	return m
}
