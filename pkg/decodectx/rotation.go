package decodectx

import (
	"math"
	"strconv"
	"strings"

	"github.com/user/vplayer/pkg/ports"
)

// streamRotation resolves the stream rotation from the "rotate" tag first
// and the display matrix second. The result lies in (-360, 360).
func streamRotation(info ports.StreamInfo) int {
	if info.RotateTag != "" {
		if angle, err := strconv.Atoi(strings.TrimSpace(info.RotateTag)); err == nil {
			return angle % 360
		}
	}
	if info.DisplayMatrix != nil {
		r := DisplayRotation(*info.DisplayMatrix)
		if !math.IsNaN(r) {
			return int(math.Round(r)) % 360
		}
	}
	return 0
}

// DisplayRotation returns the counterclockwise rotation in degrees encoded
// by a 3x3 display matrix whose first two columns are 16.16 fixed point.
// It returns NaN for a degenerate matrix.
func DisplayRotation(m [9]int32) float64 {
	fp := func(v int32) float64 { return float64(v) / (1 << 16) }
	scale0 := math.Hypot(fp(m[0]), fp(m[3]))
	scale1 := math.Hypot(fp(m[1]), fp(m[4]))
	if scale0 == 0 || scale1 == 0 {
		return math.NaN()
	}
	rotation := math.Atan2(fp(m[1])/scale1, fp(m[0])/scale0) * 180 / math.Pi
	return -rotation
}

// RotationMatrix builds the display matrix for a clockwise rotation of
// angle degrees. DisplayRotation of the result is -angle.
func RotationMatrix(angle float64) [9]int32 {
	rad := -angle * math.Pi / 180
	c, s := math.Cos(rad), math.Sin(rad)
	fixed := func(v float64) int32 { return int32(math.Round(v * (1 << 16))) }
	return [9]int32{
		fixed(c), fixed(-s), 0,
		fixed(s), fixed(c), 0,
		0, 0, 1 << 30,
	}
}
