package stage

import (
	"math"

	"github.com/tickbridge/tickbridge/snapshot"
)

func vecLen(v snapshot.Vec3) float64 {
	return math.Sqrt(v.Dot(v))
}

// raySphere intersects a ray (unit direction) with a sphere and returns the
// nearest non-negative hit distance.
func raySphere(origin, dir, center snapshot.Vec3, radius float64) (float64, bool) {
	oc := origin.Sub(center)
	b := oc.Dot(dir)
	c := oc.Dot(oc) - radius*radius
	disc := b*b - c
	if disc < 0 {
		return 0, false
	}
	sq := math.Sqrt(disc)
	t := -b - sq
	if t < 0 {
		t = -b + sq
	}
	if t < 0 {
		return 0, false
	}
	return t, true
}

// faceRotation is the euler rotation pointing an object's forward axis at a
// target, with +Y forward and Z up: pitch around X, yaw around Z.
func faceRotation(from, to snapshot.Vec3) snapshot.Vec3 {
	d := to.Sub(from)
	yaw := math.Atan2(d[0], d[1])
	pitch := math.Atan2(d[2], math.Hypot(d[0], d[1]))
	return snapshot.Vec3{pitch, 0, yaw}
}
