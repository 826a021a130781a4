// Package hex provides axial hex-grid coordinates and the distance and
// direction math used by targeting and displacement effects.
package hex

// Hex is an axial hex coordinate with elevation.
//
// Invariant: the implicit cube coordinate s = -Q - R, so Q + R + s == 0
// always holds; all operations preserve it.
type Hex struct {
	Q int `msgpack:"q"`
	R int `msgpack:"r"`
	Z int `msgpack:"z"`
}

// directions lists the six neighbor offsets in clockwise order starting west.
var directions = [6]Hex{
	{Q: -1, R: 0},
	{Q: -1, R: 1},
	{Q: 0, R: 1},
	{Q: 1, R: 0},
	{Q: 1, R: -1},
	{Q: 0, R: -1},
}

// Add returns h + o componentwise.
func (h Hex) Add(o Hex) Hex {
	return Hex{Q: h.Q + o.Q, R: h.R + o.R, Z: h.Z + o.Z}
}

// Sub returns h - o componentwise.
func (h Hex) Sub(o Hex) Hex {
	return Hex{Q: h.Q - o.Q, R: h.R - o.R, Z: h.Z - o.Z}
}

// FlatDistance returns the hex distance between h and o ignoring elevation.
//
// Postcondition: Returns >= 0; 0 iff same q,r.
func (h Hex) FlatDistance(o Hex) int {
	dq := abs(h.Q - o.Q)
	dr := abs(h.R - o.R)
	ds := abs((-h.Q - h.R) - (-o.Q - o.R))
	return max3(dq, dr, ds)
}

// Distance returns FlatDistance plus the elevation difference.
func (h Hex) Distance(o Hex) int {
	return h.FlatDistance(o) + abs(h.Z-o.Z)
}

// Neighbors returns the six adjacent hexes at the same elevation,
// clockwise starting west.
func (h Hex) Neighbors() [6]Hex {
	var out [6]Hex
	for i, d := range directions {
		out[i] = h.Add(d)
	}
	return out
}

// PushDestination picks the neighbor of target that best continues the
// from→target direction: the candidate whose offset from target has the
// highest dot product with the away vector. Used by displacement effects
// so a pushed actor always moves one hex directly away from the pusher.
//
// Precondition: from != target (a zero away vector has no direction).
// Postcondition: Returns one of target.Neighbors().
func PushDestination(from, target Hex) Hex {
	away := target.Sub(from)
	neighbors := target.Neighbors()
	best := neighbors[0]
	bestDot := dot(best.Sub(target), away)
	for _, n := range neighbors[1:] {
		if d := dot(n.Sub(target), away); d > bestDot {
			best = n
			bestDot = d
		}
	}
	return best
}

// ClosestNeighbor returns the neighbor of target nearest to from.
// Gap closers land on this hex instead of the occupied target hex.
func ClosestNeighbor(from, target Hex) Hex {
	neighbors := target.Neighbors()
	best := neighbors[0]
	bestDist := from.FlatDistance(best)
	for _, n := range neighbors[1:] {
		if d := from.FlatDistance(n); d < bestDist {
			best = n
			bestDist = d
		}
	}
	return best
}

// dot is the cube-coordinate dot product of two offsets, flattened to 2D.
// Using all three cube axes keeps the six directions symmetric.
func dot(a, b Hex) int {
	as, bs := -a.Q-a.R, -b.Q-b.R
	return a.Q*b.Q + a.R*b.R + as*bs
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func max3(a, b, c int) int {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}
