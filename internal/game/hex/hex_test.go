package hex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestFlatDistance(t *testing.T) {
	origin := Hex{}
	assert.Equal(t, 0, origin.FlatDistance(origin))
	assert.Equal(t, 1, origin.FlatDistance(Hex{Q: 1}))
	assert.Equal(t, 1, origin.FlatDistance(Hex{Q: 1, R: -1}))
	assert.Equal(t, 2, origin.FlatDistance(Hex{Q: 1, R: 1}))
	assert.Equal(t, 3, origin.FlatDistance(Hex{Q: -3, R: 0}))
}

func TestDistanceAddsElevation(t *testing.T) {
	a := Hex{Q: 1, Z: 2}
	b := Hex{Q: 1, Z: -1}
	assert.Equal(t, 0, a.FlatDistance(b))
	assert.Equal(t, 3, a.Distance(b))
}

func TestNeighborsAreAdjacent(t *testing.T) {
	h := Hex{Q: 3, R: -2, Z: 1}
	for _, n := range h.Neighbors() {
		assert.Equal(t, 1, h.FlatDistance(n))
		assert.Equal(t, h.Z, n.Z)
	}
}

func TestNeighborsDistinct(t *testing.T) {
	seen := map[Hex]bool{}
	for _, n := range (Hex{}).Neighbors() {
		assert.False(t, seen[n])
		seen[n] = true
	}
	assert.Len(t, seen, 6)
}

func TestPushDestinationStraightLine(t *testing.T) {
	// Pushing east continues east.
	from := Hex{Q: 0}
	target := Hex{Q: 1}
	assert.Equal(t, Hex{Q: 2}, PushDestination(from, target))

	// Pushing west continues west.
	assert.Equal(t, Hex{Q: -1}, PushDestination(Hex{Q: 1}, Hex{}))
}

func TestPushDestinationDiagonal(t *testing.T) {
	from := Hex{}
	target := Hex{Q: 1, R: -1}
	dest := PushDestination(from, target)
	// The destination continues away from the pusher.
	assert.Equal(t, 2, from.FlatDistance(dest))
	assert.Equal(t, 1, target.FlatDistance(dest))
}

func TestClosestNeighbor(t *testing.T) {
	from := Hex{}
	target := Hex{Q: 3}
	dest := ClosestNeighbor(from, target)
	assert.Equal(t, Hex{Q: 2}, dest)
	assert.Equal(t, 1, target.FlatDistance(dest))
}

func TestAddSub(t *testing.T) {
	a := Hex{Q: 2, R: -1, Z: 3}
	b := Hex{Q: -1, R: 1, Z: 1}
	assert.Equal(t, Hex{Q: 1, R: 0, Z: 4}, a.Add(b))
	assert.Equal(t, a, a.Add(b).Sub(b))
}

// Property-based tests

func drawHex(t *rapid.T, label string) Hex {
	return Hex{
		Q: rapid.IntRange(-20, 20).Draw(t, label+"_q"),
		R: rapid.IntRange(-20, 20).Draw(t, label+"_r"),
		Z: rapid.IntRange(-5, 5).Draw(t, label+"_z"),
	}
}

func TestPropertyDistanceSymmetric(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := drawHex(t, "a")
		b := drawHex(t, "b")
		if a.FlatDistance(b) != b.FlatDistance(a) {
			t.Fatalf("distance not symmetric for %v, %v", a, b)
		}
	})
}

func TestPropertyTriangleInequality(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := drawHex(t, "a")
		b := drawHex(t, "b")
		c := drawHex(t, "c")
		if a.FlatDistance(c) > a.FlatDistance(b)+b.FlatDistance(c) {
			t.Fatalf("triangle inequality violated for %v, %v, %v", a, b, c)
		}
	})
}

func TestPropertyPushMovesAway(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		from := drawHex(t, "from")
		target := drawHex(t, "target")
		if from.Q == target.Q && from.R == target.R {
			t.Skip("undirected push")
		}
		dest := PushDestination(from, target)
		if target.FlatDistance(dest) != 1 {
			t.Fatalf("push landed %d hexes away from target", target.FlatDistance(dest))
		}
		if from.FlatDistance(dest) < from.FlatDistance(target) {
			t.Fatalf("push moved target toward the pusher")
		}
	})
}

func TestPropertyClosestNeighborAdjacent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		from := drawHex(t, "from")
		target := drawHex(t, "target")
		dest := ClosestNeighbor(from, target)
		if target.FlatDistance(dest) != 1 {
			t.Fatalf("closest neighbor not adjacent to target")
		}
		for _, n := range target.Neighbors() {
			if from.FlatDistance(n) < from.FlatDistance(dest) {
				t.Fatalf("neighbor %v is closer than chosen %v", n, dest)
			}
		}
	})
}
