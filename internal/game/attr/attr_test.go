package attr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestTierThresholds(t *testing.T) {
	budget := 100
	assert.Equal(t, T0, TierFor(0, budget))
	assert.Equal(t, T0, TierFor(29, budget))
	assert.Equal(t, T1, TierFor(30, budget))
	assert.Equal(t, T1, TierFor(44, budget))
	assert.Equal(t, T2, TierFor(45, budget))
	assert.Equal(t, T2, TierFor(59, budget))
	assert.Equal(t, T3, TierFor(60, budget))
	assert.Equal(t, T3, TierFor(100, budget))
}

func TestTierZeroBudget(t *testing.T) {
	assert.Equal(t, T0, TierFor(50, 0))
}

func TestQueueCapacityByFocusTier(t *testing.T) {
	cases := []struct {
		focus, other int
		want         int
	}{
		{0, 100, 1},
		{30, 70, 2},
		{45, 55, 3},
		{60, 40, 4},
	}
	for _, c := range cases {
		a := Attributes{Focus: c.focus, Might: c.other}
		assert.Equal(t, c.want, a.QueueCapacity(), "focus %d of %d", c.focus, c.focus+c.other)
	}
}

func TestCadenceInterval(t *testing.T) {
	assert.Equal(t, 2*time.Second, Attributes{Might: 100}.CadenceInterval())
	assert.Equal(t, 1500*time.Millisecond, Attributes{Presence: 30, Might: 70}.CadenceInterval())
	assert.Equal(t, time.Second, Attributes{Presence: 45, Might: 55}.CadenceInterval())
	assert.Equal(t, 750*time.Millisecond, Attributes{Presence: 60, Might: 40}.CadenceInterval())
}

func TestEvasionChance(t *testing.T) {
	assert.Equal(t, 0.0, Attributes{Might: 100}.EvasionChance())
	assert.Equal(t, 0.10, Attributes{Grace: 30, Might: 70}.EvasionChance())
	assert.Equal(t, 0.20, Attributes{Grace: 45, Might: 55}.EvasionChance())
	assert.Equal(t, 0.30, Attributes{Grace: 60, Might: 40}.EvasionChance())
}

func TestResourceMaxima(t *testing.T) {
	a := Attributes{Vitality: 50}
	assert.Equal(t, 290.0, a.MaxHealth())
	assert.Equal(t, 250.0, a.MaxStamina())
	assert.Equal(t, 10.0, a.StaminaRegen())

	zero := Attributes{}
	assert.Equal(t, 100.0, zero.MaxHealth())
	assert.Equal(t, 100.0, zero.MaxStamina())
}

// Property-based tests

func TestPropertyTierMonotonic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		budget := rapid.IntRange(1, 500).Draw(t, "budget")
		v1 := rapid.IntRange(0, budget).Draw(t, "v1")
		v2 := rapid.IntRange(v1, budget).Draw(t, "v2")
		if TierFor(v2, budget) < TierFor(v1, budget) {
			t.Fatalf("tier decreased as value grew: %d -> %d", v1, v2)
		}
	})
}

func TestPropertyQueueCapacityBounds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := Attributes{
			Might:    rapid.IntRange(0, 100).Draw(t, "might"),
			Grace:    rapid.IntRange(0, 100).Draw(t, "grace"),
			Vitality: rapid.IntRange(0, 100).Draw(t, "vitality"),
			Focus:    rapid.IntRange(0, 100).Draw(t, "focus"),
			Instinct: rapid.IntRange(0, 100).Draw(t, "instinct"),
			Presence: rapid.IntRange(0, 100).Draw(t, "presence"),
		}
		c := a.QueueCapacity()
		if c < 1 || c > 4 {
			t.Fatalf("capacity %d out of bounds", c)
		}
	})
}
