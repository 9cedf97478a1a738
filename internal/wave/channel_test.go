package wave

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChannelMatches(t *testing.T) {
	channel := NewChannel("orders.created")

	tests := []struct {
		name    string
		pattern string
		want    bool
	}{
		{"exact", "orders.created", true},
		{"tail wildcard", "orders.*", true},
		{"whole wildcard", "*", true},
		{"different namespace", "payments.created", false},
		{"segment wildcard", "*.created", true},
		{"too many segments", "orders.created.extra", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, channel.Matches(NewChannel(tt.pattern)))
		})
	}
}

func TestChannelChild(t *testing.T) {
	parent := NewChannel("orders")
	child := parent.Child("created")
	assert.Equal(t, "orders.created", child.Name())
	assert.Equal(t, []string{"orders", "created"}, child.Segments())
}

func TestChannelHopWraps(t *testing.T) {
	base := NewChannel("orders")
	assert.Equal(t, "orders.hop0", base.Hop(4, 4).Name())
	assert.Equal(t, "orders.hop1", base.Hop(5, 4).Name())
}

func TestChannelHopSet(t *testing.T) {
	base := NewChannel("orders")
	set := base.HopSet(4)
	assert.Len(t, set, 4)
	for i, c := range set {
		assert.Equal(t, base.Hop(i, 4).Name(), c.Name())
	}
}

func TestChannelHopSetMinimumOne(t *testing.T) {
	base := NewChannel("orders")
	assert.Len(t, base.HopSet(0), 1)
	assert.Equal(t, "orders.hop0", base.HopSet(0)[0].Name())
}

func TestHopIndexAtIsPure(t *testing.T) {
	base := NewChannel("orders")
	a := base.HopIndexAt(123456789, 4, 50)
	b := base.HopIndexAt(123456789, 4, 50)
	assert.Equal(t, a, b)
	assert.GreaterOrEqual(t, a, 0)
	assert.Less(t, a, 4)
}

func TestHopIndexAtRangeWithSingleHop(t *testing.T) {
	base := NewChannel("orders")
	idx := base.HopIndexAt(999, 0, 0)
	assert.Equal(t, 0, idx)
}

func TestHopNowStaysWithinSet(t *testing.T) {
	base := NewChannel("orders")
	hopped := base.HopNow(4, 50)
	found := false
	for _, c := range base.HopSet(4) {
		if c.Name() == hopped.Name() {
			found = true
			break
		}
	}
	assert.True(t, found, "hopped channel %q must be one of the hop set", hopped.Name())
}
