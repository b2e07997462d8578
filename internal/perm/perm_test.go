package perm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelOrdering(t *testing.T) {
	ordered := []Level{None, View, Update, Admin, Owner}
	for i := 1; i < len(ordered); i++ {
		assert.Less(t, ordered[i-1], ordered[i],
			"%s should be below %s", ordered[i-1], ordered[i])
	}
}

func TestAtLeast(t *testing.T) {
	tests := []struct {
		name     string
		actual   Level
		required Level
		want     bool
	}{
		{"exact match", Update, Update, true},
		{"higher level accepted", Owner, Update, true},
		{"admin clears update", Admin, Update, true},
		{"view rejected for update", View, Update, false},
		{"none rejected for view", None, View, false},
		{"admin rejected for owner", Admin, Owner, false},
		{"none clears none", None, None, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.actual.AtLeast(tt.required))
		})
	}
}

func TestValid(t *testing.T) {
	for _, l := range []Level{None, View, Update, Admin, Owner} {
		assert.True(t, l.Valid(), "%s should be valid", l)
	}
	for _, l := range []Level{Level(3), Level(5), Level(16), Level(-1)} {
		assert.False(t, l.Valid(), "%d should not be valid", int(l))
	}
}

func TestString(t *testing.T) {
	assert.Equal(t, "owner", Owner.String())
	assert.Equal(t, "none", None.String())
	assert.Equal(t, "level(7)", Level(7).String())
}
