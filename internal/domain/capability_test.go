package domain

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCapabilityMapsKnownNames(t *testing.T) {
	assert.Equal(t, CapNetwork, ParseCapability("network"))
	assert.Equal(t, CapCredentials, ParseCapability("credentials"))
}

func TestParseCapabilityPassesThroughUnknownAsCustom(t *testing.T) {
	assert.Equal(t, Capability("widget.export"), ParseCapability("widget.export"))
}

func TestCapabilitySetRoundTripsThroughStrings(t *testing.T) {
	raw := []string{"network", "credentials", "cache_write"}
	s := CapabilitySetFromStrings(raw)
	require.Equal(t, len(raw), s.Len())

	got := make([]string, 0, len(s.List()))
	for _, c := range s.List() {
		got = append(got, string(c))
	}
	sort.Strings(got)
	want := append([]string(nil), raw...)
	sort.Strings(want)
	assert.Equal(t, want, got, "capability set round-trip must be order-insensitive")
}

func TestCapabilitySetHasAndContainsAll(t *testing.T) {
	s := NewCapabilitySet()
	s.Add(CapNetwork)
	s.Add(CapCredentials)

	assert.True(t, s.Has(CapNetwork))
	assert.False(t, s.Has(CapFileWrite))

	subset := NewCapabilitySet()
	subset.Add(CapNetwork)
	assert.True(t, s.ContainsAll(subset), "s declares everything in subset")
	assert.False(t, subset.ContainsAll(s), "subset is missing CapCredentials")
}

func TestCapabilitySetZeroValueIsUsable(t *testing.T) {
	var s CapabilitySet
	assert.False(t, s.Has(CapNetwork))
	s.Add(CapNetwork)
	assert.True(t, s.Has(CapNetwork))
}
