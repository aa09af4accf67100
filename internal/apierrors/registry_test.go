package apierrors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRPCCodeFamilyRanges(t *testing.T) {
	cases := []struct {
		code   string
		family Family
	}{
		{CodePluginNotFound, FamilyPlugin},
		{CodeMissingCapability, FamilyPlugin},
		{CodeProviderNotFound, FamilyProvider},
		{CodeCacheUnavailable, FamilyCache},
	}
	for _, tc := range cases {
		n := Registry.RPCCode(tc.code)
		hi := rangeStart[tc.family] + 9
		lo := rangeStart[tc.family]
		assert.GreaterOrEqual(t, n, lo, "code %s got %d, want inside family %v range", tc.code, n, tc.family)
		assert.LessOrEqual(t, n, hi, "code %s got %d, want inside family %v range", tc.code, n, tc.family)
	}
}

func TestUnknownCodeFallsBackToInternal(t *testing.T) {
	assert.Equal(t, Registry.RPCCode(CodeInternal), Registry.RPCCode("nonexistent:code"))
}

func TestNewOverridesMessage(t *testing.T) {
	e := New(CodeProviderNotFound, "provider \"spotify\" not found")
	assert.Equal(t, `provider "spotify" not found`, e.Message)
	assert.Equal(t, Registry.RPCCode(CodeProviderNotFound), e.Code)
}
