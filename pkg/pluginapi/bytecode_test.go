package pluginapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validProgram() Program {
	return Program{
		Version:  SupportedVersion,
		Metadata: ProgramMetadata{PluginID: "rss", PluginVersion: "0.1.0"},
		Constants: []Constant{
			{Type: ConstInt, Value: float64(1)},
		},
		Functions: []Function{
			{Name: "main", Instructions: []Instruction{
				{Op: OpLoadConst, Index: 0},
				{Op: OpReturn},
			}},
		},
		EntryPoint: "main",
	}
}

func TestEncodeThenLoadRoundTrips(t *testing.T) {
	p := validProgram()
	data, err := p.Encode()
	require.NoError(t, err)
	got, err := LoadProgram(data)
	require.NoError(t, err)
	assert.Equal(t, "main", got.EntryPoint)
	assert.Len(t, got.Functions, 1)
}

func TestLoadProgramRejectsMissingMagic(t *testing.T) {
	_, err := LoadProgram([]byte(`{"version":1}`))
	assert.Error(t, err)
}

func TestValidateRejectsUnknownVersion(t *testing.T) {
	p := validProgram()
	p.Version = 99
	assert.Error(t, p.Validate())
}

func TestValidateRejectsEntryPointNotDeclared(t *testing.T) {
	p := validProgram()
	p.EntryPoint = "does_not_exist"
	assert.Error(t, p.Validate())
}
