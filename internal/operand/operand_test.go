package operand

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"educpu/internal/isa"
)

func TestParseNumberLiterals(t *testing.T) {
	v, ok := ParseNumber("0x41", nil)
	require.True(t, ok)
	assert.Equal(t, 0x41, v)

	v, ok = ParseNumber("0b101", nil)
	require.True(t, ok)
	assert.Equal(t, 5, v)

	v, ok = ParseNumber("42", nil)
	require.True(t, ok)
	assert.Equal(t, 42, v)

	v, ok = ParseNumber("'Y'", nil)
	require.True(t, ok)
	assert.Equal(t, int('Y'), v)

	_, ok = ParseNumber("not_a_number", nil)
	assert.False(t, ok)
}

func TestParseNumberSymbolLookup(t *testing.T) {
	symbols := map[string]int{"COUNT": 7}
	v, ok := ParseNumber("COUNT", symbols)
	require.True(t, ok)
	assert.Equal(t, 7, v)
}

func TestParseRegister(t *testing.T) {
	op := Parse("r0", nil)
	assert.Equal(t, KindRegister, op.Kind)
	assert.Equal(t, isa.RegR0, op.Reg)
}

func TestParseIndexedWithAndWithoutOffset(t *testing.T) {
	op := Parse("[R0+5]", nil)
	assert.Equal(t, KindIndexed, op.Kind)
	assert.Equal(t, isa.RegR0, op.Reg)
	assert.True(t, op.Resolved)
	assert.Equal(t, 5, op.Value)

	op = Parse("[R1]", nil)
	assert.Equal(t, KindIndexed, op.Kind)
	assert.Equal(t, isa.RegR1, op.Reg)
	assert.Equal(t, 0, op.Value)
}

func TestParseDirectAndImmediate(t *testing.T) {
	op := Parse("[0xFF]", nil)
	assert.Equal(t, KindDirect, op.Kind)
	assert.True(t, op.Resolved)
	assert.Equal(t, 0xFF, op.Value)

	op = Parse("#5", nil)
	assert.Equal(t, KindImmediate, op.Kind)
	assert.Equal(t, 5, op.Value)
}

func TestParseBareValueUnresolvedTolerated(t *testing.T) {
	op := Parse("FORWARD_LABEL", nil)
	assert.Equal(t, KindValue, op.Kind)
	assert.False(t, op.Resolved)
	assert.Equal(t, "FORWARD_LABEL", op.Symbol)

	op = Parse("FORWARD_LABEL", map[string]int{"FORWARD_LABEL": 0x20})
	assert.True(t, op.Resolved)
	assert.Equal(t, 0x20, op.Value)
}

func TestDecodeStringEscapes(t *testing.T) {
	out, err := DecodeString(`Hi\n\t\0\\`)
	require.NoError(t, err)
	assert.Equal(t, []byte{'H', 'i', '\n', '\t', 0x00, '\\'}, out)

	_, err = DecodeString(`bad\q`)
	assert.Error(t, err)

	_, err = DecodeString(string([]byte{0xFF}))
	assert.Error(t, err)
}
