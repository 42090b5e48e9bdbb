package modifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		word string
		want Kind
	}{
		{"n", Identifier},
		{"sN", TextOrNull},
		{"bin", Binary},
		{"SQL", Raw},
		{"in", List},
		{"and", And},
		{"ex", Expand},
		{"lmt", Limit},
		{"m", MultiValues},
	}
	for _, tt := range tests {
		got, ok := Lookup(tt.word)
		assert.True(t, ok, tt.word)
		assert.Equal(t, tt.want, got, tt.word)
	}

	_, ok := Lookup("zz")
	assert.False(t, ok)
	_, ok = Lookup("N")
	assert.False(t, ok)
}

func TestConsumes(t *testing.T) {
	assert.True(t, Integer.Consumes())
	assert.True(t, If.Consumes())
	assert.True(t, Offset.Consumes())
	assert.False(t, Else.Consumes())
	assert.False(t, End.Consumes())
	assert.False(t, Substitution.Consumes())
}

func TestScalar(t *testing.T) {
	assert.True(t, Identifier.Scalar())
	assert.True(t, Auto.Scalar())
	assert.False(t, List.Scalar())
	assert.False(t, Expand.Scalar())
	assert.Equal(t, "order-by", OrderBy.String())
}
