package noise

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewZero(t *testing.T) {
	assert := assert.New(t)

	z, err := NewZero(3)
	assert.NotNil(z)
	assert.NoError(err)

	z, err = NewZero(-1)
	assert.Nil(z)
	assert.Error(err)
}

func TestZeroMeanCovSample(t *testing.T) {
	assert := assert.New(t)

	z, err := NewZero(3)
	assert.NoError(err)

	assert.Equal([]float64{0, 0, 0}, z.Mean())
	assert.Equal(3, z.Cov().SymmetricDim())

	s := z.Sample()
	assert.Equal(3, s.Len())
	for i := 0; i < s.Len(); i++ {
		assert.Equal(0.0, s.AtVec(i))
	}

	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			assert.Equal(0.0, z.Cov().At(i, j))
		}
	}

	assert.NoError(z.Reset())
}
