package memflash_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gentam/eeprom"
	"github.com/gentam/eeprom/memflash"
)

func TestFreshRegionIsErased(t *testing.T) {
	f := memflash.New(2048, 1024)
	for i, hw := range f.Image() {
		assert.Equalf(t, uint16(0xFFFF), hw, "half-word %d", i)
	}
}

func TestWriteRequiresErasedTarget(t *testing.T) {
	f := memflash.New(2048, 1024)
	require.NoError(t, f.WriteHalfWord(0, 0xABCD))
	err := f.WriteHalfWord(0, 0x1234)
	require.Error(t, err)
	assert.ErrorIs(t, err, eeprom.ErrProgrammingError)
}

func TestErasePageRestoresOnlyThatPage(t *testing.T) {
	f := memflash.New(2048, 1024)
	require.NoError(t, f.WriteHalfWord(0, 0xABCD))
	require.NoError(t, f.WriteHalfWord(1024, 0xABCD))

	require.NoError(t, f.ErasePage(0))

	img := f.Image()
	assert.Equal(t, uint16(0xFFFF), img[0])
	assert.Equal(t, uint16(0xABCD), img[1024/2])
}

func TestCrashAfterOps(t *testing.T) {
	f := memflash.New(2048, 1024)
	f.CrashAfterOps(1)

	require.NoError(t, f.WriteHalfWord(0, 0xABCD))
	err := f.WriteHalfWord(4, 1)
	require.Error(t, err)
}

func TestCloneIsIndependent(t *testing.T) {
	f := memflash.New(2048, 1024)
	require.NoError(t, f.WriteHalfWord(0, 0xABCD))

	clone := f.Clone()
	require.NoError(t, clone.WriteHalfWord(4, 1))

	assert.Equal(t, uint16(0xFFFF), f.Image()[2])
	assert.Equal(t, uint16(1), clone.Image()[2])
}
