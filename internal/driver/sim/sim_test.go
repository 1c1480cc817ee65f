// internal/driver/sim/sim_test.go
package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/daq-orchestrator/internal/driver"
)

func newOpen(t *testing.T) *Driver {
	t.Helper()
	d := New([]driver.BoardInfo{
		{Model: "PIO-821", AIChannels: 4, DIPorts: 1, DOPorts: 1},
	}, func(_ int, ch uint16, _, sample int) float32 {
		return float32(ch)*10 + float32(sample)
	})
	n, err := d.Init()
	require.NoError(t, err)
	require.Equal(t, 1, n)
	return d
}

func TestDriver_ScanRoundTrip(t *testing.T) {
	t.Parallel()

	d := newOpen(t)
	require.NoError(t, d.StartAnalogScan(0, []uint16{1, 3}, []uint16{0, 0}, 1000, 3))
	assert.True(t, d.Scanning(0))

	buf := make([]float32, 6)
	require.NoError(t, d.AnalogBuffer(0, buf))
	require.NoError(t, d.StopAnalogScan(0))
	assert.False(t, d.Scanning(0))

	// sample-major layout
	assert.Equal(t, []float32{10, 30, 11, 31, 12, 32}, buf)
}

func TestDriver_BufferWithoutScan(t *testing.T) {
	t.Parallel()

	d := newOpen(t)
	err := d.AnalogBuffer(0, make([]float32, 4))
	assert.Equal(t, driver.StatusInvalidMode, err)
}

func TestDriver_FaultInjection(t *testing.T) {
	t.Parallel()

	d := newOpen(t)
	d.Fail(OpReadDigitalInput, driver.StatusTimeout, 2)

	_, err := d.ReadDigitalInput(0, 0)
	assert.Equal(t, driver.StatusTimeout, err)
	_, err = d.ReadDigitalInput(0, 0)
	assert.Equal(t, driver.StatusTimeout, err)
	_, err = d.ReadDigitalInput(0, 0)
	assert.NoError(t, err)

	d.Fail(OpStopAnalogScan, driver.StatusCardIO, -1)
	for i := 0; i < 3; i++ {
		assert.Error(t, d.StopAnalogScan(0))
	}
	d.Fail(OpStopAnalogScan, 0, 0)
	assert.NoError(t, d.StopAnalogScan(0))
}

func TestDriver_DigitalPorts(t *testing.T) {
	t.Parallel()

	d := newOpen(t)
	d.SetInput(0, 0, 0b101)
	bits, err := d.ReadDigitalInput(0, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(0b101), bits)

	require.NoError(t, d.WriteDigitalOutputBit(0, 1, 2, true))
	require.NoError(t, d.WriteDigitalOutputBit(0, 1, 0, true))
	require.NoError(t, d.WriteDigitalOutputBit(0, 1, 2, false))
	assert.Equal(t, uint32(0b001), d.Output(0, 1))

	require.NoError(t, d.WriteDigitalOutput(0, 1, 0xF0))
	assert.Equal(t, uint32(0xF0), d.Output(0, 1))

	assert.Equal(t, driver.StatusInvalidPort, d.WriteDigitalOutput(0, 5, 1))
}

func TestDriver_ClosedRejectsCalls(t *testing.T) {
	t.Parallel()

	d := newOpen(t)
	require.NoError(t, d.Close())
	_, err := d.BoardInfo(0)
	assert.Equal(t, driver.StatusDriverNotOpen, err)

	d2 := newOpen(t)
	_, err = d2.BoardInfo(4)
	assert.Equal(t, driver.StatusBoardNumber, err)
}
