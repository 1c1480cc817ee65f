// internal/driver/driver_test.go
package driver

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---- counting driver ----

type countingDriver struct {
	mu      sync.Mutex
	inits   int
	closes  int
	initErr error
	boards  int
}

func (d *countingDriver) Init() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inits++
	if d.initErr != nil {
		return 0, d.initErr
	}
	return d.boards, nil
}

func (d *countingDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closes++
	return nil
}

func (d *countingDriver) BoardInfo(int) (BoardInfo, error) { return BoardInfo{}, nil }
func (d *countingDriver) ConfigureAnalog(int, uint16, uint32, uint16, uint16) error {
	return nil
}
func (d *countingDriver) StartAnalogScan(int, []uint16, []uint16, float32, uint32) error {
	return nil
}
func (d *countingDriver) AnalogBuffer(int, []float32) error                     { return nil }
func (d *countingDriver) StopAnalogScan(int) error                              { return nil }
func (d *countingDriver) ReadDigitalInput(int, uint16) (uint32, error)          { return 0, nil }
func (d *countingDriver) WriteDigitalOutput(int, uint16, uint32) error          { return nil }
func (d *countingDriver) WriteDigitalOutputBit(int, uint16, uint16, bool) error { return nil }

// ---- tests ----

func TestHandle_InitOnceCloseAtZero(t *testing.T) {
	t.Parallel()

	d := &countingDriver{boards: 2}
	h := NewHandle(d)

	n, err := h.Acquire()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = h.Acquire()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, h.Refs())

	require.NoError(t, h.Release())
	assert.Equal(t, 0, d.closes)

	require.NoError(t, h.Release())
	assert.Equal(t, 1, d.inits)
	assert.Equal(t, 1, d.closes)
	assert.Equal(t, 0, h.Boards())

	// extra release is harmless
	require.NoError(t, h.Release())
	assert.Equal(t, 1, d.closes)
}

func TestHandle_ConcurrentAcquireRelease(t *testing.T) {
	t.Parallel()

	d := &countingDriver{boards: 1}
	h := NewHandle(d)

	// hold one reference so the driver stays open throughout
	_, err := h.Acquire()
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.Acquire(); err == nil {
				_ = h.Release()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, d.inits)
	assert.Equal(t, 0, d.closes)
	require.NoError(t, h.Release())
	assert.Equal(t, 1, d.closes)
}

func TestHandle_InitFailureHoldsNothing(t *testing.T) {
	t.Parallel()

	d := &countingDriver{initErr: StatusNoBoard}
	h := NewHandle(d)

	_, err := h.Acquire()
	require.Error(t, err)
	assert.Equal(t, uint16(StatusNoBoard), CodeOf(err))
	assert.Equal(t, 0, h.Refs())
}

func TestStatus_Messages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code Status
		want string
	}{
		{0, "Correct"},
		{1, "Open driver error"},
		{5, "Board number error"},
		{17, "Timeout while receiving analog input status"},
		{33, "FIFO overflow error"},
		{62, "Get MMIO map status"},
		{63, "Unknown Error"},
		{999, "Unknown Error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.code.Message(), "code %d", tt.code)
	}
	assert.Len(t, statusMessages, 63)
	assert.NoError(t, StatusOK.Err())
	assert.Error(t, StatusTimeout.Err())
}

func TestWrap_FormatsAndKeepsCode(t *testing.T) {
	t.Parallel()

	err := Wrap("StartAnalogScan", 3, StatusTimeout)
	require.Error(t, err)
	assert.Equal(t, "[StartAnalogScan] Error code 18: Timeout error", err.Error())
	assert.Equal(t, uint16(18), CodeOf(fmt.Errorf("cycle: %w", err)))

	var op *OpError
	require.True(t, errors.As(err, &op))
	assert.Equal(t, 3, op.Board)
	assert.True(t, errors.Is(err, StatusTimeout))

	plain := Wrap("ReadDigitalInput", 0, errors.New("socket closed"))
	assert.Equal(t, uint16(StatusCardIO), CodeOf(plain))
	assert.Nil(t, Wrap("StopAnalogScan", 0, nil))
	assert.Same(t, err, Wrap("Other", 1, err))
	assert.Equal(t, uint16(0), CodeOf(nil))
}

func TestVoltageRange_Parse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want VoltageRange
		code uint16
	}{
		{"", Bipolar10V, 0},
		{"bipolar_20v", Bipolar20V, 23},
		{"Unipolar_5V", Unipolar5V, 15},
		{"bipolar_0.3125v", Bipolar0_3125V, 5},
		{"unipolar_0.001v", Unipolar0_001V, 22},
	}
	for _, tt := range tests {
		got, err := ParseVoltageRange(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.code, got.Code())
		assert.True(t, got.Valid())
	}

	_, err := ParseVoltageRange("bipolar_3v")
	assert.Error(t, err)
	assert.False(t, VoltageRange(24).Valid())
	assert.Equal(t, 10.0, Bipolar10V.FullScale())
	assert.False(t, Unipolar10V.Bipolar())
	assert.Equal(t, "unipolar_10v", Unipolar10V.Key())
}

func TestBoardInfo_Capabilities(t *testing.T) {
	t.Parallel()

	b := BoardInfo{AIChannels: 0, DIPorts: 0, DOPorts: 0, DIOPorts: 2}
	assert.False(t, b.HasAnalog())
	assert.True(t, b.HasDigital())
	assert.Equal(t, 2, b.DigitalCount())
	assert.False(t, BoardInfo{AOChannels: 2}.HasDigital())

	assert.True(t, ValidBoard(0))
	assert.True(t, ValidBoard(15))
	assert.False(t, ValidBoard(16))
	assert.False(t, ValidBoard(-1))
}
