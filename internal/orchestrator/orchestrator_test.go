// internal/orchestrator/orchestrator_test.go
package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tamzrod/daq-orchestrator/internal/acquire"
	"github.com/tamzrod/daq-orchestrator/internal/config"
	"github.com/tamzrod/daq-orchestrator/internal/driver"
	"github.com/tamzrod/daq-orchestrator/internal/driver/sim"
	"github.com/tamzrod/daq-orchestrator/internal/errors"
	"github.com/tamzrod/daq-orchestrator/internal/events"
	"github.com/tamzrod/daq-orchestrator/internal/registry"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// ---- helpers ----

func mixedBoards() []driver.BoardInfo {
	return []driver.BoardInfo{
		{Model: "PIO-AI8", AIChannels: 8},
		{Model: "PIO-DIO", DIPorts: 1, DOPorts: 1},
		{Model: "PIO-AO", AOChannels: 4},
		{Model: "PIO-MIX", AIChannels: 2, DIOPorts: 1},
	}
}

func fastConfig() Config {
	return Config{
		Analog:          acquire.AnalogConfig{SamplesPerChannel: 4},
		RetryDelay:      time.Millisecond,
		CycleDelay:      time.Millisecond,
		ShutdownTimeout: time.Second,
	}
}

func newOrchestrator(t *testing.T, boards []driver.BoardInfo, cfg Config) (*Orchestrator, *sim.Driver, *events.Recorder) {
	t.Helper()
	d := sim.New(boards, nil)
	rec := &events.Recorder{}
	o := New(d, rec, cfg)
	return o, d, rec
}

func lifecycles(rec *events.Recorder, board int) []events.State {
	var out []events.State
	for _, e := range rec.OfKind(events.KindLifecycle) {
		if e.BoardID() == board {
			out = append(out, e.(events.Lifecycle).State)
		}
	}
	return out
}

// ---- discovery ----

func TestOpen_PublishesDiscovery(t *testing.T) {
	o, _, rec := newOrchestrator(t, mixedBoards(), fastConfig())
	defer o.Close(0)

	boards, err := o.Open()
	require.NoError(t, err)
	require.Len(t, boards, 4)
	assert.Equal(t, 3, boards[3].Index)

	disc := rec.OfKind(events.KindBoardDiscovered)
	require.Len(t, disc, 4)
	assert.Equal(t, "PIO-DIO", disc[1].(events.BoardDiscovered).Info.Model)

	again, err := o.Open()
	require.NoError(t, err)
	assert.Len(t, again, 4)
	assert.Len(t, rec.OfKind(events.KindBoardDiscovered), 4)
	assert.NotEmpty(t, o.ID())
}

func TestOpen_InitFailure(t *testing.T) {
	o, d, _ := newOrchestrator(t, mixedBoards(), fastConfig())
	d.Fail(sim.OpInit, driver.StatusNoBoard, 1)

	_, err := o.Open()
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryTransport))
	assert.Equal(t, uint16(driver.StatusNoBoard), driver.CodeOf(err))
	o.Close(0)
}

func TestOpen_BoardInfoFailureSkipsOnlyThatBoard(t *testing.T) {
	o, d, rec := newOrchestrator(t, mixedBoards(), fastConfig())
	defer o.Close(0)
	d.Fail(sim.OpBoardInfo, driver.StatusCardIO, 1)

	boards, err := o.Open()
	require.NoError(t, err)
	assert.Equal(t, 1, o.handle.Refs())

	require.Len(t, boards, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{boards[0].Index, boards[1].Index, boards[2].Index})
	assert.Len(t, rec.OfKind(events.KindBoardDiscovered), 3)

	errs := rec.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, 0, errs[0].Board)
	assert.Equal(t, SourceBoardInfo, errs[0].Source)
	assert.Equal(t, uint16(driver.StatusCardIO), errs[0].Code)
}

// ---- controllers ----

func TestCreateControllers_ByCapability(t *testing.T) {
	o, _, _ := newOrchestrator(t, mixedBoards(), fastConfig())
	defer o.Close(0)

	boards, err := o.Open()
	require.NoError(t, err)

	c, err := o.CreateControllers(0, boards[0])
	require.NoError(t, err)
	assert.NotNil(t, c.Analog)
	assert.Nil(t, c.Digital)

	c, err = o.CreateControllers(1, boards[1])
	require.NoError(t, err)
	assert.Nil(t, c.Analog)
	assert.NotNil(t, c.Digital)

	c, err = o.CreateControllers(2, boards[2])
	require.NoError(t, err)
	assert.Nil(t, c)

	c, err = o.CreateControllers(3, boards[3])
	require.NoError(t, err)
	assert.NotNil(t, c.Analog)
	assert.NotNil(t, c.Digital)

	assert.Equal(t, []int{0, 1, 3}, o.ControlledBoards())

	_, err = o.CreateControllers(0, boards[0])
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConflict))

	_, err = o.CreateControllers(16, boards[0])
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestCreateControllers_RequiresOpen(t *testing.T) {
	o, _, _ := newOrchestrator(t, mixedBoards(), fastConfig())
	defer o.Close(0)

	_, err := o.CreateControllers(0, mixedBoards()[0])
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryState))
}

// ---- start / stop ----

func TestStart_WithoutControllers(t *testing.T) {
	o, _, rec := newOrchestrator(t, mixedBoards(), fastConfig())
	defer o.Close(0)

	_, err := o.Open()
	require.NoError(t, err)

	err = o.Start(2)
	require.Error(t, err)
	assert.False(t, o.Running(2))
	assert.Empty(t, lifecycles(rec, 2))

	errs := rec.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, 2, errs[0].Board)
	assert.Equal(t, SourceStart, errs[0].Source)
	assert.Equal(t, uint16(0), errs[0].Code)
	assert.Contains(t, errs[0].Message, "no controllers")
}

func TestStatusMessagesFollowLifecycle(t *testing.T) {
	o, _, rec := newOrchestrator(t, mixedBoards(), fastConfig())

	boards, err := o.Open()
	require.NoError(t, err)
	_, err = o.CreateControllers(1, boards[1])
	require.NoError(t, err)
	require.NoError(t, o.Start(1))

	done := o.Done(1)
	o.Stop(1)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("board did not stop")
	}
	o.Close(0)

	var msgs []string
	for _, e := range rec.OfKind(events.KindStatus) {
		msgs = append(msgs, e.(events.Status).Message)
	}
	require.NotEmpty(t, msgs)
	assert.Equal(t, "driver opened: 4 boards", msgs[0])
	assert.Contains(t, msgs, "board 1 controllers created (analog=false, digital=true)")
	assert.Contains(t, msgs, "board 1 started")
	assert.Contains(t, msgs, "board 1 stopping")
	assert.Equal(t, "driver closed", msgs[len(msgs)-1])

	assert.Equal(t, events.System, rec.OfKind(events.KindStatus)[0].BoardID())
}

func TestStart_IdempotentAndStop(t *testing.T) {
	o, _, rec := newOrchestrator(t, mixedBoards(), fastConfig())
	defer o.Close(0)

	boards, err := o.Open()
	require.NoError(t, err)
	c, err := o.CreateControllers(0, boards[0])
	require.NoError(t, err)
	require.NoError(t, c.Analog.Registry().Add(registry.AnalogChannel{Name: "temp", Index: 0}))

	require.NoError(t, o.Start(0))
	require.NoError(t, o.Start(0))
	assert.True(t, o.Running(0))

	require.Eventually(t, func() bool {
		return len(rec.OfKind(events.KindAnalogFrame)) >= 3
	}, 2*time.Second, time.Millisecond)

	done := o.Done(0)
	o.Stop(0)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("board did not stop")
	}
	assert.False(t, o.Running(0))
	assert.NoError(t, o.Err(0))
	assert.Equal(t, []events.State{events.StateRunning, events.StateStopped}, lifecycles(rec, 0))
}

func TestStart_FramesFollowRunning(t *testing.T) {
	o, _, rec := newOrchestrator(t, mixedBoards(), fastConfig())
	defer o.Close(0)

	boards, err := o.Open()
	require.NoError(t, err)
	c, err := o.CreateControllers(0, boards[0])
	require.NoError(t, err)
	require.NoError(t, c.Analog.Registry().Add(registry.AnalogChannel{Name: "temp", Index: 0}))
	require.NoError(t, o.Start(0))

	require.Eventually(t, func() bool {
		return len(rec.OfKind(events.KindAnalogFrame)) >= 1
	}, 2*time.Second, time.Millisecond)

	var seenRunning bool
	for _, e := range rec.Events() {
		if e.BoardID() != 0 {
			continue
		}
		switch ev := e.(type) {
		case events.Lifecycle:
			if ev.State == events.StateRunning {
				seenRunning = true
			}
		case events.AnalogFrame:
			assert.True(t, seenRunning, "frame published before Running")
		}
	}
}

func TestStart_TerminalErrorStopsBoard(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxRetries = 2
	o, d, rec := newOrchestrator(t, mixedBoards(), cfg)
	defer o.Close(0)

	boards, err := o.Open()
	require.NoError(t, err)
	c, err := o.CreateControllers(0, boards[0])
	require.NoError(t, err)
	require.NoError(t, c.Analog.Registry().Add(registry.AnalogChannel{Name: "temp", Index: 0}))

	d.Fail(sim.OpStartAnalogScan, driver.StatusAIStatusTimeout, -1)
	require.NoError(t, o.Start(0))

	select {
	case <-o.Done(0):
	case <-time.After(2 * time.Second):
		t.Fatal("board did not give up")
	}

	errs := rec.Errors()
	require.Len(t, errs, 4)
	assert.True(t, errs[3].Terminal)
	assert.Equal(t, acquire.OpStartAnalogScan, errs[0].Source)
	assert.Equal(t, uint16(driver.StatusAIStatusTimeout), errs[0].Code)

	err = o.Err(0)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryLimit))
	assert.Equal(t, []events.State{events.StateRunning, events.StateStopped}, lifecycles(rec, 0))

	// a stopped board can be started again
	d.Fail(sim.OpStartAnalogScan, 0, 0)
	require.NoError(t, o.Start(0))
	assert.True(t, o.Running(0))
}

func TestStartAll_JoinsErrors(t *testing.T) {
	o, _, _ := newOrchestrator(t, mixedBoards(), fastConfig())
	defer o.Close(0)

	boards, err := o.Open()
	require.NoError(t, err)
	for _, b := range []int{0, 1} {
		_, err := o.CreateControllers(b, boards[b])
		require.NoError(t, err)
	}

	require.NoError(t, o.StartAll())
	assert.True(t, o.Running(0))
	assert.True(t, o.Running(1))
}

// ---- close ----

func TestClose_DisposesAndReleases(t *testing.T) {
	o, d, rec := newOrchestrator(t, mixedBoards(), fastConfig())

	boards, err := o.Open()
	require.NoError(t, err)
	c, err := o.CreateControllers(0, boards[0])
	require.NoError(t, err)
	require.NoError(t, c.Analog.Registry().Add(registry.AnalogChannel{Name: "temp", Index: 0}))
	_, err = o.CreateControllers(1, boards[1])
	require.NoError(t, err)
	require.NoError(t, o.StartAll())

	o.Close(time.Second)

	assert.False(t, o.Running(0))
	assert.False(t, o.Running(1))
	assert.Equal(t, 0, o.handle.Refs())
	assert.False(t, d.Scanning(0))
	assert.Contains(t, d.Calls(), "Close")
	assert.Len(t, lifecycles(rec, 0), 2)

	// closed orchestrator refuses work; a second Close is a no-op
	require.Error(t, o.Start(0))
	_, err = o.Open()
	require.Error(t, err)
	o.Close(0)
}

func TestClose_SuppressesDisposeErrors(t *testing.T) {
	o, d, _ := newOrchestrator(t, mixedBoards(), fastConfig())

	boards, err := o.Open()
	require.NoError(t, err)
	_, err = o.CreateControllers(0, boards[0])
	require.NoError(t, err)

	d.Fail(sim.OpStopAnalogScan, driver.StatusCardIO, -1)
	o.Close(0)
	assert.Equal(t, 0, o.handle.Refs())
}

func TestCleanupFailureIsPublished(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxRetries = 1
	o, d, rec := newOrchestrator(t, mixedBoards(), cfg)
	defer o.Close(0)

	boards, err := o.Open()
	require.NoError(t, err)
	c, err := o.CreateControllers(0, boards[0])
	require.NoError(t, err)
	require.NoError(t, c.Analog.Registry().Add(registry.AnalogChannel{Name: "temp", Index: 0}))

	d.Fail(sim.OpAnalogBuffer, driver.StatusFIFOOverflow, 1)
	d.Fail(sim.OpStopAnalogScan, driver.StatusCardIO, 1)
	require.NoError(t, o.Start(0))

	require.Eventually(t, func() bool {
		for _, e := range rec.Errors() {
			if e.Source == acquire.OpStopAnalogScan {
				return true
			}
		}
		return false
	}, 2*time.Second, time.Millisecond)
}

// ---- builder ----

func TestConfigure_FromConfig(t *testing.T) {
	raw := []byte(`
driver:
  kind: sim
  sim:
    boards:
      - { model: PIO-AI8, ai: 8 }
      - { model: PIO-DIO, di: 1, do: 1 }
      - { model: PIO-AO }
boards:
  - id: 0
    analog:
      samples_per_channel: 8
      channels:
        - { name: temp, index: 2, range: unipolar_5v, coeffs: [1, 2] }
  - id: 1
    digital:
      inputs:
        - { name: door, port: 0, bit: 0 }
      outputs:
        - { name: lamp, port: 1, bit: 0, initial: true }
  - id: 5
`)
	cfg, err := config.Parse(raw)
	require.NoError(t, err)

	drv, err := NewDriver(cfg.Driver)
	require.NoError(t, err)

	o := New(drv, nil, RuntimeConfig(cfg, nil, nil))
	defer o.Close(0)

	_, err = o.Open()
	require.NoError(t, err)

	ready, err := Configure(o, cfg)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, ready)

	c0, ok := o.Controllers(0)
	require.True(t, ok)
	snap := c0.Analog.Registry().Snapshot()
	require.Equal(t, 1, snap.Len())
	assert.Equal(t, driver.Unipolar5V, snap.Channels[0].Range)
	assert.Equal(t, uint32(8), c0.Analog.Config().SamplesPerChannel)

	c1, ok := o.Controllers(1)
	require.True(t, ok)
	assert.Equal(t, 1, c1.Digital.Queue().Len())
}

func TestConfigure_ChannelBeyondBoard(t *testing.T) {
	raw := []byte(`
driver:
  sim:
    boards:
      - { model: PIO-AI2, ai: 2 }
boards:
  - id: 0
    analog:
      channels:
        - { name: temp, index: 5 }
`)
	cfg, err := config.Parse(raw)
	require.NoError(t, err)
	drv, err := NewDriver(cfg.Driver)
	require.NoError(t, err)

	o := New(drv, nil, RuntimeConfig(cfg, nil, nil))
	defer o.Close(0)
	_, err = o.Open()
	require.NoError(t, err)

	_, err = Configure(o, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds 2 analog inputs")
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestNewDriver_Modbus(t *testing.T) {
	drv, err := NewDriver(config.DriverConfig{
		Kind: config.DriverModbus,
		Modbus: config.ModbusDriverConfig{
			Endpoint: "127.0.0.1:1502",
			Boards:   []config.ModbusBoardConfig{{Model: "GW", UnitID: 3, AI: 4}},
		},
	})
	require.NoError(t, err)
	assert.NotNil(t, drv)

	_, err = NewDriver(config.DriverConfig{Kind: "bogus"})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}
