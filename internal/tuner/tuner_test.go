package tuner

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dvb-tune/internal/dtv"
	"dvb-tune/internal/frontend"
)

var errIoctl = errors.New("ioctl rejected")

// fakeFrontend replays queued events and statuses and records every call.
type fakeFrontend struct {
	events   []frontend.Event // returned in order, then ErrNoEvent
	statuses []dtv.Status     // returned in order, the last one repeats
	readback Params

	eventErr   error // returned instead of ErrNoEvent once events run out
	clearErr   error
	tuneErr    error
	statusErr  error
	getPropErr error

	calls       []string
	setBatches  [][]dtv.Property
	statusReads int
}

func (f *fakeFrontend) SetProperties(props []dtv.Property) error {
	f.calls = append(f.calls, "set")
	f.setBatches = append(f.setBatches, append([]dtv.Property(nil), props...))
	if len(props) == 1 && props[0].Cmd == dtv.DTV_CLEAR {
		return f.clearErr
	}
	return f.tuneErr
}

func (f *fakeFrontend) GetProperties(props []dtv.Property) error {
	f.calls = append(f.calls, "get")
	if f.getPropErr != nil {
		return f.getPropErr
	}
	for i := range props {
		switch props[i].Cmd {
		case dtv.DTV_DELIVERY_SYSTEM:
			props[i].Data = f.readback.System
		case dtv.DTV_FREQUENCY:
			props[i].Data = f.readback.Frequency
		case dtv.DTV_MODULATION:
			props[i].Data = f.readback.Modulation
		case dtv.DTV_INVERSION:
			props[i].Data = f.readback.Inversion
		}
	}
	return nil
}

func (f *fakeFrontend) GetEvent() (frontend.Event, error) {
	f.calls = append(f.calls, "event")
	if len(f.events) == 0 {
		if f.eventErr != nil {
			return frontend.Event{}, f.eventErr
		}
		return frontend.Event{}, frontend.ErrNoEvent
	}
	ev := f.events[0]
	f.events = f.events[1:]
	return ev, nil
}

func (f *fakeFrontend) ReadStatus() (dtv.Status, error) {
	f.calls = append(f.calls, "status")
	f.statusReads++
	if f.statusErr != nil {
		return 0, f.statusErr
	}
	if len(f.statuses) == 0 {
		return 0, nil
	}
	s := f.statuses[0]
	if len(f.statuses) > 1 {
		f.statuses = f.statuses[1:]
	}
	return s, nil
}

func (f *fakeFrontend) count(call string) (n int) {
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return
}

func fastTiming() Timing {
	return Timing{
		EventPoll:    time.Millisecond,
		StartTimeout: 200 * time.Millisecond,
		LockAttempts: 5,
	}
}

func atscRequest(t *testing.T, freq uint64) Request {
	t.Helper()
	req, err := NewRequest(freq, "ATSC", "VSB_8", "AUTO")
	require.NoError(t, err)
	return req
}

// a frontend with an empty event queue
func tuningDevice() *fakeFrontend {
	return &fakeFrontend{}
}

type eventScript struct {
	*fakeFrontend
	afterTune []frontend.Event
}

// scripted separates the events pending before the tune (stale) from those
// the driver queues once DTV_TUNE is submitted.
func scripted(stale, afterTune []frontend.Event) *eventScript {
	return &eventScript{fakeFrontend: &fakeFrontend{events: stale}, afterTune: afterTune}
}

func (e *eventScript) SetProperties(props []dtv.Property) error {
	err := e.fakeFrontend.SetProperties(props)
	if err == nil && props[len(props)-1].Cmd == dtv.DTV_TUNE {
		e.events = append(e.events, e.afterTune...)
	}
	return err
}

func TestTuneSequence(t *testing.T) {
	fe := scripted(
		[]frontend.Event{{Status: 0x1f}, {Status: 0x1f}},
		[]frontend.Event{{Status: 0}, {Status: 0x03}},
	)
	fe.statuses = []dtv.Status{0x03, 0x1f}
	fe.readback = Params{System: dtv.SYS_ATSC, Frequency: 639000000, Modulation: dtv.VSB_8, Inversion: dtv.INVERSION_OFF}

	var out bytes.Buffer
	params, err := New(fastTiming(), &out, zerolog.Nop()).Tune(context.Background(), fe, atscRequest(t, 639000))
	require.NoError(t, err)
	assert.Equal(t, fe.readback, params)

	// clear, drain two stale events, tune, zero status event, one more
	// event, lock on the second status read, read back
	assert.Equal(t, []string{
		"set",
		"event", "event", "event",
		"set",
		"event",
		"event",
		"status", "status",
		"get",
	}, fe.calls)

	require.Len(t, fe.setBatches, 2)
	assert.Equal(t, []dtv.Property{{Cmd: dtv.DTV_CLEAR}}, fe.setBatches[0])
	assert.Equal(t, []dtv.Property{
		{Cmd: dtv.DTV_DELIVERY_SYSTEM, Data: dtv.SYS_ATSC},
		{Cmd: dtv.DTV_FREQUENCY, Data: 639000000},
		{Cmd: dtv.DTV_MODULATION, Data: dtv.VSB_8},
		{Cmd: dtv.DTV_INVERSION, Data: dtv.INVERSION_AUTO},
		{Cmd: dtv.DTV_TUNE},
	}, fe.setBatches[1])

	report := out.String()
	assert.Contains(t, report, "Tuning specs:\nSystem:     ATSC\nFrequency:  639000\nModulation: VSB_8\nInversion:  AUTO\n")
	assert.Contains(t, report, "Tuned specs:\nSystem:     ATSC 11\nFrequency:  639000\nModulation: VSB_8 7\nInversion:  OFF 0\n")
}

func TestFrequencyScaling(t *testing.T) {
	fe := scripted(nil, []frontend.Event{{Status: 0}})
	fe.statuses = []dtv.Status{0x1f}

	_, err := New(fastTiming(), nil, zerolog.Nop()).Tune(context.Background(), fe, atscRequest(t, 639000))
	require.NoError(t, err)
	require.Len(t, fe.setBatches, 2)
	assert.Equal(t, dtv.DTV_FREQUENCY, fe.setBatches[1][1].Cmd)
	assert.Equal(t, uint32(639000000), fe.setBatches[1][1].Data)
}

func TestDebugTraceNamesSubmittedCommands(t *testing.T) {
	fe := scripted(nil, []frontend.Event{{Status: 0}, {Status: 0x1f, Frequency: 639000000, Inversion: dtv.INVERSION_OFF}})
	fe.statuses = []dtv.Status{0x1f}

	var logs bytes.Buffer
	logger := zerolog.New(&logs).Level(zerolog.DebugLevel)
	_, err := New(fastTiming(), nil, logger).Tune(context.Background(), fe, atscRequest(t, 639000))
	require.NoError(t, err)

	trace := logs.String()
	for _, cmd := range []string{"DTV_DELIVERY_SYSTEM", "DTV_FREQUENCY", "DTV_MODULATION", "DTV_INVERSION", "DTV_TUNE"} {
		assert.Contains(t, trace, `"cmd":"`+cmd+`"`)
	}
	assert.Contains(t, trace, `"data":639000000`)
	assert.Contains(t, trace, `"event_freq":639000000`)
}

func TestLockOnThirdAttemptStopsPolling(t *testing.T) {
	fe := scripted(nil, []frontend.Event{{Status: 0}})
	fe.statuses = []dtv.Status{0x01, 0x03, 0x1f, 0x1f, 0x1f}

	_, err := New(fastTiming(), nil, zerolog.Nop()).Tune(context.Background(), fe, atscRequest(t, 639000))
	require.NoError(t, err)
	assert.Equal(t, 3, fe.statusReads)
	assert.Equal(t, []string{"status", "status", "status", "get"}, fe.calls[len(fe.calls)-4:])
}

func TestNoLockStillReadsBack(t *testing.T) {
	fe := scripted(nil, []frontend.Event{{Status: 0}})
	fe.statuses = []dtv.Status{0x03}
	fe.readback = Params{System: dtv.SYS_ATSC, Frequency: 639000000, Modulation: dtv.VSB_8, Inversion: dtv.INVERSION_AUTO}

	params, err := New(fastTiming(), nil, zerolog.Nop()).Tune(context.Background(), fe, atscRequest(t, 639000))
	require.NoError(t, err)
	assert.Equal(t, 5, fe.statusReads)
	assert.Equal(t, "get", fe.calls[len(fe.calls)-1])
	assert.Equal(t, fe.readback, params)
}

func TestClearFailureIsFatal(t *testing.T) {
	fe := tuningDevice()
	fe.clearErr = errIoctl

	_, err := New(fastTiming(), nil, zerolog.Nop()).Tune(context.Background(), fe, atscRequest(t, 639000))
	assert.ErrorIs(t, err, ErrClear)
	assert.ErrorIs(t, err, errIoctl)
	assert.Equal(t, []string{"set"}, fe.calls)
}

func TestTuneSubmitFailureIsFatal(t *testing.T) {
	fe := tuningDevice()
	fe.tuneErr = errIoctl

	_, err := New(fastTiming(), nil, zerolog.Nop()).Tune(context.Background(), fe, atscRequest(t, 639000))
	assert.ErrorIs(t, err, ErrTuneSubmit)
	assert.Equal(t, []string{"set", "event", "set"}, fe.calls)
}

func TestStatusReadFailureIsFatal(t *testing.T) {
	fe := scripted(nil, []frontend.Event{{Status: 0}})
	fe.statusErr = errIoctl

	_, err := New(fastTiming(), nil, zerolog.Nop()).Tune(context.Background(), fe, atscRequest(t, 639000))
	assert.ErrorIs(t, err, ErrStatusRead)
	assert.Equal(t, 1, fe.statusReads)
	assert.Zero(t, fe.count("get"))
}

func TestReadbackFailureIsFatal(t *testing.T) {
	fe := scripted(nil, []frontend.Event{{Status: 0}})
	fe.statuses = []dtv.Status{0x1f}
	fe.getPropErr = errIoctl

	var out bytes.Buffer
	_, err := New(fastTiming(), &out, zerolog.Nop()).Tune(context.Background(), fe, atscRequest(t, 639000))
	assert.ErrorIs(t, err, ErrParameterReadback)
	assert.NotContains(t, out.String(), "Tuned specs")
}

func TestTuneStartTimeout(t *testing.T) {
	fe := scripted(nil, []frontend.Event{{Status: 0x1f}})
	timing := fastTiming()
	timing.StartTimeout = 20 * time.Millisecond

	start := time.Now()
	_, err := New(timing, nil, zerolog.Nop()).Tune(context.Background(), fe, atscRequest(t, 639000))
	assert.ErrorIs(t, err, ErrTuneTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Zero(t, fe.statusReads)
}

func TestTuneStartSurvivesEventErrors(t *testing.T) {
	fe := &flakyEvents{fakeFrontend: &fakeFrontend{statuses: []dtv.Status{0x1f}}, failures: 3}

	_, err := New(fastTiming(), nil, zerolog.Nop()).Tune(context.Background(), fe, atscRequest(t, 639000))
	require.NoError(t, err)
	assert.Equal(t, 1, fe.statusReads)
}

// flakyEvents reports an overflowed queue a few times after the tune
// before the zero status event arrives.
type flakyEvents struct {
	*fakeFrontend
	failures int
	tuned    bool
}

var errOverflow = errors.New("value too large for defined data type")

func (f *flakyEvents) SetProperties(props []dtv.Property) error {
	if props[len(props)-1].Cmd == dtv.DTV_TUNE {
		f.tuned = true
	}
	return f.fakeFrontend.SetProperties(props)
}

func (f *flakyEvents) GetEvent() (frontend.Event, error) {
	if !f.tuned {
		return f.fakeFrontend.GetEvent()
	}
	f.calls = append(f.calls, "event")
	if f.failures > 0 {
		f.failures--
		return frontend.Event{}, errOverflow
	}
	return frontend.Event{Status: 0}, nil
}

func TestCancelDuringLockPoll(t *testing.T) {
	fe := scripted(nil, []frontend.Event{{Status: 0}})
	fe.statuses = []dtv.Status{0x03}
	timing := fastTiming()
	timing.LockInterval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := New(timing, nil, zerolog.Nop()).Tune(ctx, fe, atscRequest(t, 639000))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, fe.statusReads)
}

func TestUnknownTunedCodes(t *testing.T) {
	fe := scripted(nil, []frontend.Event{{Status: 0}})
	fe.statuses = []dtv.Status{0x1f}
	fe.readback = Params{System: 99, Frequency: 57000000, Modulation: 99, Inversion: 7}

	var out bytes.Buffer
	_, err := New(fastTiming(), &out, zerolog.Nop()).Tune(context.Background(), fe, atscRequest(t, 57000))
	require.NoError(t, err)
	tuned := out.String()[strings.Index(out.String(), "Tuned specs"):]
	assert.Contains(t, tuned, "System:     UNKNOWN 99\n")
	assert.Contains(t, tuned, "Inversion:  UNKNOWN 7\n")
}

func TestNewRequest(t *testing.T) {
	req, err := NewRequest(639000, "DVB-C_ANNEX_B", "QAM_256", "OFF")
	require.NoError(t, err)
	assert.Equal(t, Request{Frequency: 639000, System: dtv.SYS_DVBC_ANNEX_B, Modulation: dtv.QAM_256, Inversion: dtv.INVERSION_OFF}, req)

	_, err = NewRequest(0, "ATSC", "VSB_8", "AUTO")
	assert.ErrorIs(t, err, ErrInvalidFrequency)
	_, err = NewRequest(MaxFrequency+1, "ATSC", "VSB_8", "AUTO")
	assert.ErrorIs(t, err, ErrInvalidFrequency)
	_, err = NewRequest(MaxFrequency, "ATSC", "VSB_8", "AUTO")
	assert.NoError(t, err)

	_, err = NewRequest(639000, "ATSC3", "VSB_8", "AUTO")
	assert.ErrorIs(t, err, dtv.ErrUnknownName)
	_, err = NewRequest(639000, "ATSC", "vsb_8", "AUTO")
	assert.ErrorIs(t, err, dtv.ErrUnknownName)
	_, err = NewRequest(639000, "ATSC", "VSB_8", "MAYBE")
	assert.ErrorIs(t, err, dtv.ErrUnknownName)
}

func TestParseFrequency(t *testing.T) {
	f, err := ParseFrequency("639000")
	require.NoError(t, err)
	assert.Equal(t, uint64(639000), f)

	f, err = ParseFrequency("0x10")
	require.NoError(t, err)
	assert.Equal(t, uint64(16), f)

	_, err = ParseFrequency("639MHz")
	assert.ErrorIs(t, err, ErrInvalidFrequency)
	_, err = ParseFrequency("-5")
	assert.ErrorIs(t, err, ErrInvalidFrequency)
}
