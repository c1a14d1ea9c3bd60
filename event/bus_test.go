package event

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func recv(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case evt, ok := <-ch:
		require.True(t, ok, "channel closed")
		return evt
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
		return Event{}
	}
}

func assertEmpty(t *testing.T, ch <-chan Event) {
	t.Helper()
	select {
	case evt, ok := <-ch:
		if ok {
			t.Fatalf("unexpected event %+v", evt)
		}
	default:
	}
}

// --------------------------------------------------------------------------
// Register / Emit
// --------------------------------------------------------------------------

func TestBus_RegisterAllKinds(t *testing.T) {
	b := NewBus(nil, nil)
	defer b.Close()

	_, ch := b.Register()
	b.Emit(2, KindNewOutput, NewOutputData{Address: "rms1..."})
	b.EmitProgress(2, Progress{Step: StepBroadcasting})

	evt := recv(t, ch)
	assert.Equal(t, uint32(2), evt.AccountIndex)
	assert.Equal(t, KindNewOutput, evt.Kind)
	assert.False(t, evt.Timestamp.IsZero())
	assert.Equal(t, "rms1...", evt.Data.(NewOutputData).Address)

	evt = recv(t, ch)
	assert.Equal(t, KindTransactionProgress, evt.Kind)
	assert.Equal(t, StepBroadcasting, evt.Data.(Progress).Step)
}

func TestBus_Filter(t *testing.T) {
	b := NewBus(nil, nil)
	defer b.Close()

	_, progress := b.Register(KindTransactionProgress)
	_, outputs := b.Register(KindNewOutput, KindSpentOutput)

	b.Emit(0, KindSpentOutput, SpentOutputData{})
	b.EmitProgress(0, Progress{Step: StepSelectingInputs})
	b.Emit(0, KindTransactionInclusion, TransactionInclusionData{})

	assert.Equal(t, KindTransactionProgress, recv(t, progress).Kind)
	assertEmpty(t, progress)
	assert.Equal(t, KindSpentOutput, recv(t, outputs).Kind)
	assertEmpty(t, outputs)
}

func TestBus_Order(t *testing.T) {
	b := NewBus(nil, nil)
	defer b.Close()

	_, ch := b.Register(KindTransactionProgress)
	steps := []ProgressStep{
		StepSelectingInputs,
		StepGeneratingRemainderDepositAddress,
		StepSigningTransaction,
		StepPerformingPow,
		StepBroadcasting,
	}
	for _, s := range steps {
		b.EmitProgress(1, Progress{Step: s})
	}
	for _, s := range steps {
		assert.Equal(t, s, recv(t, ch).Data.(Progress).Step)
	}
}

func TestBus_NoListenersDrops(t *testing.T) {
	b := NewBus(nil, nil)
	defer b.Close()
	assert.NotPanics(t, func() { b.Emit(0, KindNewOutput, nil) })
}

func TestBus_NilBus(t *testing.T) {
	var b *Bus
	assert.NotPanics(t, func() {
		b.Emit(0, KindNewOutput, nil)
		b.EmitProgress(0, Progress{Step: StepBroadcasting})
	})
}

// --------------------------------------------------------------------------
// Unregister / Close
// --------------------------------------------------------------------------

func TestBus_Unregister(t *testing.T) {
	b := NewBus(nil, nil)
	defer b.Close()

	id, ch := b.Register()
	assert.Equal(t, 1, b.Len())
	b.Unregister(id)
	assert.Equal(t, 0, b.Len())

	_, ok := <-ch
	assert.False(t, ok)

	// Unknown and repeated ids are ignored.
	b.Unregister(id)
	b.Emit(0, KindNewOutput, nil)
}

func TestBus_Close(t *testing.T) {
	b := NewBus(nil, nil)
	_, ch := b.Register()
	b.Close()

	_, ok := <-ch
	assert.False(t, ok)

	b.Emit(0, KindNewOutput, nil)
	_, late := b.Register()
	_, ok = <-late
	assert.False(t, ok)
	b.Close()
}

func TestBus_RegisterFunc(t *testing.T) {
	b := NewBus(nil, nil)

	var (
		mu  sync.Mutex
		got []Kind
	)
	done := make(chan struct{})
	b.RegisterFunc(func(evt Event) {
		mu.Lock()
		got = append(got, evt.Kind)
		n := len(got)
		mu.Unlock()
		if n == 2 {
			close(done)
		}
	}, KindNewOutput, KindSpentOutput)

	b.Emit(0, KindNewOutput, nil)
	b.Emit(0, KindTransactionInclusion, nil)
	b.Emit(0, KindSpentOutput, nil)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler not called")
	}
	b.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Kind{KindNewOutput, KindSpentOutput}, got)
}

func TestBus_UnregisterStopsHandler(t *testing.T) {
	b := NewBus(nil, nil)
	id := b.RegisterFunc(func(Event) {})
	b.Unregister(id)
	b.Close()
}

// --------------------------------------------------------------------------
// Back-pressure and metrics
// --------------------------------------------------------------------------

func TestBus_FullQueueDropsWithoutBlocking(t *testing.T) {
	reg := prometheus.NewRegistry()
	b := NewBus(reg, nil)
	defer b.Close()

	_, ch := b.Register(KindNewOutput)
	done := make(chan struct{})
	go func() {
		for range ListenerQueueSize + 5 {
			b.Emit(0, KindNewOutput, nil)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a full listener")
	}

	assert.Len(t, ch, ListenerQueueSize)
	assert.InDelta(t, ListenerQueueSize+5, testutil.ToFloat64(b.metrics.eventsTotal.WithLabelValues(string(KindNewOutput))), 0)
	assert.InDelta(t, 5, testutil.ToFloat64(b.metrics.droppedTotal.WithLabelValues(string(KindNewOutput))), 0)
}

func TestBus_ListenerGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	b := NewBus(reg, nil)

	id, _ := b.Register()
	b.Register(KindNewOutput)
	assert.InDelta(t, 2, testutil.ToFloat64(b.metrics.listeners), 0)

	b.Unregister(id)
	assert.InDelta(t, 1, testutil.ToFloat64(b.metrics.listeners), 0)

	b.Close()
	assert.InDelta(t, 0, testutil.ToFloat64(b.metrics.listeners), 0)
}

func TestBus_ConcurrentEmitAndUnregister(t *testing.T) {
	b := NewBus(nil, nil)
	defer b.Close()

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, ch := b.Register()
			for range 50 {
				b.Emit(uint32(i), KindNewOutput, nil)
			}
			b.Unregister(id)
			for range ch {
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, b.Len())
}
