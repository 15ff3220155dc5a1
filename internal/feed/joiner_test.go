package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"oracleScope/internal/model"
)

func TestJoinerOfferRejectsRegression(t *testing.T) {
	j := NewJoiner(nil)
	require.NoError(t, j.Offer(model.VenueSample{VenueID: "a", Timestamp: 10, Price: 1}))
	require.NoError(t, j.Offer(model.VenueSample{VenueID: "a", Timestamp: 10, Price: 2}))

	err := j.Offer(model.VenueSample{VenueID: "a", Timestamp: 9, Price: 3})
	require.True(t, errors.Is(err, model.ErrInvalidInput))

	err = j.Offer(model.VenueSample{Timestamp: 11})
	require.True(t, errors.Is(err, model.ErrInvalidInput))

	tick := j.Emit(10)
	s, ok := tick.Sample("a")
	require.True(t, ok)
	require.Equal(t, 2.0, s.Price)
}

func TestJoinerEmitOrdersAndSkipsFuture(t *testing.T) {
	j := NewJoiner(nil)
	require.NoError(t, j.Offer(model.VenueSample{VenueID: "zeta", Timestamp: 5, Price: 1}))
	require.NoError(t, j.Offer(model.VenueSample{VenueID: "alpha", Timestamp: 6, Price: 1}))
	require.NoError(t, j.Offer(model.VenueSample{VenueID: "mid", Timestamp: 50, Price: 1}))

	tick := j.Emit(10)
	require.Equal(t, int64(10), tick.Timestamp)
	require.Len(t, tick.Samples, 2)
	require.Equal(t, "alpha", tick.Samples[0].VenueID)
	require.Equal(t, "zeta", tick.Samples[1].VenueID)

	require.Len(t, j.Emit(50).Samples, 3)
}

func TestJoinerConcurrentOffers(t *testing.T) {
	j := NewJoiner(nil)
	var wg sync.WaitGroup
	for v := 0; v < 8; v++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			for ts := int64(1); ts <= 100; ts++ {
				_ = j.Offer(model.VenueSample{VenueID: fmt.Sprintf("v%d", v), Timestamp: ts, Price: 1})
				j.Emit(ts)
			}
		}(v)
	}
	wg.Wait()

	tick := j.Emit(100)
	require.Len(t, tick.Samples, 8)
	for _, s := range tick.Samples {
		require.Equal(t, int64(100), s.Timestamp)
	}
}

func TestJoinerRunFlushesOnClose(t *testing.T) {
	j := NewJoiner(nil)
	var clock atomic.Int64
	j.Now = func() int64 { return clock.Add(1) + 100 }

	samples := make(chan model.VenueSample)
	var ticks []model.CrossVenueTick
	done := make(chan error, 1)
	go func() {
		done <- j.Run(context.Background(), samples, time.Hour, func(tick model.CrossVenueTick) error {
			ticks = append(ticks, tick)
			return nil
		})
	}()

	samples <- model.VenueSample{VenueID: "a", Timestamp: 1, Price: 10}
	samples <- model.VenueSample{VenueID: "b", Timestamp: 2, Price: 11}
	samples <- model.VenueSample{VenueID: "a", Timestamp: 0, Price: 99}
	close(samples)

	require.NoError(t, <-done)
	require.Len(t, ticks, 1)
	require.Len(t, ticks[0].Samples, 2)
	a, _ := ticks[0].Sample("a")
	require.Equal(t, 10.0, a.Price)
}

func TestJoinerRunEmitsOnCadence(t *testing.T) {
	j := NewJoiner(nil)
	require.NoError(t, j.Offer(model.VenueSample{VenueID: "a", Timestamp: 0, Price: 1}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var emitted atomic.Int32
	err := j.Run(ctx, make(chan model.VenueSample), time.Millisecond, func(model.CrossVenueTick) error {
		if emitted.Add(1) == 3 {
			cancel()
		}
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.GreaterOrEqual(t, emitted.Load(), int32(3))
}

func TestJoinerRunStopsOnEmitError(t *testing.T) {
	j := NewJoiner(nil)
	sentinel := errors.New("sink down")
	err := j.Run(context.Background(), make(chan model.VenueSample), time.Millisecond, func(model.CrossVenueTick) error {
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)
}

func TestJoinSamples(t *testing.T) {
	ticks, err := JoinSamples([]model.VenueSample{
		{VenueID: "pool", Timestamp: 20, Price: 3},
		{VenueID: "pool", Timestamp: 10, Price: 1},
		{VenueID: "cex", Timestamp: 10, Price: 2},
		{VenueID: "pool", Timestamp: 20, Price: 4},
	})
	require.NoError(t, err)
	require.Len(t, ticks, 2)

	require.Equal(t, int64(10), ticks[0].Timestamp)
	require.Len(t, ticks[0].Samples, 2)

	require.Equal(t, int64(20), ticks[1].Timestamp)
	pool, ok := ticks[1].Sample("pool")
	require.True(t, ok)
	require.Equal(t, 4.0, pool.Price)
	cex, ok := ticks[1].Sample("cex")
	require.True(t, ok)
	require.Equal(t, int64(10), cex.Timestamp)
}
