package event

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBusDeliversNextTick(t *testing.T) {
	b := NewBus()
	var got []PathComplete
	Subscribe(b, func(ev PathComplete) { got = append(got, ev) })

	Emit(b, PathComplete{Entity: 1})
	assert.Equal(t, 0, b.DispatchAll(), "nothing readable before swap")

	b.SwapBuffers()
	assert.Equal(t, 1, b.DispatchAll())
	assert.Len(t, got, 1)

	b.SwapBuffers()
	assert.Equal(t, 0, b.DispatchAll(), "events are delivered once")
}

func TestBusHandlerEmitLandsNextTick(t *testing.T) {
	b := NewBus()
	var removed int
	Subscribe(b, func(ev PathComplete) { Emit(b, EntityRemoved{Entity: ev.Entity}) })
	Subscribe(b, func(EntityRemoved) { removed++ })

	Emit(b, PathComplete{Entity: 7})
	b.SwapBuffers()
	b.DispatchAll()
	assert.Equal(t, 0, removed)

	b.SwapBuffers()
	b.DispatchAll()
	assert.Equal(t, 1, removed)
}

func TestBusConcurrentEmit(t *testing.T) {
	b := NewBus()
	var count int
	Subscribe(b, func(PositionCorrected) { count++ })

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				Emit(b, PositionCorrected{Reason: "SpeedHack"})
			}
		}()
	}
	wg.Wait()

	b.SwapBuffers()
	assert.Equal(t, 800, b.DispatchAll())
	assert.Equal(t, 800, count)
}
