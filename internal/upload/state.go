package upload

import (
	"sync/atomic"

	"github.com/marmos91/edgelogd/internal/metrics"
	"github.com/marmos91/edgelogd/internal/model"
)

// connStateOrdinal gives each ConnState a stable number for the gauge; the
// exact values are arbitrary, only monotonic distinctness matters.
var connStateOrdinal = map[model.ConnState]float64{
	model.ConnDisconnected:  0,
	model.ConnConnecting:    1,
	model.ConnConnected:     2,
	model.ConnDisconnecting: 3,
	model.ConnError:         4,
	model.ConnDisabled:      5,
}

// stateBox gives atomic read/write access to the connection state so
// connection_state() can be read from any goroutine without locking.
type stateBox struct {
	v atomic.Value
}

func newStateBox(initial model.ConnState) *stateBox {
	b := &stateBox{}
	b.v.Store(initial)
	return b
}

func (b *stateBox) Get() model.ConnState {
	return b.v.Load().(model.ConnState)
}

func (b *stateBox) Set(s model.ConnState) {
	b.v.Store(s)
	metrics.SetConnectionState(connStateOrdinal[s])
}
