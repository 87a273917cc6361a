package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/panics"
)

// ErrBusy is returned by Submit while another turn is in flight.
var ErrBusy = errors.New("a request is already in progress")

// Processor runs one turn synchronously.
type Processor interface {
	ProcessRequest(ctx context.Context, req Request) Result
}

// Dispatcher runs turns off the caller's goroutine, one at a time.
type Dispatcher struct {
	proc   Processor
	logger zerolog.Logger
	busy   atomic.Bool
	wg     sync.WaitGroup
}

func NewDispatcher(proc Processor, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{proc: proc, logger: logger}
}

// Busy reports whether a turn is in flight.
func (d *Dispatcher) Busy() bool { return d.busy.Load() }

// Submit starts req in the background. The returned channel yields exactly one
// Result and is then closed. Busy is already false when the Result arrives.
func (d *Dispatcher) Submit(ctx context.Context, req Request) (<-chan Result, error) {
	if !d.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	out := make(chan Result, 1)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer close(out)

		var res Result
		var pc panics.Catcher
		pc.Try(func() { res = d.proc.ProcessRequest(ctx, req) })
		if r := pc.Recovered(); r != nil {
			d.logger.Error().Str("panic", fmt.Sprint(r.Value)).Str("stack", string(r.Stack)).Msg("request panicked")
			res = errorResult("", fmt.Errorf("internal error: %v", r.Value))
		}
		d.busy.Store(false)
		out <- res
	}()
	return out, nil
}

// Wait blocks until the in-flight turn, if any, has delivered its result.
func (d *Dispatcher) Wait() { d.wg.Wait() }
