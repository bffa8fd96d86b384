package engine

import (
	"context"

	dtchannel "github.com/dedis/debugtools/channel"
	"github.com/sbaloglu/proverif-codes/trace"
)

// watchBufferSize is how many step events an observer can lag behind
// before the oldest ones expire.
const watchBufferSize = 200

// StepEvent describes one executed schedule step. Instance is -1 when the
// step is not bound to an instance; Emitted is the event occurrence the
// step produced, if any.
type StepEvent struct {
	Clock    uint64
	Instance int
	Action   string
	Emitted  *trace.Occurrence
}

// Watch returns a channel of step events, closed when the context is done.
// A slow reader loses the oldest events instead of blocking the session.
func (s *Session) Watch(ctx context.Context) <-chan StepEvent {
	obs := &stepObserver{buffer: dtchannel.WithExpiration[StepEvent](watchBufferSize)}

	s.watcher.Add(obs)

	out := make(chan StepEvent)

	go func() {
		defer close(out)

		for {
			evt, err := obs.buffer.NonBlockingReceiveWithContext(ctx)
			if err != nil {
				s.watcher.Remove(obs)
				return
			}

			select {
			case out <- evt:
			case <-ctx.Done():
				s.watcher.Remove(obs)
				return
			}
		}
	}()

	return out
}

// stepObserver buffers the notifications of a session.
//
// - implements core.Observer
type stepObserver struct {
	buffer dtchannel.Timed[StepEvent]
}

// NotifyCallback implements core.Observer.
func (obs *stepObserver) NotifyCallback(evt StepEvent) {
	obs.buffer.Send(evt)
}
