package events

import (
	"voxchat/internal/domain"
	"voxchat/internal/ports"
)

// Fanout forwards every event to each sink in order. Nil sinks are skipped.
type Fanout []ports.EventSink

func NewFanout(sinks ...ports.EventSink) Fanout {
	out := make(Fanout, 0, len(sinks))
	for _, sink := range sinks {
		if sink != nil {
			out = append(out, sink)
		}
	}
	return out
}

func (f Fanout) TurnStateChanged(state domain.TurnState, reason domain.StatusReason) {
	for _, sink := range f {
		sink.TurnStateChanged(state, reason)
	}
}

func (f Fanout) UserTranscript(text string) {
	for _, sink := range f {
		sink.UserTranscript(text)
	}
}

func (f Fanout) ExchangeCommitted(exchange domain.Exchange) {
	for _, sink := range f {
		sink.ExchangeCommitted(exchange)
	}
}

func (f Fanout) DocumentsChanged(set domain.DocumentSet) {
	for _, sink := range f {
		sink.DocumentsChanged(set)
	}
}

func (f Fanout) TurnError(code domain.ErrorCode, detail string) {
	for _, sink := range f {
		sink.TurnError(code, detail)
	}
}

var _ ports.EventSink = Fanout(nil)
