package status

import (
	"github.com/mpapenbr/pylonrace-go/pkg/model"
	"github.com/mpapenbr/pylonrace-go/pkg/utils/broadcast"
)

// Broadcast fans status messages out to in-process subscribers.
type Broadcast struct {
	source chan model.StatusMessage
	server broadcast.BroadcastServer[model.StatusMessage]
}

func NewBroadcast(bufferSize int) *Broadcast {
	source := make(chan model.StatusMessage, bufferSize)
	return &Broadcast{
		source: source,
		server: broadcast.NewBroadcastServer("status", "status", source),
	}
}

// Publish drops the message if the buffer is full.
func (b *Broadcast) Publish(msg model.StatusMessage) error {
	select {
	case b.source <- msg:
		return nil
	default:
		return broadcast.ErrBufferFull
	}
}

func (b *Broadcast) Subscribe() <-chan model.StatusMessage {
	return b.server.Subscribe()
}

func (b *Broadcast) CancelSubscription(ch <-chan model.StatusMessage) {
	b.server.CancelSubscription(ch)
}

func (b *Broadcast) Close() {
	b.server.Close()
}
