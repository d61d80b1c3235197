package status

import (
	"encoding/json"
	"fmt"

	"github.com/mpapenbr/pylonrace-go/pkg/model"
)

// Publisher is satisfied by *nats.Conn.
type Publisher interface {
	Publish(subj string, data []byte) error
}

// NATSSink publishes JSON encoded messages on <prefix>.<priority>.
type NATSSink struct {
	pub    Publisher
	prefix string
}

func NewNATSSink(pub Publisher, prefix string) *NATSSink {
	return &NATSSink{pub: pub, prefix: prefix}
}

func (s *NATSSink) Subject(p model.Priority) string {
	return fmt.Sprintf("%s.%s", s.prefix, p)
}

func (s *NATSSink) Publish(msg model.StatusMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.pub.Publish(s.Subject(msg.Priority), data)
}
