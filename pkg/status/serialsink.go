package status

import (
	"fmt"
	"io"
	"strings"

	"go.bug.st/serial"

	"github.com/mpapenbr/pylonrace-go/pkg/model"
)

// WriterSink writes one line per message, e.g. to a telemetry radio.
type WriterSink struct {
	w           io.Writer
	minPriority model.Priority
}

// NewWriterSink only forwards messages with at least minPriority.
func NewWriterSink(w io.Writer, minPriority model.Priority) *WriterSink {
	return &WriterSink{w: w, minPriority: minPriority}
}

func (s *WriterSink) Publish(msg model.StatusMessage) error {
	if msg.Priority < s.minPriority {
		return nil
	}
	_, err := fmt.Fprintf(s.w, "%s [%s] %s\n",
		msg.Time.Format("15:04:05.000"), strings.ToUpper(msg.Priority.String()), msg.Text)
	return err
}

// OpenSerial opens a serial port with 8N1 framing.
func OpenSerial(port string, baudRate int) (serial.Port, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(port, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", port, err)
	}
	return p, nil
}
