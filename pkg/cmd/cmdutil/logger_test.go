package cmdutil

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mpapenbr/pylonrace-go/log"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		def  log.Level
		want log.Level
	}{
		{"debug", log.InfoLevel, log.DebugLevel},
		{"warn", log.InfoLevel, log.WarnLevel},
		{"", log.WarnLevel, log.InfoLevel}, // zap treats empty as info
		{"chatty", log.InfoLevel, log.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLogLevel(tt.in, tt.def))
		})
	}
}
