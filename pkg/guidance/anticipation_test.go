package guidance

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mpapenbr/pylonrace-go/log"
)

func TestAdvanceThreshold(t *testing.T) {
	tests := []struct {
		name   string
		gs     float64
		bank   float64
		factor float64
		want   float64
	}{
		{"15 m/s at 45 deg", 15, 45, 1, 225 / 9.81},
		{"slow clamps to min", 5, 45, 1, MinAdvanceDistance},
		{"fast clamps to max", 40, 30, 1, MaxAdvanceDistance},
		{"factor scales", 15, 45, 1.5, 225 / 9.81 * 1.5},
		{"zero bank", 15, 0, 1, MaxAdvanceDistance},
		{"tiny bank", 15, 0.5, 1, MaxAdvanceDistance},
		{"negative bank", 15, -10, 1, MaxAdvanceDistance},
		{"nan bank", 15, math.NaN(), 1, MaxAdvanceDistance},
		{"zero speed", 0, 45, 1, MinAdvanceDistance},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, AdvanceThreshold(tt.gs, tt.bank, tt.factor), 1e-9)
		})
	}
}

func TestAdvanceThreshold_Bounds(t *testing.T) {
	for gs := 0.0; gs <= 60; gs += 0.5 {
		for bank := 0.58; bank < 90; bank += 0.37 {
			v := AdvanceThreshold(gs, bank, 1)
			assert.GreaterOrEqual(t, v, MinAdvanceDistance)
			assert.LessOrEqual(t, v, MaxAdvanceDistance)
		}
	}
	for bank := -5.0; bank <= 0.57; bank += 0.01 {
		assert.Equal(t, MaxAdvanceDistance, AdvanceThreshold(20, bank, 1))
	}
}

func TestAnticipator_WarnsOnce(t *testing.T) {
	buf := bytes.Buffer{}
	a := NewAnticipator(WithAnticipatorLogger(log.New(&buf, log.DebugLevel)))
	for i := 0; i < 10; i++ {
		assert.Equal(t, MaxAdvanceDistance, a.Threshold(15, 0))
	}
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("bank angle unusable")))
}
