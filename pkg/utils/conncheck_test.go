package utils

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractFromDBURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"postgresql://user:pw@dbhost:5433/racelog", "dbhost:5433"},
		{"postgresql://user:pw@dbhost/racelog", "dbhost:5432"},
		{"postgres://dbhost/racelog?sslmode=disable", "dbhost:5432"},
		{"mysql://dbhost/racelog", ""},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractFromDBURL(tt.url))
		})
	}
}

func TestExtractFromNatsURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"nats://localhost:4223", "localhost:4223"},
		{"nats://gcs", "gcs:4222"},
		{"nats://u:p@gcs:4000,nats://backup:4000", "gcs:4000"},
		{"http://gcs", ""},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractFromNatsURL(tt.url))
		})
	}
}

func TestWaitForTCP(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	assert.NoError(t, WaitForTCP(context.Background(), l.Addr().String(), time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, WaitForTCP(ctx, "127.0.0.1:1", time.Second))
}
