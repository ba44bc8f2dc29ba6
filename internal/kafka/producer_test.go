package kafka

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func TestProducerCloseAfterContextCancel(t *testing.T) {
	// Shutdown runs both paths: the Start context gets canceled and Close is
	// called explicitly. The inbox must only be closed once.
	p := NewProducer([]string{"127.0.0.1:1"}, "events", 4, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)

	cancel()
	p.Close()
	p.WaitClosed()
}

func TestProducerCloseFlushesAndExits(t *testing.T) {
	p := NewProducer([]string{"127.0.0.1:1"}, "events", 4, zap.NewNop())
	p.Start(context.Background())
	p.Close()
	p.WaitClosed()
}
