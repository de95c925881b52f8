// Package trafficgen is the minimal ping/echo traffic source spec.md treats
// as an external collaborator: it only ever calls Send/Receive/Ready/
// Incoming, never reaching into the Forwarder, Router, or Substrate
// internals directly.
package trafficgen

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/brianvoe/gofakeit"
)

// Sender is the subset of overlayd.Instance the generator drives.
type Sender interface {
	Send(payload []byte, dest string) error
	Receive() (payload []byte, src string)
	Ready() bool
}

// Config controls one generator run.
type Config struct {
	// Delta is the inter-packet interval of the test source.
	Delta time.Duration
	// RunLength is the total generation duration.
	RunLength time.Duration
	// Destinations is the pool of overlay addresses pinged round-robin. If
	// empty, Run sends nothing and only drains arrivals.
	Destinations []string
}

// Run sends a small ping payload to a rotating destination every Delta,
// for RunLength, while draining and logging whatever arrives in the
// meantime. It returns once RunLength has elapsed.
func Run(s Sender, cfg Config, logger *slog.Logger) {
	if len(cfg.Destinations) == 0 {
		drainFor(s, cfg.RunLength, logger)
		return
	}

	deadline := time.Now().Add(cfg.RunLength)
	ticker := time.NewTicker(cfg.Delta)
	defer ticker.Stop()

	seq := 0
	for time.Now().Before(deadline) {
		drainReady(s, logger)

		dest := cfg.Destinations[seq%len(cfg.Destinations)]
		payload := fmt.Appendf(nil, "ping %d %s", seq, gofakeit.Word())
		if err := s.Send(payload, dest); err != nil {
			logger.Warn("trafficgen: send failed", "dest", dest, "err", err)
		}
		seq++

		<-ticker.C
	}
}

func drainFor(s Sender, d time.Duration, logger *slog.Logger) {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		drainReady(s, logger)
		time.Sleep(10 * time.Millisecond)
	}
}

func drainReady(s Sender, logger *slog.Logger) {
	for s.Ready() {
		payload, src := s.Receive()
		logger.Info("trafficgen: received", "src", src, "payload", string(payload))
	}
}
