package substrate

import (
	"math/rand/v2"
	"time"

	"github.com/pathvector/overlayd/mgr"
)

// delayLoop perturbs each link's emulated delay once per second, giving the
// network a gently drifting latency profile instead of a fixed one. The
// sign is a stateful perturbation only; the scheduler always uses the
// absolute value for release timing.
func (s *Substrate) delayLoop(w *mgr.WorkerCtx) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-w.Done():
			return nil
		case <-ticker.C:
		}

		for i := range s.delays {
			cubed := float64(i+1) * float64(i+1) * float64(i+1)
			s.perturbDelay(i, 0.002*cubed, rand.Float64())
		}
	}
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
