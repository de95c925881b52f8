package router

import (
	"testing"

	"github.com/pathvector/overlayd/m"
	"github.com/pathvector/overlayd/mgr"
)

func TestPrintTableDoesNotPanicOnEmptyAndPopulatedTable(t *testing.T) {
	t.Parallel()

	fwd := newFakeForwarder()
	r := New(testConfig(), 1, false, fwd)
	w := &mgr.WorkerCtx{Manager: r.mgr}

	r.printTable(w)

	rt := mkRoute(0.1, 5, []m.Address{r.myIP, m.MustParseAddress("1.1.0.9")}, 0, true)
	r.routes.set(&rt)
	r.printTable(w)
}
