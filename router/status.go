package router

import (
	"strings"
	"text/template"

	"github.com/leekchan/gtf"

	"github.com/pathvector/overlayd/m"
	"github.com/pathvector/overlayd/mgr"
)

// statusRow is one line of the debug routing-table dump.
type statusRow struct {
	Prefix    string
	Cost      float64
	Path      string
	OutLink   int
	Valid     bool
	Timestamp float64
}

const routingTableTemplate = `{{range .}}{{printf "%-18s" .Prefix}} cost={{floatformat .Cost 3}} link={{.OutLink}} valid={{.Valid}} path={{.Path}} ts={{floatformat .Timestamp 3}}
{{end}}`

var tableTmpl = template.Must(
	template.New("routingTable").Funcs(gtf.GtfFuncMap).Parse(routingTableTemplate),
)

// printTable renders the routing table for debug tracing, using the same
// gtf template helpers the rest of the codebase uses for operator-facing
// text.
func (r *Router) printTable(w *mgr.WorkerCtx) {
	var rows []statusRow
	r.rangeRoutes(func(rt *m.Route) {
		rows = append(rows, statusRow{
			Prefix:    rt.Pfx.String(),
			Cost:      rt.Cost,
			Path:      m.FormatPath(rt.Path),
			OutLink:   int(rt.OutLink),
			Valid:     rt.Valid,
			Timestamp: rt.Timestamp,
		})
	})

	var sb strings.Builder
	if err := tableTmpl.Execute(&sb, rows); err != nil {
		w.Warn("failed to render routing table", "err", err)
		return
	}
	w.Debug("routing table\n" + sb.String())
}
