package inspect

import (
	"fmt"
	"io"

	"github.com/mgutz/ansi"

	"github.com/bgmdwldr/shapewatch/go/qjs"
)

var (
	colCritical = ansi.ColorCode("red+b")
	colWarning  = ansi.ColorCode("yellow+b")
	colAddr     = ansi.ColorCode("cyan")
	colOk       = ansi.ColorCode("green")
)

// PrintReport writes one report line, colored when enabled.
func PrintReport(w io.Writer, r *qjs.Report, color bool) {
	if r == nil {
		return
	}
	sev := string(r.Severity)
	addr := fmt.Sprintf("0x%x", r.ObjectAddr)
	val := fmt.Sprintf("0x%x", r.Value)
	if color {
		c := colWarning
		if r.Severity == qjs.SevCritical {
			c = colCritical
		}
		sev = c + sev + ansi.Reset
		addr = colAddr + addr + ansi.Reset
		val = colAddr + val + ansi.Reset
	}
	fmt.Fprintf(w, "%s %s obj=%s val=%s: %s\n", sev, r.Kind, addr, val, r.Desc)
	if r.Recommendation != "" {
		fmt.Fprintf(w, "  -> %s\n", r.Recommendation)
	}
}

// PrintOk writes a "nothing wrong" line for a scanned object.
func PrintOk(w io.Writer, o *qjs.Object, color bool) {
	status := "ok"
	if color {
		status = colOk + status + ansi.Reset
	}
	fmt.Fprintf(w, "%s 0x%x class=%d shape=0x%x\n", status, o.Addr, o.ClassID, o.Shape)
}
