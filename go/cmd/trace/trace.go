package tracecmd

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/bgmdwldr/shapewatch/go/cmd"
	"github.com/bgmdwldr/shapewatch/go/models/trace"
	"github.com/bgmdwldr/shapewatch/go/qjs"
)

func printJson(tf *trace.Reader) error {
	out, err := json.Marshal(&tf.Header)
	if err != nil {
		return errors.Wrap(err, "error printing header")
	}
	fmt.Printf("%s\n", out)
	for {
		op, err := tf.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return errors.Wrap(err, "error reading next event")
		}
		line := map[string]interface{}{"op": trace.OpName(op), "data": op}
		out, _ := json.Marshal(line)
		fmt.Printf("%s\n", out)
	}
	return nil
}

func stamp(nsec uint64) string {
	return time.Unix(0, int64(nsec)).Format("15:04:05.000")
}

func printPretty(tf *trace.Reader) error {
	fmt.Printf("session log v%d pid=%d\n", tf.Header.Version, tf.Header.Pid)
	for {
		op, err := tf.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return errors.Wrap(err, "error reading next event")
		}
		switch o := op.(type) {
		case *trace.OpShapeAlloc:
			fmt.Printf("%s shape alloc 0x%x props=%d\n", stamp(o.Nsec), o.Addr, o.PropSize)
		case *trace.OpShapeFree:
			fmt.Printf("%s shape free  0x%x\n", stamp(o.Nsec), o.Addr)
		case *trace.OpObjNew:
			fmt.Printf("%s obj new     0x%x class=%d shape=0x%x\n", stamp(o.Nsec), o.Addr, o.ClassID, o.Shape)
		case *trace.OpRefChange:
			fmt.Printf("%s ref change  0x%x 0x%x -> 0x%x\n", stamp(o.Nsec), o.Addr, o.OldRef, o.NewRef)
		case *trace.OpReport:
			fmt.Printf("%s REPORT      %s obj=0x%x val=0x%x: %s\n", stamp(o.Nsec), qjs.Kind(o.Kind), o.ObjectAddr, o.Value, o.Desc)
		case *trace.OpExit:
			fmt.Printf("end of session\n")
		}
	}
	return nil
}

func Main(args []string) {
	fs := flag.NewFlagSet("args", flag.ExitOnError)
	jsonFlag := fs.Bool("json", false, "output log as line-delimited JSON objects")
	prettyFlag := fs.Bool("pretty", false, "output log as human-readable console text")
	fs.Usage = func() {
		fmt.Printf("Usage: %s [options] <logfile>\n", args[0])
		fs.PrintDefaults()
	}
	fs.Parse(args[1:])
	if fs.NArg() == 0 || !(*jsonFlag || *prettyFlag) {
		fs.Usage()
		os.Exit(1)
	}

	f, err := os.Open(fs.Arg(0))
	if err != nil {
		cmd.Die(err)
	}
	tf, err := trace.NewReader(f)
	if err != nil {
		cmd.Die(err)
	}
	defer tf.Close()

	if *jsonFlag {
		err = printJson(tf)
	} else {
		err = printPretty(tf)
	}
	if err != nil {
		cmd.Die(err)
	}
}

func init() {
	cmd.Register("trace", "print a session log", Main)
}
