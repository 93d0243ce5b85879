package scan

import (
	"flag"
	"fmt"
	"os"

	"github.com/bgmdwldr/shapewatch/go/cmd"
	"github.com/bgmdwldr/shapewatch/go/inspect"
	"github.com/bgmdwldr/shapewatch/go/mem"
	"github.com/bgmdwldr/shapewatch/go/models"
	"github.com/bgmdwldr/shapewatch/go/models/trace"
	"github.com/bgmdwldr/shapewatch/go/qjs"
)

func Main(args []string) {
	fs := flag.NewFlagSet("args", flag.ExitOnError)
	snapFlag := fs.String("snapshot", "", "snapshot file to scan")
	logFlag := fs.String("log", "", "write corruption reports to a session log")
	limitFlag := fs.Int("limit", 0, "stop after this many objects (0 = no limit)")
	allFlag := fs.Bool("all", false, "print healthy objects too")
	minFlag := fs.Uint64("min", 0, "override minimum valid pointer")
	maxFlag := fs.Uint64("max", 0, "override maximum valid pointer")
	fs.Usage = func() {
		fmt.Printf("Usage: %s -snapshot <file> [options]\n", args[0])
		fs.PrintDefaults()
	}
	fs.Parse(args[1:])
	if *snapFlag == "" {
		fs.Usage()
		os.Exit(1)
	}

	snap, err := mem.LoadSnapshot(*snapFlag)
	if err != nil {
		cmd.Die(err)
	}

	out, color := cmd.Stdout()
	conf := &models.Config{
		Color:   color,
		Verbose: *allFlag,
		MinPtr:  *minFlag,
		MaxPtr:  *maxFlag,
	}
	ins := inspect.New(snap.Sim, conf)
	detector := ins.Detector

	var log *trace.Writer
	if *logFlag != "" {
		f, err := os.Create(*logFlag)
		if err != nil {
			cmd.Die(err)
		}
		if log, err = trace.NewWriter(f, snap.Pid); err != nil {
			cmd.Die(err)
		}
		defer log.Close()
	}

	scanned, corrupt := 0, 0
	inspect.ScanObjects(snap.Sim, func(o *qjs.Object) bool {
		scanned++
		if r := detector.CheckObject(o); r != nil {
			corrupt++
			inspect.PrintReport(out, r, conf.Color)
			if log != nil {
				log.Report(r)
			}
		} else {
			detector.RegisterGood(o.Shape)
			if conf.Verbose {
				inspect.PrintOk(out, o, conf.Color)
			}
		}
		return *limitFlag == 0 || scanned < *limitFlag
	})
	fmt.Fprintf(out, "scanned %d objects, %d corrupt\n", scanned, corrupt)
}

func init() {
	cmd.Register("scan", "scan a snapshot for corrupted objects", Main)
}
