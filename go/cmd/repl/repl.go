package repl

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/shibukawa/configdir"

	"github.com/bgmdwldr/shapewatch/go/cmd"
	"github.com/bgmdwldr/shapewatch/go/inspect"
	"github.com/bgmdwldr/shapewatch/go/mem"
	"github.com/bgmdwldr/shapewatch/go/models"
	"github.com/bgmdwldr/shapewatch/go/qjs"
)

type repl struct {
	rl    *readline.Instance
	snap  *mem.Snapshot
	ins   *inspect.Inspector
	color bool
}

func historyPath() string {
	configDirs := configdir.New("shapewatch", "repl")
	cacheDir := configDirs.QueryCacheFolder()
	if err := cacheDir.MkdirAll(); err != nil {
		return ""
	}
	return filepath.Join(cacheDir.Path, "history")
}

func parseAddr(s string) (uint64, error) {
	return strconv.ParseUint(s, 0, 64)
}

func (r *repl) cmdObj(args []string) error {
	addr, err := parseAddr(args[0])
	if err != nil {
		return err
	}
	res, err := r.ins.Inspect(addr, false)
	if err != nil {
		return err
	}
	fmt.Fprintln(r.rl.Stderr(), res.Summary())
	return nil
}

func (r *repl) cmdShape(args []string) error {
	addr, err := parseAddr(args[0])
	if err != nil {
		return err
	}
	shape, err := qjs.ReadShape(r.snap.Sim, addr)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.rl.Stderr(), "%s hashed=%v mask=0x%x deleted=%d next=0x%x proto=0x%x valid=%v\n",
		shape, shape.Hashed, shape.PropHashMask, shape.DeletedPropCount,
		shape.ShapeHashNext, shape.Proto, shape.Valid())
	return nil
}

func (r *repl) cmdValue(args []string) error {
	addr, err := parseAddr(args[0])
	if err != nil {
		return err
	}
	val, err := qjs.ReadValue(r.snap.Sim, addr)
	if err != nil {
		return err
	}
	fmt.Fprintln(r.rl.Stderr(), val)
	return nil
}

func (r *repl) cmdDump(args []string) error {
	addr, err := parseAddr(args[0])
	if err != nil {
		return err
	}
	dump, err := r.ins.Dump(addr)
	if err != nil {
		return err
	}
	fmt.Fprintln(r.rl.Stderr(), dump)
	return nil
}

func (r *repl) cmdScan(args []string) error {
	limit := 0
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return err
		}
		limit = n
	}
	scanned, corrupt := 0, 0
	inspect.ScanObjects(r.snap.Sim, func(o *qjs.Object) bool {
		scanned++
		if rep := r.ins.Detector.CheckObject(o); rep != nil {
			corrupt++
			inspect.PrintReport(r.rl.Stderr(), rep, r.color)
		}
		return limit == 0 || scanned < limit
	})
	fmt.Fprintf(r.rl.Stderr(), "scanned %d objects, %d corrupt\n", scanned, corrupt)
	return nil
}

func (r *repl) cmdRefs(args []string) error {
	shape, err := parseAddr(args[0])
	if err != nil {
		return err
	}
	addrs := r.ins.FindShapeRefs(r.snap.Sim, shape, 100)
	for _, a := range addrs {
		fmt.Fprintf(r.rl.Stderr(), "0x%x\n", a)
	}
	fmt.Fprintf(r.rl.Stderr(), "%d objects reference shape 0x%x\n", len(addrs), shape)
	return nil
}

func (r *repl) cmdFreed(args []string) error {
	addr, err := parseAddr(args[0])
	if err != nil {
		return err
	}
	r.ins.Detector.RegisterFreed(addr)
	fmt.Fprintf(r.rl.Stderr(), "0x%x marked freed\n", addr)
	return nil
}

func (r *repl) cmdHex(args []string) error {
	addr, err := parseAddr(args[0])
	if err != nil {
		return err
	}
	size := 64
	if len(args) > 1 {
		if size, err = strconv.Atoi(args[1]); err != nil {
			return err
		}
	}
	buf := make([]byte, size)
	if err := r.snap.Sim.MemReadInto(buf, addr); err != nil {
		return err
	}
	for _, line := range models.HexDump(addr, buf, 64) {
		fmt.Fprintln(r.rl.Stderr(), line)
	}
	return nil
}

// cmdStr reads up to len bytes at addr and prints them as an escaped
// string, stopping at the first NUL.
func (r *repl) cmdStr(args []string) error {
	addr, err := parseAddr(args[0])
	if err != nil {
		return err
	}
	size := r.ins.Config.Strsize
	if len(args) > 1 {
		if size, err = strconv.Atoi(args[1]); err != nil {
			return err
		}
	}
	buf := make([]byte, size)
	if err := r.snap.Sim.MemReadInto(buf, addr); err != nil {
		return err
	}
	if i := bytes.IndexByte(buf, 0); i >= 0 {
		buf = buf[:i]
	}
	fmt.Fprintln(r.rl.Stderr(), models.Repr(buf, r.ins.Config.Strsize))
	return nil
}

func (r *repl) cmdStats(args []string) error {
	st := r.ins.Detector.Stats()
	fmt.Fprintf(r.rl.Stderr(), "freed=%d good=%d states=%d\n", st.FreedTracked, st.GoodTracked, st.StatesTracked)
	return nil
}

var helpText = `commands:
  obj <addr>         decode and classify an object header
  shape <addr>       decode a shape header
  value <addr>       decode a JSValue cell
  dump <addr>        full object dump with context
  scan [limit]       sweep the snapshot for corrupt objects
  refs <shape>       list objects referencing a shape
  freed <addr>       mark a shape address as freed
  hex <addr> [len]   hexdump memory
  str <addr> [len]   read a NUL-terminated string
  stats              detector statistics
  quit`

func (r *repl) dispatch(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	name, args := fields[0], fields[1:]
	needArg := map[string]bool{"obj": true, "shape": true, "value": true, "dump": true, "refs": true, "freed": true, "hex": true, "str": true}
	if needArg[name] && len(args) == 0 {
		return fmt.Errorf("%s: address required", name)
	}
	switch name {
	case "obj":
		return r.cmdObj(args)
	case "shape":
		return r.cmdShape(args)
	case "value":
		return r.cmdValue(args)
	case "dump":
		return r.cmdDump(args)
	case "scan":
		return r.cmdScan(args)
	case "refs":
		return r.cmdRefs(args)
	case "freed":
		return r.cmdFreed(args)
	case "hex":
		return r.cmdHex(args)
	case "str":
		return r.cmdStr(args)
	case "stats":
		return r.cmdStats(args)
	case "help":
		fmt.Fprintln(r.rl.Stderr(), helpText)
		return nil
	}
	return fmt.Errorf("unknown command %q (try help)", name)
}

func Main(args []string) {
	fs := flag.NewFlagSet("args", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Printf("Usage: %s <snapshot>\n", args[0])
		fs.PrintDefaults()
	}
	fs.Parse(args[1:])
	if fs.NArg() == 0 {
		fs.Usage()
		os.Exit(1)
	}

	snap, err := mem.LoadSnapshot(fs.Arg(0))
	if err != nil {
		cmd.Die(err)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "sw> ",
		InterruptPrompt: "\n",
		HistoryFile:     historyPath(),
	})
	if err != nil {
		cmd.Die(err)
	}
	defer rl.Close()

	_, color := cmd.Stdout()
	r := &repl{rl: rl, snap: snap, color: color}
	r.ins = inspect.New(snap.Sim, &models.Config{Color: color})
	r.ins.Tracker = qjs.NewTracker()

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		} else if err == io.EOF {
			break
		} else if err != nil {
			break
		}
		if strings.TrimSpace(line) == "quit" {
			break
		}
		if err := r.dispatch(line); err != nil {
			fmt.Fprintf(rl.Stderr(), "error: %s\n", err)
		}
	}
}

func init() {
	cmd.Register("repl", "interactive snapshot inspector", Main)
}
