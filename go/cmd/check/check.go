package check

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/bgmdwldr/shapewatch/go/cmd"
	"github.com/bgmdwldr/shapewatch/go/inspect"
	"github.com/bgmdwldr/shapewatch/go/mem"
	"github.com/bgmdwldr/shapewatch/go/models"
)

func Main(args []string) {
	fs := flag.NewFlagSet("args", flag.ExitOnError)
	snapFlag := fs.String("snapshot", "", "inspect inside a snapshot file")
	pidFlag := fs.Int("pid", 0, "inspect a live process (linux)")
	fs.Usage = func() {
		fmt.Printf("Usage: %s [-snapshot <file> | -pid <pid>] <addr>\n", args[0])
		fs.PrintDefaults()
	}
	fs.Parse(args[1:])
	if fs.NArg() == 0 || (*snapFlag == "" && *pidFlag == 0) {
		fs.Usage()
		os.Exit(1)
	}
	addr, err := strconv.ParseUint(fs.Arg(0), 0, 64)
	if err != nil {
		cmd.Die(err)
	}

	var io models.MemIO
	if *snapFlag != "" {
		snap, err := mem.LoadSnapshot(*snapFlag)
		if err != nil {
			cmd.Die(err)
		}
		io = snap.Sim
	} else {
		io = mem.NewProcessIO(*pidFlag)
	}

	ins := inspect.New(io, nil)
	dump, err := ins.Dump(addr)
	if err != nil {
		cmd.Die(err)
	}
	fmt.Println(dump)
}

func init() {
	cmd.Register("check", "inspect one object address", Main)
}
