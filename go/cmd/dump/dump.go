package dump

import (
	"flag"
	"fmt"
	"os"

	"github.com/bgmdwldr/shapewatch/go/cmd"
	"github.com/bgmdwldr/shapewatch/go/mem"
)

func Main(args []string) {
	fs := flag.NewFlagSet("args", flag.ExitOnError)
	pidFlag := fs.Int("pid", 0, "process to dump (linux)")
	outFlag := fs.String("out", "", "output snapshot file")
	verboseFlag := fs.Bool("v", false, "list dumped regions")
	fs.Usage = func() {
		fmt.Printf("Usage: %s -pid <pid> -out <file>\n", args[0])
		fs.PrintDefaults()
	}
	fs.Parse(args[1:])
	if *pidFlag == 0 || *outFlag == "" {
		fs.Usage()
		os.Exit(1)
	}

	if *verboseFlag {
		regions, err := mem.ReadMaps(*pidFlag)
		if err != nil {
			cmd.Die(err)
		}
		for _, region := range regions {
			fmt.Println(region)
		}
	}

	sim, err := mem.DumpProcess(*pidFlag)
	if err != nil {
		cmd.Die(err)
	}
	f, err := os.Create(*outFlag)
	if err != nil {
		cmd.Die(err)
	}
	if err := mem.WriteSnapshot(f, uint32(*pidFlag), sim); err != nil {
		cmd.Die(err)
	}
	total := uint64(0)
	segs := sim.Segments()
	for _, seg := range segs {
		total += seg.Size
	}
	fmt.Printf("dumped %d regions (%d bytes) from pid %d to %s\n", len(segs), total, *pidFlag, *outFlag)
}

func init() {
	cmd.Register("dump", "snapshot a live process", Main)
}
