package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
)

type command struct {
	name, desc string
	main       func(args []string)
}

var commands map[string]*command
var order []string
var pad int

func init() { commands = make(map[string]*command) }

func Register(name, desc string, main func(args []string)) {
	if len(name) > pad {
		pad = len(name)
	}
	commands[name] = &command{name, desc, main}
	order = append(order, name)
}

func Main() {
	usage := func() {
		fmt.Fprintln(os.Stderr, "Commands:")
		fstr := fmt.Sprintf("%%-%ds | %%s\n", pad)
		for _, name := range order {
			cmd := commands[name]
			fmt.Fprintf(os.Stderr, fstr, cmd.name, cmd.desc)
		}
		fmt.Fprintf(os.Stderr, "\nExample: %s scan -snapshot heap.swsn\n\n", os.Args[0])
	}
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	cmd, ok := commands[os.Args[1]]
	if !ok {
		fmt.Fprintf(os.Stderr, "Command '%s' not found.\n\n", os.Args[1])
		usage()
		os.Exit(1)
	}
	args := append([]string{strings.Join(os.Args[:2], " ")}, os.Args[2:]...)
	cmd.main(args)
}

// Stdout returns a color-safe stdout and whether color should be used.
func Stdout() (io.Writer, bool) {
	if isatty.IsTerminal(os.Stdout.Fd()) {
		return colorable.NewColorableStdout(), true
	}
	return os.Stdout, false
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// PrintError prints err and a stack trace when one was attached.
func PrintError(err error) {
	fmt.Fprintf(os.Stderr, "%s\n", strings.Repeat("-", 40))
	fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	if st, ok := err.(stackTracer); ok {
		for _, f := range st.StackTrace() {
			fmt.Fprintf(os.Stderr, "  %n (%s:%d)\n", f, f, f)
		}
	}
}

// Die prints the error and exits.
func Die(err error) {
	PrintError(err)
	os.Exit(1)
}
