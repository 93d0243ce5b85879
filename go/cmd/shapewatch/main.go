package main

import (
	"github.com/bgmdwldr/shapewatch/go/cmd"

	_ "github.com/bgmdwldr/shapewatch/go/cmd/check"
	_ "github.com/bgmdwldr/shapewatch/go/cmd/dump"
	_ "github.com/bgmdwldr/shapewatch/go/cmd/repl"
	_ "github.com/bgmdwldr/shapewatch/go/cmd/scan"
	_ "github.com/bgmdwldr/shapewatch/go/cmd/trace"
)

func main() { cmd.Main() }
