package models

import "io"

// Op is one record in a session log.
type Op interface {
	Sizeof() int
	Pack(w io.Writer) (int, error)
	Unpack(r io.Reader) (int, error)
}
