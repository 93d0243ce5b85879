package models

// Config carries session-wide knobs. Pointer bounds are overridable
// because some targets run with a narrower address space than the
// documented 48-bit default.
type Config struct {
	Color   bool
	Verbose bool

	MinPtr uint64
	MaxPtr uint64

	// radius probed around an object for neighbors
	ContextRadius int64

	// clamp for printed byte strings
	Strsize int
}

func (c *Config) Init() *Config {
	if c.ContextRadius == 0 {
		c.ContextRadius = 1024
	}
	if c.Strsize == 0 {
		c.Strsize = 64
	}
	return c
}
