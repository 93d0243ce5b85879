package qjs

import (
	"github.com/bgmdwldr/shapewatch/go/models"
)

func newSim(addr uint64, data []byte) *models.MemSim {
	sim := &models.MemSim{}
	sim.MapData(addr, models.ProtRead|models.ProtWrite, data)
	return sim
}
