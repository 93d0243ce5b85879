package mem

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/bgmdwldr/shapewatch/go/models"
)

// MapRegion is one line of /proc/<pid>/maps.
type MapRegion struct {
	Addr uint64
	Size uint64
	Prot int
	Path string
}

func (m *MapRegion) String() string {
	flag := func(bit int, c string) string {
		if m.Prot&bit != 0 {
			return c
		}
		return "-"
	}
	prot := flag(models.ProtRead, "r") + flag(models.ProtWrite, "w") + flag(models.ProtExec, "x")
	return fmt.Sprintf("0x%x-0x%x %s %s", m.Addr, m.Addr+m.Size, prot, m.Path)
}

// ReadMaps parses /proc/<pid>/maps into regions.
func ReadMaps(pid int) ([]*MapRegion, error) {
	path := fmt.Sprintf("/proc/%d/maps", pid)
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	var regions []*MapRegion
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		// "7f0000000000-7f0000021000 rw-p 00000000 00:00 0 [heap]"
		span := strings.SplitN(fields[0], "-", 2)
		if len(span) != 2 {
			continue
		}
		start, err := strconv.ParseUint(span[0], 16, 64)
		if err != nil {
			continue
		}
		end, err := strconv.ParseUint(span[1], 16, 64)
		if err != nil || end <= start {
			continue
		}
		prot := 0
		if strings.Contains(fields[1], "r") {
			prot |= models.ProtRead
		}
		if strings.Contains(fields[1], "w") {
			prot |= models.ProtWrite
		}
		if strings.Contains(fields[1], "x") {
			prot |= models.ProtExec
		}
		region := &MapRegion{Addr: start, Size: end - start, Prot: prot}
		if len(fields) >= 6 {
			region.Path = fields[5]
		}
		regions = append(regions, region)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return regions, nil
}

// DumpProcess reads every readable non-executable region of a live pid
// into a MemSim. Regions that fail to read (guard pages, vvar and
// friends) are skipped, not fatal.
func DumpProcess(pid int) (*models.MemSim, error) {
	regions, err := ReadMaps(pid)
	if err != nil {
		return nil, err
	}
	io := NewProcessIO(pid)
	sim := &models.MemSim{}
	for _, region := range regions {
		if region.Prot&models.ProtRead == 0 || region.Prot&models.ProtExec != 0 {
			continue
		}
		data := make([]byte, region.Size)
		if err := io.MemReadInto(data, region.Addr); err != nil {
			continue
		}
		sim.MapData(region.Addr, region.Prot, data)
	}
	if len(sim.Segments()) == 0 {
		return nil, errors.Errorf("no readable regions in pid %d", pid)
	}
	return sim, nil
}
