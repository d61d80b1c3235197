package course

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mpapenbr/pylonrace-go/pkg/geo"
)

// File is the on-disk course description. Either Waypoints or Pylons must be set.
type File struct {
	Name      string     `yaml:"name"`
	Waypoints []Waypoint `yaml:"waypoints"`
	Pylons    *struct {
		West    geo.Position   `yaml:"west"`
		East    geo.Position   `yaml:"east"`
		Gate    geo.Position   `yaml:"gate"`
		Offsets *CornerOffsets `yaml:"offsets"`
	} `yaml:"pylons"`
}

var ErrEmptyCourseFile = errors.New("course file defines neither waypoints nor pylons")

func Load(r io.Reader) (*Course, error) {
	var f File
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode course: %w", err)
	}
	name := f.Name
	if name == "" {
		name = "course"
	}
	switch {
	case len(f.Waypoints) > 0:
		return New(f.Waypoints, WithName(name))
	case f.Pylons != nil:
		offsets := DefaultCornerOffsets()
		if f.Pylons.Offsets != nil {
			offsets = *f.Pylons.Offsets
		}
		return FromPylons(f.Pylons.West, f.Pylons.East, f.Pylons.Gate, offsets, WithName(name))
	default:
		return nil, ErrEmptyCourseFile
	}
}

// LoadFile reads a course file, an empty path yields the default course.
func LoadFile(path string) (*Course, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}
