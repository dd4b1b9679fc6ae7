package sandbox

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/MrWong99/signshop/pkg/types"
)

// Seed is the YAML description of an initial world.
//
//	players:
//	  - id: 0b6a1a6e-8d59-4f7e-9a55-3c4f1a1c2d10
//	    name: alice
//	    balance: 100
//	    permissions: ["signshop.create.*"]
//	    items: {stone: 64}
//	signs:
//	  - location: {world: overworld, x: 0, y: 64, z: 0}
//	    lines: ["[buy]", "", "", "10"]
//	containers:
//	  - location: {world: overworld, x: 0, y: 63, z: 0}
//	    items: {stone: 32}
//	devices:
//	  - location: {world: overworld, x: 1, y: 64, z: 0}
type Seed struct {
	Players    []PlayerSeed    `yaml:"players"`
	Signs      []SignSeed      `yaml:"signs"`
	Containers []ContainerSeed `yaml:"containers"`
	Devices    []DeviceSeed    `yaml:"devices"`
}

// PlayerSeed describes one player.
type PlayerSeed struct {
	ID          uuid.UUID   `yaml:"id"`
	Name        string      `yaml:"name"`
	Balance     int         `yaml:"balance"`
	Capacity    int         `yaml:"capacity"`
	Permissions []string    `yaml:"permissions"`
	Items       types.Items `yaml:"items"`
}

// SignSeed describes one sign.
type SignSeed struct {
	Location types.Location `yaml:"location"`
	Lines    []string       `yaml:"lines"`
}

// ContainerSeed describes one container.
type ContainerSeed struct {
	Location types.Location `yaml:"location"`
	Capacity int            `yaml:"capacity"`
	Items    types.Items    `yaml:"items"`
}

// DeviceSeed describes one lever.
type DeviceSeed struct {
	Location types.Location `yaml:"location"`
	Powered  bool           `yaml:"powered"`
}

// Validate checks the seed for values the world cannot represent.
func (s *Seed) Validate() error {
	var errs []error
	for i, p := range s.Players {
		if p.ID == uuid.Nil {
			errs = append(errs, fmt.Errorf("players[%d].id is required", i))
		}
		if p.Balance < 0 {
			errs = append(errs, fmt.Errorf("players[%d].balance must not be negative", i))
		}
		if p.Capacity < 0 {
			errs = append(errs, fmt.Errorf("players[%d].capacity must not be negative", i))
		}
	}
	for i, sg := range s.Signs {
		if len(sg.Lines) > 4 {
			errs = append(errs, fmt.Errorf("signs[%d] has %d lines, at most 4 allowed", i, len(sg.Lines)))
		}
	}
	for i, c := range s.Containers {
		if c.Capacity < 0 {
			errs = append(errs, fmt.Errorf("containers[%d].capacity must not be negative", i))
		}
	}
	return errors.Join(errs...)
}

// Apply places everything in s into w.
func (s *Seed) Apply(w *World) {
	for _, p := range s.Players {
		w.AddPlayer(p.ID, p.Name, p.Balance, p.Capacity, p.Items, p.Permissions...)
	}
	for _, sg := range s.Signs {
		w.PlaceSign(sg.Location, sg.Lines...)
	}
	for _, c := range s.Containers {
		w.PlaceContainer(c.Location, c.Capacity, c.Items)
	}
	for _, d := range s.Devices {
		w.PlaceDevice(d.Location, d.Powered)
	}
}

// LoadSeed decodes and validates a YAML seed from r.
func LoadSeed(r io.Reader) (*Seed, error) {
	s := &Seed{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(s); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("sandbox: decode seed: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("sandbox: invalid seed: %w", err)
	}
	return s, nil
}

// LoadFile builds a world from the YAML seed at path.
func LoadFile(path string, opts ...Option) (*World, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("sandbox: open %q: %w", path, err)
	}
	defer f.Close()

	s, err := LoadSeed(f)
	if err != nil {
		return nil, fmt.Errorf("sandbox: load %q: %w", path, err)
	}
	w := New(opts...)
	s.Apply(w)
	return w, nil
}
