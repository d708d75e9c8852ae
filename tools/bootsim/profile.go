package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"peluboot/kernel/cpu/sim"
	"peluboot/kernel/longmode"
	"peluboot/kernel/multiboot"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Profile describes a simulated machine and the way the loader starts the
// boot stage on it.
type Profile struct {
	Name string `yaml:"name"`

	CPU struct {
		Vendor          string `yaml:"vendor"`
		IDFlagToggles   bool   `yaml:"id_flag_toggles"`
		MaxExtendedLeaf uint32 `yaml:"max_extended_leaf"`
		LongMode        bool   `yaml:"long_mode"`
	} `yaml:"cpu"`

	Handoff struct {
		Magic uint32 `yaml:"magic"`
		Info  uint32 `yaml:"info"`
	} `yaml:"handoff"`

	// TransitionOrder lists indices into longmode.Steps. An empty list
	// runs the regular transition.
	TransitionOrder []int `yaml:"transition_order"`
}

// defaultProfile describes a 64-bit capable machine started by a compliant
// loader.
func defaultProfile() *Profile {
	p := &Profile{Name: "default"}
	p.CPU.Vendor = sim.DefaultConfig.Vendor
	p.CPU.IDFlagToggles = sim.DefaultConfig.IDFlagToggles
	p.CPU.MaxExtendedLeaf = sim.DefaultConfig.MaxExtendedLeaf
	p.CPU.LongMode = sim.DefaultConfig.LongMode
	p.Handoff.Magic = multiboot.BootloaderMagic
	p.Handoff.Info = 0x10000
	return p
}

// loadProfile reads a YAML profile. Settings missing from the file keep
// their default values.
func loadProfile(path string) (*Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open profile %q: %w", path, err)
	}
	defer f.Close()

	p := defaultProfile()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(p); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode profile %q: %w", path, err)
	}

	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("profile %q: %w", path, err)
	}
	return p, nil
}

func (p *Profile) validate() error {
	if len(p.CPU.Vendor) > 12 {
		return fmt.Errorf("vendor %q is longer than 12 bytes", p.CPU.Vendor)
	}

	for _, index := range p.TransitionOrder {
		if index < 0 || index >= len(longmode.Steps) {
			return fmt.Errorf("transition step %d out of range [0, %d)", index, len(longmode.Steps))
		}
	}
	return nil
}

// Config returns the simulated processor configuration.
func (p *Profile) Config() sim.Config {
	return sim.Config{
		Vendor:          p.CPU.Vendor,
		IDFlagToggles:   p.CPU.IDFlagToggles,
		MaxExtendedLeaf: p.CPU.MaxExtendedLeaf,
		LongMode:        p.CPU.LongMode,
	}
}

// parseOrder parses a comma separated list of transition step indices.
func parseOrder(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}

	var order []int
	for _, field := range strings.Split(s, ",") {
		index, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil {
			return nil, fmt.Errorf("parse transition step %q: %w", field, err)
		}
		order = append(order, index)
	}
	return order, nil
}
