package config

import "sort"

// Presets are complete configurations; GetPreset hands out copies.
var Presets = map[string]*Config{
	"reference": DefaultConfig(),
	"undamped": func() *Config {
		c := DefaultConfig()
		c.Damping = 0
		return c
	}(),
	"noiseless": func() *Config {
		c := DefaultConfig()
		c.Noise = 0
		c.Model.ZeroOutput = true
		return c
	}(),
	"stiff": func() *Config {
		c := DefaultConfig()
		c.Stiffness = 20
		c.Time.Samples = 400
		return c
	}(),
}

func GetPreset(name string) *Config {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
