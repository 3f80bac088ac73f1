package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// #region persona

// Persona is the voice and content pool the agent writes with. Anything left
// out of a persona file keeps its built-in default.
type Persona struct {
	Name        string   `yaml:"name"`
	Audience    string   `yaml:"audience"`
	Chain       string   `yaml:"chain"`
	Community   string   `yaml:"community"`
	Moods       []string `yaml:"moods"`
	Energy      []int    `yaml:"energy"`
	Themes      []string `yaml:"themes"`
	Queries     []string `yaml:"discovery_queries"`
	TipFallback string   `yaml:"tip_fallback"`
	TipNoModel  string   `yaml:"tip_no_model"`
}

// DefaultPersona returns the built-in persona.
func DefaultPersona() Persona {
	return Persona{
		Name:      "Based East Africa Builds",
		Audience:  "builders and creators in Base East Africa",
		Chain:     "Base",
		Community: "Base East Africa",
		Moods:     []string{"hype", "focused", "supportive", "curious", "playful", "steady"},
		Energy:    []int{2, 3, 3, 4, 4, 5},
		Themes: []string{
			"build progress check",
			"creator content check",
			"streak count",
			"small wins",
			"before/after or demo",
			"collaboration invite",
			"problem or blocker",
			"Base app experiment",
			"ZK or privacy builders",
			"launch update",
			"ship something tiny",
		},
		Queries: []string{
			"Base chain news",
			"Base app update",
			"Farcaster Base creators",
			"Base East Africa builders",
		},
		TipFallback: "Shipped and tipped! Keep building on Base",
		TipNoModel:  "You got tipped %s %s onchain! Keep building.",
	}
}

// LoadPersona reads a YAML persona file over the defaults. An empty path
// returns the defaults.
func LoadPersona(path string) (Persona, error) {
	p := DefaultPersona()
	if path == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Persona{}, fmt.Errorf("read persona %s: %w", path, err)
	}
	var file Persona
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Persona{}, fmt.Errorf("parse persona %s: %w", path, err)
	}
	p.merge(file)
	return p, p.Validate()
}

func (p *Persona) merge(o Persona) {
	if o.Name != "" {
		p.Name = o.Name
	}
	if o.Audience != "" {
		p.Audience = o.Audience
	}
	if o.Chain != "" {
		p.Chain = o.Chain
	}
	if o.Community != "" {
		p.Community = o.Community
	}
	if len(o.Moods) > 0 {
		p.Moods = o.Moods
	}
	if len(o.Energy) > 0 {
		p.Energy = o.Energy
	}
	if len(o.Themes) > 0 {
		p.Themes = o.Themes
	}
	if len(o.Queries) > 0 {
		p.Queries = o.Queries
	}
	if o.TipFallback != "" {
		p.TipFallback = o.TipFallback
	}
	if o.TipNoModel != "" {
		p.TipNoModel = o.TipNoModel
	}
}

// Validate checks the pools the cadence picks from are usable.
func (p Persona) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("persona: name is required")
	}
	for _, e := range p.Energy {
		if e < 1 || e > 5 {
			return fmt.Errorf("persona: energy %d out of range 1-5", e)
		}
	}
	return nil
}

// #endregion persona
