package profile

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultProfile []byte

// ErrInvalidProfile is returned for profiles without a name or instruction.
var ErrInvalidProfile = errors.New("agent profile requires a name and an instruction")

// SubAgent is a specialist the root agent can hand work to. Endpoint is the
// URL serving it; environment references are expanded on load.
type SubAgent struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Instruction string `yaml:"instruction"`
	Endpoint    string `yaml:"endpoint"`
}

// Profile describes the root agent driving every session.
type Profile struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Instruction string     `yaml:"instruction"`
	SubAgents   []SubAgent `yaml:"sub_agents"`
}

// Default returns the built-in travel concierge profile.
func Default() *Profile {
	p, err := Parse(defaultProfile)
	if err != nil {
		panic(fmt.Sprintf("embedded agent profile: %v", err))
	}
	return p
}

// Load reads a profile from path, or returns Default when path is empty.
func Load(path string) (*Profile, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read agent profile %s: %w", path, err)
	}

	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("agent profile %s: %w", path, err)
	}
	return p, nil
}

// Parse decodes a YAML profile.
func Parse(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if strings.TrimSpace(p.Name) == "" || strings.TrimSpace(p.Instruction) == "" {
		return nil, ErrInvalidProfile
	}
	for i := range p.SubAgents {
		p.SubAgents[i].Endpoint = strings.TrimSpace(os.ExpandEnv(p.SubAgents[i].Endpoint))
	}
	return &p, nil
}

// SystemPrompt renders the system message fed to the model, including the
// roster of specialists the agent may delegate to.
func (p *Profile) SystemPrompt() string {
	var b strings.Builder
	b.WriteString("You are ")
	b.WriteString(p.Name)
	if p.Description != "" {
		b.WriteString(". ")
		b.WriteString(strings.TrimSpace(p.Description))
	}
	b.WriteString("\n\n")
	b.WriteString(strings.TrimSpace(p.Instruction))

	if len(p.SubAgents) == 0 {
		return b.String()
	}

	b.WriteString("\n\nSpecialists you can draw on. Delegate by calling the tool named after one with the traveller's request:")
	for _, sub := range p.SubAgents {
		fmt.Fprintf(&b, "\n- %s: %s", sub.Name, strings.TrimSpace(sub.Description))
		if sub.Instruction != "" {
			fmt.Fprintf(&b, " (%s)", strings.TrimSpace(sub.Instruction))
		}
	}
	return b.String()
}
