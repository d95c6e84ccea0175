package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Host is one staff member or team that can dispatch bots and connect a calendar.
type Host struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
}

type hostsFile struct {
	Hosts []Host `yaml:"hosts"`
}

// DefaultHosts is the roster used when no hosts file is configured.
var DefaultHosts = []Host{
	{ID: "operaciones", Name: "Operaciones"},
	{ID: "wisdom", Name: "Wisdom"},
	{ID: "biofleming", Name: "Biofleming"},
	{ID: "inbest", Name: "Inbest"},
	{ID: "andres", Name: "Andres"},
	{ID: "pablo", Name: "Pablo"},
}

// LoadHosts reads the host roster from a YAML file of the form
//
//	hosts:
//	  - id: operaciones
//	    name: Operaciones
//
// An empty path returns DefaultHosts. Missing ids are derived from the name.
func LoadHosts(path string) ([]Host, error) {
	if path == "" {
		return DefaultHosts, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open hosts file: %w", err)
	}
	defer f.Close()

	var doc hostsFile
	if err := yaml.NewDecoder(f).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode hosts file: %w", err)
	}

	out := make([]Host, 0, len(doc.Hosts))
	seen := make(map[string]bool)
	for _, h := range doc.Hosts {
		h.Name = strings.TrimSpace(h.Name)
		if h.Name == "" {
			return nil, fmt.Errorf("hosts file: entry without name")
		}
		if h.ID == "" {
			h.ID = strings.ToLower(strings.ReplaceAll(h.Name, " ", "-"))
		}
		if seen[h.ID] {
			return nil, fmt.Errorf("hosts file: duplicate id %q", h.ID)
		}
		seen[h.ID] = true
		out = append(out, h)
	}
	return out, nil
}
