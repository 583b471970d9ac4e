package domain

import (
	"encoding/json"
	"strings"
)

// ProjectPlan is the file plan produced by the planner.
type ProjectPlan struct {
	ProjectName string        `json:"project_name"`
	Description string        `json:"description"`
	TechStack   TechStack     `json:"tech_stack"`
	Files       []PlannedFile `json:"files"`
}

// PlannedFile is one entry of a ProjectPlan.
type PlannedFile struct {
	Path    string `json:"path"`
	Purpose string `json:"purpose"`
}

// GeneratedFile is a planned file with its produced content.
type GeneratedFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Paths returns the planned file paths in plan order.
func (p ProjectPlan) Paths() []string {
	paths := make([]string, 0, len(p.Files))
	for _, f := range p.Files {
		paths = append(paths, f.Path)
	}
	return paths
}

// TechStack is a comma separated list of technologies.
// Models return it either as a string or as a JSON array; both decode.
type TechStack string

// UnmarshalJSON accepts a string or an array of strings.
func (t *TechStack) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = TechStack(s)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*t = TechStack(strings.Join(list, ", "))
	return nil
}
