package tool

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Catalog renders the registered tools for the planner prompt, sorted by name
// so the prompt is stable across runs.
func (r *Registry) Catalog() string {
	descs := slices.Collect(r.List())
	slices.SortFunc(descs, func(a, b Descriptor) int {
		return strings.Compare(a.Name, b.Name)
	})

	var b strings.Builder
	for i, d := range descs {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Tool: %s\n", d.Name)
		fmt.Fprintf(&b, "Description: %s\n", strings.TrimSpace(d.Description))
		fmt.Fprintf(&b, "Arguments: %s\n", formatParams(d))
		returnType := strings.TrimSpace(d.ReturnType)
		if returnType == "" {
			returnType = "any"
		}
		fmt.Fprintf(&b, "Returns: %s\n", returnType)
	}
	return b.String()
}

func formatParams(d Descriptor) string {
	parts := make([]string, 0, len(d.RequiredArgs)+len(d.OptionalArgs))
	for _, p := range d.RequiredArgs {
		parts = append(parts, describeParam(p, "required"))
	}
	for _, p := range d.OptionalArgs {
		parts = append(parts, describeParam(p, "optional"))
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}

func describeParam(p Param, kind string) string {
	out := fmt.Sprintf("%s (%s, %s", p.Name, p.Type, kind)
	if p.Default != nil {
		raw, err := json.Marshal(p.Default)
		if err == nil {
			out += ", default " + string(raw)
		}
	}
	out += ")"
	if desc := strings.TrimSpace(p.Description); desc != "" {
		out += " " + desc
	}
	return out
}
