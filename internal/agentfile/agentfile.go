// Package agentfile parses and renders the Claude Code agent file format:
// a Markdown file whose body is preceded by a "---"-delimited YAML
// front-matter block carrying name/description/model/tools plus whatever
// project-specific keys an author adds.
package agentfile

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// KnownKeys are the front-matter keys given first-class fields on Agent;
// anything else round-trips through Extra.
var KnownKeys = map[string]bool{
	"name": true, "description": true, "model": true, "tools": true,
}

// Agent is one parsed agent file.
type Agent struct {
	Name        string
	Description string
	Model       string
	Tools       []string
	Extra       map[string]any // unrecognized front-matter keys, verbatim
	Prompt      string         // the Markdown body after the front-matter block
}

const delimiter = "---"

// Parse splits raw into a front-matter block and a Markdown body, then
// decodes the front-matter as YAML. A file with no front-matter block is
// treated as a body-only agent with no metadata.
func Parse(raw []byte) (*Agent, error) {
	text := string(raw)
	lines := strings.Split(text, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != delimiter {
		return &Agent{Prompt: strings.TrimSpace(text)}, nil
	}

	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == delimiter {
			end = i
			break
		}
	}
	if end == -1 {
		return nil, fmt.Errorf("agent file: unterminated front-matter block")
	}

	fmBlock := strings.Join(lines[1:end], "\n")
	body := strings.TrimSpace(strings.Join(lines[end+1:], "\n"))

	var meta map[string]any
	if err := yaml.Unmarshal([]byte(fmBlock), &meta); err != nil {
		return nil, fmt.Errorf("agent file: parsing front matter: %w", err)
	}

	a := &Agent{Prompt: body, Extra: map[string]any{}}
	for k, v := range meta {
		switch k {
		case "name":
			a.Name, _ = v.(string)
		case "description":
			a.Description, _ = v.(string)
		case "model":
			a.Model, _ = v.(string)
		case "tools":
			a.Tools = toStringSlice(v)
		default:
			a.Extra[k] = v
		}
	}
	return a, nil
}

func toStringSlice(v any) []string {
	switch vv := v.(type) {
	case []any:
		out := make([]string, 0, len(vv))
		for _, e := range vv {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		parts := strings.Split(vv, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	default:
		return nil
	}
}

// Render is Parse's inverse: a "---"-delimited YAML front-matter block
// followed by the prompt body.
func Render(a *Agent) ([]byte, error) {
	fm := map[string]any{}
	for k, v := range a.Extra {
		fm[k] = v
	}
	fm["name"] = a.Name
	if a.Description != "" {
		fm["description"] = a.Description
	}
	if a.Model != "" {
		fm["model"] = a.Model
	}
	if len(a.Tools) > 0 {
		fm["tools"] = a.Tools
	}

	var b bytes.Buffer
	b.WriteString(delimiter + "\n")
	enc := yaml.NewEncoder(&b)
	enc.SetIndent(2)
	if err := enc.Encode(fm); err != nil {
		return nil, fmt.Errorf("agent file: encoding front matter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("agent file: closing yaml encoder: %w", err)
	}
	b.WriteString(delimiter + "\n\n")
	b.WriteString(a.Prompt)
	b.WriteString("\n")
	return b.Bytes(), nil
}
