// Package llm holds what the model-backed adapters share: prompt
// configuration, JSON salvage from chat output and extraction decoding.
package llm

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultPrompts []byte

// Prompt is one system/user prompt pair with its sampling parameters
type Prompt struct {
	Temperature  float32 `yaml:"temperature"`
	MaxTokens    int     `yaml:"max_tokens"`
	System       string  `yaml:"system"`
	UserTemplate string  `yaml:"user_template"`
}

// PromptConfig holds every prompt the model adapters use
type PromptConfig struct {
	Extraction Prompt `yaml:"extraction"`
	QueryPlan  Prompt `yaml:"query_plan"`
}

// LoadPrompts reads prompt configuration from a YAML file. An empty path
// yields the built-in prompts.
func LoadPrompts(path string) (*PromptConfig, error) {
	data := defaultPrompts
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read prompts file: %w", err)
		}
	}

	var prompts PromptConfig
	if err := yaml.Unmarshal(data, &prompts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prompts: %w", err)
	}
	if prompts.Extraction.System == "" || prompts.QueryPlan.System == "" {
		return nil, fmt.Errorf("prompts file %q is missing a system prompt", path)
	}
	return &prompts, nil
}

// DefaultPrompts returns the built-in prompts
func DefaultPrompts() *PromptConfig {
	p, err := LoadPrompts("")
	if err != nil {
		panic(fmt.Sprintf("invalid built-in prompts: %v", err))
	}
	return p
}

// Render executes the user template with data
func (p Prompt) Render(data interface{}) (string, error) {
	tmpl, err := template.New("prompt").Parse(p.UserTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}
