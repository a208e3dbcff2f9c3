package agents

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var promptsYAML []byte

type rolePrompt struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`
}

type promptSet struct {
	Financial  rolePrompt `yaml:"financial"`
	Market     rolePrompt `yaml:"market"`
	Valuation  rolePrompt `yaml:"valuation"`
	Supervisor rolePrompt `yaml:"supervisor"`
}

var prompts promptSet

func init() {
	if err := yaml.Unmarshal(promptsYAML, &prompts); err != nil {
		panic(fmt.Sprintf("agents: parse embedded prompts: %v", err))
	}
}

// render substitutes {name} placeholders in a prompt template.
func render(template string, vars map[string]string) string {
	replacements := make([]string, 0, len(vars)*2)
	for name, value := range vars {
		replacements = append(replacements, "{"+name+"}", value)
	}
	return strings.TrimSpace(strings.NewReplacer(replacements...).Replace(template))
}
