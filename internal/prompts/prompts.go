// Package prompts renders the model prompts used by the pipeline stages.
package prompts

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"text/template"
)

// Template names.
const (
	VideoAnalysis      = "video_analysis"
	TextAnalysis       = "text_analysis"
	InitialReaction    = "initial_reaction"
	NetworkGeneration  = "network_generation"
	Interaction        = "interaction"
	SecondReaction     = "second_reaction"
	PlatformRefinement = "platform_refinement"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(
	template.New("prompts").
		Option("missingkey=error").
		Funcs(template.FuncMap{"json": toJSON}).
		ParseFS(templateFS, "templates/*.tmpl"),
)

// Render executes the named template with data.
func Render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name+".tmpl", data); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", name, err)
	}
	return buf.String(), nil
}

func toJSON(v any) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
