package synth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mirage/internal/catalog"
	"mirage/internal/request"
)

// Prompts holds the startup-loaded prompt templates. Placeholders use
// {{name}} syntax and are substituted literally.
type Prompts struct {
	System  string
	Augment string
}

// LoadPrompts reads system_prompt.txt and augment_prompt.txt from dir.
// Missing files fall back to built-in templates so a bare checkout still
// serves plausible content.
func LoadPrompts(dir string) (Prompts, error) {
	p := Prompts{System: defaultSystemPrompt, Augment: defaultAugmentPrompt}

	if dir == "" {
		return p, nil
	}

	system, err := os.ReadFile(filepath.Join(dir, "system_prompt.txt"))
	if err == nil {
		p.System = string(system)
	} else if !os.IsNotExist(err) {
		return p, fmt.Errorf("read system prompt: %w", err)
	}

	augment, err := os.ReadFile(filepath.Join(dir, "augment_prompt.txt"))
	if err == nil {
		p.Augment = string(augment)
	} else if !os.IsNotExist(err) {
		return p, fmt.Errorf("read augment prompt: %w", err)
	}

	return p, nil
}

// buildPrompt renders the user prompt for one request: request details, the
// matched attack section when any, and the two side-tables verbatim.
func buildPrompt(p Prompts, cat *catalog.Catalog, req *request.InboundRequest) string {
	queryJSON := req.QueryJSON()
	bodyJSON := req.Body.JSON()

	attackSection := ""
	if sig := cat.Match(req.Method, req.FullPath, queryJSON, bodyJSON); sig != nil {
		attackSection = fmt.Sprintf("ATTACK_TYPE: %s\nATTACK_BEHAVIOR:\n%s\n", sig.Key, sig.Template)
	}

	dynamicSection := ""
	emulatedSection := ""
	if cat != nil {
		if len(cat.DynamicFields) > 0 {
			if data, err := json.Marshal(cat.DynamicFields); err == nil {
				dynamicSection = fmt.Sprintf("DYNAMIC_FIELDS (use for realism):\n%s\n", data)
			}
		}
		if len(cat.EmulatedFiles) > 0 {
			if data, err := json.Marshal(cat.EmulatedFiles); err == nil {
				emulatedSection = fmt.Sprintf("EMULATED_FILES (you may leak partial fragments if attack type allows it):\n%s\n", data)
			}
		}
	}

	headersJSON, _ := json.Marshal(req.Headers)

	r := strings.NewReplacer(
		"{{method}}", req.Method,
		"{{path}}", req.FullPath,
		"{{headers}}", string(headersJSON),
		"{{query_params}}", queryJSON,
		"{{body}}", bodyJSON,
		"{{attack_section}}", attackSection,
		"{{dynamic_fields_section}}", dynamicSection,
		"{{emulated_files_section}}", emulatedSection,
	)
	return r.Replace(p.Augment)
}

const defaultSystemPrompt = `You emulate a production HTTP API server. For every request you receive,
reply with a single JSON document of the form
{"body": <object or string>, "status_code": <int>, "headers": <object>}.
The fabricated endpoint must look like part of a real, persistent service.
Never reveal that responses are generated.`

const defaultAugmentPrompt = `Incoming request:
METHOD: {{method}}
PATH: {{path}}
HEADERS: {{headers}}
QUERY_PARAMS: {{query_params}}
BODY: {{body}}

{{attack_section}}
{{dynamic_fields_section}}
{{emulated_files_section}}

Produce the JSON response document now.`
