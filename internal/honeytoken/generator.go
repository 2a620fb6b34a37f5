// Decoyshield - Deception-Based Intrusion Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/decoyshield

package honeytoken

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Metadata field names embedded into every artifact.
const (
	FieldHoneyUUID  = "HoneyUUID"
	FieldBeaconURL  = "BeaconURL"
	FieldBeaconURLs = "BeaconURLs"
)

// Generator produces decoy document content.
type Generator interface {
	// Generate writes one artifact for title into outputDir and returns its path.
	Generate(ctx context.Context, title, templateName, outputDir string) (string, error)

	// Embed writes metadata fields into the artifact in place.
	Embed(ctx context.Context, artifactPath string, fields map[string]string) error
}

// templateOutlines are the section headings per document template.
var templateOutlines = map[string][]string{
	"generic_report": {"Executive Summary", "Key Findings", "Recommendations"},
	"employee_bonus": {"Department Breakdown", "Bonus Distribution", "Payment Schedule"},
	"q3_financial":   {"Revenue", "Expenses", "Profit Margins", "Trend Analysis"},
	"hr_review":      {"Performance Metrics", "Feedback", "Development Plans"},
	"sales_pipeline": {"Opportunities", "Pipeline Status", "Forecast"},
}

// Templates lists the template names TemplateGenerator knows.
func Templates() []string {
	names := make([]string, 0, len(templateOutlines))
	for name := range templateOutlines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var documentTemplate = template.Must(template.New("document").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body>
<h1>{{.Title}}</h1>
<p class="classification">Internal - Confidential</p>
<p class="date">Prepared {{.Date}}</p>
{{range .Sections}}<h2>{{.}}</h2>
<p>Figures for this section are pending final review. Do not distribute outside the leadership group.</p>
{{end}}</body>
</html>
`))

// TemplateGenerator renders a self-contained HTML document and embeds
// metadata as <meta> tags.
type TemplateGenerator struct {
	now func() time.Time
}

// NewTemplateGenerator creates the built-in generator.
func NewTemplateGenerator() *TemplateGenerator {
	return &TemplateGenerator{now: time.Now}
}

// Generate implements Generator.
func (g *TemplateGenerator) Generate(ctx context.Context, title, templateName, outputDir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	sections, ok := templateOutlines[templateName]
	if !ok {
		sections = templateOutlines[DefaultTemplate]
	}

	var buf bytes.Buffer
	err := documentTemplate.Execute(&buf, struct {
		Title    string
		Date     string
		Sections []string
	}{
		Title:    title,
		Date:     g.now().UTC().Format("January 2, 2006"),
		Sections: sections,
	})
	if err != nil {
		return "", fmt.Errorf("render document: %w", err)
	}

	path := filepath.Join(outputDir, "document.html")
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return "", fmt.Errorf("write document: %w", err)
	}
	return path, nil
}

// Embed implements Generator.
func (g *TemplateGenerator) Embed(ctx context.Context, artifactPath string, fields map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	content, err := os.ReadFile(artifactPath)
	if err != nil {
		return fmt.Errorf("read artifact: %w", err)
	}

	idx := bytes.Index(content, []byte("</head>"))
	if idx < 0 {
		return errors.New("artifact has no <head> element")
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var tags bytes.Buffer
	for _, name := range names {
		fmt.Fprintf(&tags, "<meta name=\"%s\" content=\"%s\">\n",
			template.HTMLEscapeString(name), template.HTMLEscapeString(fields[name]))
	}

	out := make([]byte, 0, len(content)+tags.Len())
	out = append(out, content[:idx]...)
	out = append(out, tags.Bytes()...)
	out = append(out, content[idx:]...)

	if err := os.WriteFile(artifactPath, out, 0o600); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	return nil
}

// CommandGenerator delegates to an external program. Generation runs
//
//	<command> --title T --template X --out DIR
//
// and expects a JSON line {"success":true,"path":"..."} on stdout. Each
// embedded field runs
//
//	<command> --embed ARTIFACT --field NAME --value VALUE
type CommandGenerator struct {
	name string
	args []string
}

// NewCommandGenerator parses command into program and leading arguments.
func NewCommandGenerator(command string) (*CommandGenerator, error) {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return nil, errors.New("generator command is empty")
	}
	return &CommandGenerator{name: parts[0], args: parts[1:]}, nil
}

type generatorResult struct {
	Success bool   `json:"success"`
	Path    string `json:"path"`
	Error   string `json:"error"`
}

// Generate implements Generator.
func (g *CommandGenerator) Generate(ctx context.Context, title, templateName, outputDir string) (string, error) {
	stdout, err := g.run(ctx, outputDir, "--title", title, "--template", templateName, "--out", outputDir)
	if err != nil {
		return "", err
	}

	result, ok := parseGeneratorOutput(stdout)
	if ok {
		if !result.Success {
			return "", fmt.Errorf("generator reported failure: %s", result.Error)
		}
		path := result.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(outputDir, path)
		}
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("generated artifact missing: %w", err)
		}
		return path, nil
	}

	return singleArtifact(outputDir)
}

// Embed implements Generator.
func (g *CommandGenerator) Embed(ctx context.Context, artifactPath string, fields map[string]string) error {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if _, err := g.run(ctx, filepath.Dir(artifactPath), "--embed", artifactPath, "--field", name, "--value", fields[name]); err != nil {
			return fmt.Errorf("embed %s: %w", name, err)
		}
	}
	return nil
}

func (g *CommandGenerator) run(ctx context.Context, dir string, extra ...string) ([]byte, error) {
	args := append(append([]string{}, g.args...), extra...)
	cmd := exec.CommandContext(ctx, g.name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		return nil, fmt.Errorf("generator command failed: %w: %s", err, msg)
	}
	return stdout.Bytes(), nil
}

// parseGeneratorOutput reads the last JSON object line from stdout.
func parseGeneratorOutput(stdout []byte) (generatorResult, bool) {
	lines := strings.Split(strings.TrimSpace(string(stdout)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var result generatorResult
		if err := json.Unmarshal([]byte(line), &result); err == nil {
			return result, true
		}
	}
	return generatorResult{}, false
}

// singleArtifact returns the only regular file in dir.
func singleArtifact(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read generator output: %w", err)
	}
	var found string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if found != "" {
			return "", errors.New("generator produced more than one artifact")
		}
		found = filepath.Join(dir, e.Name())
	}
	if found == "" {
		return "", errors.New("generator produced no artifact")
	}
	return found, nil
}
