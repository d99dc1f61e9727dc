// Package docs renders the command reference of README.md from the command
// registry.
package docs

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/template"
	"unicode"

	"filmklub/internal/command"
	"filmklub/pkg/cmd"
)

const defaultTemplate = `# {{.AppName}}

Movie nights, a soundboard and a few utilities for one Discord server.

## Commands

{{.CommandSections}}`

// CommandSections lists every registered command grouped by category, in
// the order given by categoryWeights (lower first).
func CommandSections(registry *cmd.Registry, categoryWeights map[string]int) string {
	commands := registry.All()
	category := func(c cmd.Command) string {
		if meta, ok := command.Meta(c); ok {
			return meta.Category()
		}
		return ""
	}
	sort.SliceStable(commands, func(i, j int) bool {
		ci, cj := category(commands[i]), category(commands[j])
		wi, wj := categoryWeights[ci], categoryWeights[cj]
		if wi != wj {
			return wi < wj
		}
		if ci != cj {
			return ci < cj
		}
		return commands[i].Name() < commands[j].Name()
	})

	var buf bytes.Buffer
	current := "\x00"
	for _, c := range commands {
		if cat := category(c); cat != current {
			if current != "\x00" {
				buf.WriteString("\n")
			}
			current = cat
			fmt.Fprintf(&buf, "### %s\n\n", current)
		}
		fmt.Fprintf(&buf, "- **%s**%s\n", displayName(c.Name()), describe(c.Description()))
	}
	return buf.String()
}

// displayName prefixes slash commands with "/". Context menu entries are
// recognised by their capitalised, spaced names.
func displayName(name string) string {
	if strings.ContainsRune(name, ' ') || (name != "" && unicode.IsUpper([]rune(name)[0])) {
		return name
	}
	return "/" + name
}

func describe(d string) string {
	if d == "" {
		return ""
	}
	return " - " + d
}

// UpdateReadme renders tmplPath into outPath. A missing template falls back
// to a built-in one.
func UpdateReadme(registry *cmd.Registry, categoryWeights map[string]int, appName, tmplPath, outPath string) error {
	text := defaultTemplate
	if data, err := os.ReadFile(tmplPath); err == nil {
		text = string(data)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	tmpl, err := template.New("readme").Parse(text)
	if err != nil {
		return err
	}

	var out bytes.Buffer
	if err := tmpl.Execute(&out, struct {
		AppName         string
		CommandSections string
	}{appName, CommandSections(registry, categoryWeights)}); err != nil {
		return err
	}
	return os.WriteFile(outPath, out.Bytes(), 0644)
}
