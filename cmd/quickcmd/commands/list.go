package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/telnet2/quickcmd/internal/scope"
	"github.com/telnet2/quickcmd/pkg/types"
)

var (
	listOutput string
	listMatch  string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the effective quick commands",
	Long: `List the merged command tree. Each root slot shows the entry of the
highest-precedence layer that defines it (local, then workspace, then
global).

--match filters by label path with glob patterns, e.g. 'deploy/**' or
'**/test*'. Matching ignores case.`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVarP(&listOutput, "output", "o", "text", "Output format (text|json|yaml)")
	listCmd.Flags().StringVarP(&listMatch, "match", "m", "", "Glob over label paths")
}

// listEntry is one node in list output.
type listEntry struct {
	ID       string      `json:"id" yaml:"id"`
	Path     string      `json:"path" yaml:"path"`
	Depth    int         `json:"depth" yaml:"depth"`
	Scope    types.Scope `json:"scope" yaml:"scope"`
	Kind     types.Kind  `json:"kind" yaml:"kind"`
	Shortcut string      `json:"shortcut,omitempty" yaml:"shortcut,omitempty"`
	Command  string      `json:"command,omitempty" yaml:"command,omitempty"`
	Mode     string      `json:"mode,omitempty" yaml:"mode,omitempty"`
	Terminal string      `json:"terminal,omitempty" yaml:"terminal,omitempty"`
	Parallel bool        `json:"parallel,omitempty" yaml:"parallel,omitempty"`
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), appCfg, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	entries, err := collect(a.svc.Effective(), listMatch)
	if err != nil {
		return err
	}
	return writeEntries(cmd.OutOrStdout(), entries, listOutput)
}

// collect flattens the effective tree in display order, keeping nodes
// whose label path matches pattern.
func collect(eff *scope.Effective, pattern string) ([]listEntry, error) {
	pattern = strings.ToLower(pattern)
	if pattern != "" && !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid --match pattern %q", pattern)
	}

	out := []listEntry{}
	for _, p := range eff.Paths() {
		if pattern != "" {
			ok, _ := doublestar.Match(pattern, strings.ToLower(p.Path))
			if !ok {
				continue
			}
		}
		n := p.Node
		e := listEntry{
			ID:       n.ID,
			Path:     p.Path,
			Depth:    strings.Count(p.Path, "/"),
			Scope:    p.Scope,
			Kind:     n.Kind,
			Shortcut: n.Shortcut,
		}
		if n.IsGroup() {
			e.Parallel = n.ExecuteSimultaneously
		} else {
			e.Command = n.Command
			e.Mode = string(n.Mode())
			if n.Mode() == types.ModeTerminal {
				e.Terminal = n.TerminalName
			}
		}
		out = append(out, e)
	}
	return out, nil
}

func writeEntries(w io.Writer, entries []listEntry, format string) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(entries)
	case "text", "":
		renderText(w, entries)
		return nil
	default:
		return fmt.Errorf("unknown output format %q (text|json|yaml)", format)
	}
}

var scopeColors = map[types.Scope]*color.Color{
	types.ScopeGlobal:    color.New(color.FgBlue),
	types.ScopeWorkspace: color.New(color.FgGreen),
	types.ScopeLocal:     color.New(color.FgYellow),
}

func renderText(w io.Writer, entries []listEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "no quick commands")
		return
	}
	key := color.New(color.FgCyan, color.Bold)
	group := color.New(color.Bold)
	faint := color.New(color.Faint)

	for _, e := range entries {
		indent := strings.Repeat("  ", e.Depth)
		name := e.Path[strings.LastIndex(e.Path, "/")+1:]

		shortcut := "   "
		if e.Shortcut != "" {
			shortcut = key.Sprintf("[%s]", e.Shortcut)
		}

		var line string
		if e.Kind == types.KindGroup {
			mode := "sequential"
			if e.Parallel {
				mode = "simultaneous"
			}
			line = fmt.Sprintf("%s%s %s %s", indent, shortcut, group.Sprint(name+"/"), faint.Sprint("("+mode+")"))
		} else {
			detail := e.Mode
			if e.Terminal != "" {
				detail += ": " + e.Terminal
			}
			line = fmt.Sprintf("%s%s %s  %s %s", indent, shortcut, name, e.Command, faint.Sprint("("+detail+")"))
		}
		if e.Depth == 0 {
			line += " " + scopeColors[e.Scope].Sprint(string(e.Scope))
		}
		fmt.Fprintln(w, line)
	}
}
