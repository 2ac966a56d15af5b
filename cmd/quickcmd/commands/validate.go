package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/telnet2/quickcmd/pkg/types"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check every settings layer",
	Long: `Load the global, workspace and local settings files and report any
layer that does not load or would be rejected on save: empty groups,
missing command text, or a shortcut used twice at one level.`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), appCfg, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	ok := color.New(color.FgGreen).Sprint("ok")
	bad := color.New(color.FgRed, color.Bold).Sprint("invalid")
	out := cmd.OutOrStdout()

	problems := a.svc.Validate()
	failed := 0
	for _, sc := range types.Scopes {
		st, err := a.svc.ScopeState(sc)
		if err != nil {
			return err
		}
		path := st.Path
		if path == "" {
			path = "(none)"
		}
		switch {
		case !st.Saved:
			failed++
			fmt.Fprintf(out, "%-9s %s %s\n  %s\n", sc, bad, path, st.Message)
		case problems[sc] != nil:
			failed++
			fmt.Fprintf(out, "%-9s %s %s\n  %v\n", sc, bad, path, problems[sc])
		default:
			fmt.Fprintf(out, "%-9s %s %s (%d root entries)\n", sc, ok, path, len(st.Nodes))
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d layer(s) invalid", failed)
	}
	return nil
}
