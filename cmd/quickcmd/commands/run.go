package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/telnet2/quickcmd/internal/host"
)

var runTimeout time.Duration

var runCmd = &cobra.Command{
	Use:   "run <id|name>",
	Short: "Run a quick command or group",
	Long: `Run a node of the effective tree, looked up by id or by name.

Terminal commands run in named shells inside this process and their
output is printed when they finish. Insert-only commands copy their text
to the clipboard. Editor commands need a connected editor and fail here.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 10*time.Minute, "Give up after this long")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), runTimeout)
	defer cancel()

	a, err := newApp(ctx, appCfg, host.NewClipboardInserter())
	if err != nil {
		return err
	}
	defer a.Close()

	m, ok := a.svc.Find(args[0])
	if !ok {
		return fmt.Errorf("no quick command matches %q", args[0])
	}

	_, _, runErr := a.svc.Execute(ctx, m.Node.ID, true)
	if err := a.terms.Wait(ctx); err != nil {
		runErr = errors.Join(runErr, err)
	}

	out := cmd.OutOrStdout()
	failed := 0
	for _, info := range a.terms.List() {
		t, ok := a.terms.Get(info.Name)
		if !ok {
			continue
		}
		if len(a.terms.List()) > 1 {
			fmt.Fprintf(out, "== %s ==\n", info.Name)
		}
		fmt.Fprint(out, t.Output())
		if t.Last().ExitCode != 0 {
			failed++
		}
	}

	if runErr != nil {
		return runErr
	}
	if failed > 0 {
		return fmt.Errorf("%d terminal(s) ended with a non-zero exit status", failed)
	}
	return nil
}
