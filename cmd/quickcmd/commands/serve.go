package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/telnet2/quickcmd/internal/event"
	"github.com/telnet2/quickcmd/internal/logging"
	"github.com/telnet2/quickcmd/internal/server"
	"github.com/telnet2/quickcmd/internal/watcher"
	"github.com/telnet2/quickcmd/pkg/types"
)

var (
	servePort     int
	serveHostname string
	serveNoWatch  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the quickcmd server",
	Long: `Start quickcmd as a server that exposes the command tree over HTTP,
server-sent events and a websocket.

The settings files are watched; edits made outside quickcmd are picked up
and pushed to connected clients.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (default QUICKCMD_PORT or 4517)")
	serveCmd.Flags().StringVar(&serveHostname, "hostname", "", "Hostname to listen on (default QUICKCMD_HOST or 127.0.0.1)")
	serveCmd.Flags().BoolVar(&serveNoWatch, "no-watch", false, "Do not watch the settings files")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := appCfg
	if servePort != 0 {
		cfg.Port = servePort
	}
	if serveHostname != "" {
		cfg.Host = serveHostname
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	logging.Info().
		Str("version", Version).
		Str("workspace", cfg.Workspace).
		Str("global", a.paths.Global).
		Str("workspaceFile", a.paths.Workspace).
		Str("localFile", a.paths.Local).
		Msg("starting quickcmd server")

	if cfg.Watch && !serveNoWatch {
		w, err := watcher.New(a.paths, func(sc types.Scope, path string) {
			changed, err := a.svc.Reload(ctx, sc)
			if err != nil {
				logging.Warn().Err(err).Str("scope", string(sc)).Msg("reload failed")
				return
			}
			if changed {
				a.bus.Publish(event.Event{
					Type: event.SettingsChanged,
					Data: event.SettingsChangedData{Scope: sc, Path: path},
				})
			}
		})
		if err != nil {
			logging.Warn().Err(err).Msg("settings watcher unavailable")
		} else if w != nil {
			w.Start()
			defer w.Stop()
		}
	}

	srvCfg := server.DefaultConfig()
	srvCfg.Addr = cfg.Addr()
	srvCfg.CORSOrigins = cfg.CORSOrigins
	srv := server.New(srvCfg, a.svc, a.terms)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()
	fmt.Fprintf(cmd.OutOrStdout(), "quickcmd listening on http://%s\n", cfg.Addr())

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	case <-srv.Disposed():
	}

	logging.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Warn().Err(err).Msg("server shutdown error")
	}
	fmt.Fprintln(os.Stderr, "server stopped")
	return nil
}
