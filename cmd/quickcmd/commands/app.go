package commands

import (
	"context"
	"os"

	"github.com/spf13/afero"

	"github.com/telnet2/quickcmd/internal/config"
	"github.com/telnet2/quickcmd/internal/dispatch"
	"github.com/telnet2/quickcmd/internal/event"
	"github.com/telnet2/quickcmd/internal/host"
	"github.com/telnet2/quickcmd/internal/service"
	"github.com/telnet2/quickcmd/internal/terminal"
)

// app wires the service for one command invocation.
type app struct {
	cfg   *config.AppConfig
	paths config.SettingsPaths
	bus   *event.Bus
	terms *terminal.Registry
	cmds  *host.Commands
	svc   *service.Service
}

// newApp builds the stack. inserter picks how insertOnly commands deliver
// their text; nil publishes text.inserted events.
func newApp(ctx context.Context, cfg *config.AppConfig, inserter dispatch.TextInserter) (*app, error) {
	paths := config.DefaultSettingsPaths(cfg.Workspace, cfg.Folder)
	bus := event.NewBus()

	terms := terminal.NewRegistry(terminal.Options{
		Dir:       cfg.Folder,
		Env:       os.Environ(),
		Publisher: bus,
	})
	cmds := host.NewCommands(bus)
	if inserter == nil {
		inserter = host.NewEventInserter(bus)
	}
	disp := dispatch.New(terms, cmds, inserter,
		dispatch.WithReporter(service.NewEventReporter(bus)),
		dispatch.WithDefaultTerminal(cfg.DefaultTerminal),
	)

	svc, err := service.New(ctx, service.Options{
		Store:        config.NewFileStore(afero.NewOsFs(), paths),
		Bus:          bus,
		Dispatcher:   disp,
		Commands:     cmds,
		JournalDepth: cfg.JournalDepth,
	})
	if err != nil {
		terms.Close()
		bus.Close()
		return nil, err
	}
	return &app{cfg: cfg, paths: paths, bus: bus, terms: terms, cmds: cmds, svc: svc}, nil
}

func (a *app) Close() {
	a.terms.Close()
	a.bus.Close()
}
