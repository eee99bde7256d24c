package commands

import (
	"fmt"

	"github.com/fieldsite/fieldsite/internal/config"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force bool `help:"Overwrite an existing configuration file"`
}

func (i *InitCmd) Run(_ *Global, root *CLI) error {
	return RunInit(root.Config, i.Force)
}

func RunInit(configPath string, force bool) error {
	// Friendly user-facing messages go to stdout, diagnostics to slog.
	fmt.Println("Initializing fieldsite project")
	fmt.Printf("Writing starter config to %s\n", configPath)
	if err := config.Init(configPath, force); err != nil {
		return err
	}
	fmt.Println("Project initialized; edit", configPath, "and run 'fieldsite build'")
	return nil
}
