package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/avmeta/internal/paths"
)

func newInitCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration and the packet catalog",
		Long:  "Create the configuration and data directories, write a default config.yaml and create the catalog database.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			defer a.close()

			if err := os.MkdirAll(a.settings.configDir, 0o755); err != nil {
				return sysError("create config directory: %w", err)
			}
			configPath := paths.ConfigFile(a.settings.configDir)
			written, err := writeConfigIfMissing(configPath, a.settings.dataDir)
			if err != nil {
				return sysError("write config: %w", err)
			}

			backend, err := a.attach()
			if err != nil {
				return err
			}
			if err := backend.Detach(); err != nil {
				return sysError("finalize catalog: %w", err)
			}

			out := cmd.OutOrStdout()
			if written {
				fmt.Fprintf(out, "wrote %s\n", configPath)
			}
			fmt.Fprintf(out, "catalog ready in %s\n", a.settings.dataDir)
			return nil
		},
	}
}
