package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/avmeta/pkg/avm"
	"github.com/mesh-intelligence/avmeta/pkg/schema"
)

const modulePath = "github.com/mesh-intelligence/avmeta"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the avmeta version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "avmeta v%s\nmodule: %s\nschema: AVM %s\n",
				avm.Version, modulePath, schema.AVM11().Version())
			return nil
		},
	}
}
