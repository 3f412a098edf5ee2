package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/avmeta/pkg/avm"
	"github.com/mesh-intelligence/avmeta/pkg/avmfile"
	"github.com/mesh-intelligence/avmeta/pkg/sqlite"
	"github.com/mesh-intelligence/avmeta/pkg/types"
)

func newCatalogCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage packets in the local catalog",
		Long:  "The catalog keeps many metadata packets in one SQLite database under the data directory.",
	}
	cmd.AddCommand(
		catalogCmd(flags, "import <file>", "Copy the packet in a file into the catalog", 1, runCatalogImport),
		catalogCmd(flags, "export <id> <file>", "Write a catalog packet to a file", 2, runCatalogExport),
		catalogCmd(flags, "show <id>", "Print the AVM fields of a catalog packet", 1, runCatalogShow),
		catalogCmd(flags, "list", "List catalog packets", 0, runCatalogList),
		catalogCmd(flags, "remove <id>", "Delete a catalog packet", 1, runCatalogRemove),
		catalogCmd(flags, "dump <file>", "Write every packet to a JSONL file", 1, runCatalogDump),
		catalogCmd(flags, "load <file>", "Read packets from a JSONL dump", 1, runCatalogLoad),
	)
	return cmd
}

type catalogRun func(a *app, b *sqlite.Backend, cmd *cobra.Command, args []string) error

// catalogCmd builds a subcommand that runs with the catalog attached.
func catalogCmd(flags *rootFlags, use, short string, nargs int, run catalogRun) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nargs),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			defer a.close()

			b, err := a.attach()
			if err != nil {
				return err
			}
			defer b.Detach()
			return run(a, b, cmd, args)
		},
	}
}

// catalogError classifies catalog failures.
func catalogError(op string, err error) error {
	switch {
	case errors.Is(err, types.ErrInvalidID), errors.Is(err, types.ErrPacketNotFound):
		return userError("%s: %w", op, err)
	}
	return sysError("%s: %w", op, err)
}

func runCatalogImport(a *app, b *sqlite.Backend, cmd *cobra.Command, args []string) error {
	m, err := avmfile.ReadPacket(args[0], a.reg)
	if err != nil {
		return fileError("read", args[0], err)
	}
	p, err := b.Import(m)
	if err != nil {
		return catalogError("import", err)
	}
	return emit(cmd.OutOrStdout(), a.outputFormat(formatJSON), map[string]any{
		"packet_id":  p.ID(),
		"properties": m.Len(),
	})
}

func runCatalogExport(a *app, b *sqlite.Backend, cmd *cobra.Command, args []string) error {
	p, err := b.Open(args[0])
	if err != nil {
		return catalogError("open", err)
	}
	if err := avmfile.WritePacket(args[1], p, a.reg); err != nil {
		return fileError("write", args[1], err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", args[1])
	return nil
}

func runCatalogShow(a *app, b *sqlite.Backend, cmd *cobra.Command, args []string) error {
	p, err := b.Open(args[0])
	if err != nil {
		return catalogError("open", err)
	}
	opts := append(a.metaOptions(), avm.WithRegistry(a.reg))
	values := avm.FromPacket(p, opts...).Data()
	return emitValues(cmd.OutOrStdout(), a.outputFormat(formatJSON), display(a.reg, values))
}

func runCatalogList(a *app, b *sqlite.Backend, cmd *cobra.Command, args []string) error {
	infos, err := b.List()
	if err != nil {
		return catalogError("list", err)
	}
	if infos == nil {
		infos = []types.PacketInfo{}
	}
	out := cmd.OutOrStdout()
	format := a.outputFormat(formatJSON)
	if format != formatText {
		return emit(out, format, infos)
	}
	t := &table{headers: []string{"PACKET", "PROPERTIES", "CREATED", "UPDATED"}}
	for _, info := range infos {
		t.add(info.PacketID, fmt.Sprint(info.Properties),
			info.CreatedAt.Format("2006-01-02 15:04:05"), info.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	t.render(out)
	return nil
}

func runCatalogRemove(a *app, b *sqlite.Backend, cmd *cobra.Command, args []string) error {
	if err := b.Remove(args[0]); err != nil {
		return catalogError("remove", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
	return nil
}

func runCatalogDump(a *app, b *sqlite.Backend, cmd *cobra.Command, args []string) error {
	n, err := b.Dump(args[0])
	if err != nil {
		return catalogError("dump", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "dumped %d packets to %s\n", n, args[0])
	return nil
}

func runCatalogLoad(a *app, b *sqlite.Backend, cmd *cobra.Command, args []string) error {
	n, err := b.Load(args[0])
	if err != nil {
		return fileError("load", args[0], err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "loaded %d packets from %s\n", n, args[0])
	return nil
}
