package main

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/chazu/railyard/pkg/config"
	"github.com/chazu/railyard/pkg/store"
)

func newStoreCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Manage layouts saved in the local database",
	}
	cmd.AddCommand(
		newStoreSaveCmd(c),
		newStoreListCmd(c),
		newStoreShowCmd(c),
		newStoreDeleteCmd(c),
	)
	return cmd
}

func newStoreSaveCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "save <name> <script>",
		Short: "Evaluate a script and save the layout under a name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.app.RunScript(args[1], false)
			if err != nil {
				return err
			}
			st, closeFn, err := c.openStore()
			if err != nil {
				return err
			}
			defer closeFn()
			rec, err := st.SaveLayout(cmd.Context(), args[0], res.Layout)
			if err != nil {
				return err
			}
			pterm.Success.Printf("Saved %s (version %d, %d pieces)\n", rec.Name, rec.Version, rec.PieceCount)
			fmt.Fprintln(cmd.OutOrStdout(), rec.ID)
			return nil
		},
	}
}

func newStoreListCmd(c *cli) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved layouts, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, closeFn, err := c.openStore()
			if err != nil {
				return err
			}
			defer closeFn()
			recs, err := st.List(cmd.Context())
			if err != nil {
				return err
			}
			if format != "table" {
				if recs == nil {
					recs = []store.Record{}
				}
				return writeFormat(cmd.OutOrStdout(), format, recs)
			}
			if len(recs) == 0 {
				pterm.Info.Println("No saved layouts")
				return nil
			}
			data := pterm.TableData{{"Name", "Version", "Pieces", "Length (m)", "Updated"}}
			for _, r := range recs {
				data = append(data, []string{
					r.Name,
					fmt.Sprint(r.Version),
					fmt.Sprint(r.PieceCount),
					fmt.Sprintf("%.3f", r.TotalLengthM),
					r.UpdatedAt.Local().Format("2006-01-02 15:04:05"),
				})
			}
			return renderTable(cmd.OutOrStdout(), data)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format: table, json, yaml")
	return cmd
}

func newStoreShowCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "show <name|id>",
		Short: "Print a saved layout document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, closeFn, err := c.openStore()
			if err != nil {
				return err
			}
			defer closeFn()
			doc, _, err := st.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), doc)
		},
	}
}

func newStoreDeleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name|id>",
		Short: "Delete a saved layout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, closeFn, err := c.openStore()
			if err != nil {
				return err
			}
			defer closeFn()
			if err := st.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			pterm.Success.Printf("Deleted %s\n", args[0])
			return nil
		},
	}
}

func newConfigCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or create the railyard configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := c.cfg.Encode()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "init [path]",
		Short: "Write a default config file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.FileName
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.WriteDefault(path); err != nil {
				return err
			}
			pterm.Success.Printf("Wrote %s\n", path)
			return nil
		},
	})
	return cmd
}

