package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/chazu/railyard/pkg/catalog"
	"github.com/chazu/railyard/pkg/engine"
	"github.com/chazu/railyard/pkg/errors"
	"github.com/chazu/railyard/pkg/graph"
	"github.com/chazu/railyard/pkg/layout"
	"github.com/chazu/railyard/pkg/store"
)

// source picks where a command's layout comes from: a script argument or
// a stored layout named with --layout.
type source struct {
	stored string
}

func (s *source) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&s.stored, "layout", "l", "", "use a stored layout instead of a script")
}

func (s *source) check(args []string) error {
	if s.stored == "" && len(args) == 0 {
		return errors.WithHint(errors.New("no layout given"), "pass a script path or --layout <name>")
	}
	return nil
}

// load returns the layout named by args or --layout.
func (s *source) load(ctx context.Context, c *cli, args []string) (*layout.Layout, error) {
	if s.stored != "" {
		st, closeFn, err := c.openStore()
		if err != nil {
			return nil, err
		}
		defer closeFn()
		l := c.app.NewLayout()
		report, err := st.LoadInto(ctx, s.stored, l)
		if err != nil {
			return nil, err
		}
		for _, w := range report.Warnings {
			pterm.Warning.Println(w)
		}
		return l, nil
	}
	res, err := c.app.RunScript(args[0], false)
	if err != nil {
		return nil, err
	}
	return res.Layout, nil
}

func (c *cli) openStore() (*store.Store, func(), error) {
	log := c.app.log.Named("store")
	db, err := store.OpenWithMigrations(c.cfg.Store.Path, log)
	if err != nil {
		return nil, nil, err
	}
	return store.New(db, log), func() { _ = db.Close() }, nil
}

func newCatalogCmd(c *cli) *cobra.Command {
	var typeName string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List the track piece catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries := c.app.catalog.All()
			if typeName != "" {
				t, err := catalog.ParsePieceType(typeName)
				if err != nil {
					return errors.WithHint(err, "types: straight, curve, switch, curvedSwitch, crossing")
				}
				entries = c.app.catalog.ByType(t)
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), entries)
			}
			data := pterm.TableData{{"ID", "Name", "Type", "Length (mm)", "Connectors"}}
			for _, e := range entries {
				data = append(data, []string{
					e.ID,
					e.DisplayName,
					e.Type.String(),
					fmt.Sprintf("%.1f", e.LengthM*1000),
					fmt.Sprintf("%d", len(e.Connectors)),
				})
			}
			return renderTable(cmd.OutOrStdout(), data)
		},
	}
	cmd.Flags().StringVarP(&typeName, "type", "t", "", "only list pieces of this type")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print entries as JSON")
	return cmd
}

func newRunCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "run <script>",
		Short: "Evaluate a layout script and validate the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.app.RunScript(args[0], false)
			if err != nil {
				return err
			}
			return reportLayout(cmd.OutOrStdout(), res.Layout)
		},
	}
}

// reportLayout prints validation findings and fails on errors.
func reportLayout(w io.Writer, l *layout.Layout) error {
	st := l.Stats()
	v := l.Validate()
	for _, f := range v.Warnings {
		pterm.Warning.Println(f.Error())
	}
	for _, f := range v.Errors {
		pterm.Error.Println(f.Error())
	}
	fmt.Fprintf(w, "%d pieces, %.3f m of track, %d open ends, %d sections\n",
		st.PieceCount, st.TotalLengthM, st.OpenEnds, st.Sections)
	if !v.OK() {
		return errors.Newf("layout has %d validation errors", len(v.Errors))
	}
	pterm.Success.Println("Layout is valid")
	return nil
}

func newWatchCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <script>",
		Short: "Re-evaluate a script every time it is saved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := engine.NewWatcher(args[0])
			if err != nil {
				return err
			}
			defer w.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			out := cmd.OutOrStdout()
			evaluate := func(src string) {
				res := c.app.Evaluate(src, false)
				if len(res.Errors) > 0 {
					pterm.Error.Println(scriptError(w.Path(), res.Errors).Error())
					return
				}
				_ = reportLayout(out, res.Layout)
			}
			if src, err := os.ReadFile(w.Path()); err == nil {
				evaluate(string(src))
			}
			pterm.Info.Printf("Watching %s (Ctrl-C to stop)\n", w.Path())
			return w.Run(ctx, evaluate)
		},
	}
}

func newStatsCmd(c *cli) *cobra.Command {
	var src source
	var format string
	cmd := &cobra.Command{
		Use:   "stats [script]",
		Short: "Show layout statistics",
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return src.check(args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := src.load(cmd.Context(), c, args)
			if err != nil {
				return err
			}
			st := l.Stats()
			switch format {
			case "table":
				return renderTable(cmd.OutOrStdout(), pterm.TableData{
					{"Stat", "Value"},
					{"Pieces", fmt.Sprint(st.PieceCount)},
					{"Distinct meshes", fmt.Sprint(st.MeshCount)},
					{"Track length (m)", fmt.Sprintf("%.3f", st.TotalLengthM)},
					{"Nodes", fmt.Sprint(st.NodeCount)},
					{"Edges", fmt.Sprintf("%d (%d active)", st.EdgeCount, st.ActiveEdgeCount)},
					{"Open ends", fmt.Sprint(st.OpenEnds)},
					{"Sections", fmt.Sprint(st.Sections)},
				})
			default:
				return writeFormat(cmd.OutOrStdout(), format, st)
			}
		},
	}
	src.bind(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format: table, json, yaml")
	return cmd
}

func newBOMCmd(c *cli) *cobra.Command {
	var src source
	var format string
	cmd := &cobra.Command{
		Use:   "bom [script]",
		Short: "Print the bill of materials",
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return src.check(args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := src.load(cmd.Context(), c, args)
			if err != nil {
				return err
			}
			bom := l.BillOfMaterials()
			if format != "table" {
				return writeFormat(cmd.OutOrStdout(), format, bom)
			}
			data := pterm.TableData{{"Catalog ID", "Name", "Type", "Count", "Length (m)"}}
			for _, line := range bom {
				data = append(data, []string{
					line.CatalogID,
					line.DisplayName,
					line.Type,
					fmt.Sprint(line.Count),
					fmt.Sprintf("%.3f", line.LengthM),
				})
			}
			return renderTable(cmd.OutOrStdout(), data)
		},
	}
	src.bind(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format: table, json, yaml")
	return cmd
}

func newRouteCmd(c *cli) *cobra.Command {
	var src source
	cmd := &cobra.Command{
		Use:   "route [script] <from> <to>",
		Short: "Find the shortest route between two connectors or nodes",
		Long: `Find the shortest route over active track.

Endpoints are node ids (n3) or piece connectors (p2.b).`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ends := args[len(args)-2:]
			rest := args[:len(args)-2]
			if err := src.check(rest); err != nil {
				return err
			}
			l, err := src.load(cmd.Context(), c, rest)
			if err != nil {
				return err
			}
			from, err := resolveNode(l, ends[0])
			if err != nil {
				return err
			}
			to, err := resolveNode(l, ends[1])
			if err != nil {
				return err
			}
			r, err := l.FindRoute(from, to)
			if err != nil {
				return err
			}
			nodes := make([]string, len(r.Nodes))
			for i, n := range r.Nodes {
				nodes[i] = string(n)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n%.3f m over %d edges\n",
				strings.Join(nodes, " -> "), r.LengthM, len(r.Edges))
			return nil
		},
	}
	src.bind(cmd)
	return cmd
}

// resolveNode accepts a node id or a piece.connector reference.
func resolveNode(l *layout.Layout, ref string) (graph.NodeID, error) {
	pieceID, conn, ok := strings.Cut(ref, ".")
	if !ok {
		id := graph.NodeID(ref)
		if _, found := l.Graph().Node(id); !found {
			return "", errors.WrapNotFound(errors.Newf("node %s", ref), "resolve route endpoint")
		}
		return id, nil
	}
	p, err := l.Piece(graph.PieceID(pieceID))
	if err != nil {
		return "", err
	}
	node, found := p.Connectors[catalog.ConnectorID(strings.ToUpper(conn))]
	if !found {
		return "", errors.Newf("piece %s has no connector %s", pieceID, conn)
	}
	return node, nil
}

func newExportCmd(c *cli) *cobra.Command {
	var src source
	var out string
	var meshes bool
	cmd := &cobra.Command{
		Use:   "export [script]",
		Short: "Write the layout document, or its meshes, as JSON",
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return src.check(args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return errors.Wrapf(err, "create %s", out)
				}
				defer f.Close()
				w = f
			}

			if meshes {
				if src.stored != "" {
					return errors.New("--meshes needs a script")
				}
				res, err := c.app.RunScript(args[0], true)
				if err != nil {
					return err
				}
				if err := writeJSON(w, res.Meshes); err != nil {
					return err
				}
			} else {
				l, err := src.load(cmd.Context(), c, args)
				if err != nil {
					return err
				}
				if err := layout.Encode(w, l.Export()); err != nil {
					return err
				}
			}
			if out != "" {
				pterm.Success.Printf("Wrote %s\n", out)
			}
			return nil
		},
	}
	src.bind(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "", "write to a file instead of stdout")
	cmd.Flags().BoolVar(&meshes, "meshes", false, "export tessellated piece meshes")
	return cmd
}

func renderTable(w io.Writer, data pterm.TableData) error {
	s, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return errors.Wrap(err, "render table")
	}
	_, err = fmt.Fprintln(w, s)
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(v), "encode json")
}

func writeFormat(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		return writeJSON(w, v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return errors.Wrap(err, "encode yaml")
		}
		return enc.Close()
	default:
		return errors.Newf("unknown format %q", format)
	}
}
