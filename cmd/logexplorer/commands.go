package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dsecure/portal/internal/cache"
	"github.com/dsecure/portal/internal/explorer"
	"github.com/dsecure/portal/internal/identity"
	"github.com/dsecure/portal/internal/models"
	"github.com/dsecure/portal/internal/tui"
	"github.com/dsecure/portal/pkg/config"
	"github.com/dsecure/portal/pkg/logger"
	"github.com/dsecure/portal/web/api"
)

// fallbackIdentityFile is where the desktop client stores the signed-in user,
// relative to the home directory.
const fallbackIdentityFile = ".dsecure/authUser.json"

type globalFlags struct {
	apiURL       string
	token        string
	email        string
	role         string
	identityFile string
	configFile   string
}

type viewFlags struct {
	tab      string
	query    string
	category string
	date     string
	page     int
	scope    string
}

func (f *viewFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.tab, "tab", string(models.KindLogs), "Collection to show: logs, commands or sessions")
	cmd.Flags().StringVar(&f.query, "query", "", "Free-text search")
	cmd.Flags().StringVar(&f.category, "category", "", "Level (logs) or status (commands, sessions) to match exactly")
	cmd.Flags().StringVar(&f.date, "date", "", "Date prefix, e.g. 2024-06-01")
	cmd.Flags().StringVar(&f.scope, "scope", string(models.ScopeByEmail), "by-email or all (admins only)")
}

// cli holds what every subcommand shares.
type cli struct {
	out    io.Writer
	errOut io.Writer
	flags  globalFlags
	now    func() time.Time
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	c := &cli{out: out, errOut: errOut, now: time.Now}

	root := &cobra.Command{
		Use:           "logexplorer",
		Short:         "Browse D-Secure system logs, commands and sessions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&c.flags.apiURL, "api-url", "", "Backend base URL (overrides API_URL)")
	pf.StringVar(&c.flags.token, "token", os.Getenv("DSECURE_TOKEN"), "Bearer token forwarded to the backend")
	pf.StringVar(&c.flags.email, "email", os.Getenv("DSECURE_EMAIL"), "Acting user email")
	pf.StringVar(&c.flags.role, "role", os.Getenv("DSECURE_ROLE"), "Acting user role")
	pf.StringVar(&c.flags.identityFile, "identity", "", "JSON file holding the signed-in user record")
	pf.StringVar(&c.flags.configFile, "config", "", "YAML configuration file (overrides CONFIG_FILE)")

	root.AddCommand(c.listCmd(), c.exportCmd(), c.tuiCmd())
	return root
}

func (c *cli) listCmd() *cobra.Command {
	var vf viewFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print one page of the selected collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if vf.page < 1 {
				return fmt.Errorf("invalid --page %d: must be a positive integer", vf.page)
			}
			e, done, err := c.open(cmd.Context(), &vf)
			if err != nil {
				return err
			}
			defer done()
			return c.printPage(e.Snapshot())
		},
	}
	vf.register(cmd)
	cmd.Flags().IntVar(&vf.page, "page", 1, "Page number")
	return cmd
}

func (c *cli) exportCmd() *cobra.Command {
	var (
		vf  viewFlags
		dir string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the filtered collection to a CSV file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, done, err := c.open(cmd.Context(), &vf)
			if err != nil {
				return err
			}
			defer done()

			path, err := e.ExportFile(dir, c.now())
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out, path)
			return nil
		},
	}
	vf.register(cmd)
	cmd.Flags().StringVar(&dir, "out", ".", "Directory the CSV file is written to")
	return cmd
}

func (c *cli) tuiCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Start the interactive explorer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, done, err := c.build()
			if err != nil {
				return err
			}
			defer done()
			return tui.Run(cmd.Context(), e, tui.WithExportDir(dir), tui.WithClock(c.now))
		},
	}
	cmd.Flags().StringVar(&dir, "out", ".", "Directory exports are written to")
	return cmd
}

// resolveIdentity applies the CLI precedence: identity file, the desktop
// client's stored user, explicit flags, then the token claims.
func (c *cli) resolveIdentity() identity.Identity {
	fallback := ""
	if home, err := os.UserHomeDir(); err == nil {
		fallback = filepath.Join(home, fallbackIdentityFile)
	}
	return identity.Resolve(
		identity.FileSource(c.flags.identityFile),
		identity.FileSource(fallback),
		identity.Static(identity.Record{Email: strings.TrimSpace(c.flags.email), Role: c.flags.role}),
		identity.TokenSource(c.flags.token),
	)
}

// build wires an explorer from configuration and flags. done releases the
// cache storage.
func (c *cli) build() (*explorer.Explorer, func(), error) {
	cfg, err := config.LoadFile(c.flags.configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("loading configuration: %w", err)
	}
	if c.flags.apiURL != "" {
		cfg.APIURL = c.flags.apiURL
	}

	log := logger.NewWithWriter(c.errOut, logger.ParseLevel(cfg.Log.Level), false).WithComponent("logexplorer")

	storage, err := cache.Open(cache.OptionsFromConfig(cfg.Cache))
	if err != nil {
		return nil, nil, fmt.Errorf("opening cache: %w", err)
	}
	done := func() {
		if err := storage.Close(); err != nil {
			log.Warn("failed to close cache", "error", err)
		}
	}

	client := api.NewClient(cfg.APIURL).WithTimeout(cfg.RequestTimeout).WithToken(c.flags.token)
	loader := explorer.NewLoader(client,
		explorer.WithCache(storage, cfg.Cache.Namespace, cache.WithTTL(cfg.Cache.TTL)),
		explorer.WithLoaderLogger(log.Logger),
	)
	return explorer.New(c.resolveIdentity(), loader, explorer.WithPageSize(cfg.PageSize)), done, nil
}

// open builds an explorer, loads it once and applies the view flags.
func (c *cli) open(ctx context.Context, vf *viewFlags) (*explorer.Explorer, func(), error) {
	tab := models.ParseKind(vf.tab)
	if string(tab) != strings.ToLower(strings.TrimSpace(vf.tab)) {
		return nil, nil, fmt.Errorf("invalid --tab %q: must be one of logs, commands, sessions", vf.tab)
	}

	e, done, err := c.build()
	if err != nil {
		return nil, nil, err
	}

	id := e.Identity()
	scope := models.ParseScope(vf.scope)
	e.Update(func(v *explorer.View) {
		v.SetScope(scope, id.CanViewAllLogs)
	})
	if scope == models.ScopeAll && !id.CanViewAllLogs {
		fmt.Fprintln(c.errOut, "warning: only admins can view all logs, showing your own records")
	}

	_, err = e.Load(ctx, nil)
	c.printNotifications(e.Inbox().Drain())
	if errors.Is(err, explorer.ErrAuthentication) {
		done()
		return nil, nil, fmt.Errorf("no signed-in user: pass --email, --identity or --token")
	}

	e.Update(func(v *explorer.View) {
		v.SetTab(tab)
		v.SetQuery(vf.query)
		v.SetCategory(vf.category)
		v.SetDate(strings.TrimSpace(vf.date))
		if vf.page > 0 {
			v.SetPage(vf.page)
		}
	})
	return e, done, nil
}

func (c *cli) printNotifications(ns []explorer.Notification) {
	for _, n := range ns {
		fmt.Fprintf(c.errOut, "%s: %s\n", n.Title, n.Message)
	}
}

func (c *cli) printPage(s explorer.Snapshot) error {
	w := tabwriter.NewWriter(c.out, 0, 0, 3, ' ', 0)

	var (
		header []string
		rows   [][]string
	)
	switch s.Tab {
	case models.KindCommands:
		header = explorer.Commands.Columns
		for _, e := range s.Commands.Items {
			rows = append(rows, cells(explorer.Commands.Row(e)))
		}
	case models.KindSessions:
		header = explorer.Sessions.Columns
		for _, e := range s.Sessions.Items {
			rows = append(rows, cells(explorer.Sessions.Row(e)))
		}
	default:
		header = explorer.Logs.Columns
		for _, e := range s.Logs.Items {
			rows = append(rows, cells(explorer.Logs.Row(e)))
		}
	}

	page, _, pages, total := s.Current()
	if total == 0 {
		fmt.Fprintf(c.out, "No %s found\n", strings.ToLower(s.Tab.Title()))
		return nil
	}

	fmt.Fprintln(w, strings.ToUpper(strings.Join(header, "\t")))
	for _, r := range rows {
		fmt.Fprintln(w, strings.Join(r, "\t"))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "\nPage %d/%d, %d rows\n", page, pages, total)
	return nil
}

var cellReplacer = strings.NewReplacer("\t", " ", "\r", " ", "\n", " ")

// cells flattens values so each row stays on one tabwriter line.
func cells(row []string) []string {
	for i, v := range row {
		row[i] = cellReplacer.Replace(v)
	}
	return row
}
