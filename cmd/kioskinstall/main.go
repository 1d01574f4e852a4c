package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vbonduro/kioskinstall/internal/admin"
	"github.com/vbonduro/kioskinstall/internal/db"
	"github.com/vbonduro/kioskinstall/internal/domain"
	"github.com/vbonduro/kioskinstall/internal/report"
	"github.com/vbonduro/kioskinstall/internal/web"
	"github.com/vbonduro/kioskinstall/internal/web/templates"
)

const sessionPurgeInterval = 10 * time.Minute

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "kioskinstall",
	Short:        "Kiosk installation photo capture and reporting",
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		server := web.NewServer(web.Deps{
			Auth:       a.auth,
			Workflows:  a.workflows(),
			Overview:   a.overview,
			Exporter:   a.exporter,
			PhotoStore: a.photos,
			Templates:  templates.FS,
			Logger:     a.logger,
		})
		go purgeSessions(ctx, server, a.logger)

		if err := server.ListenAndServe(ctx, a.cfg.ListenAddr); err != nil {
			a.logger.Error("server error", "error", err)
			return err
		}
		return nil
	},
}

func purgeSessions(ctx context.Context, server *web.Server, logger *slog.Logger) {
	ticker := time.NewTicker(sessionPurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := server.PurgeExpired(ctx)
			if err != nil {
				logger.Error("failed to purge sessions", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("purged expired sessions", "count", n)
			}
		}
	}
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		// Opening the database already applied pending migrations.
		version, dirty, err := db.Version(a.db)
		if err != nil {
			return err
		}
		fmt.Printf("Schema version: %d", version)
		if dirty {
			fmt.Print(" (dirty)")
		}
		fmt.Println()
		return nil
	},
}

var storesCmd = &cobra.Command{
	Use:   "stores",
	Short: "Inspect the store directory",
}

var storesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stores",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		district, _ := cmd.Flags().GetString("district")
		stores := a.stores.List()
		if district != "" {
			stores = a.stores.ByDistrict(district)
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNUMBER\tNAME\tDISTRICT\tADDRESS")
		for _, s := range stores {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.ID, s.StoreNumber, s.StoreName, s.District, s.Address)
		}
		return tw.Flush()
	},
}

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "Inspect saved projects",
}

var projectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		status, _ := cmd.Flags().GetString("status")
		var projects []*domain.Project
		if status == "" {
			projects, err = a.projects.List(ctx)
		} else {
			projects, err = a.projects.ListByStatus(ctx, domain.ProjectStatus(status))
		}
		if err != nil {
			return fmt.Errorf("listing projects: %w", err)
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tSTORE\tSTATUS\tSTARTED\tIMAGES\tAUDIT")
		for _, p := range projects {
			name := p.StoreID
			if s, err := a.stores.Get(p.StoreID); err == nil {
				name = s.StoreName
			}
			verdict := ""
			if p.Audit != "" {
				verdict = string(admin.Entry{Project: *p}.Verdict())
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
				p.ID, name, p.Status, p.StartedAt.Format(time.DateTime), p.Images.Total(), verdict)
		}
		return tw.Flush()
	},
}

var reportCmd = &cobra.Command{
	Use:   "report <project-id>",
	Short: "Export a project's report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		p, err := a.projects.Get(ctx, args[0])
		if err != nil {
			return err
		}
		if p == nil {
			return fmt.Errorf("project %s not found", args[0])
		}
		s, err := a.stores.Get(p.StoreID)
		if err != nil {
			return err
		}

		doc, err := a.exporter.Export(ctx, *p, s)
		if err != nil {
			return err
		}
		dir, _ := cmd.Flags().GetString("output")
		path, err := report.WriteFile(dir, doc)
		if err != nil {
			return err
		}
		fmt.Printf("Wrote %s (%d sections)\n", path, len(doc.Sections))
		return nil
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit <project-id>",
	Short: "Run the AI audit on a project's after photos",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		if err := a.overview.Load(ctx); err != nil {
			return err
		}
		result, err := a.overview.RequestAudit(ctx, args[0])
		if err != nil {
			return err
		}
		if result.SaveErr != nil {
			fmt.Fprintf(os.Stderr, "warning: audit not saved: %v\n", result.SaveErr)
		}
		fmt.Printf("Verdict: %s\n\n%s\n", result.Verdict, result.Text)
		return nil
	},
}

func init() {
	storesListCmd.Flags().StringP("district", "d", "", "Only stores in this district")
	storesCmd.AddCommand(storesListCmd)

	projectsListCmd.Flags().StringP("status", "s", "", "Only projects with this status (PENDING or COMPLETED)")
	projectsCmd.AddCommand(projectsListCmd)

	reportCmd.Flags().StringP("output", "o", ".", "Directory to write the report to")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(storesCmd)
	rootCmd.AddCommand(projectsCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(auditCmd)
}
