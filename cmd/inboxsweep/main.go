package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"inboxsweep/internal/access"
	"inboxsweep/internal/api"
	"inboxsweep/internal/gmail"
	"inboxsweep/internal/model"
	"inboxsweep/internal/scan"
	"inboxsweep/internal/source"
	"inboxsweep/internal/tui"
	"inboxsweep/internal/unsubscribe"
)

var (
	cfgFile   string
	provider  string
	inputFile string
	snapshots []string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "inboxsweep",
		Short: "Find subscription mail and unsubscribe from it",
		Long: `inboxsweep scans a mailbox for newsletters and marketing mail, groups
them by sender and company, and unsubscribes using the List-Unsubscribe
header, a compose link, or the provider's own unsubscribe control.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $INBOXSWEEP_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&provider, "provider", string(model.ProviderGmail), "mail provider host, or \"generic\"")
	rootCmd.PersistentFlags().StringVar(&inputFile, "input", "", "scan records from a JSON file instead of the provider")
	rootCmd.PersistentFlags().StringSliceVar(&snapshots, "snapshots", nil, "saved web UI pages to replay, oldest click last")

	rootCmd.AddCommand(scanCmd())
	rootCmd.AddCommand(unsubscribeCmd())
	rootCmd.AddCommand(trashCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(authCmd())
	rootCmd.AddCommand(premiumCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(tuiCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openApp(cmd *cobra.Command) (*app, error) {
	return newApp(cmd.Context(), cfgFile, snapshots)
}

func scanRequest(a *app, mode string, maxPages int) (scan.Request, error) {
	if mode == "" {
		mode = a.cfg.Scan.Mode
	}
	if maxPages == 0 {
		maxPages = a.cfg.Scan.MaxPages
	}
	req := scan.Request{Provider: model.Provider(provider), Mode: mode, MaxPages: maxPages}
	if inputFile != "" {
		f, err := os.Open(inputFile)
		if err != nil {
			return req, err
		}
		defer f.Close()
		recs, err := source.LoadRecords(f)
		if err != nil {
			return req, err
		}
		req.Input = recs
	}
	return req, nil
}

func scanCmd() *cobra.Command {
	var (
		mode     string
		maxPages int
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan the mailbox and list subscription groups",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			req, err := scanRequest(a, mode, maxPages)
			if err != nil {
				return err
			}
			res, err := a.orchestrator().Scan(cmd.Context(), req)
			if errors.Is(err, access.ErrPremiumProviderLocked) {
				return fmt.Errorf("%s requires premium (inboxsweep premium true): %w", provider, err)
			}
			if err != nil {
				return err
			}
			if err := a.saveScan(cmd.Context(), res); err != nil {
				a.log.WithError(err).Warn("could not save scan")
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			printScan(cmd, res)
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "quick or deep (default from config)")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "page budget for deep scans (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the scan result as JSON")
	return cmd
}

func printScan(cmd *cobra.Command, res model.ScanResult) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tGROUP\tID\tSENDERS\tMESSAGES\tSTATUS")
	for i, c := range res.Groups {
		status := ""
		if res.IsLimited && i >= res.VisibleLimit {
			status = "locked"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%s\n", i+1, c.DisplayName, c.ID, len(c.Senders), c.TotalCount, status)
	}
	w.Flush()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n%d senders in %d groups from %d messages (%d pages, %s)\n",
		res.TotalSendersFound, len(res.Groups), res.RecordsScanned, res.PagesScanned, res.Status)
	if res.AbortReason != "" {
		fmt.Fprintf(out, "scan stopped early: %s\n", res.AbortReason)
	}
	if res.IsLimited {
		fmt.Fprintf(out, "free plan: the first %d groups are unlocked\n", res.VisibleLimit)
	}
	if res.EstimatedHiddenCount > 0 {
		fmt.Fprintf(out, "about %d more senders in the rest of the inbox\n", res.EstimatedHiddenCount)
	}
}

func unsubscribeCmd() *cobra.Command {
	var open bool
	cmd := &cobra.Command{
		Use:   "unsubscribe <group-id|name|email>...",
		Short: "Unsubscribe from groups of the last scan",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.loadScan(cmd.Context())
			if err != nil {
				return err
			}
			groups, err := selectGroups(res, args)
			if err != nil {
				return err
			}

			exec := a.executor()
			defer exec.Wait()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			defer w.Flush()
			fmt.Fprintln(w, "SENDER\tOUTCOME\tMETHOD\tREASON\tLINK")
			for _, g := range groups {
				out := exec.Execute(cmd.Context(), unsubscribe.TargetFromGroup(g))
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", g.Email, out.Kind, out.Method, out.Reason, out.Link)
				if open && out.Kind == model.OutcomeManualRequired && out.Link != "" {
					if err := unsubscribe.OpenLink(out.Link); err != nil {
						a.log.WithError(err).Warn("could not open link")
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&open, "open", false, "open manual links in the browser")
	return cmd
}

func trashCmd() *cobra.Command {
	var archive bool
	cmd := &cobra.Command{
		Use:   "trash <group-id|name|email>...",
		Short: "Trash (or archive) the messages of groups from the last scan",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.loadScan(cmd.Context())
			if err != nil {
				return err
			}
			groups, err := selectGroups(res, args)
			if err != nil {
				return err
			}
			mb := a.mailbox(cmd.Context())
			if mb == nil {
				return errors.New("trash needs Gmail API access; run `inboxsweep auth` first")
			}
			var ids []string
			for _, g := range groups {
				ids = append(ids, g.MessageIDs...)
			}
			if archive {
				err = mb.Archive(cmd.Context(), ids)
			} else {
				err = mb.Trash(cmd.Context(), ids)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d messages done\n", len(ids))
			return nil
		},
	}
	cmd.Flags().BoolVar(&archive, "archive", false, "archive instead of trashing")
	return cmd
}

func historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past unsubscribes",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			recs, err := a.db.ListHistory(cmd.Context(), limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			defer w.Flush()
			fmt.Fprintln(w, "WHEN\tSENDER\tEMAIL\tMETHOD\tOUTCOME")
			for _, h := range recs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", h.At.Local().Format("Jan 2 15:04"), h.SenderName, h.Email, h.Method, h.Outcome)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of entries to show")
	return cmd
}

func authCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authorize Gmail API access",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.oauth == nil {
				return fmt.Errorf("no OAuth client secret at %s", a.cfg.OAuth.ClientSecretPath)
			}
			tok, err := gmail.Authorize(cmd.Context(), a.oauth, cmd.InOrStdin(), cmd.OutOrStdout(), 2*time.Minute)
			if err != nil {
				return err
			}
			if err := a.tokens.Save(cmd.Context(), model.ProviderGmail, tok); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Gmail authorized.")
			return nil
		},
	}
}

func premiumCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "premium [true|false]",
		Short: "Show or set the cached premium flag",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ent := access.NewStoreEntitlements(a.kv, a.log)
			if len(args) == 1 {
				v, err := strconv.ParseBool(args[0])
				if err != nil {
					return fmt.Errorf("premium: %w", err)
				}
				if err := ent.SetPremium(cmd.Context(), v); err != nil {
					return err
				}
			}
			premium, err := ent.IsPremium(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "premium: %t\n", premium)
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the local HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			exec := a.executor()
			defer exec.Wait()
			h := api.NewHandlers(a.orchestrator(), exec, a.db, a.log)
			srv := &http.Server{
				Addr:              a.cfg.Server.Addr(),
				Handler:           api.NewRouter(h, a.cfg.Server.CORSOrigins),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				a.log.WithField("addr", srv.Addr).Info("listening")
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-cmd.Context().Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				a.log.Info("shutting down")
				return srv.Shutdown(shutdownCtx)
			}
		},
	}
}

func tuiCmd() *cobra.Command {
	var mode string
	var maxPages int
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Browse and clean subscriptions interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			req, err := scanRequest(a, mode, maxPages)
			if err != nil {
				return err
			}
			// The alternate screen owns the terminal.
			a.log.SetOutput(io.Discard)
			exec := a.executor()
			defer exec.Wait()
			deps := tui.Deps{
				Scanner:      a.orchestrator(),
				Unsubscriber: exec,
				Open:         unsubscribe.OpenLink,
			}
			if mb := a.mailbox(cmd.Context()); mb != nil {
				deps.Cleaner = mb
			}

			appModel := tui.NewAppModel(deps, req)
			p := tea.NewProgram(&appModel, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
			finalModel, err := p.Run()
			if err != nil {
				return fmt.Errorf("alas, there's been an error: %w", err)
			}
			if m, ok := finalModel.(*tui.AppModel); ok && m.Err != nil {
				return m.Err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "quick or deep (default from config)")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "page budget for deep scans (default from config)")
	return cmd
}
