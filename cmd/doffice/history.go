package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/doffice/constants"
	"github.com/joseph-ayodele/doffice/internal/export"
	"github.com/joseph-ayodele/doffice/internal/history"
	"github.com/joseph-ayodele/doffice/internal/repository"
)

func (a *app) historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse conversions recorded on this machine",
	}
	cmd.AddCommand(
		a.historyListCmd(),
		a.historyShowCmd(),
		a.historyEditCmd(),
		a.historyDeleteCmd(),
		a.historyExportCmd(),
	)
	return cmd
}

func (a *app) historyListCmd() *cobra.Command {
	var req history.ListRequest
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded conversions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.historyService(cmd.Context())
			if err != nil {
				return err
			}
			items, err := svc.List(cmd.Context(), req)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tDATE\tKIND\tSTATUS\tFILE\tPREVIEW")
			for _, it := range items {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					it.ID, it.CreatedAt.Local().Format("2006-01-02 15:04"), it.Kind, it.Status, it.Filename, it.Preview())
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&req.Kind, "kind", "", "only ocr or speech")
	cmd.Flags().StringVar(&req.Status, "status", "", "only COMPLETED or FAILED")
	cmd.Flags().StringVar(&req.JobID, "job", "", "only conversions of this backend job id")
	cmd.Flags().IntVar(&req.Limit, "limit", 50, "maximum rows, 0 for all")
	return cmd
}

func (a *app) historyShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Print the full text of a recorded conversion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.historyService(cmd.Context())
			if err != nil {
				return err
			}
			it, err := svc.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "File:   %s\nKind:   %s\nStatus: %s\nJob:    %s\nDate:   %s\n\n",
				it.Filename, it.Kind, it.Status, it.JobID, it.CreatedAt.Local().Format("2006-01-02 15:04:05"))
			if it.Status == constants.JobStatusFailed {
				fmt.Fprintln(out, it.ErrorMessage)
				return nil
			}
			fmt.Fprintln(out, it.ResultText)
			return nil
		},
	}
}

func (a *app) historyEditCmd() *cobra.Command {
	var text string
	cmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Replace the stored text of a recorded conversion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.historyService(cmd.Context())
			if err != nil {
				return err
			}
			if _, err := svc.UpdateText(cmd.Context(), args[0], text); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Updated")
			return nil
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "new text")
	_ = cmd.MarkFlagRequired("text")
	return cmd
}

func (a *app) historyDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Remove a recorded conversion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.historyService(cmd.Context())
			if err != nil {
				return err
			}
			if err := svc.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Deleted")
			return nil
		},
	}
}

func (a *app) historyExportCmd() *cobra.Command {
	var (
		outPath string
		kind    string
		status  string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the history to an Excel workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.historyService(cmd.Context()); err != nil {
				return err
			}
			exp := export.NewService(repository.NewHistoryRepository(a.db, a.logger), a.logger)
			data, err := exp.ExportHistoryXLSX(cmd.Context(), repository.HistoryFilter{
				Kind:   constants.MediaKind(strings.ToLower(kind)),
				Status: constants.JobStatus(strings.ToUpper(status)),
			})
			if err != nil {
				return err
			}
			if err := os.WriteFile(outPath, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", outPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "doffice-history.xlsx", "output file")
	cmd.Flags().StringVar(&kind, "kind", "", "only ocr or speech")
	cmd.Flags().StringVar(&status, "status", "", "only COMPLETED or FAILED")
	return cmd
}
