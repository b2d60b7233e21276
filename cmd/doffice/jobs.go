package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/doffice/internal/entity"
	"github.com/joseph-ayodele/doffice/internal/media"
	"github.com/joseph-ayodele/doffice/internal/session"
	"github.com/joseph-ayodele/doffice/internal/tracker"
)

func (a *app) submitCmd() *cobra.Command {
	var noWait, noHistory bool
	cmd := &cobra.Command{
		Use:   "submit FILE",
		Short: "Upload an image or audio file and wait for its text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			file, err := media.Open(args[0])
			if err != nil {
				return err
			}
			s, err := a.currentSession(ctx, true)
			if err != nil {
				return err
			}
			tr := a.newTracker(s)
			out := cmd.OutOrStdout()

			if noWait {
				id, err := tr.Submit(ctx, file)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Submitted job %s\n", id)
				return nil
			}

			var obs tracker.Observer = progressPrinter(cmd.ErrOrStderr())
			if !noHistory {
				hist, err := a.historyService(ctx)
				if err != nil {
					return err
				}
				obs = hist.Recorder(ctx, file, obs)
			}
			job, err := tr.Run(ctx, file, obs)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, job.ResultText)
			return nil
		},
	}
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "print the job id and exit without waiting for the result")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "do not record the result in local history")
	return cmd
}

func (a *app) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch JOB_ID",
		Short: "Follow a previously submitted job until it finishes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := entity.ParseJobID(args[0])
			if err != nil {
				return err
			}
			s, err := a.currentSession(ctx, true)
			if err != nil {
				return err
			}
			tr := a.newTracker(s)
			if err := tr.Track(ctx, id, progressPrinter(cmd.ErrOrStderr())); err != nil {
				return err
			}
			job, err := tr.Wait(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), job.ResultText)
			return nil
		},
	}
}

// progressPrinter reports non-terminal events on w; the outcome is printed by the caller.
func progressPrinter(w io.Writer) tracker.Observer {
	return tracker.ObserverFunc(func(ev tracker.Event) {
		switch e := ev.(type) {
		case tracker.StatusUpdate:
			fmt.Fprintf(w, "job %s: %s\n", e.JobID, e.Status)
		case tracker.ProtocolError:
			fmt.Fprintf(w, "job %s: %s\n", e.JobID, e.Message)
		}
	})
}

func (a *app) jobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Manage jobs stored on the server (signed-in accounts only)",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List your jobs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.requireAccount(cmd.Context())
			if err != nil {
				return err
			}
			jobs, err := a.client.WithAuth(s).ListJobs(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTATUS\tFILE\tCREATED")
			for _, j := range jobs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", j.ID, j.Status, j.Filename, j.CreatedAt.Local().Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}

	var text string
	edit := &cobra.Command{
		Use:   "edit JOB_ID",
		Short: "Replace the result text of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := entity.ParseJobID(args[0])
			if err != nil {
				return err
			}
			s, err := a.requireAccount(cmd.Context())
			if err != nil {
				return err
			}
			if _, err := a.client.WithAuth(s).UpdateJobText(cmd.Context(), id, text); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated job %s\n", id)
			return nil
		},
	}
	edit.Flags().StringVar(&text, "text", "", "new result text")
	_ = edit.MarkFlagRequired("text")

	del := &cobra.Command{
		Use:   "delete JOB_ID",
		Short: "Delete a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := entity.ParseJobID(args[0])
			if err != nil {
				return err
			}
			s, err := a.requireAccount(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.client.WithAuth(s).DeleteJob(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted job %s\n", id)
			return nil
		},
	}

	cmd.AddCommand(list, edit, del)
	return cmd
}

func (a *app) requireAccount(ctx context.Context) (*session.Session, error) {
	s, err := a.currentSession(ctx, false)
	if err != nil {
		return nil, err
	}
	if s.Guest() {
		return nil, session.ErrNoSession
	}
	return s, nil
}
