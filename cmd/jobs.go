package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	jobsTenant string
	jobsRows   bool
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect import jobs",
}

var jobsShowCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Show an import job and, optionally, its per-row audit trail",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		svc, st, err := initService(ctx, "import")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if jobsRows {
			rows, err := svc.JobRows(ctx, jobsTenant, args[0])
			if err != nil {
				return eris.Wrap(err, "job rows")
			}
			return writeOutput(cmd.OutOrStdout(), rows)
		}
		job, err := svc.Job(ctx, jobsTenant, args[0])
		if err != nil {
			return eris.Wrap(err, "job")
		}
		return writeOutput(cmd.OutOrStdout(), job)
	},
}

func init() {
	jobsShowCmd.Flags().StringVar(&jobsTenant, "tenant", "", "tenant ID (required)")
	jobsShowCmd.Flags().BoolVar(&jobsRows, "rows", false, "print the per-row audit trail")
	_ = jobsShowCmd.MarkFlagRequired("tenant")

	jobsCmd.AddCommand(jobsShowCmd)
	rootCmd.AddCommand(jobsCmd)
}
