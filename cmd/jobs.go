package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/harborgrid/c360/internal/model"
	"github.com/harborgrid/c360/internal/store"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Submit and inspect ETL jobs",
}

var (
	jobName string
	jobWait bool
)

var jobsSubmitCmd = &cobra.Command{
	Use:   "submit <type> <source-system-id>",
	Short: "Submit a job (full_load, incremental, refresh_metadata)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := buildEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		name := jobName
		if name == "" {
			name = fmt.Sprintf("%s %s", args[0], time.Now().UTC().Format(time.RFC3339))
		}
		job := &model.Job{Name: name, Type: model.JobType(args[0]), SourceSystemID: args[1], CreatedBy: "cli"}
		if err := env.Orch.Submit(cmd.Context(), job); err != nil {
			return err
		}
		fmt.Printf("submitted %s (%s)\n", job.Name, job.ID)

		if jobWait {
			done, err := env.Orch.WaitForTerminal(cmd.Context(), job.ID, 100*time.Millisecond)
			if err != nil {
				return err
			}
			fmt.Printf("finished: %s  %s\n", done.Status, done.ResultSummary)
			if done.ErrorMessage != "" {
				fmt.Printf("error: %s\n", done.ErrorMessage)
			}
		}
		return nil
	},
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := buildEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		listed, err := env.Store.ListJobs(cmd.Context(), store.JobFilter{Limit: 50})
		if err != nil {
			return err
		}
		for _, job := range listed {
			fmt.Printf("%-36s  %-16s  %-10s  %s\n", job.ID, job.Type, job.Status, job.Name)
		}
		return nil
	},
}

var jobsCancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Cancel a queued or running job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := buildEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Orch.Cancel(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Println("cancellation requested")
		return nil
	},
}

var jobsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show job counts by status",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := buildEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		stats, err := env.Orch.Stats(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("total: %d  queued: %d  running: %d  completed: %d  failed: %d  cancelled: %d\n",
			stats.Total, stats.Queued, stats.Running, stats.Completed, stats.Failed, stats.Cancelled)
		fmt.Printf("records processed: %d  failed: %d\n", stats.RecordsProcessed, stats.RecordsFailed)
		return nil
	},
}

func init() {
	jobsSubmitCmd.Flags().StringVar(&jobName, "name", "", "job name")
	jobsSubmitCmd.Flags().BoolVar(&jobWait, "wait", false, "wait for the job to finish")
	jobsCmd.AddCommand(jobsSubmitCmd, jobsListCmd, jobsCancelCmd, jobsStatsCmd)
	rootCmd.AddCommand(jobsCmd)
}
