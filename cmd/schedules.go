package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/harborgrid/c360/internal/model"
)

var schedulesCmd = &cobra.Command{
	Use:   "schedules",
	Short: "Manage recurring job schedules",
}

var scheduleName string

var schedulesCreateCmd = &cobra.Command{
	Use:   "create <type> <source-system-id> <interval>",
	Short: "Create a schedule (interval: hourly, daily, weekly)",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := buildEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		jobType := model.JobType(args[0])
		if !jobType.Valid() {
			return fmt.Errorf("unknown job type %q", args[0])
		}
		interval := model.ScheduleInterval(args[2])
		if !interval.Valid() {
			return fmt.Errorf("unknown interval %q", args[2])
		}
		name := scheduleName
		if name == "" {
			name = fmt.Sprintf("%s %s %s", args[2], args[0], args[1])
		}
		sched := &model.ScheduledJob{
			ID:             uuid.NewString(),
			Name:           name,
			Type:           jobType,
			SourceSystemID: args[1],
			Interval:       interval,
			Enabled:        true,
		}
		if err := env.Store.CreateScheduledJob(cmd.Context(), sched); err != nil {
			return err
		}
		fmt.Printf("created schedule %s (%s)\n", sched.Name, sched.ID)
		return nil
	},
}

var schedulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List schedules",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := buildEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		listed, err := env.Store.ListScheduledJobs(cmd.Context())
		if err != nil {
			return err
		}
		for _, sched := range listed {
			last := "never"
			if sched.LastRunAt != nil {
				last = sched.LastRunAt.UTC().Format("2006-01-02 15:04")
			}
			fmt.Printf("%-36s  %-8s  %-16s  enabled=%-5t  last=%s  %s\n",
				sched.ID, sched.Interval, sched.Type, sched.Enabled, last, sched.Name)
		}
		return nil
	},
}

var schedulesDeleteCmd = &cobra.Command{
	Use:   "delete <schedule-id>",
	Short: "Delete a schedule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := buildEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Store.DeleteScheduledJob(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Println("deleted")
		return nil
	},
}

func init() {
	schedulesCreateCmd.Flags().StringVar(&scheduleName, "name", "", "schedule name")
	schedulesCmd.AddCommand(schedulesCreateCmd, schedulesListCmd, schedulesDeleteCmd)
	rootCmd.AddCommand(schedulesCmd)
}
