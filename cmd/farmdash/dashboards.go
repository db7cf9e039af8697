package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/application"
	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/domain"
	"github.com/spf13/cobra"
)

func newSensorsCommand(current func() *dashboard) *cobra.Command {
	sensors := resourceCommand[domain.Sensor]{
		use:     "sensors",
		short:   "Manage field sensors",
		entity:  "Sensor",
		current: current,
		store:   func(d *dashboard) recordStore[domain.Sensor] { return d.sensors },
	}

	cmd := sensors.command()
	cmd.AddCommand(&cobra.Command{
		Use:   "dashboard",
		Short: "Summarize sensors by type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d := current()

			board := application.NewSensorDashboard(sensors.view(d, nil))
			if err := board.View().Load(cmd.Context()); err != nil {
				return errors.New(board.View().Message())
			}

			tw := tabwriter.NewWriter(d.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "TYPE\tTOTAL\tACTIVE\tINACTIVE\tCALIBRATION DUE")
			for _, g := range board.Groups() {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n", g.Type, g.Total(), g.Active, g.Inactive, g.CalibrationDue)
			}
			return tw.Flush()
		},
	})

	return cmd
}

func newSchedulesCommand(current func() *dashboard) *cobra.Command {
	schedules := resourceCommand[domain.Schedule]{
		use:     "schedules",
		short:   "Plan and complete field tasks",
		entity:  "Schedule",
		current: current,
		store:   func(d *dashboard) recordStore[domain.Schedule] { return d.schedules },
	}

	cmd := schedules.command()

	cmd.AddCommand(&cobra.Command{
		Use:   "complete <id>",
		Short: "Mark a scheduled task as done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := current()

			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			detail := application.NewDetailView[domain.Schedule]("Schedule", id, d.schedules)
			if err = detail.Load(cmd.Context()); err != nil {
				return errors.New(detail.Message())
			}

			schedule, _ := detail.Record()
			if schedule.IsCompleted {
				fmt.Fprintf(d.out, "Schedule %d is already completed\n", id)
				return nil
			}

			if _, err = d.schedules.Complete(cmd.Context(), schedule); err != nil {
				return failure(err, "Schedule")
			}

			fmt.Fprintf(d.out, "Completed schedule %d\n", id)
			return nil
		},
	})

	var pendingOnly bool
	calendar := &cobra.Command{
		Use:   "calendar",
		Short: "Show scheduled tasks day by day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d := current()

			cal := application.NewScheduleCalendar(schedules.view(d, nil), d.session)
			if err := cal.View().Load(cmd.Context()); err != nil {
				return errors.New(cal.View().Message())
			}

			if pendingOnly {
				return renderTable(d.out, cal.Pending(time.Now()))
			}

			tw := tabwriter.NewWriter(d.out, 0, 0, 2, ' ', 0)
			for _, day := range cal.Days() {
				fmt.Fprintf(tw, "%s\n", day.Date.Format("Mon 2006-01-02"))
				for _, entry := range day.Entries {
					s := entry.Schedule
					marks := ""
					if s.IsCompleted {
						marks += "done "
					}
					if entry.Editable {
						marks += "mine"
					}
					fmt.Fprintf(tw, "  %s\t#%d\t%s\t%s\t%s\t%s\n",
						s.ScheduledAt.Format("15:04"), s.ID, s.Title, s.ScheduleType, s.Priority, marks)
				}
			}
			return tw.Flush()
		},
	}
	calendar.Flags().BoolVar(&pendingOnly, "pending", false, "only list overdue tasks that are not completed")
	cmd.AddCommand(calendar)

	return cmd
}
