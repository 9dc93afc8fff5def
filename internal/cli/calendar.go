package cli

import (
	"path/filepath"

	"github.com/dshills/recall/internal/calendar"
	"github.com/dshills/recall/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newCalendarClient is replaced in tests.
var newCalendarClient = func() *calendar.Client { return calendar.NewClient() }

func (a *app) newCalendarCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Calendar tools",
	}

	var ev calendar.Event
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a calendar event with a popup reminder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if ev.Title == "" || ev.Start == "" || ev.End == "" {
				return usageErrorf("--title, --start and --end are required")
			}

			secrets := a.cfg.Calendar.SecretsPath
			if secrets == "" {
				dir, err := config.ConfigDir()
				if err != nil {
					return &configError{err: err}
				}
				secrets = filepath.Join(dir, "calendar.env")
			}
			creds, err := calendar.LoadCredentials(secrets)
			if err != nil {
				return err
			}

			e := ev
			if e.TimeZone == "" {
				e.TimeZone = a.cfg.Calendar.TimeZone
			}
			if e.CalendarID == "" {
				e.CalendarID = a.cfg.Calendar.CalendarID
			}

			created, err := newCalendarClient().Create(cmd.Context(), creds, e)
			if err != nil {
				return err
			}
			a.logger.Info("created calendar event", zap.String("id", created.ID))
			return a.print(created)
		},
	}

	f := create.Flags()
	f.StringVar(&ev.Title, "title", "", "Event title")
	f.StringVar(&ev.Start, "start", "", "Start time, RFC 3339 with offset")
	f.StringVar(&ev.End, "end", "", "End time, RFC 3339 with offset")
	f.StringVar(&ev.TimeZone, "tz", "", "IANA time zone (default from config)")
	f.StringVar(&ev.Location, "location", "", "Event location")
	f.StringVar(&ev.Description, "description", "", "Event description")
	f.StringVar(&ev.CalendarID, "calendar-id", "", "Calendar id (default from config or secrets, else primary)")
	f.IntVar(&ev.ReminderMinutes, "reminder-minutes", calendar.DefaultReminderMinutes, "Popup reminder lead time in minutes")

	cmd.AddCommand(create)
	return cmd
}
