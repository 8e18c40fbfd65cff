package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"dairysense/internal/application/projections"
	"dairysense/internal/domain/alert"
	"dairysense/internal/domain/animal"
	"dairysense/internal/domain/assignment"
	"dairysense/internal/domain/period"
)

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Value:   string(FormatText),
		Usage:   "Output format. Allowed values are: text, json",
	}
}

func conflictsCommand(e env) *cli.Command {
	return &cli.Command{
		Name:        "conflicts",
		Usage:       "Find stored assignments that overlap",
		UsageText:   "dairyctl conflicts [--format text|json]",
		Description: "Lists every pair of assignments that put one animal or one device in two places on the same day. Exits non-zero when any are found.",
		Flags:       []cli.Flag{formatFlag()},
		Action: func(cCtx *cli.Context) error {
			format, err := validateFormat(cCtx.String("format"))
			if err != nil {
				return err
			}
			c, err := e.connect(cCtx)
			if err != nil {
				return err
			}
			ctx := cCtx.Context
			existing, err := c.ListAssignments(ctx)
			if err != nil {
				return fmt.Errorf("list assignments: %w", err)
			}
			animals, err := c.ListAnimals(ctx)
			if err != nil {
				return fmt.Errorf("list animals: %w", err)
			}
			devices, err := c.ListDevices(ctx)
			if err != nil {
				return fmt.Errorf("list devices: %w", err)
			}
			serials := make(map[int]string, len(devices))
			for _, d := range devices {
				serials[d.ID] = d.SerialNumber
			}

			found := assignment.FindOverlaps(existing)
			if err := writeOverlaps(e.out, format, found, animal.NameIndex(animals), serials); err != nil {
				return err
			}
			if len(found) > 0 {
				return fmt.Errorf("%d overlapping assignment pairs", len(found))
			}
			return nil
		},
	}
}

type overlapRow struct {
	Kind     string `json:"kind"`
	Resource string `json:"resource"`
	First    int    `json:"first_id"`
	FirstAt  string `json:"first_period"`
	Second   int    `json:"second_id"`
	SecondAt string `json:"second_period"`
}

func span(a assignment.Assignment) string {
	end := "open"
	if !a.IsOpen() {
		end = period.FormatDate(a.EndDate)
	}
	return period.FormatDate(a.StartDate) + " to " + end
}

func writeOverlaps(w io.Writer, format OutputFormat, found []assignment.Overlap, names, serials map[int]string) error {
	rows := make([]overlapRow, len(found))
	for i, o := range found {
		resource := names[o.First.AnimalID]
		if o.Kind == assignment.KindDevice {
			resource = serials[o.First.DeviceID]
		}
		if resource == "" {
			resource = fmt.Sprintf("#%d", o.First.ResourceID(o.Kind))
		}
		rows[i] = overlapRow{
			Kind: o.Kind.String(), Resource: resource,
			First: o.First.ID, FirstAt: span(o.First),
			Second: o.Second.ID, SecondAt: span(o.Second),
		}
	}

	if format == FormatJSON {
		return writeJSON(w, rows)
	}
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No overlapping assignments.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tRESOURCE\tASSIGNMENT\tPERIOD\tOVERLAPS\tPERIOD")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t#%d\t%s\t#%d\t%s\n", r.Kind, r.Resource, r.First, r.FirstAt, r.Second, r.SecondAt)
	}
	return tw.Flush()
}

func validatePeriodCommand(e env) *cli.Command {
	return &cli.Command{
		Name:      "validate-period",
		Usage:     "Check a date range against the console's period rules",
		UsageText: "dairyctl validate-period --start YYYY-MM-DD --end YYYY-MM-DD [--min-days N] [--max-days N] [--allow-future]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "start", Required: true, Usage: "First day"},
			&cli.StringFlag{Name: "end", Required: true, Usage: "Last day"},
			&cli.IntFlag{Name: "min-days", Value: period.DefaultOptions().MinDays, Usage: "Shortest span in days, 0 for none"},
			&cli.IntFlag{Name: "max-days", Value: period.DefaultOptions().MaxDays, Usage: "Longest span in days, 0 for none"},
			&cli.BoolFlag{Name: "allow-future", Usage: "Accept an end date after today"},
		},
		Action: func(cCtx *cli.Context) error {
			start, err := period.ParseDate(cCtx.String("start"))
			if err != nil || start.IsZero() {
				return fmt.Errorf("--start: %w", period.ErrInvalidDate)
			}
			end, err := period.ParseDate(cCtx.String("end"))
			if err != nil || end.IsZero() {
				return fmt.Errorf("--end: %w", period.ErrInvalidDate)
			}
			opts := period.Options{
				MinDays:     cCtx.Int("min-days"),
				MaxDays:     cCtx.Int("max-days"),
				AllowFuture: cCtx.Bool("allow-future"),
				Now:         e.now(),
			}
			if err := period.Check(start, end, opts); err != nil {
				return err
			}
			_, err = fmt.Fprintf(e.out, "Valid: %s to %s (%d days)\n",
				period.FormatDate(start), period.FormatDate(end), period.DaysBetween(start, end))
			return err
		},
	}
}

func alertsCommand(e env) *cli.Command {
	return &cli.Command{
		Name:      "alerts",
		Usage:     "List heat alerts, newest first",
		UsageText: "dairyctl alerts [--animal ID] [--start YYYY-MM-DD] [--end YYYY-MM-DD] [--format text|json]",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "animal", Usage: "Only this animal"},
			&cli.StringFlag{Name: "start", Usage: "From this day"},
			&cli.StringFlag{Name: "end", Usage: "Up to this day"},
			formatFlag(),
		},
		Action: func(cCtx *cli.Context) error {
			format, err := validateFormat(cCtx.String("format"))
			if err != nil {
				return err
			}
			start, err := period.ParseDate(cCtx.String("start"))
			if err != nil {
				return fmt.Errorf("--start: %w", err)
			}
			end, err := period.ParseDate(cCtx.String("end"))
			if err != nil {
				return fmt.Errorf("--end: %w", err)
			}
			if !start.IsZero() && !end.IsZero() && end.Before(start) {
				return &period.Error{Reason: period.ReasonInverted}
			}

			c, err := e.connect(cCtx)
			if err != nil {
				return err
			}
			rows, err := projections.QueryGetAlerts(cCtx.Context, alert.Filter{
				AnimalID:  cCtx.Int("animal"),
				StartDate: start,
				EndDate:   end,
			}, projections.GetAlertsDeps{API: c, Now: e.now})
			if err != nil {
				return err
			}

			if format == FormatJSON {
				return writeJSON(e.out, rows)
			}
			if len(rows) == 0 {
				_, err := fmt.Fprintln(e.out, "No alerts.")
				return err
			}
			tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tANIMAL\tDETECTED\tZ-SCORE\tAGO")
			for _, r := range rows {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%.2f\t%s\n", r.ID, r.AnimalName, r.DetectedAt.UTC().Format("2006-01-02 15:04"), r.ZScore, r.TimeAgo)
			}
			return tw.Flush()
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
