package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"eventphoto/internal/app"
	"eventphoto/internal/photo"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent runs from the journal",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cmd, cfg, "history", args)
		if err != nil {
			return err
		}
		defer a.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := a.History(limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}
		fmt.Println(renderTable(
			[]string{"Run", "Operation", "State", "Started", "Processed", "Duplicates", "Errors", "Destination"},
			historyRows(runs),
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
		))
		return nil
	},
}

func historyRows(runs []*photo.RunRecord) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.ID,
			r.Operation,
			string(r.State),
			r.StartedAt.Local().Format(timeLayout),
			strconv.Itoa(r.Processed),
			strconv.Itoa(r.Duplicates),
			strconv.Itoa(r.Errors),
			r.Destination,
		})
	}
	return rows
}

var showCmd = &cobra.Command{
	Use:   "show RUN_ID",
	Short: "Show the recorded actions and errors of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cmd, cfg, "show", args)
		if err != nil {
			return err
		}
		defer a.Close()

		details, err := a.ShowRun(args[0])
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(os.Stdout, newDetailsJSON(details))
		}
		printDetails(details)
		return nil
	},
}

func printDetails(d *app.RunDetails) {
	r := d.Run
	fmt.Printf("Run:         %s\n", r.ID)
	fmt.Printf("Operation:   %s\n", r.Operation)
	fmt.Printf("State:       %s\n", r.State)
	fmt.Printf("Started:     %s\n", r.StartedAt.Local().Format(timeLayout))
	if r.FinishedAt != nil {
		fmt.Printf("Finished:    %s\n", r.FinishedAt.Local().Format(timeLayout))
	}
	fmt.Printf("Destination: %s\n", r.Destination)
	fmt.Printf("Processed: %d  Duplicates: %d  Skipped: %d  Errors: %d\n", r.Processed, r.Duplicates, r.Skipped, r.Errors)

	if len(d.Actions) > 0 {
		rows := make([][]string, 0, len(d.Actions))
		for _, act := range d.Actions {
			rows = append(rows, []string{string(act.Kind), string(act.Status), act.Source, act.Destination, act.Error})
		}
		fmt.Println()
		fmt.Println(renderTable([]string{"Action", "Status", "Source", "Destination", "Error"}, rows, nil))
	}
	if len(d.Errors) > 0 {
		fmt.Println()
		fmt.Println("Errors:")
		for _, e := range d.Errors {
			fmt.Printf("  %s\n", e.Error())
		}
	}
}

type detailsJSON struct {
	Run     *photo.RunRecord      `json:"run"`
	Actions []*photo.ActionRecord `json:"actions"`
	Errors  []errorJSON           `json:"errors"`
}

func newDetailsJSON(d *app.RunDetails) detailsJSON {
	out := detailsJSON{Run: d.Run, Actions: d.Actions, Errors: []errorJSON{}}
	if out.Actions == nil {
		out.Actions = []*photo.ActionRecord{}
	}
	for _, e := range d.Errors {
		ej := errorJSON{Kind: e.Kind, Path: e.Path, Message: e.Error()}
		if e.Err != nil {
			ej.Message = e.Err.Error()
		}
		out.Errors = append(out.Errors, ej)
	}
	return out
}

var publishCmd = &cobra.Command{
	Use:   "publish EVENT_DIR",
	Short: "Upload an organized event folder to a publish target",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cmd, cfg, "publish", args)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		target, _ := cmd.Flags().GetString("target")
		report, err := a.Publish(ctx, args[0], target)
		if err != nil {
			return err
		}
		fmt.Printf("Published %s to %s: %s files, %s bytes", report.Event, report.Target,
			formatCount(int64(len(report.Keys))), formatCount(report.Bytes))
		if report.Skipped > 0 {
			fmt.Printf(" (%d skipped)", report.Skipped)
		}
		fmt.Println()
		return nil
	},
}
