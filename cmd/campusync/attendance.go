package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/campusync/campusync/internal/services/attendance"
	"github.com/campusync/campusync/internal/ui"
)

var attendanceCmd = &cobra.Command{
	Use:   "attendance",
	Short: "Attendance marking and summaries",
}

var attendanceMarkCmd = &cobra.Command{
	Use:   "mark <studentId>",
	Short: "Mark one student for one class",
	Long: `Record one attendance event. Re-marking the same date and subject
overwrites the earlier status instead of duplicating it. The write is
local; it is pushed on the next sync.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		date, _ := cmd.Flags().GetString("date")
		subject, _ := cmd.Flags().GetString("subject")
		status, _ := cmd.Flags().GetString("status")

		a, err := newApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.Close()

		err = a.attendance.Mark(context.Background(), a.cfg.Owner, args[0], attendance.Event{
			Date:     date,
			Subject:  subject,
			Status:   status,
			MarkedBy: a.cfg.Owner,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", ui.RenderFail("✗"), err)
			os.Exit(1)
		}
		fmt.Printf("%s Marked %s %s for %s on %s\n", ui.RenderPass("✓"), args[0], status, subject, date)
	},
}

var attendanceSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit attendance for a whole class",
	Long: `Record one event per student in the roster for a class session.

Students listed with --present are marked Present; every other roster
member is marked Absent. An unmarked student is never counted present.
The submission works offline; records stay pending until the next
sync.`,
	Run: func(cmd *cobra.Command, args []string) {
		date, _ := cmd.Flags().GetString("date")
		subject, _ := cmd.Flags().GetString("subject")
		present, _ := cmd.Flags().GetString("present")

		a, err := newApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.Close()

		ctx := context.Background()

		roster, err := a.roster.Students(ctx, a.cfg.Owner)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s Failed to load roster: %v\n", ui.RenderFail("✗"), err)
			os.Exit(1)
		}
		if len(roster) == 0 {
			fmt.Fprintf(os.Stderr, "%s Roster is empty, nothing to submit\n", ui.RenderWarn("⚠"))
			os.Exit(1)
		}

		ids := make([]string, 0, len(roster))
		for _, student := range roster {
			if id, ok := student["registerNo"].(string); ok {
				ids = append(ids, id)
			}
		}

		statuses := make(map[string]string)
		if present != "" {
			for _, id := range strings.Split(present, ",") {
				statuses[strings.TrimSpace(id)] = attendance.StatusPresent
			}
		}

		result, err := a.attendance.SubmitClass(ctx, a.cfg.Owner, ids, date, subject, statuses, a.cfg.Owner)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", ui.RenderFail("✗"), err)
			os.Exit(1)
		}

		presentCount, failed := 0, 0
		for _, sr := range result.Results {
			if sr.Status == attendance.StatusPresent {
				presentCount++
			}
			if !sr.OK {
				failed++
				fmt.Printf("  %s %s: %s\n", ui.RenderFail("✗"), sr.StudentID, sr.Error)
			}
		}

		fmt.Printf("%s Submitted %s on %s: %d present, %d absent\n",
			ui.RenderPass("✓"), subject, date, presentCount, len(result.Results)-presentCount)
		if failed > 0 {
			fmt.Printf("%s %d students failed to record\n", ui.RenderWarn("⚠"), failed)
		}
		if result.Offline {
			fmt.Printf("%s Offline: records are pending until the next sync\n", ui.RenderWarn("⚠"))
		}
	},
}

var attendanceSummaryCmd = &cobra.Command{
	Use:   "summary <studentId>",
	Short: "Show per-subject attendance and eligibility",
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.Close()

		summaries, err := a.attendance.Summary(context.Background(), a.cfg.Owner, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", ui.RenderFail("✗"), err)
			os.Exit(1)
		}

		fmt.Printf("\n%s\n\n", ui.RenderHeader(fmt.Sprintf("Attendance for %s", args[0])))
		for _, s := range summaries {
			marker := ui.RenderPass("✓")
			if !s.Eligible {
				marker = ui.RenderFail("✗")
			}
			fmt.Printf("  %s %-8s %-32s %3d/%3d  %6.1f%%\n",
				marker, s.Subject.Code, s.Subject.Name, s.Attended, s.Total, s.Percentage)
		}
		fmt.Printf("\n%s\n", ui.RenderMuted(fmt.Sprintf("Eligibility threshold: %.0f%%", attendance.EligibilityThreshold)))
	},
}

func init() {
	attendanceMarkCmd.Flags().String("date", "", "class date (YYYY-MM-DD)")
	attendanceMarkCmd.Flags().String("subject", "", "subject code")
	attendanceMarkCmd.Flags().String("status", attendance.StatusPresent, "Present or Absent")

	attendanceSubmitCmd.Flags().String("date", "", "class date (YYYY-MM-DD)")
	attendanceSubmitCmd.Flags().String("subject", "", "subject code")
	attendanceSubmitCmd.Flags().String("present", "", "comma-separated register numbers marked present")

	attendanceCmd.AddCommand(attendanceMarkCmd)
	attendanceCmd.AddCommand(attendanceSubmitCmd)
	attendanceCmd.AddCommand(attendanceSummaryCmd)
	rootCmd.AddCommand(attendanceCmd)
}
