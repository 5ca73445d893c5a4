package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/campusync/campusync/internal/ui"
)

var studentsCmd = &cobra.Command{
	Use:   "students",
	Short: "Student roster operations",
}

var studentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the cached roster",
	Long: `List the student roster.

The roster is served from the local cache when it has entries (a
background refresh updates it for the next read); an empty cache
triggers a blocking fetch across the remote roster shards.`,
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.Close()

		roster, err := a.roster.Students(context.Background(), a.cfg.Owner)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s Failed to load roster: %v\n", ui.RenderFail("✗"), err)
			os.Exit(1)
		}

		if len(roster) == 0 {
			fmt.Printf("%s Roster is empty\n", ui.RenderWarn("⚠"))
			return
		}

		fmt.Printf("\n%s\n\n", ui.RenderHeader(fmt.Sprintf("Roster (%d students)", len(roster))))
		for _, student := range roster {
			registerNo, _ := student["registerNo"].(string)
			name, _ := student["name"].(string)
			fmt.Printf("  %s  %s\n", ui.RenderAccent(registerNo), name)
		}
	},
}

var studentsImportCmd = &cobra.Command{
	Use:   "import <file.json>",
	Short: "Bulk-import students from a JSON file",
	Long: `Import students from a JSON file holding an array of objects, each
with at least a registerNo field. Existing entries are merged by
register number; imported records are pending until the next sync.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.Close()

		raw, err := os.ReadFile(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to read %s: %v\n", args[0], err)
			os.Exit(1)
		}

		var entries []map[string]any
		if err := json.Unmarshal(raw, &entries); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s is not a JSON array of students: %v\n", args[0], err)
			os.Exit(1)
		}

		count, err := a.roster.Import(context.Background(), a.cfg.Owner, entries)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s Import failed: %v\n", ui.RenderFail("✗"), err)
			os.Exit(1)
		}

		fmt.Printf("%s Imported %d students (pending until next sync)\n", ui.RenderPass("✓"), count)
	},
}

func init() {
	studentsCmd.AddCommand(studentsListCmd)
	studentsCmd.AddCommand(studentsImportCmd)
	rootCmd.AddCommand(studentsCmd)
}
