package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/conjugar/internal/questionset"
	"github.com/abhisek/conjugar/internal/tense"
)

var setsCmd = &cobra.Command{
	Use:   "sets",
	Short: "Inspect and maintain stored question sets",
}

var setsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List question sets from the index",
	RunE: func(cmd *cobra.Command, args []string) error {
		username, _ := cmd.Flags().GetString("username")

		d, err := newDeps(cmd, nil)
		if err != nil {
			return err
		}
		defer d.close()

		idx, err := d.repo.GetIndex(cmd.Context(), username)
		if err != nil {
			return fmt.Errorf("read index: %w", err)
		}
		if len(idx.Entries) == 0 {
			fmt.Println("No question sets found.")
			return nil
		}

		fmt.Printf("%-36s  %-16s  %s\n", "ID", "Owner", "Title")
		fmt.Println(strings.Repeat("─", 90))
		for _, e := range idx.Entries {
			owner := e.OwnerUsername
			if owner == "" {
				owner = "(legacy)"
			}
			fmt.Printf("%-36s  %-16s  %s\n", e.ID, truncate(owner, 16), e.Title)
		}
		return nil
	},
}

var setsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show the questions of one set",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		username, _ := cmd.Flags().GetString("username")
		asJSON, _ := cmd.Flags().GetBool("json")

		d, err := newDeps(cmd, nil)
		if err != nil {
			return err
		}
		defer d.close()

		set, err := d.repo.GetSet(cmd.Context(), args[0], username)
		if errors.Is(err, questionset.ErrNotFound) {
			return fmt.Errorf("question set %s not found", args[0])
		}
		if err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(set)
		}
		fmt.Printf("ID:     %s\n", set.ID)
		fmt.Printf("Title:  %s\n", set.Title)
		if set.OwnerUsername != "" {
			fmt.Printf("Owner:  %s\n", set.OwnerUsername)
		}
		fmt.Println(strings.Repeat("─", 72))
		printQuestions(set.Questions)
		return nil
	},
}

var setsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a set owned by --username",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		username, _ := cmd.Flags().GetString("username")

		d, err := newDeps(cmd, nil)
		if err != nil {
			return err
		}
		defer d.close()

		err = d.repo.DeleteSet(cmd.Context(), args[0], username)
		if errors.Is(err, questionset.ErrNotFound) {
			return fmt.Errorf("question set %s not found for %s", args[0], username)
		}
		if err != nil {
			return err
		}
		fmt.Println("Deleted", args[0])
		return nil
	},
}

var setsSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove set blobs that no index entry references",
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		prune, _ := cmd.Flags().GetBool("prune-dangling")

		d, err := newDeps(cmd, nil)
		if err != nil {
			return err
		}
		defer d.close()

		minAge := d.cfg.SweepMinAge
		if cmd.Flags().Changed("min-age") {
			minAge, _ = cmd.Flags().GetDuration("min-age")
		}

		report, err := d.repo.Sweep(cmd.Context(), questionset.SweepOptions{
			MinAge:        minAge,
			PruneDangling: prune,
			DryRun:        dryRun,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Scanned:   %d\n", report.Scanned)
		fmt.Printf("Orphaned:  %d\n", report.Orphaned)
		fmt.Printf("Deleted:   %d\n", report.Deleted)
		fmt.Printf("Dangling:  %d\n", report.Dangling)
		fmt.Printf("Pruned:    %d\n", report.Pruned)
		if dryRun && len(report.Orphans) > 0 {
			fmt.Println()
			fmt.Println("Would delete:")
			for _, id := range report.Orphans {
				fmt.Println("  ", id)
			}
		}
		return nil
	},
}

func printQuestions(qs []questionset.Question) {
	for i, q := range qs {
		fmt.Printf("%3d. [%s] %s\n", i+1, tense.DisplayName(string(q.TenseID)), q.SpanishText)
		fmt.Printf("     %s", q.Answer)
		if q.Infinitive != "" {
			fmt.Printf(" (%s)", q.Infinitive)
		}
		fmt.Println()
		if q.EnglishTranslation != "" {
			fmt.Printf("     %s\n", q.EnglishTranslation)
		}
	}
}

func init() {
	setsListCmd.Flags().StringP("username", "u", "", "Only sets owned by this user")
	setsShowCmd.Flags().StringP("username", "u", "", "Requesting user")
	setsShowCmd.Flags().Bool("json", false, "Print the set as JSON")
	setsDeleteCmd.Flags().StringP("username", "u", "", "Owner of the set (required)")
	_ = setsDeleteCmd.MarkFlagRequired("username")
	setsSweepCmd.Flags().Duration("min-age", 0, "Only delete orphans older than this (default CONJUGAR_SWEEP_MIN_AGE)")
	setsSweepCmd.Flags().Bool("prune-dangling", false, "Also drop index entries whose set blob is missing")
	setsSweepCmd.Flags().Bool("dry-run", false, "Report without deleting")

	setsCmd.AddCommand(setsListCmd)
	setsCmd.AddCommand(setsShowCmd)
	setsCmd.AddCommand(setsDeleteCmd)
	setsCmd.AddCommand(setsSweepCmd)
}
