package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/conjugar/internal/generation"
	"github.com/abhisek/conjugar/internal/tense"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate and store a new question set",
	RunE: func(cmd *cobra.Command, args []string) error {
		username, _ := cmd.Flags().GetString("username")
		count, _ := cmd.Flags().GetInt("count")
		title, _ := cmd.Flags().GetString("title")
		tenseList, _ := cmd.Flags().GetString("tenses")
		asJSON, _ := cmd.Flags().GetBool("json")

		tenses, err := tense.ParseList(tenseList)
		if err != nil {
			return err
		}

		d, err := newDeps(cmd, nil)
		if err != nil {
			return err
		}
		defer d.close()

		gen, err := d.newGenerator(cmd.Context(), nil)
		if err != nil {
			return fmt.Errorf("configure question generation: %w", err)
		}

		res, err := gen.Generate(cmd.Context(), generation.Request{
			Title:         title,
			Count:         count,
			Tenses:        tenses,
			OwnerUsername: username,
		})
		if err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res.Set)
		}

		if res.Failed() {
			fmt.Printf("%s (%s)\n", res.Set.Title, res.Outcome)
			if res.Err != nil {
				fmt.Println("  ", res.Err)
			}
			return fmt.Errorf("generation failed: %s", res.Outcome)
		}

		fmt.Printf("Created %s  %q  (%d questions", res.Set.ID, res.Set.Title, len(res.Set.Questions))
		if len(res.Dropped) > 0 {
			fmt.Printf(", %d dropped", len(res.Dropped))
		}
		fmt.Println(")")
		fmt.Println(strings.Repeat("─", 72))
		printQuestions(res.Set.Questions)
		return nil
	},
}

func init() {
	generateCmd.Flags().StringP("username", "u", "", "Owner of the new set (required)")
	generateCmd.Flags().IntP("count", "n", 0, "Number of questions (default from CONJUGAR_DEFAULT_COUNT)")
	generateCmd.Flags().StringP("tenses", "t", "", "Comma-separated tense keys (default: all tenses)")
	generateCmd.Flags().String("title", "", "Set title (default derived from tenses and count)")
	generateCmd.Flags().Bool("json", false, "Print the set as JSON")
	_ = generateCmd.MarkFlagRequired("username")
}
