package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/conjugar/internal/tense"
)

var tensesCmd = &cobra.Command{
	Use:   "tenses",
	Short: "List the tense keys accepted by generate",
	Run: func(cmd *cobra.Command, args []string) {
		verbose, _ := cmd.Flags().GetBool("endings")

		fmt.Printf("%-9s  %-28s  %-5s  %s\n", "Key", "Name", "Level", "Use")
		fmt.Println(strings.Repeat("─", 90))
		for _, t := range tense.All() {
			fmt.Printf("%-9s  %-28s  %-5s  %s\n", t.ID, t.Name, t.Level, t.Description)
			if verbose {
				fmt.Printf("%-9s  -ar: %s\n", "", strings.Join(t.Endings.AR, ", "))
				fmt.Printf("%-9s  -er: %s\n", "", strings.Join(t.Endings.ER, ", "))
				fmt.Printf("%-9s  -ir: %s\n", "", strings.Join(t.Endings.IR, ", "))
			}
		}
	},
}

func init() {
	tensesCmd.Flags().Bool("endings", false, "Show person endings for each verb class")
}
