package cmd

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/conjugar/internal/eventlog"
	"github.com/abhisek/conjugar/internal/llm"
)

var llmCmd = &cobra.Command{
	Use:   "llm",
	Short: "Inspect LLM request/response events",
}

var llmListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent LLM events",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		purpose, _ := cmd.Flags().GetString("purpose")
		owner, _ := cmd.Flags().GetString("owner")

		s, err := openEventLog(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := context.Background()
		events, err := s.QueryLLMEvents(ctx, eventlog.QueryOpts{Limit: limit, Purpose: purpose, Owner: owner})
		if err != nil {
			return fmt.Errorf("query events: %w", err)
		}

		if len(events) == 0 {
			fmt.Println("No LLM events found.")
			return nil
		}

		// Header.
		fmt.Printf("%-5s  %-19s  %-16s  %-12s  %-28s  %-6s  %-6s  %-7s  %s\n",
			"ID", "Timestamp", "Purpose", "Owner", "Model", "In", "Out", "Ms", "OK")
		fmt.Println(strings.Repeat("\u2500", 114))

		for _, e := range events {
			ok := "✓"
			if !e.Success {
				ok = "✗"
			}
			model := truncate(e.Model, 28)
			fmt.Printf("%-5d  %-19s  %-16s  %-12s  %-28s  %-6d  %-6d  %-7d  %s\n",
				e.ID,
				e.Timestamp.Local().Format("2006-01-02 15:04:05"),
				e.Purpose,
				truncate(e.Owner, 12),
				model,
				e.InputTokens,
				e.OutputTokens,
				e.LatencyMs,
				ok,
			)
		}
		return nil
	},
}

var llmViewCmd = &cobra.Command{
	Use:   "view <id>",
	Short: "View full request/response for an LLM event",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var id int64
		if _, err := fmt.Sscanf(args[0], "%d", &id); err != nil {
			return fmt.Errorf("invalid ID %q: %w", args[0], err)
		}

		s, err := openEventLog(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := context.Background()
		e, err := s.GetLLMEvent(ctx, id)
		if err != nil {
			return fmt.Errorf("get event: %w", err)
		}
		if e == nil {
			return fmt.Errorf("event %d not found", id)
		}

		sep := strings.Repeat("\u2500", 60)

		fmt.Printf("ID:        %d\n", e.ID)
		fmt.Printf("Time:      %s\n", e.Timestamp.Local().Format("2006-01-02 15:04:05"))
		fmt.Printf("Provider:  %s\n", e.Provider)
		fmt.Printf("Model:     %s\n", e.Model)
		fmt.Printf("Purpose:   %s\n", e.Purpose)
		if e.Owner != "" {
			fmt.Printf("Owner:     %s\n", e.Owner)
		}
		fmt.Printf("Tokens:    %d in / %d out\n", e.InputTokens, e.OutputTokens)
		fmt.Printf("Latency:   %dms\n", e.LatencyMs)
		fmt.Printf("Success:   %v\n", e.Success)
		if e.ErrorMessage != "" {
			fmt.Printf("Error:     %s\n", e.ErrorMessage)
		}

		fmt.Println()
		fmt.Println(sep)
		fmt.Println("REQUEST")
		fmt.Println(sep)
		if e.RequestBody != "" {
			fmt.Println(e.RequestBody)
		} else {
			fmt.Println("(not captured)")
		}

		fmt.Println(sep)
		fmt.Println("RESPONSE")
		fmt.Println(sep)
		if e.ResponseBody != "" {
			fmt.Println(e.ResponseBody)
		} else {
			fmt.Println("(not captured)")
		}

		return nil
	},
}

var llmStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show token usage and estimated cost, grouped by purpose, model or owner",
	RunE: func(cmd *cobra.Command, args []string) error {
		by, _ := cmd.Flags().GetString("by")

		s, err := openEventLog(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		rows, err := s.LLMUsage(cmd.Context(), eventlog.UsageGroup(by))
		if err != nil {
			return fmt.Errorf("query usage: %w", err)
		}
		if len(rows) == 0 {
			fmt.Println("No LLM usage recorded yet.")
			return nil
		}

		lines, total := summarizeUsage(rows)
		rule := strings.Repeat("\u2500", 86)
		row := "%-24s  %6s  %10s  %10s  %8s  %6s  %10s\n"

		fmt.Printf(row, strings.ToUpper(by[:1])+by[1:], "Calls", "Input", "Output", "Avg Ms", "Failed", "Cost (USD)")
		fmt.Println(rule)
		for _, l := range lines {
			fmt.Printf(row, truncate(l.key, 24), itoa(l.calls), itoa(l.in), itoa(l.out), itoa(int(l.avgLatencyMs())), itoa(l.failures), l.cost())
		}
		fmt.Println(rule)
		fmt.Printf(row, "TOTAL", itoa(total.calls), itoa(total.in), itoa(total.out), itoa(int(total.avgLatencyMs())), itoa(total.failures), total.cost())

		if len(total.unpriced) > 0 {
			fmt.Printf("\nPricing unavailable for: %s\n", strings.Join(total.unpriced, ", "))
		}
		return nil
	},
}

// usageLine is one printed row of the stats table.
type usageLine struct {
	key       string
	calls     int
	in, out   int
	latencyMs int64
	failures  int
	usd       float64
	unpriced  []string // models with no known price
}

func (l usageLine) avgLatencyMs() int64 {
	if l.calls == 0 {
		return 0
	}
	return l.latencyMs / int64(l.calls)
}

// cost formats the estimate, marking it "~" when some models had no price.
func (l usageLine) cost() string {
	switch {
	case len(l.unpriced) == 0:
		return formatCost(l.usd)
	case l.usd == 0:
		return "?"
	default:
		return "~" + formatCost(l.usd)
	}
}

func (l *usageLine) add(u eventlog.Usage) {
	l.calls += u.Calls
	l.in += u.InputTokens
	l.out += u.OutputTokens
	l.latencyMs += u.LatencyMs
	l.failures += u.Failures
	if c := llm.LookupCost(u.Model); c != nil {
		l.usd += c.Cost(u.InputTokens, u.OutputTokens)
	} else if !slices.Contains(l.unpriced, u.Model) {
		l.unpriced = append(l.unpriced, u.Model)
	}
}

// summarizeUsage folds per-model rows into one line per key, in the order
// the keys first appear, plus a grand total.
func summarizeUsage(rows []eventlog.Usage) ([]usageLine, usageLine) {
	var lines []usageLine
	var total usageLine
	index := map[string]int{}
	for _, u := range rows {
		key := u.Key
		if key == "" {
			key = "(none)"
		}
		i, ok := index[key]
		if !ok {
			i = len(lines)
			index[key] = i
			lines = append(lines, usageLine{key: key})
		}
		lines[i].add(u)
		total.add(u)
	}
	return lines, total
}

func itoa(n int) string { return strconv.Itoa(n) }

// openEventLog opens the event database named by --events-db or the
// configuration, without requiring LLM credentials.
func openEventLog(cmd *cobra.Command) (*eventlog.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	path := cfg.EventsDB
	if path == "" {
		if path, err = eventlog.DefaultDBPath(); err != nil {
			return nil, fmt.Errorf("resolve event log path: %w", err)
		}
	}
	if err := eventlog.EnsureDir(path); err != nil {
		return nil, fmt.Errorf("create event log dir: %w", err)
	}
	s, err := eventlog.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	return s, nil
}

// truncate shortens s to at most max runes.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

func formatCost(usd float64) string {
	if usd < 0.01 {
		return fmt.Sprintf("$%.4f", usd)
	}
	return fmt.Sprintf("$%.2f", usd)
}

func init() {
	llmListCmd.Flags().IntP("limit", "n", 20, "Number of events to show")
	llmListCmd.Flags().StringP("purpose", "p", "", "Filter by purpose (e.g. question-set-gen)")
	llmListCmd.Flags().StringP("owner", "u", "", "Filter by the username a request was made for")

	llmStatsCmd.Flags().String("by", string(eventlog.ByPurpose), "Group by purpose, model or owner")

	llmCmd.AddCommand(llmListCmd)
	llmCmd.AddCommand(llmViewCmd)
	llmCmd.AddCommand(llmStatsCmd)
}
