package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jzempel/continuity/internal/types"
	"github.com/jzempel/continuity/internal/ui"
)

var issueCmd = &cobra.Command{
	Use:     "issue",
	Aliases: []string{"story"},
	Short:   "Show the item bound to the current branch",
	GroupID: groupItems,
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		withComments, _ := cmd.Flags().GetBool("comments")
		full, _ := cmd.Flags().GetBool("full")

		item, err := engine.CurrentItem(rootCtx)
		if err != nil {
			fatal(err)
		}
		var comments []types.Comment
		if withComments {
			if comments, err = engine.Tracker.Comments(rootCtx, item); err != nil {
				fatal(err)
			}
		}

		if jsonOutput {
			outputJSON(struct {
				*types.TrackerItem
				Comments []types.Comment `json:"comments,omitempty"`
			}{item, comments})
			return
		}
		if err := ui.ToPager(formatItem(item, comments, full, ui.TerminalWidth(80)), ui.PagerOptions{NoPager: noPager}); err != nil {
			FatalError("%v", err)
		}
	},
}

var issuesCmd = &cobra.Command{
	Use:     "issues",
	Short:   "List open items",
	GroupID: groupItems,
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		mine, _ := cmd.Flags().GetBool("assignedtoyou")
		if v, _ := cmd.Flags().GetBool("myissues"); v {
			mine = true
		}
		listItems(types.Filter{AssignedToCurrentUser: mine})
	},
}

var backlogCmd = &cobra.Command{
	Use:     "backlog",
	Short:   "List unstarted items in backlog order",
	GroupID: groupItems,
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		mine, _ := cmd.Flags().GetBool("mywork")
		listItems(types.Filter{AssignedToCurrentUser: mine, UnstartedOnly: true})
	},
}

func listItems(filter types.Filter) {
	items, err := engine.Tracker.ListCandidates(rootCtx, filter)
	if err != nil {
		fatal(err)
	}
	if jsonOutput {
		if items == nil {
			items = []types.TrackerItem{}
		}
		outputJSON(items)
		return
	}
	if err := ui.ToPager(formatItems(items), ui.PagerOptions{NoPager: noPager}); err != nil {
		FatalError("%v", err)
	}
}

// formatItem renders an item with its description and, when given, its
// comments. Long descriptions are truncated unless full is set; comment
// text is wrapped to width.
func formatItem(item *types.TrackerItem, comments []types.Comment, full bool, width int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", ui.RenderAccent(item.Key), ui.RenderHeader(item.Title))

	meta := []string{ui.RenderStatus(item.Status)}
	if item.Type != "" {
		meta = append(meta, item.Type)
	}
	if item.Assignee != "" {
		meta = append(meta, "@"+item.Assignee)
	}
	if item.Estimate != nil {
		meta = append(meta, fmt.Sprintf("%g points", *item.Estimate))
	}
	if item.Milestone != "" {
		meta = append(meta, item.Milestone)
	}
	fmt.Fprintln(&b, strings.Join(meta, " · "))
	if len(item.Labels) > 0 {
		fmt.Fprintln(&b, ui.RenderMuted("labels: "+strings.Join(item.Labels, ", ")))
	}
	if item.URL != "" {
		fmt.Fprintln(&b, ui.RenderMuted(item.URL))
	}

	if desc := strings.TrimSpace(item.Description); desc != "" {
		if !full {
			desc = ui.TruncateLines(desc, ui.DefaultMaxLines, ui.DefaultContextLines)
		}
		fmt.Fprintln(&b)
		fmt.Fprintln(&b, strings.TrimRight(ui.RenderMarkdown(desc), "\n"))
	}

	if len(item.Tasks) > 0 {
		fmt.Fprintln(&b)
		fmt.Fprintln(&b, ui.RenderCategory("Tasks"))
		for _, t := range item.Tasks {
			fmt.Fprintf(&b, "  %2d. %s\n", t.Number, ui.RenderTask(t))
		}
	}

	if len(comments) > 0 {
		fmt.Fprintln(&b)
		fmt.Fprintln(&b, ui.RenderCategory(fmt.Sprintf("Comments (%d)", len(comments))))
		for _, c := range comments {
			when := ""
			if !c.CreatedAt.IsZero() {
				when = " " + c.CreatedAt.Format("2006-01-02 15:04")
			}
			fmt.Fprintf(&b, "\n%s%s\n", ui.RenderAccent(c.Author), ui.RenderMuted(when))
			fmt.Fprintln(&b, ui.WrapText(strings.TrimSpace(c.Text), width))
		}
	}
	return b.String()
}

// formatItems renders one line per item.
func formatItems(items []types.TrackerItem) string {
	if len(items) == 0 {
		return ui.RenderMuted("No items found.") + "\n"
	}
	width := 0
	for _, it := range items {
		if len(it.Key) > width {
			width = len(it.Key)
		}
	}
	var b strings.Builder
	for _, it := range items {
		key := it.Key + strings.Repeat(" ", width-len(it.Key))
		line := fmt.Sprintf("%s  %s  %s", ui.RenderAccent(key), ui.RenderStatus(it.Status), ui.TruncateSimple(it.Title, 72))
		if it.Assignee != "" {
			line += ui.RenderMuted(" @" + it.Assignee)
		}
		fmt.Fprintln(&b, line)
	}
	return b.String()
}

func init() {
	issueCmd.Flags().Bool("comments", false, "Include comments")
	issueCmd.Flags().Bool("full", false, "Show the full description without truncation")

	issuesCmd.Flags().BoolP("assignedtoyou", "u", false, "Only items assigned to you")
	issuesCmd.Flags().Bool("myissues", false, "Alias for --assignedtoyou")

	backlogCmd.Flags().BoolP("mywork", "m", false, "Only items you own")

	rootCmd.AddCommand(issueCmd, issuesCmd, backlogCmd)
}
