// ABOUTME: CLI command rendering a session's thread forest
// ABOUTME: Colorized indented tree with an optional breadcrumb path

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"braid/internal/store"
	"braid/internal/thread"
)

var currentThreadID string

var treeCmd = &cobra.Command{
	Use:   "tree <session-id>",
	Short: "Render a session's thread tree",
	Args:  cobra.ExactArgs(1),
	RunE:  runTree,
}

func init() {
	treeCmd.Flags().StringVar(&currentThreadID, "current", "", "highlight the path to this thread")
}

func runTree(cmd *cobra.Command, args []string) error {
	svc, cleanup, err := openService()
	if err != nil {
		return err
	}
	defer cleanup()

	nav := svc.BuildNavigationContext(context.Background(), args[0], currentThreadID)
	if len(nav.ThreadTree) == 0 {
		fmt.Println("no threads found")
		return nil
	}

	if len(nav.ThreadPath) > 0 {
		fmt.Printf("path: %s\n\n", strings.Join(nav.ThreadPath, " > "))
	}

	onPath := make(map[string]bool, len(nav.ThreadPath))
	for _, id := range nav.ThreadPath {
		onPath[id] = true
	}

	for _, root := range nav.ThreadTree {
		printNode(root, onPath)
	}
	return nil
}

func printNode(node *thread.Node, onPath map[string]bool) {
	indent := strings.Repeat("  ", node.Depth)

	title := node.Thread.Title
	switch {
	case onPath[node.Thread.ID]:
		title = color.New(color.FgCyan, color.Bold).Sprint(title)
	case node.Thread.Status == store.StatusArchived:
		title = color.New(color.Faint).Sprint(title)
	case node.Thread.Status == store.StatusClosed:
		title = color.New(color.FgRed).Sprint(title)
	}

	marker := "-"
	if len(node.Children) > 0 && !node.Expanded {
		marker = "+"
	}

	meta := color.New(color.Faint).Sprintf("(%d msgs, %s)", node.Thread.MessageCount, node.Thread.ID)
	fmt.Printf("%s%s %s  %s\n", indent, marker, title, meta)

	for _, child := range node.Children {
		printNode(child, onPath)
	}
}
