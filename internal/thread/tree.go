// ABOUTME: Navigation tree builder - reconstructs the thread forest and breadcrumb path
// ABOUTME: Pure read-only view computed on demand from a session's flat thread list

package thread

import (
	"context"

	"braid/internal/store"
)

// defaultExpandDepth is the depth below which tree nodes start expanded.
// A display hint only, never persisted.
const defaultExpandDepth = 2

// Node is one thread in the navigation tree.
type Node struct {
	Thread   *store.Thread
	Children []*Node
	Depth    int
	Expanded bool
}

// NavigationContext is everything the UI needs to render thread navigation
// for a session: the breadcrumb path to the current thread, the flat thread
// list and the thread forest.
type NavigationContext struct {
	// ThreadPath is the ordered list of thread ids from the forest root
	// down to the current thread, inclusive. Empty when the current thread
	// is unset or unknown.
	ThreadPath []string

	// AvailableThreads is the session's flat thread list in creation order.
	AvailableThreads []*store.Thread

	// ThreadTree is the session's thread forest. Roots are threads with no
	// parent; sibling order follows creation order.
	ThreadTree []*Node
}

// BuildNavigationContext reconstructs the thread forest and the path to
// currentThreadID for a session. currentThreadID may be empty. The result
// depends only on the current flat thread list: re-running with the same
// input yields an identical tree.
func (s *Service) BuildNavigationContext(ctx context.Context, sessionID, currentThreadID string) *NavigationContext {
	threads := s.GetSessionThreads(ctx, sessionID)

	return &NavigationContext{
		ThreadPath:       buildThreadPath(threads, currentThreadID),
		AvailableThreads: threads,
		ThreadTree:       buildThreadTree(threads),
	}
}

// buildThreadTree assembles the forest from the flat list. A thread whose
// parent is missing from the list is treated as a root rather than dropped.
func buildThreadTree(threads []*store.Thread) []*Node {
	nodes := make(map[string]*Node, len(threads))
	for _, t := range threads {
		nodes[t.ID] = &Node{Thread: t}
	}

	var roots []*Node
	for _, t := range threads {
		node := nodes[t.ID]
		if t.ParentThreadID == "" {
			roots = append(roots, node)
			continue
		}
		parent, ok := nodes[t.ParentThreadID]
		if !ok {
			roots = append(roots, node)
			continue
		}
		parent.Children = append(parent.Children, node)
	}

	for _, root := range roots {
		setDepth(root, 0)
	}
	return roots
}

// setDepth assigns depth and the default expansion hint down the subtree.
func setDepth(node *Node, depth int) {
	node.Depth = depth
	node.Expanded = depth < defaultExpandDepth
	for _, child := range node.Children {
		setDepth(child, depth+1)
	}
}

// buildThreadPath walks parent pointers backward from the target and
// reverses. The walk is bounded by the thread count so corrupted data with a
// parent cycle cannot loop forever.
func buildThreadPath(threads []*store.Thread, currentThreadID string) []string {
	if currentThreadID == "" {
		return nil
	}

	byID := make(map[string]*store.Thread, len(threads))
	for _, t := range threads {
		byID[t.ID] = t
	}
	if _, ok := byID[currentThreadID]; !ok {
		return nil
	}

	var reversed []string
	id := currentThreadID
	for i := 0; i <= len(threads); i++ {
		t, ok := byID[id]
		if !ok {
			break
		}
		reversed = append(reversed, id)
		if t.ParentThreadID == "" {
			break
		}
		id = t.ParentThreadID
	}

	path := make([]string, len(reversed))
	for i, id := range reversed {
		path[len(reversed)-1-i] = id
	}
	return path
}
