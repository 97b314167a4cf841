package merging

import (
	"fmt"
	"reflect"

	"github.com/creastat/merging/core"
)

// periodCountUnset marks a periodCountCheck that has seen no timeline yet
const periodCountUnset = -1

// periodCountCheck remembers the period count of the first reported timeline
// and compares every later timeline against it.
type periodCountCheck struct {
	established int
}

func newPeriodCountCheck() periodCountCheck {
	return periodCountCheck{established: periodCountUnset}
}

// check compares timeline against the established period count. The first
// timeline checked establishes the count and always agrees.
func (c *periodCountCheck) check(index int, timeline core.Timeline) *MergeError {
	count := timeline.PeriodCount()
	if c.established == periodCountUnset {
		c.established = count
		return nil
	}
	if count != c.established {
		return &MergeError{
			Reason:   ReasonPeriodCountMismatch,
			Index:    index,
			Expected: c.established,
			Actual:   count,
		}
	}
	return nil
}

// ValidationError represents a validation error with context
type ValidationError struct {
	Message string
	Details string
}

func (e ValidationError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Details)
	}
	return e.Message
}

// ValidateSources checks a child list before a MergingSource is built from it
func ValidateSources(names []string, sources []core.Source) error {
	if len(sources) == 0 {
		return ValidationError{
			Message: "source validation failed",
			Details: "at least one source is required",
		}
	}

	seenNames := make(map[string]int, len(names))
	seenPointers := make(map[uintptr]int, len(sources))
	for i, src := range sources {
		if src == nil {
			return ValidationError{
				Message: "source validation failed",
				Details: fmt.Sprintf("source %d is nil", i),
			}
		}

		if i < len(names) && names[i] != "" {
			if prev, exists := seenNames[names[i]]; exists {
				return ValidationError{
					Message: "source validation failed",
					Details: fmt.Sprintf("sources %d and %d are both named %q", prev, i, names[i]),
				}
			}
			seenNames[names[i]] = i
		}

		// Sources are prepared once, so the same instance cannot appear twice
		if v := reflect.ValueOf(src); v.Kind() == reflect.Pointer {
			if prev, exists := seenPointers[v.Pointer()]; exists {
				return ValidationError{
					Message: "source validation failed",
					Details: fmt.Sprintf("sources %d and %d are the same instance", prev, i),
				}
			}
			seenPointers[v.Pointer()] = i
		}
	}

	return nil
}

// ValidateGraph performs structural validation on a source graph
func ValidateGraph(graph *SourceGraph) error {
	root := graph.GetRoot()
	if root == nil {
		return ValidationError{
			Message: "graph validation failed",
			Details: "no root node defined",
		}
	}
	if !root.IsMerge() {
		return ValidationError{
			Message: "graph validation failed",
			Details: fmt.Sprintf("root node %q is not a merge node", root.Name()),
		}
	}

	for _, node := range graph.AllNodes() {
		if node.IsMerge() && len(node.Children()) == 0 {
			return ValidationError{
				Message: "graph validation failed",
				Details: fmt.Sprintf("merge node %q has no children", node.Name()),
			}
		}
		if len(node.Parents()) > 1 {
			return ValidationError{
				Message: "graph validation failed",
				Details: fmt.Sprintf("node %q is merged by %d parents, a source can only be prepared once", node.Name(), len(node.Parents())),
			}
		}
	}

	if err := detectCycles(graph); err != nil {
		return err
	}

	return checkReachability(graph)
}

// detectCycles checks for cycles using DFS
func detectCycles(graph *SourceGraph) error {
	visited := make(map[string]bool)
	recStack := make(map[string]bool)

	for _, node := range graph.AllNodes() {
		if !visited[node.Name()] {
			if hasCycle(node, visited, recStack) {
				return ValidationError{
					Message: "graph validation failed",
					Details: fmt.Sprintf("cycle detected involving node %q", node.Name()),
				}
			}
		}
	}

	return nil
}

// hasCycle performs DFS to detect cycles
func hasCycle(node *graphNode, visited, recStack map[string]bool) bool {
	visited[node.Name()] = true
	recStack[node.Name()] = true

	for _, child := range node.Children() {
		if !visited[child.Name()] {
			if hasCycle(child, visited, recStack) {
				return true
			}
		} else if recStack[child.Name()] {
			return true
		}
	}

	recStack[node.Name()] = false
	return false
}

// checkReachability verifies that all nodes are reachable from the root
func checkReachability(graph *SourceGraph) error {
	reachable := make(map[string]bool)
	dfsReachability(graph.GetRoot(), reachable)

	for _, node := range graph.AllNodes() {
		if !reachable[node.Name()] {
			return ValidationError{
				Message: "graph validation failed",
				Details: fmt.Sprintf("node %q is unreachable from root", node.Name()),
			}
		}
	}

	return nil
}

// dfsReachability performs DFS to mark all reachable nodes
func dfsReachability(node *graphNode, reachable map[string]bool) {
	if reachable[node.Name()] {
		return
	}

	reachable[node.Name()] = true

	for _, child := range node.Children() {
		dfsReachability(child, reachable)
	}
}
