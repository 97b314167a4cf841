package merging

import (
	"fmt"

	"github.com/creastat/merging/core"
)

// SourceGraph represents a tree of nested merges: leaf nodes wrap child
// sources, merge nodes combine their children in insertion order.
type SourceGraph struct {
	// nodes maps node names to their graph node representations
	nodes map[string]*graphNode

	// order keeps node names in insertion order
	order []string

	// root is the name of the outermost merge node
	root string
}

// graphNode represents a leaf source or a merge in the source graph
type graphNode struct {
	name string

	// source is the wrapped child source, nil for merge nodes
	source core.Source

	// merge marks nodes that combine their children
	merge bool

	// fanOut configures period creation for merge nodes
	fanOut core.FanOutConfig

	// children are merged in order; index 0 is the primary
	children []*graphNode

	parents []*graphNode
}

// NewSourceGraph creates a new empty source graph
func NewSourceGraph() *SourceGraph {
	return &SourceGraph{
		nodes: make(map[string]*graphNode),
	}
}

// AddSource adds a leaf node wrapping source
func (sg *SourceGraph) AddSource(name string, source core.Source) error {
	if source == nil {
		return fmt.Errorf("source node %q has a nil source", name)
	}
	return sg.addNode(&graphNode{name: name, source: source})
}

// AddMerge adds a merge node
func (sg *SourceGraph) AddMerge(name string, fanOut core.FanOutConfig) error {
	return sg.addNode(&graphNode{name: name, merge: true, fanOut: fanOut})
}

func (sg *SourceGraph) addNode(node *graphNode) error {
	if node.name == "" {
		return fmt.Errorf("node name must not be empty")
	}
	if _, exists := sg.nodes[node.name]; exists {
		return fmt.Errorf("node %q already exists in graph", node.name)
	}
	sg.nodes[node.name] = node
	sg.order = append(sg.order, node.name)
	return nil
}

// AddChild appends childName to the children of the merge node parentName
func (sg *SourceGraph) AddChild(parentName, childName string) error {
	parent, exists := sg.nodes[parentName]
	if !exists {
		return fmt.Errorf("merge node %q does not exist", parentName)
	}
	if !parent.merge {
		return fmt.Errorf("node %q is a source, not a merge", parentName)
	}

	child, exists := sg.nodes[childName]
	if !exists {
		return fmt.Errorf("child node %q does not exist", childName)
	}

	parent.children = append(parent.children, child)
	child.parents = append(child.parents, parent)
	return nil
}

// SetRoot sets the outermost merge node
func (sg *SourceGraph) SetRoot(name string) error {
	if _, exists := sg.nodes[name]; !exists {
		return fmt.Errorf("root node %q does not exist", name)
	}
	sg.root = name
	return nil
}

// GetNode retrieves a node by name
func (sg *SourceGraph) GetNode(name string) *graphNode {
	return sg.nodes[name]
}

// GetRoot returns the root node
func (sg *SourceGraph) GetRoot() *graphNode {
	if sg.root == "" {
		return nil
	}
	return sg.nodes[sg.root]
}

// AllNodes returns all nodes in insertion order
func (sg *SourceGraph) AllNodes() []*graphNode {
	nodes := make([]*graphNode, 0, len(sg.order))
	for _, name := range sg.order {
		nodes = append(nodes, sg.nodes[name])
	}
	return nodes
}

// Name returns the node's name
func (n *graphNode) Name() string {
	return n.name
}

// Source returns the wrapped source of a leaf node
func (n *graphNode) Source() core.Source {
	return n.source
}

// IsMerge reports whether the node merges its children
func (n *graphNode) IsMerge() bool {
	return n.merge
}

// Children returns the merged children in index order
func (n *graphNode) Children() []*graphNode {
	return n.children
}

// Parents returns the merge nodes that include this node
func (n *graphNode) Parents() []*graphNode {
	return n.parents
}
