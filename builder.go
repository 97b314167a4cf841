package merging

import (
	"fmt"

	"github.com/creastat/infra/telemetry"
	"github.com/creastat/merging/core"
)

// Builder constructs a validated MergingSource with a fluent API
type Builder struct {
	names    []string
	sources  []core.Source
	factory  core.PeriodFactory
	fanOut   core.FanOutConfig
	observer core.Observer
	logger   telemetry.Logger
}

// NewBuilder creates a new merging source builder
func NewBuilder() *Builder {
	return &Builder{
		factory: DefaultPeriodFactory,
		fanOut:  core.FanOutConfig{Mode: core.FanOutSequential},
		logger:  telemetry.New(telemetry.Config{Level: "info"}),
	}
}

// AddSource appends a source. The first source added is the primary.
func (b *Builder) AddSource(name string, source core.Source) *Builder {
	b.names = append(b.names, name)
	b.sources = append(b.sources, source)
	return b
}

// WithPeriodFactory sets the factory combining child periods
func (b *Builder) WithPeriodFactory(factory core.PeriodFactory) *Builder {
	b.factory = factory
	return b
}

// WithFanOut sets how periods are created across sources
func (b *Builder) WithFanOut(config core.FanOutConfig) *Builder {
	b.fanOut = config
	return b
}

// WithObserver sets the lifecycle event observer
func (b *Builder) WithObserver(observer core.Observer) *Builder {
	b.observer = observer
	return b
}

// WithLogger sets the logger
func (b *Builder) WithLogger(logger telemetry.Logger) *Builder {
	b.logger = logger
	return b
}

// Build validates the sources and creates the merging source
func (b *Builder) Build() (*MergingSource, error) {
	if err := ValidateSources(b.names, b.sources); err != nil {
		return nil, err
	}

	if b.factory == nil {
		return nil, ValidationError{
			Message: "source validation failed",
			Details: "period factory must not be nil",
		}
	}

	return New(Config{
		Sources:       b.sources,
		Names:         b.names,
		PeriodFactory: b.factory,
		FanOut:        b.fanOut,
		Observer:      b.observer,
		Logger:        b.logger,
	}), nil
}

// GraphBuilder constructs nested merges from named sources
type GraphBuilder struct {
	graph    *SourceGraph
	sources  []sourceConfig
	merges   []mergeConfig
	root     string
	factory  core.PeriodFactory
	observer core.Observer
	logger   telemetry.Logger
}

// sourceConfig holds configuration for a leaf node
type sourceConfig struct {
	name   string
	source core.Source
}

// mergeConfig holds configuration for a merge node
type mergeConfig struct {
	name     string
	children []string
	fanOut   core.FanOutConfig
}

// NewGraphBuilder creates a new graph builder
func NewGraphBuilder() *GraphBuilder {
	return &GraphBuilder{
		graph:   NewSourceGraph(),
		factory: DefaultPeriodFactory,
		logger:  telemetry.New(telemetry.Config{Level: "info"}),
	}
}

// AddSource adds a named leaf source
func (b *GraphBuilder) AddSource(name string, source core.Source) *GraphBuilder {
	b.sources = append(b.sources, sourceConfig{name: name, source: source})
	return b
}

// AddMerge adds a merge node over the named children, in order. Children may
// be declared after the merge that uses them.
func (b *GraphBuilder) AddMerge(name string, children ...string) *GraphBuilder {
	b.merges = append(b.merges, mergeConfig{name: name, children: children})
	return b
}

// SetFanOut sets the period fan-out configuration of a merge node
func (b *GraphBuilder) SetFanOut(mergeName string, config core.FanOutConfig) *GraphBuilder {
	for i := range b.merges {
		if b.merges[i].name == mergeName {
			b.merges[i].fanOut = config
		}
	}
	return b
}

// SetRoot sets the outermost merge
func (b *GraphBuilder) SetRoot(name string) *GraphBuilder {
	b.root = name
	return b
}

// WithPeriodFactory sets the factory used by every merge node
func (b *GraphBuilder) WithPeriodFactory(factory core.PeriodFactory) *GraphBuilder {
	b.factory = factory
	return b
}

// WithObserver sets the observer of the root merge
func (b *GraphBuilder) WithObserver(observer core.Observer) *GraphBuilder {
	b.observer = observer
	return b
}

// WithLogger sets the logger used by every merge node
func (b *GraphBuilder) WithLogger(logger telemetry.Logger) *GraphBuilder {
	b.logger = logger
	return b
}

// Build validates the graph and creates the root merging source
func (b *GraphBuilder) Build() (*MergingSource, error) {
	if len(b.merges) == 0 {
		return nil, fmt.Errorf("graph must have at least one merge")
	}

	if b.root == "" {
		return nil, fmt.Errorf("root must be set")
	}

	for _, src := range b.sources {
		if err := b.graph.AddSource(src.name, src.source); err != nil {
			return nil, fmt.Errorf("failed to add source %q: %w", src.name, err)
		}
	}

	for _, merge := range b.merges {
		if err := b.graph.AddMerge(merge.name, merge.fanOut); err != nil {
			return nil, fmt.Errorf("failed to add merge %q: %w", merge.name, err)
		}
	}

	for _, merge := range b.merges {
		for _, child := range merge.children {
			if err := b.graph.AddChild(merge.name, child); err != nil {
				return nil, fmt.Errorf("failed to add child %q to %q: %w", child, merge.name, err)
			}
		}
	}

	if err := b.graph.SetRoot(b.root); err != nil {
		return nil, fmt.Errorf("failed to set root: %w", err)
	}

	if err := ValidateGraph(b.graph); err != nil {
		return nil, fmt.Errorf("graph validation failed: %w", err)
	}

	root, err := b.buildNode(b.graph.GetRoot())
	if err != nil {
		return nil, err
	}
	return root.(*MergingSource), nil
}

// buildNode creates the source for node, building merge children first
func (b *GraphBuilder) buildNode(node *graphNode) (core.Source, error) {
	if !node.IsMerge() {
		return node.Source(), nil
	}

	builder := NewBuilder().
		WithPeriodFactory(b.factory).
		WithFanOut(node.fanOut).
		WithLogger(b.logger)
	if node == b.graph.GetRoot() {
		builder.WithObserver(b.observer)
	}

	for _, child := range node.Children() {
		src, err := b.buildNode(child)
		if err != nil {
			return nil, err
		}
		builder.AddSource(child.Name(), src)
	}

	ms, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build merge %q: %w", node.Name(), err)
	}
	return ms, nil
}
