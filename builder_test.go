package merging

import (
	"context"
	"testing"

	"github.com/creastat/merging/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderBuild(t *testing.T) {
	fakes, _ := newFakeSources(2)
	var events []core.Event

	ms, err := NewBuilder().
		AddSource("video", fakes[0]).
		AddSource("audio", fakes[1]).
		WithFanOut(core.FanOutConfig{Mode: core.FanOutParallel}).
		WithObserver(func(e core.Event) { events = append(events, e) }).
		WithLogger(testLogger()).
		Build()
	require.NoError(t, err)
	assert.Equal(t, 2, ms.SourceCount())
	assert.Equal(t, core.StateUnprepared, ms.State())

	require.NoError(t, ms.Prepare(context.Background(), &recordingListener{}))
	fakes[0].report(1, nil)
	require.NotEmpty(t, events)
	assert.Equal(t, "video", events[0].(core.SourceReadyEvent).Name)
}

func TestBuilderRejectsInvalidSources(t *testing.T) {
	_, err := NewBuilder().WithLogger(testLogger()).Build()
	assert.ErrorContains(t, err, "at least one source")

	fakes, _ := newFakeSources(1)
	_, err = NewBuilder().
		AddSource("a", fakes[0]).
		AddSource("b", fakes[0]).
		Build()
	assert.ErrorContains(t, err, "same instance")

	_, err = NewBuilder().
		AddSource("a", fakes[0]).
		WithPeriodFactory(nil).
		Build()
	assert.ErrorContains(t, err, "period factory")
}

// TestGraphBuilderNested tests that nested merges combine leaves in
// declaration order and only report once the whole tree is ready
func TestGraphBuilderNested(t *testing.T) {
	fakes, log := newFakeSources(3)
	var events []core.Event

	root, err := NewGraphBuilder().
		AddSource("video", fakes[0]).
		AddSource("audio", fakes[1]).
		AddSource("subtitles", fakes[2]).
		AddMerge("root", "video", "tracks").
		AddMerge("tracks", "audio", "subtitles").
		SetFanOut("tracks", core.FanOutConfig{Mode: core.FanOutParallel}).
		SetRoot("root").
		WithObserver(func(e core.Event) { events = append(events, e) }).
		WithLogger(testLogger()).
		Build()
	require.NoError(t, err)
	assert.Equal(t, 2, root.SourceCount())

	listener := &recordingListener{}
	require.NoError(t, root.Prepare(context.Background(), listener))

	fakes[2].report(4, nil)
	fakes[0].report(4, "video")
	assert.Equal(t, int32(0), listener.calls.Load())
	fakes[1].report(4, "audio")
	require.Equal(t, int32(1), listener.calls.Load())

	_, timeline, manifest := listener.last()
	assert.Equal(t, 4, timeline.PeriodCount())
	assert.Equal(t, "video", manifest)

	// Only the root observes; the nested merge reports as one source
	var names []string
	for _, e := range events {
		if ready, ok := e.(core.SourceReadyEvent); ok {
			names = append(names, ready.Name)
		}
	}
	assert.Equal(t, []string{"video", "tracks"}, names)

	period, err := root.CreatePeriod(core.PeriodID{PeriodIndex: 2}, nil)
	require.NoError(t, err)
	inner, ok := period.(*MergingPeriod).Periods()[1].(*MergingPeriod)
	require.True(t, ok, "nested merge should produce a merging period")
	assert.Len(t, inner.Periods(), 2)

	require.NoError(t, root.ReleasePeriod(period))
	assert.True(t, inner.Released())
	require.NoError(t, root.ReleaseSource())

	entries := log.snapshot()
	assert.Equal(t, []string{"release_source:0", "release_source:1", "release_source:2"}, entries[len(entries)-3:])
}

func TestGraphBuilderErrors(t *testing.T) {
	fakes, _ := newFakeSources(2)

	tests := []struct {
		name    string
		builder *GraphBuilder
		wantErr string
	}{
		{
			name:    "no merge",
			builder: NewGraphBuilder().AddSource("a", fakes[0]).SetRoot("a"),
			wantErr: "at least one merge",
		},
		{
			name:    "no root",
			builder: NewGraphBuilder().AddSource("a", fakes[0]).AddMerge("m", "a"),
			wantErr: "root must be set",
		},
		{
			name:    "unknown child",
			builder: NewGraphBuilder().AddSource("a", fakes[0]).AddMerge("m", "a", "b").SetRoot("m"),
			wantErr: `child "b"`,
		},
		{
			name:    "duplicate name",
			builder: NewGraphBuilder().AddSource("a", fakes[0]).AddMerge("a", "a").SetRoot("a"),
			wantErr: `failed to add merge "a"`,
		},
		{
			name: "unreachable source",
			builder: NewGraphBuilder().
				AddSource("a", fakes[0]).
				AddSource("b", fakes[1]).
				AddMerge("m", "a").
				SetRoot("m"),
			wantErr: "unreachable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.builder.WithLogger(testLogger()).Build()
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
