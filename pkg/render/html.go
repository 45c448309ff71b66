package render

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/Sumatoshi-tech/treefind/pkg/session"
	"github.com/Sumatoshi-tech/treefind/pkg/tree"
)

const (
	defaultChartWidth  = "900px"
	defaultChartHeight = "600px"
	chartTitle         = "Search tree"
)

// HTMLOptions tunes HTML.
type HTMLOptions struct {
	Width  string
	Height string
	// Subtitle is shown under the title, typically the last query.
	Subtitle string
	// MaxDepth bounds the drawn levels like TerminalOptions.MaxDepth.
	MaxDepth int
}

// HTML writes a standalone page with an ECharts tree of the snapshot.
// Nodes are filled with their marker colors.
func HTML(w io.Writer, snap session.Snapshot, o HTMLOptions) error {
	chart := NewChart(snap, o)

	err := chart.Render(w)
	if err != nil {
		return fmt.Errorf("render chart: %w", err)
	}

	return nil
}

// NewChart builds the ECharts tree of the snapshot.
func NewChart(snap session.Snapshot, o HTMLOptions) *charts.Tree {
	width, height := o.Width, o.Height
	if width == "" {
		width = defaultChartWidth
	}

	if height == "" {
		height = defaultChartHeight
	}

	chart := charts.NewTree()
	chart.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: width, Height: height, PageTitle: chartTitle}),
		charts.WithTitleOpts(opts.Title{Title: chartTitle, Subtitle: o.Subtitle, Left: "center"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "item"}),
	)

	var data []opts.TreeData
	if root := treeData(snap, snap.Root, 0, maxDepth(o.MaxDepth)); root != nil {
		data = append(data, *root)
	}

	chart.AddSeries("tree", data, charts.WithTreeOpts(opts.TreeChart{
		Layout: "orthogonal",
		Orient: "TB",
		Roam:   opts.Bool(true),
	}))

	return chart
}

func treeData(snap session.Snapshot, id tree.NodeID, level, limit int) *opts.TreeData {
	n, ok := snap.Node(id)
	if !ok {
		return nil
	}

	node := &opts.TreeData{
		Name:      n.Label(),
		ItemStyle: &opts.ItemStyle{Color: Hex(n.Color), BorderColor: Hex(n.Color)},
	}

	if n.IsLeaf() {
		return node
	}

	if level+1 >= limit {
		node.Children = []*opts.TreeData{{
			Name:      elision(countBelow(snap, n)),
			ItemStyle: &opts.ItemStyle{Color: Hex(tree.Unmarked), BorderColor: Hex(tree.Unmarked)},
		}}

		return node
	}

	for _, child := range n.Children() {
		if sub := treeData(snap, child, level+1, limit); sub != nil {
			node.Children = append(node.Children, sub)
		}
	}

	return node
}
