package render

import (
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

var (
	samplesTraced = stats.Int64("lumen/render/samples", "Camera samples traced", stats.UnitDimensionless)
	rowsFinished  = stats.Int64("lumen/render/rows", "Image rows finished", stats.UnitDimensionless)
	chunkLatency  = stats.Float64("lumen/render/chunk_latency", "Wall time to render one chunk of rows", stats.UnitMilliseconds)

	keyScene = tag.MustNewKey("scene")
)

// Views aggregates the renderer's measures.  They are recorded whether or not
// the views are registered.
var Views = []*view.View{
	{
		Name:        "lumen/render/samples",
		Description: "Count of camera samples traced",
		TagKeys:     []tag.Key{keyScene},
		Measure:     samplesTraced,
		Aggregation: view.Sum(),
	},
	{
		Name:        "lumen/render/rows",
		Description: "Count of image rows finished",
		TagKeys:     []tag.Key{keyScene},
		Measure:     rowsFinished,
		Aggregation: view.Sum(),
	},
	{
		Name:        "lumen/render/chunk_latency",
		Description: "Distribution of chunk render times",
		TagKeys:     []tag.Key{keyScene},
		Measure:     chunkLatency,
		Aggregation: view.Distribution(1, 10, 50, 100, 500, 1000, 5000, 10000, 60000),
	},
}

func RegisterViews() error {
	return view.Register(Views...)
}
