package main

import (
	"fmt"
	"time"

	"github.com/gizak/termui"

	"github.com/coredht/dht/internal/glog"
	"github.com/coredht/dht/internal/metrics"
)

const (
	tuiSmallHeight  = 3
	tuiMediumHeight = 5
	tuiLargeHeight  = 8
	tuiLargeWidth   = 100

	tuiSpaceHeight = 1

	tuiDataLimit = 100
)

var (
	announcedGauge *termui.Gauge

	querySpark             termui.Sparkline
	queryErrSpark          termui.Sparkline
	queryTimeoutSpark      termui.Sparkline
	querySparkHolder       *termui.Sparklines
	bucketSplitsSpark      termui.Sparkline
	bucketSplitsSparkHolder *termui.Sparklines
)

// tuiSetupDashComponents lays out every widget the dashboard draws: a
// gauge, then a sparkline stack, then a second sparkline stack, top to
// bottom.
func tuiSetupDashComponents() {
	announcedGauge = termui.NewGauge()
	announcedGauge.Percent = 0
	announcedGauge.BarColor = termui.ColorGreen
	announcedGauge.Height = tuiSmallHeight
	announcedGauge.Width = tuiLargeWidth
	announcedGauge.BorderLabel = "announced infohashes"

	querySpark = termui.Sparkline{}
	querySpark.Title = "queries sent"
	querySpark.Data = []int{0}
	querySpark.Height = tuiSmallHeight
	querySpark.LineColor = termui.ColorBlue

	queryErrSpark = termui.Sparkline{}
	queryErrSpark.Title = "errored"
	queryErrSpark.Data = []int{0}
	queryErrSpark.Height = tuiSmallHeight
	queryErrSpark.LineColor = termui.ColorRed

	queryTimeoutSpark = termui.Sparkline{}
	queryTimeoutSpark.Title = "timed out"
	queryTimeoutSpark.Data = []int{0}
	queryTimeoutSpark.Height = tuiSmallHeight
	queryTimeoutSpark.LineColor = termui.ColorYellow

	querySparkHolder = termui.NewSparklines(querySpark, queryErrSpark, queryTimeoutSpark)
	querySparkHolder.Height = querySpark.Height + queryErrSpark.Height + queryTimeoutSpark.Height + tuiSpaceHeight*6
	querySparkHolder.Width = announcedGauge.Width
	querySparkHolder.Y = announcedGauge.Y + announcedGauge.Height
	querySparkHolder.X = announcedGauge.X

	bucketSplitsSpark = termui.Sparkline{}
	bucketSplitsSpark.Title = "bucket splits"
	bucketSplitsSpark.Data = []int{0}
	bucketSplitsSpark.Height = tuiMediumHeight
	bucketSplitsSpark.LineColor = termui.ColorMagenta

	bucketSplitsSparkHolder = termui.NewSparklines(bucketSplitsSpark)
	bucketSplitsSparkHolder.BorderLabel = "routing table"
	bucketSplitsSparkHolder.X = 0
	bucketSplitsSparkHolder.Y = querySparkHolder.Y + querySparkHolder.Height
	bucketSplitsSparkHolder.Height = tuiMediumHeight + tuiSpaceHeight*3
	bucketSplitsSparkHolder.Width = announcedGauge.Width
}

func addDataWithLimit(sl []int, dataPoint int, maxLen int) []int {
	if len(sl) > maxLen {
		sl = append(sl[1:], dataPoint)
		return sl
	}
	return append(sl, dataPoint)
}

// tuiDrawDash refreshes every gauge and sparkline from the node's current
// state and the shared metrics registry, then renders the frame.
func tuiDrawDash(n *node) {
	count := n.announces.Count()
	announcedGauge.Label = fmt.Sprintf("%d", count)
	if count > 0 {
		announcedGauge.Percent = 100
	}

	querySparkHolder.Lines[0].Data = addDataWithLimit(querySparkHolder.Lines[0].Data, int(metrics.QuerySent.Count()), tuiDataLimit)
	querySparkHolder.Lines[1].Data = addDataWithLimit(querySparkHolder.Lines[1].Data, int(metrics.QueryErrored.Count()), tuiDataLimit)
	querySparkHolder.Lines[2].Data = addDataWithLimit(querySparkHolder.Lines[2].Data, int(metrics.QueryTimeout.Count()), tuiDataLimit)

	bucketSplitsSparkHolder.Lines[0].Data = addDataWithLimit(bucketSplitsSparkHolder.Lines[0].Data, int(metrics.BucketSplits.Count()), tuiDataLimit)

	termui.Render(announcedGauge, querySparkHolder, bucketSplitsSparkHolder)
}

// tuiSetupHandlers wires the keybindings and signals that stop the render
// loop: q, Ctrl-C, and the process interrupt.
func tuiSetupHandlers() {
	stop := func(tue termui.Event) {
		termui.StopLoop()
	}
	termui.Handle("/sys/kbd/q", stop)
	termui.Handle("/sys/kbd/C-c", stop)
	termui.Handle("/sys/interrupt", stop)
}

// runDashboard initializes termui, lays out the dashboard, and redraws it
// on a fixed tick until the user quits.
func runDashboard(n *node, tick time.Duration) error {
	if err := termui.Init(); err != nil {
		return err
	}
	defer termui.Close()

	tuiSetupDashComponents()
	tuiSetupHandlers()
	tuiDrawDash(n)

	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	go func() {
		for range ticker.C {
			tuiDrawDash(n)
		}
	}()

	glog.V(glog.Info).Infof("dhtnode: dashboard running, press q to quit")
	termui.Loop()
	return nil
}
