package core

import "sync"

const AVG_COUNT uint8 = 30

// MetricsState tracks dispatch recording activity and a moving average
// of flush latency. Flushes are expected to be rare; the average is over
// the last AVG_COUNT of them.
type MetricsState struct {
	FlushAVGCounter   uint8
	MStimes           [AVG_COUNT]float64
	MSavg             float64
	Dispatches        uint64
	Submissions       uint64
	Flushes           uint64
	PipelineBuilds    uint64
	DescriptorAllocas uint64

	mutex sync.Mutex
}

var onceMetrics sync.Once
var metricsState *MetricsState = nil

func MetricsInitialize() error {
	onceMetrics.Do(func() {
		metricsState = &MetricsState{
			MStimes: [AVG_COUNT]float64{0},
		}
	})
	return nil
}

func MetricsDispatch() {
	if metricsState == nil {
		return
	}
	metricsState.mutex.Lock()
	defer metricsState.mutex.Unlock()
	metricsState.Dispatches++
}

func MetricsSubmission() {
	if metricsState == nil {
		return
	}
	metricsState.mutex.Lock()
	defer metricsState.mutex.Unlock()
	metricsState.Submissions++
}

func MetricsPipelineBuild() {
	if metricsState == nil {
		return
	}
	metricsState.mutex.Lock()
	defer metricsState.mutex.Unlock()
	metricsState.PipelineBuilds++
}

func MetricsDescriptorAlloc() {
	if metricsState == nil {
		return
	}
	metricsState.mutex.Lock()
	defer metricsState.mutex.Unlock()
	metricsState.DescriptorAllocas++
}

// MetricsFlush records one flush and its wall time in seconds.
func MetricsFlush(elapsed float64) {
	if metricsState == nil {
		return
	}
	metricsState.mutex.Lock()
	defer metricsState.mutex.Unlock()

	flushMS := elapsed * 1000.0
	metricsState.MStimes[metricsState.FlushAVGCounter] = flushMS
	if metricsState.FlushAVGCounter == AVG_COUNT-1 {
		for i := uint8(0); i < AVG_COUNT; i++ {
			metricsState.MSavg += metricsState.MStimes[i]
		}
		metricsState.MSavg /= float64(AVG_COUNT)
	}
	metricsState.FlushAVGCounter++
	metricsState.FlushAVGCounter %= AVG_COUNT

	metricsState.Flushes++
}

func MetricsFlushTime() float64 {
	if metricsState == nil {
		return 0
	}
	metricsState.mutex.Lock()
	defer metricsState.mutex.Unlock()
	return metricsState.MSavg
}

// MetricsCounts returns the dispatch, submission and flush counters.
func MetricsCounts() (uint64, uint64, uint64) {
	if metricsState == nil {
		return 0, 0, 0
	}
	metricsState.mutex.Lock()
	defer metricsState.mutex.Unlock()
	return metricsState.Dispatches, metricsState.Submissions, metricsState.Flushes
}
