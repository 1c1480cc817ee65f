// internal/acquire/process.go
package acquire

import (
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/tamzrod/daq-orchestrator/internal/registry"
)

// ParallelThreshold is the per-channel sample count above which processing
// fans out across channels.
const ParallelThreshold = 1000

// Process runs every (sample, channel) of buf through the channel's
// conditioner. buf is sample-major: buf[s*channels+c].
// It returns the processed and the pre-regression matrices.
func Process(snap registry.AnalogSnapshot, buf []float32, samples int, parallel bool) (data, raw []float32) {
	if parallel && samples > ParallelThreshold && snap.Len() > 1 {
		return processParallel(snap, buf, samples)
	}
	return processSequential(snap, buf, samples)
}

func processSequential(snap registry.AnalogSnapshot, buf []float32, samples int) (data, raw []float32) {
	n := snap.Len()
	data = make([]float32, samples*n)
	raw = make([]float32, samples*n)
	for s := 0; s < samples; s++ {
		for c := 0; c < n; c++ {
			i := s*n + c
			data[i], raw[i] = snap.Channels[c].Conditioner.Apply(buf[i])
		}
	}
	return data, raw
}

// processParallel gives each channel to one goroutine. A channel's filter is
// only ever advanced by its own goroutine, in sample order, so the output is
// identical to processSequential. Cells written by different goroutines never
// overlap.
func processParallel(snap registry.AnalogSnapshot, buf []float32, samples int) (data, raw []float32) {
	n := snap.Len()
	data = make([]float32, samples*n)
	raw = make([]float32, samples*n)

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for c := 0; c < n; c++ {
		cond := snap.Channels[c].Conditioner
		g.Go(func() error {
			for s := 0; s < samples; s++ {
				i := s*n + c
				data[i], raw[i] = cond.Apply(buf[i])
			}
			return nil
		})
	}
	_ = g.Wait()
	return data, raw
}
