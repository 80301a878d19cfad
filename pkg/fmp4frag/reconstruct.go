package fmp4frag

// Sample describes one media sample in decode order, with absolute
// timestamps resolved against a fragment's base decode time.
type Sample struct {
	TrackID               int64
	Size                  int64
	Duration              int64
	CompositionTimeOffset int64
	DTS                   int64
	PTS                   int64
}

// ReconstructSamples combines a tfhd's defaults, a tfdt's base decode
// time, and one or more truns (in order) into a flat, decode-order
// sample list with absolute dts/pts, per spec.md §4.3. Concatenation of
// per-trun sample lists preserves the input order.
func ReconstructSamples(tfhd Tfhd, baseMediaDecodeTime int64, truns []Trun) []Sample {
	var out []Sample
	currentDts := baseMediaDecodeTime

	for _, trun := range truns {
		for _, ts := range trun.Samples {
			duration := ts.Duration
			if !ts.HasDuration {
				duration = tfhd.DefaultSampleDuration
			}

			size := ts.Size
			if !ts.HasSize {
				size = tfhd.DefaultSampleSize
			}

			cto := int64(0)
			if ts.HasCompositionTimeOffset {
				cto = ts.CompositionTimeOffset
			}

			out = append(out, Sample{
				TrackID:               tfhd.TrackID,
				Size:                  size,
				Duration:              duration,
				CompositionTimeOffset: cto,
				DTS:                   currentDts,
				PTS:                   currentDts + cto,
			})

			currentDts += duration
		}
	}

	return out
}
