// Package fmp4sei extracts timestamped H.264 SEI events from fragmented
// MP4 media segments. It walks the ISO-BMFF box hierarchy, reconstructs
// per-sample timestamps from the track-fragment sample tables, scans the
// paired mdat for SEI NAL units, and decodes each SEI message.
//
// The package is a single-threaded, synchronous library: Parse is not
// reentrant, performs no I/O, and never raises an exception across its
// façade — every failure mode is encoded as an empty/nil result plus,
// where user-observable data was dropped, a log record (spec.md §7).
package fmp4sei

import (
	"github.com/bluenviron/fmp4sei/pkg/fmp4frag"
	"github.com/bluenviron/fmp4sei/pkg/h264sei"
	"github.com/bluenviron/fmp4sei/pkg/isobox"
	"github.com/bluenviron/fmp4sei/pkg/seilog"
)

// Options configures Init. It is currently empty; spec.md §6 describes
// init's options as opaque and ignored by the core, but a typed struct
// is kept (rather than collapsing to interface{}) as an extension
// point, consistent with the teacher's preference for concrete config
// structs over bare `any` parameters.
type Options struct{}

// Event is one decoded SEI message, timestamped in seconds.
type Event struct {
	PTS         float64
	PayloadType int
	PayloadSize int
	Payload     []byte
}

// Result is the output of a single Parse call.
type Result struct {
	SEI  []Event
	Logs []seilog.Record
}

// Coordinator is the stateful façade described in spec.md §4.5. It
// caches segments received before the init-segment track/timescale
// mapping is known, binds a single video track, and converts that
// track's SEI NALs into timestamped events.
//
// Parse is not reentrant: callers must serialize calls against one
// Coordinator, matching spec.md §5.
type Coordinator struct {
	// MaxCacheSegments bounds the pre-binding segment cache. 0 (the
	// default) means unbounded, which is spec.md §4.5's literal
	// semantics. A positive value drops the oldest cached segment and
	// emits a warn log record on the next drain, per SPEC_FULL.md §4.5.
	MaxCacheSegments int

	initialized  bool
	trackID      int64
	hasTrack     bool
	timescale    int64
	cache        [][]byte
	droppedCache int
}

// IsInitialized reports whether Init has been called.
func (c *Coordinator) IsInitialized() bool {
	return c.initialized
}

// Init flips the coordinator into the initialized state. Idempotent.
func (c *Coordinator) Init(_ Options) {
	c.initialized = true
}

// Reset clears the track binding and the segment cache, but leaves
// IsInitialized untouched, per spec.md §4.5.
func (c *Coordinator) Reset() {
	c.hasTrack = false
	c.trackID = 0
	c.timescale = 0
	c.cache = nil
	c.droppedCache = 0
}

// IsNewInit reports whether binding to videoTrackIds[0]/timescales would
// change the coordinator's current binding. False when either input is
// empty.
func (c *Coordinator) IsNewInit(videoTrackIDs []int64, timescales map[int64]int64) bool {
	if len(videoTrackIDs) == 0 || len(timescales) == 0 {
		return false
	}

	candidateTrack := videoTrackIDs[0]
	candidateTimescale := timescales[candidateTrack]

	return !c.hasTrack || c.trackID != candidateTrack || c.timescale != candidateTimescale
}

// Parse processes one segment's worth of fMP4 bytes, per the state
// machine in spec.md §4.5. Segment must remain valid for the duration
// of the call — box and NAL slices inside Result borrow from it only
// transiently; nothing is retained across the call except via the
// pre-binding cache, which copies the bytes it keeps.
func (c *Coordinator) Parse(segment []byte, videoTrackIDs []int64, timescales map[int64]int64) (*Result, error) {
	if !c.initialized {
		return nil, nil
	}

	if len(videoTrackIDs) == 0 || len(timescales) == 0 {
		return nil, nil
	}

	if c.IsNewInit(videoTrackIDs, timescales) {
		c.trackID = videoTrackIDs[0]
		c.timescale = timescales[c.trackID]
		c.hasTrack = true
	}

	// init not yet fully known: the bind above may have landed on a
	// trackId with no (or a zero) timescale entry. Caching here, after
	// the bind attempt, keeps a falsy timescale from ever reaching
	// process — where it would divide nal.PTS by zero.
	if !c.hasTrack || c.timescale == 0 {
		c.cacheSegment(segment)
		return nil, nil
	}

	return c.drainAndProcess(segment)
}

// drainAndProcess replays the pending cache (oldest first) against the
// current binding before processing the current segment. Flattened
// into an explicit loop per spec.md §9-iii, rather than the reference's
// self-recursion. With an empty cache (the common steady-state case)
// this is equivalent to processing segment directly.
func (c *Coordinator) drainAndProcess(segment []byte) (*Result, error) {
	pending := c.cache
	c.cache = nil

	merged := &Result{}

	if c.droppedCache > 0 {
		merged.Logs = append(merged.Logs, seilog.Record{
			Level:   seilog.Warn,
			Message: "segment cache overflowed before init; oldest segments were dropped",
		})
		c.droppedCache = 0
	}

	for _, cached := range pending {
		r, err := c.process(cached)
		if err != nil {
			return nil, err
		}
		if r != nil {
			merged.SEI = append(merged.SEI, r.SEI...)
			merged.Logs = append(merged.Logs, r.Logs...)
		}
	}

	r, err := c.process(segment)
	if err != nil {
		return nil, err
	}
	if r != nil {
		merged.SEI = append(merged.SEI, r.SEI...)
		merged.Logs = append(merged.Logs, r.Logs...)
	}

	if len(merged.SEI) == 0 && len(merged.Logs) == 0 {
		return nil, nil
	}
	return merged, nil
}

func (c *Coordinator) cacheSegment(segment []byte) {
	cp := make([]byte, len(segment))
	copy(cp, segment)
	c.cache = append(c.cache, cp)

	if c.MaxCacheSegments > 0 && len(c.cache) > c.MaxCacheSegments {
		c.cache = c.cache[1:]
		c.droppedCache++
	}
}

// process parses one already-bound segment into SEI events, per the
// segment-processing steps of spec.md §4.5. moof and mdat pair
// positionally as direct children of segment (spec.md §3); a moof may
// carry more than one traf (e.g. one per track), and all of them share
// that moof's single paired mdat.
func (c *Coordinator) process(segment []byte) (*Result, error) {
	var moofs, mdats []isobox.Box
	for _, b := range isobox.LocateAll(segment) {
		switch b.Type {
		case "moof":
			moofs = append(moofs, b)
		case "mdat":
			mdats = append(mdats, b)
		}
	}

	pairCount := len(moofs)
	if len(mdats) < pairCount {
		pairCount = len(mdats)
	}

	result := &Result{}

	for i := 0; i < pairCount; i++ {
		mdat := mdats[i].Content

		for _, trafBox := range isobox.Locate(moofs[i].Content, "traf") {
			traf := trafBox.Content

			tfhdBoxes := isobox.Locate(traf, "tfhd")
			if len(tfhdBoxes) == 0 {
				continue
			}
			tfhd, err := fmp4frag.ParseTfhd(tfhdBoxes[0].Content)
			if err != nil {
				result.Logs = append(result.Logs, seilog.Record{
					Level:   seilog.Warn,
					Message: "malformed tfhd, skipping traf",
				})
				continue
			}

			if tfhd.TrackID != c.trackID {
				continue
			}

			trunBoxes := isobox.Locate(traf, "trun")
			if len(trunBoxes) == 0 {
				continue
			}

			var baseMediaDecodeTime int64
			if tfdtBoxes := isobox.Locate(traf, "tfdt"); len(tfdtBoxes) > 0 {
				bmdt, err := fmp4frag.ParseTfdt(tfdtBoxes[0].Content)
				if err == nil {
					baseMediaDecodeTime = bmdt
				}
			}

			truns := make([]fmp4frag.Trun, 0, len(trunBoxes))
			for _, tb := range trunBoxes {
				trun, err := fmp4frag.ParseTrun(tb.Content)
				if err != nil {
					result.Logs = append(result.Logs, seilog.Record{
						Level:   seilog.Warn,
						Message: "malformed trun, skipping",
					})
					continue
				}
				truns = append(truns, trun)
			}

			samples := fmp4frag.ReconstructSamples(tfhd, baseMediaDecodeTime, truns)

			nals, logs := h264sei.ScanNALUs(mdat, samples, c.trackID)
			result.Logs = append(result.Logs, logs...)

			for _, nal := range nals {
				for _, msg := range h264sei.ParseSEIMessages(nal.EscapedRBSP) {
					result.SEI = append(result.SEI, Event{
						PTS:         float64(nal.PTS) / float64(c.timescale),
						PayloadType: msg.PayloadType,
						PayloadSize: msg.PayloadSize,
						Payload:     msg.Payload,
					})
				}
			}
		}
	}

	if len(result.SEI) == 0 && len(result.Logs) == 0 {
		return nil, nil
	}
	return result, nil
}
