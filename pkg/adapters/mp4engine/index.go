package mp4engine

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Eyevinn/mp4ff/mp4"
)

// sample is one entry of the video sample index. Progressive samples are
// read from the source on demand; fragment samples keep their payload.
type sample struct {
	offset int64
	size   uint32
	dts    int64
	cto    int32
	dur    uint32
	sync   bool
	data   []byte
}

func (s sample) pts() int64 {
	return s.dts + int64(s.cto)
}

// sampleIndex lists the video samples in decode order.
type sampleIndex struct {
	samples []sample
}

// duration returns the summed sample durations in track timescale units.
func (idx *sampleIndex) duration() int64 {
	if len(idx.samples) == 0 {
		return 0
	}
	last := idx.samples[len(idx.samples)-1]
	return last.dts + int64(last.dur) - idx.samples[0].dts
}

// syncCount returns the number of random access points.
func (idx *sampleIndex) syncCount() int {
	n := 0
	for _, s := range idx.samples {
		if s.sync {
			n++
		}
	}
	return n
}

// seekTarget returns the position of the last sync sample whose decode
// time is at or before ts, or 0 when there is none.
func (idx *sampleIndex) seekTarget(ts int64) int {
	i := sort.Search(len(idx.samples), func(i int) bool {
		return idx.samples[i].dts > ts
	})
	for i--; i > 0; i-- {
		if idx.samples[i].sync {
			return i
		}
	}
	return 0
}

// buildProgressiveIndex resolves every sample of a non-fragmented track
// through its sample tables.
func buildProgressiveIndex(trak *mp4.TrakBox) (*sampleIndex, error) {
	if trak.Mdia == nil || trak.Mdia.Minf == nil || trak.Mdia.Minf.Stbl == nil {
		return nil, errors.New("no sample table found")
	}
	stbl := trak.Mdia.Minf.Stbl
	if stbl.Stsz == nil || stbl.Stsc == nil {
		return nil, errors.New("missing stsz or stsc box")
	}
	if stbl.Stco == nil && stbl.Co64 == nil {
		return nil, errors.New("no stco or co64 box")
	}

	syncSamples := make(map[uint32]bool)
	if stbl.Stss != nil {
		for _, nr := range stbl.Stss.SampleNumber {
			syncSamples[nr] = true
		}
	}

	count := stbl.Stsz.SampleNumber
	idx := &sampleIndex{samples: make([]sample, 0, count)}

	var (
		chunkNr     = -1
		chunkOffset uint64
		offset      uint64
	)
	for nr := uint32(1); nr <= count; nr++ {
		cnr, first, err := stbl.Stsc.ChunkNrFromSampleNr(int(nr))
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", nr, err)
		}
		if cnr != chunkNr {
			chunkOffset, err = chunkStart(stbl, cnr)
			if err != nil {
				return nil, fmt.Errorf("sample %d: %w", nr, err)
			}
			chunkNr = cnr
			offset = chunkOffset
			for s := uint32(first); s < nr; s++ {
				offset += uint64(stbl.Stsz.GetSampleSize(int(s)))
			}
		}
		size := stbl.Stsz.GetSampleSize(int(nr))

		var (
			dts uint64
			dur uint32
		)
		if stbl.Stts != nil {
			dts, dur = stbl.Stts.GetDecodeTime(nr)
		}

		idx.samples = append(idx.samples, sample{
			offset: int64(offset),
			size:   size,
			dts:    int64(dts),
			dur:    dur,
			sync:   syncSamples[nr] || len(syncSamples) == 0,
		})
		offset += uint64(size)
	}
	return idx, nil
}

func chunkStart(stbl *mp4.StblBox, chunkNr int) (uint64, error) {
	if stbl.Stco != nil {
		return stbl.Stco.GetOffset(chunkNr)
	}
	if chunkNr < 1 || chunkNr > len(stbl.Co64.ChunkOffset) {
		return 0, errors.New("chunk nr out of range")
	}
	return stbl.Co64.ChunkOffset[chunkNr-1], nil
}

// buildFragmentedIndex collects the samples of trackID from every
// fragment in file order.
func buildFragmentedIndex(f *mp4.File, trackID uint32, trex *mp4.TrexBox) (*sampleIndex, error) {
	idx := &sampleIndex{}
	anySync := false
	for _, seg := range f.Segments {
		for _, frag := range seg.Fragments {
			if frag.Moof == nil || !hasTrack(frag, trackID) {
				continue
			}
			samples, err := frag.GetFullSamples(trex)
			if err != nil {
				return nil, fmt.Errorf("get samples: %w", err)
			}
			for _, s := range samples {
				sync := s.Flags == mp4.SyncSampleFlags
				anySync = anySync || sync
				idx.samples = append(idx.samples, sample{
					size: uint32(len(s.Data)),
					dts:  int64(s.DecodeTime),
					cto:  s.CompositionTimeOffset,
					dur:  s.Dur,
					sync: sync,
					data: s.Data,
				})
			}
		}
	}
	if !anySync {
		for i := range idx.samples {
			idx.samples[i].sync = true
		}
	}
	return idx, nil
}

func hasTrack(frag *mp4.Fragment, trackID uint32) bool {
	for _, traf := range frag.Moof.Trafs {
		if traf.Tfhd.TrackID == trackID {
			return true
		}
	}
	return false
}
