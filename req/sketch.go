/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements.  See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License.  You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package req is an implementation of the Relative Error Quantiles sketch
// for float64 streams.
//
// Reference: https://arxiv.org/abs/2004.01668 "Relative Error Streaming Quantiles"
//
// Unlike sketches with a uniform rank error, REQ concentrates its error away
// from one end of the rank domain: in high rank accuracy (HRA) mode the rank
// error shrinks to zero as the queried rank approaches 1.0 and the maximum is
// returned exactly, while in low rank accuracy (LRA) mode the same holds at
// rank 0.0 and the minimum. The parameter k in [4, 1024] trades memory for
// accuracy at the non-exact end.
package req

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"

	"github.com/quantilekit/sketches-go/common"
	"github.com/quantilekit/sketches-go/internal"
)

const (
	// DefaultK yields roughly 1% relative rank error one standard deviation
	// from the protected tail.
	DefaultK = uint16(32)

	_MIN_K = uint16(4)
	_MAX_K = uint16(1024)
)

var (
	ErrEmpty        = errors.New("operation is undefined for an empty sketch")
	ErrInvalidK     = errors.New("k must be between 4 and 1024 inclusive")
	ErrInvalidMode  = errors.New("mode must be HRA or LRA")
	ErrInvalidRank  = errors.New("normalized rank must be between 0 and 1 inclusive")
	ErrNaN          = errors.New("operation is undefined for NaN")
	ErrInfinity     = errors.New("operation is undefined for infinity")
	ErrIncompatible = errors.New("sketches must have the same k and mode to merge")
)

// Sketch estimates quantiles and ranks of a float64 stream using sublinear
// memory. A Sketch is not safe for concurrent mutation; see Merge for the
// supported way of combining independently built sketches.
type Sketch struct {
	k          uint16
	mode       Mode
	compactors []*compactor
	n          uint64
	minValue   float64 // +Inf while empty; tracked outside the compactors
	maxValue   float64 // -Inf while empty; tracked outside the compactors
	rnd        *rand.Rand
	sortedView *sketchSortedView
	serde      common.ItemSketchDoubleSerDe
}

// NewSketch creates an empty sketch with the given k and mode, both fixed for
// the lifetime of the sketch. Larger k lowers the error at the non-exact end
// and raises memory use.
func NewSketch(k uint16, mode Mode) (*Sketch, error) {
	if k < _MIN_K || k > _MAX_K {
		return nil, fmt.Errorf("%w: %d", ErrInvalidK, k)
	}
	if mode != ModeHighRankAccuracy && mode != ModeLowRankAccuracy {
		return nil, ErrInvalidMode
	}
	return &Sketch{
		k:        k,
		mode:     mode,
		minValue: math.Inf(1),
		maxValue: math.Inf(-1),
		rnd:      rand.New(rand.NewSource(rand.Int63())),
	}, nil
}

// NewSketchFromString creates a sketch from a case-insensitive mode string,
// "HRA" or "LRA".
func NewSketchFromString(k uint16, mode string) (*Sketch, error) {
	m, err := ParseMode(mode)
	if err != nil {
		return nil, err
	}
	return NewSketch(k, m)
}

// IsEmpty returns true if the sketch has seen no items.
func (s *Sketch) IsEmpty() bool {
	return s.n == 0
}

// GetN returns the length of the input stream offered to the sketch.
func (s *Sketch) GetN() uint64 {
	return s.n
}

// GetK returns the accuracy parameter the sketch was built with.
func (s *Sketch) GetK() uint16 {
	return s.k
}

// GetMode returns the accuracy mode the sketch was built with.
func (s *Sketch) GetMode() Mode {
	return s.mode
}

// GetNumLevels returns the current number of compactor levels.
func (s *Sketch) GetNumLevels() int {
	return len(s.compactors)
}

// GetNumRetained returns the number of values currently held across all levels.
func (s *Sketch) GetNumRetained() uint32 {
	var total uint32
	for _, c := range s.compactors {
		total += uint32(len(c.buf))
	}
	return total
}

// IsEstimationMode returns true once the sketch has begun discarding values,
// i.e. once more than one level exists.
func (s *Sketch) IsEstimationMode() bool {
	return len(s.compactors) > 1
}

// GetMinValue returns the exact minimum of the stream. This is tracked
// independently of the compactors and is never subject to compaction.
func (s *Sketch) GetMinValue() (float64, error) {
	if s.IsEmpty() {
		return 0, ErrEmpty
	}
	return s.minValue, nil
}

// GetMaxValue returns the exact maximum of the stream. This is tracked
// independently of the compactors and is never subject to compaction.
func (s *Sketch) GetMaxValue() (float64, error) {
	if s.IsEmpty() {
		return 0, ErrEmpty
	}
	return s.maxValue, nil
}

// Update offers one value to the sketch. NaN and infinite values are
// rejected.
func (s *Sketch) Update(value float64) error {
	if math.IsNaN(value) {
		return ErrNaN
	}
	if math.IsInf(value, 0) {
		return ErrInfinity
	}
	if value < s.minValue {
		s.minValue = value
	}
	if value > s.maxValue {
		s.maxValue = value
	}
	s.n++
	s.grow(0)
	s.compactors[0].insert(value)
	s.compress()
	s.sortedView = nil
	return nil
}

// UpdateBatch offers a slice of values to the sketch. On the first invalid
// value the batch stops and the error is returned; values before it have
// already been absorbed.
func (s *Sketch) UpdateBatch(values []float64) error {
	for _, v := range values {
		if err := s.Update(v); err != nil {
			return err
		}
	}
	return nil
}

// Reset returns the sketch to its freshly constructed state.
func (s *Sketch) Reset() {
	s.n = 0
	s.compactors = nil
	s.minValue = math.Inf(1)
	s.maxValue = math.Inf(-1)
	s.sortedView = nil
}

// Merge combines this sketch with another built with the same k and mode and
// returns a new sketch; neither input is modified. The merged sketch carries
// the same accuracy guarantees as one built from the concatenated streams.
func (s *Sketch) Merge(other *Sketch) (*Sketch, error) {
	if other == nil || s.k != other.k || s.mode != other.mode {
		return nil, ErrIncompatible
	}
	merged, err := NewSketch(s.k, s.mode)
	if err != nil {
		return nil, err
	}
	merged.n = s.n + other.n
	merged.minValue = math.Min(s.minValue, other.minValue)
	merged.maxValue = math.Max(s.maxValue, other.maxValue)

	numLevels := max(len(s.compactors), len(other.compactors))
	if numLevels > 0 {
		merged.grow(uint8(numLevels - 1))
	}
	for lvl := 0; lvl < numLevels; lvl++ {
		merged.compactors[lvl].mergeSorted(s.levelBuffer(lvl))
		merged.compactors[lvl].mergeSorted(other.levelBuffer(lvl))
	}
	merged.compress()
	return merged, nil
}

// GetQuantile returns an approximation of the value at the given normalized
// rank. In HRA mode a rank of 1.0 returns the exact maximum; in LRA mode a
// rank of 0.0 returns the exact minimum. The result is non-decreasing in the
// rank for a fixed sketch state.
// If inclusive, the given rank includes all values <= the value directly
// corresponding to the given rank.
func (s *Sketch) GetQuantile(rank float64, inclusive bool) (float64, error) {
	if s.IsEmpty() {
		return 0, ErrEmpty
	}
	if math.IsNaN(rank) || rank < 0.0 || rank > 1.0 {
		return 0, ErrInvalidRank
	}
	// Both extremes are answered from the exactly tracked min/max. This is
	// what makes the protected tail exact regardless of compaction history.
	if rank == 0.0 {
		return s.minValue, nil
	}
	if rank == 1.0 {
		return s.maxValue, nil
	}
	if err := s.setupSortedView(); err != nil {
		return 0, err
	}
	return s.sortedView.GetQuantile(rank, inclusive)
}

// GetQuantiles returns approximations of the values at the given normalized
// ranks.
func (s *Sketch) GetQuantiles(ranks []float64, inclusive bool) ([]float64, error) {
	quantiles := make([]float64, len(ranks))
	for i := range ranks {
		q, err := s.GetQuantile(ranks[i], inclusive)
		if err != nil {
			return nil, err
		}
		quantiles[i] = q
	}
	return quantiles, nil
}

// GetRank returns an approximation of the normalized rank of the given value,
// i.e. the weighted fraction of the stream that is less than (or, if
// inclusive, less than or equal to) the value.
func (s *Sketch) GetRank(value float64, inclusive bool) (float64, error) {
	if s.IsEmpty() {
		return 0, ErrEmpty
	}
	if math.IsNaN(value) {
		return 0, ErrNaN
	}
	if err := s.setupSortedView(); err != nil {
		return 0, err
	}
	return s.sortedView.GetRank(value, inclusive)
}

// GetCDF returns an approximation of the cumulative distribution function of
// the stream evaluated at the given split points, which must be unique,
// monotonically increasing and free of NaN. The returned slice has one more
// entry than splitPoints; the last entry is always 1.0.
func (s *Sketch) GetCDF(splitPoints []float64, inclusive bool) ([]float64, error) {
	if s.IsEmpty() {
		return nil, ErrEmpty
	}
	if err := s.setupSortedView(); err != nil {
		return nil, err
	}
	return s.sortedView.GetCDF(splitPoints, inclusive)
}

// GetPMF returns an approximation of the probability mass function of the
// stream over the m+1 intervals defined by m split points. The masses sum
// to 1.0.
func (s *Sketch) GetPMF(splitPoints []float64, inclusive bool) ([]float64, error) {
	if s.IsEmpty() {
		return nil, ErrEmpty
	}
	if err := s.setupSortedView(); err != nil {
		return nil, err
	}
	return s.sortedView.GetPMF(splitPoints, inclusive)
}

// GetRankUpperBound returns an upper bound on the true normalized rank of the
// value GetQuantile would return at the given rank, at the given number of
// standard deviations of confidence. The bound width shrinks to zero as the
// rank approaches the protected tail.
func (s *Sketch) GetRankUpperBound(rank float64, numStdDev uint8) float64 {
	return math.Min(1.0, rank+float64(numStdDev)*s.rankRSE(rank))
}

// GetRankLowerBound is the lower counterpart of GetRankUpperBound.
func (s *Sketch) GetRankLowerBound(rank float64, numStdDev uint8) float64 {
	return math.Max(0.0, rank-float64(numStdDev)*s.rankRSE(rank))
}

// rankRSE approximates one relative standard error of rank estimation at the
// given normalized rank. The error is proportional to the square root of the
// distance from the protected tail; this empirical fit is validated by the
// statistical accuracy tests rather than derived from the paper's constants.
func (s *Sketch) rankRSE(rank float64) float64 {
	if !s.IsEstimationMode() {
		return 0
	}
	tailDistance := rank
	if s.mode == ModeHighRankAccuracy {
		tailDistance = 1.0 - rank
	}
	return math.Sqrt(tailDistance) / float64(s.k)
}

func (s *Sketch) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "### REQ sketch summary:\n")
	fmt.Fprintf(&sb, "   K            : %d\n", s.k)
	fmt.Fprintf(&sb, "   Mode         : %s\n", s.mode)
	fmt.Fprintf(&sb, "   N            : %d\n", s.n)
	fmt.Fprintf(&sb, "   Levels       : %d\n", len(s.compactors))
	fmt.Fprintf(&sb, "   Retained     : %d\n", s.GetNumRetained())
	if !s.IsEmpty() {
		fmt.Fprintf(&sb, "   Min, Max     : %g, %g\n", s.minValue, s.maxValue)
	}
	fmt.Fprintf(&sb, "### End sketch summary\n")
	return sb.String()
}

//
// Private methods
//

// levelBuffer returns the sorted buffer at the given level, or nil if the
// level does not exist.
func (s *Sketch) levelBuffer(level int) []float64 {
	if level >= len(s.compactors) {
		return nil
	}
	return s.compactors[level].buf
}

// grow appends empty compactors until the given level exists. Levels are
// created lazily and only ever appended, never removed.
func (s *Sketch) grow(level uint8) {
	for len(s.compactors) <= int(level) {
		lvl := uint8(len(s.compactors))
		s.compactors = append(s.compactors,
			newCompactor(lvl, levelCapacity(s.k, lvl), s.rnd.Intn(2) == 1))
	}
}

// compress restores the capacity invariant with a single bottom-up pass.
// Compacting a level leaves it at the safety-region size, so one visit per
// level suffices; promotions can only overflow levels the pass has not
// reached yet.
func (s *Sketch) compress() {
	for lvl := 0; lvl < len(s.compactors); lvl++ {
		c := s.compactors[lvl]
		if !c.isOverCapacity() {
			continue
		}
		s.grow(uint8(lvl + 1))
		promoted := c.compact(s.mode, int(s.k))
		s.compactors[lvl+1].mergeSorted(promoted)
	}
}

func (s *Sketch) setupSortedView() error {
	if s.sortedView == nil {
		sv, err := newSketchSortedView(s)
		if err != nil {
			return err
		}
		s.sortedView = sv
	}
	return nil
}

// levelCapacity returns the buffer capacity of one level. The capacity, and
// the safety region of k values adjacent to the protected tail, are the same
// at every level; memory grows as O(k log(n/k)) through level count alone.
func levelCapacity(k uint16, level uint8) uint32 {
	return 2 * uint32(k)
}

//
// Serialization
//

// ToSlice returns the compact serialized form of this sketch.
func (s *Sketch) ToSlice() []byte {
	structure := _COMPACT_FULL
	if s.n == 0 {
		structure = _COMPACT_EMPTY
	} else if s.n == 1 {
		structure = _COMPACT_SINGLE
	}

	bytesOut := make([]byte, s.GetSerializedSizeBytes())
	bytesOut[_PREAMBLE_INTS_BYTE_ADR] = byte(structure.getPreInts())
	bytesOut[_SER_VER_BYTE_ADR] = byte(structure.getSerVer())
	bytesOut[_FAMILY_BYTE_ADR] = byte(internal.FamilyEnum.Req.Id)
	flags := byte(0)
	if s.IsEmpty() {
		flags |= _EMPTY_BIT_MASK
	}
	if s.mode == ModeHighRankAccuracy {
		flags |= _HRA_BIT_MASK
	}
	if s.n == 1 {
		flags |= _SINGLE_ITEM_BIT_MASK
	}
	bytesOut[_FLAGS_BYTE_ADR] = flags
	binary.LittleEndian.PutUint16(bytesOut[_K_SHORT_ADR:], s.k)
	numLevels := uint8(len(s.compactors))
	bytesOut[_NUM_LEVELS_BYTE_ADR] = numLevels

	if structure == _COMPACT_EMPTY {
		return bytesOut
	}

	if structure == _COMPACT_SINGLE {
		copy(bytesOut[_DATA_START_ADR_SINGLE_ITEM:], s.serde.SerializeOneToSlice(s.compactors[0].buf[0]))
		return bytesOut
	}

	binary.LittleEndian.PutUint64(bytesOut[_N_LONG_ADR:], s.n)
	offset := int(_DATA_START_ADR)
	for _, c := range s.compactors {
		binary.LittleEndian.PutUint32(bytesOut[offset:], uint32(len(c.buf)))
		offset += 4
	}
	copy(bytesOut[offset:], s.serde.SerializeOneToSlice(s.minValue))
	offset += 8
	copy(bytesOut[offset:], s.serde.SerializeOneToSlice(s.maxValue))
	offset += 8
	for _, c := range s.compactors {
		copy(bytesOut[offset:], s.serde.SerializeManyToSlice(c.buf))
		offset += 8 * len(c.buf)
	}
	return bytesOut
}

// GetSerializedSizeBytes returns the number of bytes the sketch requires in
// compact serialized form.
func (s *Sketch) GetSerializedSizeBytes() int {
	if s.n == 0 {
		return _DATA_START_ADR_SINGLE_ITEM
	}
	if s.n == 1 {
		return _DATA_START_ADR_SINGLE_ITEM + 8
	}
	return int(_DATA_START_ADR) + 4*len(s.compactors) + 16 + 8*int(s.GetNumRetained())
}

// NewSketchFromSlice reconstructs a sketch from its compact serialized form.
// Truncated or corrupt input is rejected with an error; query results of the
// reconstructed sketch are identical to those of the original.
func NewSketchFromSlice(sl []byte) (*Sketch, error) {
	memVal, err := newSketchMemoryValidate(sl)
	if err != nil {
		return nil, err
	}
	sketch, err := NewSketch(memVal.k, memVal.mode)
	if err != nil {
		return nil, err
	}
	sketch.n = memVal.n
	if memVal.n == 0 {
		return sketch, nil
	}
	sketch.minValue = memVal.minValue
	sketch.maxValue = memVal.maxValue
	if len(memVal.levelBufs) > 0 {
		sketch.grow(uint8(len(memVal.levelBufs) - 1))
		for lvl, buf := range memVal.levelBufs {
			sketch.compactors[lvl].buf = append(sketch.compactors[lvl].buf[:0], buf...)
		}
	}
	return sketch, nil
}
