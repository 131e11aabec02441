// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/srt2hls
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package mpegts

import (
	"fmt"

	"github.com/q191201771/srt2hls/pkg/base"
	"github.com/q191201771/srt2hls/pkg/bits"
)

// AdaptationField
//
// ----------------------------------------------------------
// <iso13818-1.pdf> <Table 2-6> <page 40/174>
// adaptation_field_length              [8b] * 不包括自己这1字节
// discontinuity_indicator              [1b]
// random_access_indicator              [1b]
// elementary_stream_priority_indicator [1b]
// PCR_flag                             [1b]
// OPCR_flag                            [1b]
// splicing_point_flag                  [1b]
// transport_private_data_flag          [1b]
// adaptation_field_extension_flag      [1b] *
// -----if PCR_flag == 1-----
// program_clock_reference_base         [33b]
// reserved                             [6b]
// program_clock_reference_extension    [9b] ******
// -----if OPCR_flag == 1-----
// original_program_clock_reference_*   [48b] ******
// -----if splicing_point_flag == 1-----
// splice_countdown                     [8b] *
// -----if transport_private_data_flag == 1-----
// transport_private_data_length        [8b] *
// private_data_byte                    [8b * length]
// -----if adaptation_field_extension_flag == 1-----
// adaptation_field_extension
// -----
// stuffing_byte
// ----------------------------------------------------------
type AdaptationField struct {
	Length uint8

	Discontinuity bool
	RandomAccess  bool
	EsPriority    bool

	HasPcr bool
	Pcr    ClockReference

	HasOpcr bool
	Opcr    ClockReference

	HasSplicingPoint bool
	SpliceCountdown  int8

	HasPrivateData bool
	PrivateData    []byte

	Extension *AdaptationFieldExtension
}

// AdaptationFieldExtension
//
// ----------------------------------------------------------
// <iso13818-1.pdf> <Table 2-6> <page 41/174>
// adaptation_field_extension_length [8b]
// ltw_flag                          [1b]
// piecewise_rate_flag               [1b]
// seamless_splice_flag              [1b]
// reserved                          [5b]
// -----if ltw_flag == 1-----
// ltw_valid_flag                    [1b]
// ltw_offset                        [15b]
// -----if piecewise_rate_flag == 1-----
// reserved                          [2b]
// piecewise_rate                    [22b]
// -----if seamless_splice_flag == 1-----
// splice_type                       [4b]
// DTS_next_AU                       [36b] 3+15+15个有效位，各自后跟1位marker
// ----------------------------------------------------------
type AdaptationFieldExtension struct {
	Length uint8

	HasLtw    bool
	LtwValid  bool
	LtwOffset uint16

	HasPiecewiseRate bool
	PiecewiseRate    uint32

	HasSeamlessSplice bool
	SpliceType        uint8
	DtsNextAu         uint64
}

// ClockReference PCR或OPCR，Base为90kHz，Ext为27MHz
type ClockReference struct {
	Base uint64
	Ext  uint16
}

// Value 27MHz时钟下的值
func (c ClockReference) Value() uint64 {
	return c.Base*300 + uint64(c.Ext)
}

// Size 在packet中占用的字节数，包含adaptation_field_length自身
func (af *AdaptationField) Size() int {
	return int(af.Length) + 1
}

// IsEmpty adaptation_field_length为0，只占用1字节
func (af *AdaptationField) IsEmpty() bool {
	return af.Length == 0
}

// ParseAdaptationField
//
// @param b: 从adaptation_field_length开始，到TS packet结尾
func ParseAdaptationField(b []byte) (*AdaptationField, error) {
	if len(b) < 1 {
		return nil, newErrAdaptationField(1, len(b), "length")
	}

	af := &AdaptationField{
		Length: b[0],
	}
	if af.Length == 0 {
		return af, nil
	}
	if af.Size() > len(b) {
		return nil, newErrAdaptationField(af.Size(), len(b), "body")
	}

	body := b[1:af.Size()]
	flags := body[0]
	af.Discontinuity = flags&0x80 != 0
	af.RandomAccess = flags&0x40 != 0
	af.EsPriority = flags&0x20 != 0
	af.HasPcr = flags&0x10 != 0
	af.HasOpcr = flags&0x08 != 0
	af.HasSplicingPoint = flags&0x04 != 0
	af.HasPrivateData = flags&0x02 != 0
	hasExtension := flags&0x01 != 0

	pos := 1
	if af.HasPcr {
		if len(body) < pos+6 {
			return nil, newErrAdaptationField(pos+6, len(body), "pcr")
		}
		af.Pcr = readClockReference(body[pos:])
		pos += 6
	}
	if af.HasOpcr {
		if len(body) < pos+6 {
			return nil, newErrAdaptationField(pos+6, len(body), "opcr")
		}
		af.Opcr = readClockReference(body[pos:])
		pos += 6
	}
	if af.HasSplicingPoint {
		if len(body) < pos+1 {
			return nil, newErrAdaptationField(pos+1, len(body), "splice countdown")
		}
		af.SpliceCountdown = int8(body[pos])
		pos++
	}
	if af.HasPrivateData {
		if len(body) < pos+1 {
			return nil, newErrAdaptationField(pos+1, len(body), "private data length")
		}
		l := int(body[pos])
		if len(body) < pos+1+l {
			return nil, newErrAdaptationField(pos+1+l, len(body), "private data")
		}
		af.PrivateData = body[pos+1 : pos+1+l]
		pos += 1 + l
	}
	if hasExtension {
		ext, err := parseAdaptationFieldExtension(body[pos:])
		if err != nil {
			return nil, err
		}
		af.Extension = ext
	}
	// 剩余的是stuffing_byte
	return af, nil
}

func parseAdaptationFieldExtension(b []byte) (*AdaptationFieldExtension, error) {
	if len(b) < 1 {
		return nil, newErrAdaptationField(1, len(b), "extension length")
	}
	ext := &AdaptationFieldExtension{
		Length: b[0],
	}
	if len(b) < 1+int(ext.Length) {
		return nil, newErrAdaptationField(1+int(ext.Length), len(b), "extension")
	}
	if ext.Length == 0 {
		return ext, nil
	}

	body := b[1 : 1+int(ext.Length)]
	flags := body[0]
	ext.HasLtw = flags&0x80 != 0
	ext.HasPiecewiseRate = flags&0x40 != 0
	ext.HasSeamlessSplice = flags&0x20 != 0

	pos := 1
	if ext.HasLtw {
		if len(body) < pos+2 {
			return nil, newErrAdaptationField(pos+2, len(body), "ltw")
		}
		ext.LtwValid = bits.Bit(body[pos:], 0)
		ext.LtwOffset = bits.Bits16(body[pos:], 1, 15)
		pos += 2
	}
	if ext.HasPiecewiseRate {
		if len(body) < pos+3 {
			return nil, newErrAdaptationField(pos+3, len(body), "piecewise rate")
		}
		ext.PiecewiseRate = bits.Bits32(body[pos:], 2, 22)
		pos += 3
	}
	if ext.HasSeamlessSplice {
		if len(body) < pos+5 {
			return nil, newErrAdaptationField(pos+5, len(body), "seamless splice")
		}
		ext.SpliceType = body[pos] >> 4
		ext.DtsNextAu = readTimestamp(body[pos:])
	}
	return ext, nil
}

// 33位base，6位reserved，9位extension
func readClockReference(b []byte) ClockReference {
	return ClockReference{
		Base: bits.Bits64(b, 0, 33),
		Ext:  bits.Bits16(b, 39, 9),
	}
}

func newErrAdaptationField(need, actual int, field string) error {
	return fmt.Errorf("%w. need=%d, actual=%d, field=%s", base.ErrAdaptationField, need, actual, field)
}
