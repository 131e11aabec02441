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

	"github.com/q191201771/naza/pkg/bele"
	"github.com/q191201771/srt2hls/pkg/base"
	"github.com/q191201771/srt2hls/pkg/bits"
)

// stream_id
// <iso13818-1.pdf> <Table 2-18 Stream_id assignments> <page 52/174>
const (
	StreamIdProgramStreamMap       uint8 = 0xBC
	StreamIdPrivateStream1         uint8 = 0xBD
	StreamIdPaddingStream          uint8 = 0xBE
	StreamIdPrivateStream2         uint8 = 0xBF
	StreamIdAudio                  uint8 = 0xC0
	StreamIdVideo                  uint8 = 0xE0
	StreamIdEcm                    uint8 = 0xF0
	StreamIdEmm                    uint8 = 0xF1
	StreamIdDsmcc                  uint8 = 0xF2
	StreamIdH2221TypeE             uint8 = 0xF8
	StreamIdProgramStreamDirectory uint8 = 0xFF
)

// PTS_DTS_flags
const (
	PtsDtsFlagsNone   uint8 = 0x0
	PtsDtsFlagsPts    uint8 = 0x2
	PtsDtsFlagsPtsDts uint8 = 0x3
)

// Pes
//
// -----------------------------------------------------------
// <iso13818-1.pdf>
// <2.4.3.6 PES packet> <page 49/174>
// packet_start_code_prefix  [24b] *** always 0x00, 0x00, 0x01
// stream_id                 [8b]  *
// PES_packet_length         [16b] **
// PES header, see PesHeader
// -----------------------------------------------------------
//
// Header 为nil表示该stream_id没有PES header。
// Data 为当前packet中PES header之后的数据，没有拷贝
type Pes struct {
	StreamId     uint8
	PacketLength uint16
	Header       *PesHeader
	Data         []byte
}

// PesHeader
//
// -----------------------------------------------------------
// '10'                      [2b]
// PES_scrambling_control    [2b]
// PES_priority              [1b]
// data_alignment_indicator  [1b]
// copyright                 [1b]
// original_or_copy          [1b]  *
// PTS_DTS_flags             [2b]
// ESCR_flag                 [1b]
// ES_rate_flag              [1b]
// DSM_trick_mode_flag       [1b]
// additional_copy_info_flag [1b]
// PES_CRC_flag              [1b]
// PES_extension_flag        [1b]  *
// PES_header_data_length    [8b]  *
// -----------------------------------------------------------
// 可选字段按如下顺序出现:
// PTS 5字节 / PTS+DTS 10字节，ESCR 6字节，ES_rate 3字节，trick mode 1字节，additional_copy_info 1字节，previous_PES_CRC 2字节，
// extension 只标记 ExtensionUnsupported
type PesHeader struct {
	ScramblingControl uint8
	Priority          bool
	DataAlignment     bool
	Copyright         bool
	OriginalOrCopy    bool
	PtsDtsFlags       uint8
	HeaderDataLength  uint8

	Pts uint64
	Dts uint64

	HasEscr bool
	Escr    ClockReference

	HasEsRate bool
	EsRate    uint32

	HasTrickMode bool
	TrickMode    uint8

	HasAdditionalCopyInfo bool
	AdditionalCopyInfo    uint8

	HasPreviousCrc bool
	PreviousCrc    uint16

	ExtensionUnsupported bool
}

func (h *PesHeader) HasPts() bool {
	return h.PtsDtsFlags&0x2 != 0
}

func (h *PesHeader) HasDts() bool {
	return h.PtsDtsFlags == PtsDtsFlagsPtsDts
}

// HasPesHeader 这些stream_id的PES packet后面直接跟数据
func HasPesHeader(streamId uint8) bool {
	switch streamId {
	case StreamIdProgramStreamMap, StreamIdPrivateStream1, StreamIdPaddingStream, StreamIdPrivateStream2,
		StreamIdEcm, StreamIdEmm, StreamIdProgramStreamDirectory, StreamIdDsmcc, StreamIdH2221TypeE:
		return false
	}
	return true
}

// ParsePes
//
// @param b: 从packet_start_code_prefix开始
func ParsePes(b []byte) (*Pes, error) {
	if len(b) < 6 {
		return nil, base.NewErrShortBuffer(6, len(b), "pes")
	}
	if b[0] != 0 || b[1] != 0 || b[2] != 1 {
		return nil, fmt.Errorf("%w. prefix=%02x%02x%02x", base.ErrPesStartCode, b[0], b[1], b[2])
	}

	pes := &Pes{
		StreamId:     b[3],
		PacketLength: bele.BeUint16(b[4:]),
	}
	if !HasPesHeader(pes.StreamId) {
		pes.Data = b[6:]
		return pes, nil
	}

	h, err := ParsePesHeader(b[6:])
	if err != nil {
		return nil, err
	}
	pes.Header = h
	pes.Data = b[9+int(h.HeaderDataLength):]
	return pes, nil
}

// ParsePesHeader
//
// @param b: 从PES_packet_length之后的'10'开始
func ParsePesHeader(b []byte) (*PesHeader, error) {
	if len(b) < 3 {
		return nil, base.NewErrShortBuffer(3, len(b), "pes header")
	}

	h := &PesHeader{
		ScramblingControl: (b[0] >> 4) & 0x03,
		Priority:          b[0]&0x08 != 0,
		DataAlignment:     b[0]&0x04 != 0,
		Copyright:         b[0]&0x02 != 0,
		OriginalOrCopy:    b[0]&0x01 != 0,
		PtsDtsFlags:       b[1] >> 6,
		HasEscr:           b[1]&0x20 != 0,
		HasEsRate:         b[1]&0x10 != 0,
		HasTrickMode:      b[1]&0x08 != 0,

		HasAdditionalCopyInfo: b[1]&0x04 != 0,
		HasPreviousCrc:        b[1]&0x02 != 0,
		ExtensionUnsupported:  b[1]&0x01 != 0,

		HeaderDataLength: b[2],
	}
	if h.PtsDtsFlags == 0x1 {
		return nil, fmt.Errorf("%w. flags=%d", base.ErrPtsDtsFlags, h.PtsDtsFlags)
	}

	end := 3 + int(h.HeaderDataLength)
	if len(b) < end {
		return nil, base.NewErrShortBuffer(end, len(b), "pes header data")
	}
	opt := b[3:end]
	pos := 0
	need := func(n int, field string) error {
		if len(opt) < pos+n {
			return base.NewErrShortBuffer(pos+n, len(opt), field)
		}
		return nil
	}

	switch h.PtsDtsFlags {
	case PtsDtsFlagsPts:
		if err := need(5, "pts"); err != nil {
			return nil, err
		}
		h.Pts = readTimestamp(opt[pos:])
		h.Dts = h.Pts
		pos += 5
	case PtsDtsFlagsPtsDts:
		if err := need(10, "pts dts"); err != nil {
			return nil, err
		}
		h.Pts = readTimestamp(opt[pos:])
		h.Dts = readTimestamp(opt[pos+5:])
		pos += 10
	}
	if h.HasEscr {
		if err := need(6, "escr"); err != nil {
			return nil, err
		}
		h.Escr = readEscr(opt[pos:])
		pos += 6
	}
	if h.HasEsRate {
		if err := need(3, "es rate"); err != nil {
			return nil, err
		}
		h.EsRate = bits.Bits32(opt[pos:], 1, 22)
		pos += 3
	}
	if h.HasTrickMode {
		if err := need(1, "trick mode"); err != nil {
			return nil, err
		}
		h.TrickMode = opt[pos]
		pos++
	}
	if h.HasAdditionalCopyInfo {
		if err := need(1, "additional copy info"); err != nil {
			return nil, err
		}
		h.AdditionalCopyInfo = opt[pos] & 0x7F
		pos++
	}
	if h.HasPreviousCrc {
		if err := need(2, "previous crc"); err != nil {
			return nil, err
		}
		h.PreviousCrc = bele.BeUint16(opt[pos:])
	}
	return h, nil
}

// readTimestamp 读取5字节的PTS或DTS，前4位是标识，3+15+15个有效位各自后跟1位marker
func readTimestamp(b []byte) uint64 {
	return bits.Bits64(b, 4, 3)<<30 | bits.Bits64(b, 8, 15)<<15 | bits.Bits64(b, 24, 15)
}

// readEscr
//
// reserved [2b] ESCR_base[32..30] [3b] marker [1b] ESCR_base[29..15] [15b] marker [1b] ESCR_base[14..0] [15b] marker [1b]
// ESCR_extension [9b] marker [1b]
func readEscr(b []byte) ClockReference {
	return ClockReference{
		Base: bits.Bits64(b, 2, 3)<<30 | bits.Bits64(b, 6, 15)<<15 | bits.Bits64(b, 22, 15),
		Ext:  bits.Bits16(b, 38, 9),
	}
}
