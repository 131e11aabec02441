// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/srt2hls
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package mpegts

import (
	"github.com/q191201771/naza/pkg/bele"
	"github.com/q191201771/srt2hls/pkg/base"
)

// PsiId
const (
	TsPsiIdPas            = 0x00 // program_association_section
	TsPsiIdCas            = 0x01 // conditional_access_section (CA_section)
	TsPsiIdPms            = 0x02 // TS_program_map_section
	TsPsiIdDs             = 0x03 // TS_description_section
	TsPsiIdSds            = 0x04 // ISO_IEC_14496_scene_description_section
	TsPsiIdOds            = 0x05 // ISO_IEC_14496_object_descriptor_section
	TsPsiIdIso138181Start = 0x06 // ITU-T Rec. H.222.0 | ISO/IEC 13818-1 reserved
	TsPsiIdIso138181End   = 0x37
	TsPsiIdIso138186Start = 0x38 // Defined in ISO/IEC 13818-6
	TsPsiIdIso138186End   = 0x3F
	TsPsiIdUserStart      = 0x40 // User private
	TsPsiIdUserEnd        = 0xFE
	TsPsiIdForbidden      = 0xFF // forbidden
)

// Psi
//
// -----------------------------------------------------------
// pointer_field            [8b]  * 只在payload_unit_start_indicator为1的packet中出现
// ----- section -----
// table_id                 [8b]  *
// section_syntax_indicator [1b]
// '0'                      [1b]
// reserved                 [2b]
// section_length           [12b] ** 不包括自己及之前的3字节
// table_id_extension       [16b] ** PAT中为transport_stream_id，PMT中为program_number
// reserved                 [2b]
// version_number           [5b]
// current_next_indicator   [1b]  *
// section_number           [8b]  *
// last_section_number      [8b]  *
// ----- table data -----
// CRC_32                   [32b] ****
// -----------------------------------------------------------
//
// 只支持一个section完整地落在一个packet内，不做跨packet的组装。
// PAT和PMT之外的table_id只解析前3字节，Unsupported 为true
type Psi struct {
	PointerField uint8

	TableId                uint8
	SectionSyntaxIndicator uint8
	SectionLength          uint16

	TableIdExtension     uint16
	VersionNumber        uint8
	CurrentNextIndicator uint8
	SectionNumber        uint8
	LastSectionNumber    uint8

	Pat *Pat
	Pmt *Pmt

	Unsupported bool
	Crc32       uint32
}

// ParsePsi
//
// @param b: 从pointer_field开始
func ParsePsi(b []byte) (*Psi, error) {
	if len(b) < 1 {
		return nil, base.NewErrShortBuffer(1, len(b), "psi pointer field")
	}
	psi := &Psi{
		PointerField: b[0],
	}
	start := int(psi.PointerField) + 1
	if len(b) < start+3 {
		return nil, base.NewErrShortBuffer(start+3, len(b), "psi table header")
	}
	raw := b[start:]

	psi.TableId = raw[0]
	psi.SectionSyntaxIndicator = raw[1] >> 7
	psi.SectionLength = bele.BeUint16(raw[1:]) & 0x0FFF

	if psi.TableId != TsPsiIdPas && psi.TableId != TsPsiIdPms {
		psi.Unsupported = true
		return psi, nil
	}

	sl := int(psi.SectionLength)
	if sl < 9 {
		return nil, base.NewErrShortBuffer(9, sl, "psi section length")
	}
	if len(raw) < sl+3 {
		return nil, base.NewErrShortBuffer(sl+3, len(raw), "psi section")
	}

	psi.TableIdExtension = bele.BeUint16(raw[3:])
	psi.VersionNumber = (raw[5] >> 1) & 0x1F
	psi.CurrentNextIndicator = raw[5] & 0x01
	psi.SectionNumber = raw[6]
	psi.LastSectionNumber = raw[7]

	psi.Crc32 = bele.BeUint32(raw[sl-1:])
	if crc := CalcCrc32(raw[:sl-1]); crc != psi.Crc32 {
		return nil, base.NewErrPsiCrc(psi.Crc32, crc)
	}

	var err error
	switch psi.TableId {
	case TsPsiIdPas:
		psi.Pat, err = parsePat(raw, sl)
	case TsPsiIdPms:
		psi.Pmt, err = parsePmt(raw, sl)
	}
	if err != nil {
		return nil, err
	}
	return psi, nil
}
