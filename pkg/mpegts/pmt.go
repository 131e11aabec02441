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

// Pmt
//
// ----------------------------------------
// Program Map Table
// <iso13818-1.pdf> <2.4.4.8> <page 64/174>
// ----- common header, see Psi -----
// reserved                 [3b]
// PCR_PID                  [13b] **
// reserved                 [4b]
// program_info_length      [12b] **
// descriptor               [program_info_length]
// -----loop-----
// stream_type              [8b]  *
// reserved                 [3b]
// elementary_PID           [13b] **
// reserved                 [4b]
// ES_info_length           [12b] **
// descriptor               [ES_info_length]
// --------------
// CRC32                    [32b] ****
// ----------------------------------------
type Pmt struct {
	PcrPid            uint16
	ProgramInfoLength uint16
	Descriptors       []Descriptor
	ProgramElements   []PmtProgramElement
}

type PmtProgramElement struct {
	StreamType   uint8
	Pid          uint16
	EsInfoLength uint16
	Descriptors  []Descriptor
}

// @param raw: 从table_id开始，调用方已经检查过长度和CRC
func parsePmt(raw []byte, sl int) (*Pmt, error) {
	end := sl - 1 // CRC_32的位置
	if end < 12 {
		return nil, base.NewErrShortBuffer(12, end, "pmt header")
	}

	pmt := &Pmt{
		PcrPid:            bele.BeUint16(raw[8:]) & 0x1FFF,
		ProgramInfoLength: bele.BeUint16(raw[10:]) & 0x0FFF,
	}

	offset := 12
	pil := int(pmt.ProgramInfoLength)
	if offset+pil > end {
		return nil, base.NewErrShortBuffer(offset+pil, end, "pmt program info")
	}
	var err error
	if pmt.Descriptors, err = ParseDescriptors(raw[offset : offset+pil]); err != nil {
		return nil, err
	}
	offset += pil

	for offset < end {
		if offset+5 > end {
			return nil, base.NewErrShortBuffer(offset+5, end, "pmt program element")
		}
		ppe := PmtProgramElement{
			StreamType:   raw[offset],
			Pid:          bele.BeUint16(raw[offset+1:]) & 0x1FFF,
			EsInfoLength: bele.BeUint16(raw[offset+3:]) & 0x0FFF,
		}
		offset += 5
		esil := int(ppe.EsInfoLength)
		if offset+esil > end {
			return nil, base.NewErrShortBuffer(offset+esil, end, "pmt es info")
		}
		if ppe.Descriptors, err = ParseDescriptors(raw[offset : offset+esil]); err != nil {
			return nil, err
		}
		offset += esil
		pmt.ProgramElements = append(pmt.ProgramElements, ppe)
	}
	return pmt, nil
}

func (pmt *Pmt) SearchPid(pid uint16) *PmtProgramElement {
	for i := range pmt.ProgramElements {
		if pmt.ProgramElements[i].Pid == pid {
			return &pmt.ProgramElements[i]
		}
	}
	return nil
}

// VideoPid 第一个视频流的PID，没有视频流时返回PCR_PID
func (pmt *Pmt) VideoPid() uint16 {
	for _, ppe := range pmt.ProgramElements {
		if IsVideoStreamType(ppe.StreamType) {
			return ppe.Pid
		}
	}
	return pmt.PcrPid
}
