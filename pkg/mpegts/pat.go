// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/srt2hls
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package mpegts

import "github.com/q191201771/naza/pkg/bele"

// Pat
//
// ---------------------------------------------------------------------------------------------------
// Program association section
// <iso13818-1.pdf> <2.4.4.3> <page 61/174>
// ----- common header, see Psi -----
// -----loop-----
// program_number           [16b] **
// reserved                 [3b]
// program_map_PID          [13b] ** if program_number == 0 then network_PID else then program_map_PID
// --------------
// CRC_32                   [32b] ****
// ---------------------------------------------------------------------------------------------------
type Pat struct {
	ProgramElements []PatProgramElement
}

type PatProgramElement struct {
	ProgramNumber uint16
	Pid           uint16
}

// @param raw: 从table_id开始，调用方已经检查过长度和CRC
func parsePat(raw []byte, sl int) (*Pat, error) {
	pat := &Pat{}
	n := (sl - 9) / 4
	for i := 0; i < n; i++ {
		p := raw[8+i*4:]
		pat.ProgramElements = append(pat.ProgramElements, PatProgramElement{
			ProgramNumber: bele.BeUint16(p),
			Pid:           bele.BeUint16(p[2:]) & 0x1FFF,
		})
	}
	return pat, nil
}

func (pat *Pat) SearchPid(pid uint16) bool {
	for _, ppe := range pat.ProgramElements {
		if pid == ppe.Pid {
			return true
		}
	}
	return false
}

// PmtPids program_number为0的是network_PID，不计入
func (pat *Pat) PmtPids() []uint16 {
	var ret []uint16
	for _, ppe := range pat.ProgramElements {
		if ppe.ProgramNumber != 0 {
			ret = append(ret, ppe.Pid)
		}
	}
	return ret
}
