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

	"github.com/q191201771/naza/pkg/nazabits"
	"github.com/q191201771/srt2hls/pkg/base"
)

// TsPacketHeader
//
// ------------------------------------------------
// <iso13818-1.pdf> <2.4.3.2> <page 36/174>
// sync_byte                    [8b]  * always 0x47
// transport_error_indicator    [1b]
// payload_unit_start_indicator [1b]
// transport_priority           [1b]
// PID                          [13b] **
// transport_scrambling_control [2b]
// adaptation_field_control     [2b]
// continuity_counter           [4b]  *
// ------------------------------------------------
type TsPacketHeader struct {
	Sync             uint8
	Err              uint8
	PayloadUnitStart uint8
	Prio             uint8
	Pid              uint16
	Scra             uint8
	Adaptation       uint8
	Cc               uint8
}

func (h *TsPacketHeader) HasAdaptationField() bool {
	return h.Adaptation&0x2 != 0
}

func (h *TsPacketHeader) HasPayload() bool {
	return h.Adaptation&0x1 != 0
}

type PayloadKind uint8

const (
	PayloadKindData PayloadKind = iota // payload_unit_start_indicator为0的后续数据，不做跨packet的组装
	PayloadKindPes
	PayloadKindPsi
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadKindPes:
		return "PES"
	case PayloadKindPsi:
		return "PSI"
	}
	return "DATA"
}

// Payload
//
// Raw 指向输入的packet内存块，没有拷贝
type Payload struct {
	Kind PayloadKind
	Raw  []byte
	Pes  *Pes
	Psi  *Psi
}

// TransportPacket 一个188字节的TS packet
//
// AdaptationField 为nil表示没有adaptation field，Payload 为nil表示没有payload
type TransportPacket struct {
	Header          TsPacketHeader
	AdaptationField *AdaptationField
	Payload         *Payload
}

// ParseTsPacketHeader 解析4字节TS Packet header，调用方保证长度
func ParseTsPacketHeader(b []byte) (h TsPacketHeader) {
	br := nazabits.NewBitReader(b)
	h.Sync, _ = br.ReadBits8(8)
	h.Err, _ = br.ReadBits8(1)
	h.PayloadUnitStart, _ = br.ReadBits8(1)
	h.Prio, _ = br.ReadBits8(1)
	h.Pid, _ = br.ReadBits16(13)
	h.Scra, _ = br.ReadBits8(2)
	h.Adaptation, _ = br.ReadBits8(2)
	h.Cc, _ = br.ReadBits8(4)
	return
}

// ParseTransportPacket
//
// @param b: 一个完整的TS packet，只使用前188字节
//
// @param pmtPids: 调用方从PAT中学习到的PMT PID。payload_unit_start_indicator为1时，PID属于该集合或者固定的PSI PID，
//                 payload按PSI解析，否则按PES解析
func ParseTransportPacket(b []byte, pmtPids PidSet) (*TransportPacket, error) {
	if len(b) > 0 && b[0] != SyncByte {
		return nil, fmt.Errorf("%w. b=0x%02x", base.ErrSyncByte, b[0])
	}
	if len(b) < PacketSize {
		return nil, base.NewErrShortBuffer(PacketSize, len(b), "ts packet")
	}
	b = b[:PacketSize]

	pkt := &TransportPacket{
		Header: ParseTsPacketHeader(b),
	}

	offset := 4
	if pkt.Header.HasAdaptationField() {
		af, err := ParseAdaptationField(b[offset:])
		if err != nil {
			return nil, err
		}
		pkt.AdaptationField = af
		offset += af.Size()
	}

	if !pkt.Header.HasPayload() {
		return pkt, nil
	}

	p := &Payload{
		Kind: PayloadKindData,
		Raw:  b[offset:],
	}
	if pkt.Header.PayloadUnitStart == 1 {
		var err error
		if IsPsiPid(pkt.Header.Pid, pmtPids) {
			p.Kind = PayloadKindPsi
			p.Psi, err = ParsePsi(p.Raw)
		} else {
			p.Kind = PayloadKindPes
			p.Pes, err = ParsePes(p.Raw)
		}
		if err != nil {
			return nil, fmt.Errorf("%w. pid=%d", err, pkt.Header.Pid)
		}
	}
	pkt.Payload = p
	return pkt, nil
}
