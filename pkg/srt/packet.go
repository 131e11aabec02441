// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/srt2hls
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package srt

import (
	"fmt"

	"github.com/q191201771/naza/pkg/bele"
	"github.com/q191201771/srt2hls/pkg/base"
	"github.com/q191201771/srt2hls/pkg/bits"
)

// Packet SRT报文，Control 和 Data 有且只有一个不为nil
//
// ------------------------------------------------
// <draft-sharabayko-srt> <3. Packet Structure>
// F                        [1b]  0 data, 1 control
// (data)    sequence num   [31b]
// (control) type           [15b]
// (control) subtype        [16b]
// (data)    PP|O|KK|R|msg  [32b]
// (control) type specific  [32b]
// timestamp                [32b] 相对连接建立时间的微秒数
// dest socket id           [32b]
// ------------------------------------------------
type Packet struct {
	Timestamp    uint32
	DestSocketId uint32

	Control *ControlPacket
	Data    *DataPacket
}

// DataPacket
//
// Payload 指向输入的内存块，没有拷贝
type DataPacket struct {
	SequenceNumber uint32
	Position       PacketPosition
	Order          bool
	Encryption     uint8
	Retransmitted  bool
	MessageNumber  uint32
	Payload        []byte
}

func (p *Packet) IsControl() bool {
	return p.Control != nil
}

// IsControlType 是否是类型为 t 的控制包
func (p *Packet) IsControlType(t ControlType) bool {
	return p.Control != nil && p.Control.Type == t
}

// ParsePacket 解析一个UDP包
//
// 解析出的 DataPacket.Payload 以及控制包中未解析的CIF都引用 b 的内存
func ParsePacket(b []byte) (*Packet, error) {
	if len(b) < HeaderSize {
		return nil, base.NewErrSrtShortBuffer(HeaderSize, len(b), "packet header")
	}

	pkt := &Packet{
		Timestamp:    bele.BeUint32(b[8:]),
		DestSocketId: bele.BeUint32(b[12:]),
	}

	if !bits.Bit(b, 0) {
		pkt.Data = &DataPacket{
			SequenceNumber: bits.Bits32(b, 1, 31),
			Position:       PacketPosition(bits.Bits8(b, 32, 2)),
			Order:          bits.Bit(b, 34),
			Encryption:     bits.Bits8(b, 35, 2),
			Retransmitted:  bits.Bit(b, 37),
			MessageNumber:  bits.Bits32(b, 38, 26),
			Payload:        b[HeaderSize:],
		}
		return pkt, nil
	}

	cp, err := parseControlPacket(b)
	if err != nil {
		return nil, err
	}
	pkt.Control = cp
	return pkt, nil
}

// Pack 序列化，是 ParsePacket 的逆过程
//
// KM扩展只支持原样写回解析时保留的原始数据
func (p *Packet) Pack() ([]byte, error) {
	var body []byte
	var err error

	header := make([]byte, HeaderSize)
	switch {
	case p.Data != nil:
		d := p.Data
		bele.BePutUint32(header, d.SequenceNumber&MaxSequenceNumber)
		v := uint32(d.Position&0x3) << 30
		if d.Order {
			v |= 1 << 29
		}
		v |= uint32(d.Encryption&0x3) << 27
		if d.Retransmitted {
			v |= 1 << 26
		}
		v |= d.MessageNumber & MaxMessageNumber
		bele.BePutUint32(header[4:], v)
		body = d.Payload
	case p.Control != nil:
		c := p.Control
		bele.BePutUint16(header, uint16(c.Type)|0x8000)
		bele.BePutUint16(header[2:], c.Subtype)
		bele.BePutUint32(header[4:], c.TypeSpecific)
		if body, err = c.packCif(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w. empty packet", base.ErrSrt)
	}
	bele.BePutUint32(header[8:], p.Timestamp)
	bele.BePutUint32(header[12:], p.DestSocketId)

	out := make([]byte, HeaderSize+len(body))
	copy(out, header)
	copy(out[HeaderSize:], body)
	return out, nil
}

func (p *Packet) DebugString() string {
	if p.Data != nil {
		return fmt.Sprintf("data. seq=%d, msg=%d, pos=%s, retrans=%t, len=%d, ts=%d, dest=%d",
			p.Data.SequenceNumber, p.Data.MessageNumber, p.Data.Position, p.Data.Retransmitted, len(p.Data.Payload),
			p.Timestamp, p.DestSocketId)
	}
	if p.Control != nil {
		return fmt.Sprintf("control. type=%s, subtype=%d, ts=%d, dest=%d",
			p.Control.Type, p.Control.Subtype, p.Timestamp, p.DestSocketId)
	}
	return "empty"
}
