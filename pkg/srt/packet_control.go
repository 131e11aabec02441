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
)

// ControlPacket 控制包
//
// TypeSpecific 的含义由类型决定：ACK中是ACK序号，ACKACK中是被确认的ACK序号，DROPREQ中是消息号，PEERERROR中是错误码
//
// Handshake Ack Nak DropReq 对应类型的CIF解析结果，其它类型的CIF原样保存在 Cif 中
type ControlPacket struct {
	Type         ControlType
	Subtype      uint16
	TypeSpecific uint32

	Handshake *Handshake
	Ack       *Ack
	Nak       *Nak
	DropReq   *DropReq
	Cif       []byte
}

func (c *ControlPacket) AckNumber() uint32 {
	return c.TypeSpecific
}

func (c *ControlPacket) MessageNumber() uint32 {
	return c.TypeSpecific
}

func (c *ControlPacket) ErrorCode() uint32 {
	return c.TypeSpecific
}

type AckKind uint8

const (
	AckKindLight AckKind = iota + 1
	AckKindSmall
	AckKindFull
)

func (k AckKind) String() string {
	switch k {
	case AckKindLight:
		return "LIGHT"
	case AckKindSmall:
		return "SMALL"
	case AckKindFull:
		return "FULL"
	}
	return "unknown"
}

// 各类ACK的CIF长度
const (
	ackLightCifSize = 4
	ackSmallCifSize = 16
	ackFullCifSize  = 28
)

// Ack
//
// Light只有 LastAckPacketSeq ，Small多了RTT、RTT方差以及可用缓冲，Full包含全部字段
//
// ------------------------------------------------
// <draft-sharabayko-srt> <3.2.4. ACK (Acknowledgement)>
// Last Acknowledged Packet Sequence Number [32b]
// RTT                                      [32b]
// RTT Variance                             [32b]
// Available Buffer Size                    [32b]
// Packets Receiving Rate                   [32b]
// Estimated Link Capacity                  [32b]
// Receiving Rate                           [32b]
// ------------------------------------------------
type Ack struct {
	Kind AckKind

	LastAckPacketSeq      uint32
	Rtt                   uint32
	RttVariance           uint32
	AvailableBufferSize   uint32
	PacketsReceivingRate  uint32
	EstimatedLinkCapacity uint32
	ReceivingRate         uint32
}

type NakEntry struct {
	IsRange bool
	From    uint32
	To      uint32 // 只有 IsRange 为true时有效
}

// Nak 丢失报告
//
// 每项或者是单个序号，或者是首字段最高位置1的区间[from, to]
type Nak struct {
	Entries []NakEntry
}

type DropReq struct {
	FirstSeq uint32
	LastSeq  uint32
}

func parseControlPacket(b []byte) (*ControlPacket, error) {
	c := &ControlPacket{
		Type:         ControlType(bele.BeUint16(b) & 0x7FFF),
		Subtype:      bele.BeUint16(b[2:]),
		TypeSpecific: bele.BeUint32(b[4:]),
	}
	if !c.Type.isValid() {
		return nil, fmt.Errorf("%w. type=0x%04x", base.ErrSrtInvalidControlType, uint16(c.Type))
	}

	cif := b[HeaderSize:]

	var err error
	switch c.Type {
	case ControlTypeHandshake:
		c.Handshake, err = ParseHandshake(cif)
	case ControlTypeAck:
		c.Ack, err = parseAck(cif)
	case ControlTypeNak:
		c.Nak, err = parseNak(cif)
	case ControlTypeDropReq:
		c.DropReq, err = parseDropReq(cif)
	default:
		if len(cif) != 0 {
			c.Cif = cif
		}
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (c *ControlPacket) packCif() ([]byte, error) {
	switch {
	case c.Handshake != nil:
		return c.Handshake.Pack()
	case c.Ack != nil:
		return c.Ack.pack(), nil
	case c.Nak != nil:
		return c.Nak.pack(), nil
	case c.DropReq != nil:
		out := make([]byte, 8)
		bele.BePutUint32(out, c.DropReq.FirstSeq)
		bele.BePutUint32(out[4:], c.DropReq.LastSeq)
		return out, nil
	}
	return c.Cif, nil
}

func parseAck(cif []byte) (*Ack, error) {
	a := &Ack{}
	switch {
	case len(cif) >= ackFullCifSize:
		a.Kind = AckKindFull
	case len(cif) >= ackSmallCifSize:
		a.Kind = AckKindSmall
	case len(cif) >= ackLightCifSize:
		a.Kind = AckKindLight
	default:
		return nil, base.NewErrSrtShortBuffer(ackLightCifSize, len(cif), "ack cif")
	}

	a.LastAckPacketSeq = bele.BeUint32(cif) & MaxSequenceNumber
	if a.Kind == AckKindLight {
		return a, nil
	}
	a.Rtt = bele.BeUint32(cif[4:])
	a.RttVariance = bele.BeUint32(cif[8:])
	a.AvailableBufferSize = bele.BeUint32(cif[12:])
	if a.Kind == AckKindSmall {
		return a, nil
	}
	a.PacketsReceivingRate = bele.BeUint32(cif[16:])
	a.EstimatedLinkCapacity = bele.BeUint32(cif[20:])
	a.ReceivingRate = bele.BeUint32(cif[24:])
	return a, nil
}

func (a *Ack) pack() []byte {
	var out []byte
	switch a.Kind {
	case AckKindLight:
		out = make([]byte, ackLightCifSize)
	case AckKindSmall:
		out = make([]byte, ackSmallCifSize)
	default:
		out = make([]byte, ackFullCifSize)
	}

	bele.BePutUint32(out, a.LastAckPacketSeq&MaxSequenceNumber)
	if len(out) == ackLightCifSize {
		return out
	}
	bele.BePutUint32(out[4:], a.Rtt)
	bele.BePutUint32(out[8:], a.RttVariance)
	bele.BePutUint32(out[12:], a.AvailableBufferSize)
	if len(out) == ackSmallCifSize {
		return out
	}
	bele.BePutUint32(out[16:], a.PacketsReceivingRate)
	bele.BePutUint32(out[20:], a.EstimatedLinkCapacity)
	bele.BePutUint32(out[24:], a.ReceivingRate)
	return out
}

func parseNak(cif []byte) (*Nak, error) {
	n := &Nak{}
	for i := 0; i+4 <= len(cif); {
		v := bele.BeUint32(cif[i:])
		i += 4
		if v&0x80000000 == 0 {
			n.Entries = append(n.Entries, NakEntry{From: v})
			continue
		}
		if i+4 > len(cif) {
			return nil, base.NewErrSrtShortBuffer(i+4, len(cif), "nak range")
		}
		n.Entries = append(n.Entries, NakEntry{
			IsRange: true,
			From:    v & MaxSequenceNumber,
			To:      bele.BeUint32(cif[i:]) & MaxSequenceNumber,
		})
		i += 4
	}
	if len(n.Entries) == 0 {
		return nil, base.NewErrSrtShortBuffer(4, len(cif), "nak cif")
	}
	return n, nil
}

func (n *Nak) pack() []byte {
	size := 0
	for _, e := range n.Entries {
		if e.IsRange {
			size += 8
		} else {
			size += 4
		}
	}

	out := make([]byte, size)
	i := 0
	for _, e := range n.Entries {
		if e.IsRange {
			bele.BePutUint32(out[i:], e.From|0x80000000)
			bele.BePutUint32(out[i+4:], e.To&MaxSequenceNumber)
			i += 8
		} else {
			bele.BePutUint32(out[i:], e.From&MaxSequenceNumber)
			i += 4
		}
	}
	return out
}

func parseDropReq(cif []byte) (*DropReq, error) {
	if len(cif) < 8 {
		return nil, base.NewErrSrtShortBuffer(8, len(cif), "dropreq cif")
	}
	return &DropReq{
		FirstSeq: bele.BeUint32(cif),
		LastSeq:  bele.BeUint32(cif[4:]),
	}, nil
}
