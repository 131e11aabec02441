// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/srt2hls
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package srt

import (
	"errors"
	"testing"

	"github.com/q191201771/naza/pkg/assert"
	"github.com/q191201771/naza/pkg/bele"
	"github.com/q191201771/srt2hls/pkg/base"
)

// 一个合法的KMREQ内容：V=1 PT=2 sign=0x2029 KK=1 cipher=2(AES-CTR) SE=2 SLen=16 KLen=16，后跟salt和wrapped key
var kmContent = func() []byte {
	b := make([]byte, 16+16+24)
	b[0] = 0x12
	b[1] = 0x20
	b[2] = 0x29
	b[3] = 0x01
	b[8] = 2
	b[10] = 2
	b[14] = 4
	b[15] = 4
	for i := 16; i < len(b); i++ {
		b[i] = uint8(i)
	}
	return b
}()

func testRoundTrip(t *testing.T, pkt *Packet) *Packet {
	b, err := pkt.Pack()
	assert.Equal(t, nil, err)
	out, err := ParsePacket(b)
	assert.Equal(t, nil, err)
	assert.Equal(t, pkt, out)

	b2, err := out.Pack()
	assert.Equal(t, nil, err)
	assert.Equal(t, b, b2)
	return out
}

func TestPacket_RoundTrip(t *testing.T) {
	hs := &Handshake{
		Version:                     HandshakeVersion5,
		Encryption:                  EncryptionNone,
		ExtensionField:              ExtensionFlagHsReq | ExtensionFlagKmReq | ExtensionFlagConfig,
		InitialPacketSequenceNumber: 0x12345678,
		Mtu:                         DefaultMtu,
		MaxFlowWindowSize:           DefaultFlowWindowSize,
		Type:                        HandshakeTypeConclusion,
		SrtSocketId:                 0x11223344,
		SynCookie:                   0x55667788,
		PeerIp:                      [16]byte{127, 0, 0, 1},
		Extensions: []HandshakeExtension{
			NewSrtHsExtension(ExtensionTypeHsReq, SrtHsExtension{
				SrtVersion:    0x00010401,
				SrtFlags:      HsFlagTsbpdSnd | HsFlagTsbpdRcv | HsFlagTlPktDrop,
				ReceiverDelay: 120,
				SenderDelay:   60,
			}),
			{
				Type: ExtensionTypeKmReq,
				Km: &KeyMaterialExtension{
					Version:             1,
					PacketType:          2,
					Sign:                0x2029,
					KeyBasedEncryption:  1,
					Cipher:              2,
					StreamEncapsulation: 2,
					SaltLen:             16,
					KeyLen:              16,
				},
				Raw: kmContent,
			},
			NewStreamIdExtension("#!::r=live/test,m=publish"),
			NewGroupExtension(GroupExtension{GroupId: 7, Type: GroupTypeBroadcast, Flags: 1, Weight: 100}),
			{Type: ExtensionTypeFilter, Raw: []byte("fec,")},
		},
	}

	cases := []*Packet{
		{Timestamp: 1, DestSocketId: 0, Control: &ControlPacket{Type: ControlTypeHandshake, Handshake: hs}},
		{Timestamp: 2, DestSocketId: 9, Control: &ControlPacket{Type: ControlTypeKeepAlive}},
		{Timestamp: 3, DestSocketId: 9, Control: &ControlPacket{Type: ControlTypeAck, TypeSpecific: 5, Ack: &Ack{
			Kind:                  AckKindFull,
			LastAckPacketSeq:      1000,
			Rtt:                   100000,
			RttVariance:           50000,
			AvailableBufferSize:   8192,
			PacketsReceivingRate:  300,
			EstimatedLinkCapacity: 5000,
			ReceivingRate:         1000000,
		}}},
		{Timestamp: 4, DestSocketId: 9, Control: &ControlPacket{Type: ControlTypeAck, Ack: &Ack{
			Kind:                AckKindSmall,
			LastAckPacketSeq:    1001,
			Rtt:                 20000,
			RttVariance:         1000,
			AvailableBufferSize: 100,
		}}},
		{Timestamp: 5, DestSocketId: 9, Control: &ControlPacket{Type: ControlTypeAck, Ack: &Ack{
			Kind:             AckKindLight,
			LastAckPacketSeq: 1002,
		}}},
		{Timestamp: 6, DestSocketId: 9, Control: &ControlPacket{Type: ControlTypeNak, Nak: &Nak{
			Entries: []NakEntry{{From: 3}, {IsRange: true, From: 10, To: 20}, {From: MaxSequenceNumber}},
		}}},
		{Timestamp: 7, DestSocketId: 9, Control: &ControlPacket{Type: ControlTypeCongestionWarning}},
		{Timestamp: 8, DestSocketId: 9, Control: &ControlPacket{Type: ControlTypeShutdown, Cif: []byte{0, 0, 0, 0}}},
		{Timestamp: 9, DestSocketId: 9, Control: &ControlPacket{Type: ControlTypeAckAck, TypeSpecific: 5}},
		{Timestamp: 10, DestSocketId: 9, Control: &ControlPacket{Type: ControlTypeDropReq, TypeSpecific: 77, DropReq: &DropReq{
			FirstSeq: 100,
			LastSeq:  110,
		}}},
		{Timestamp: 11, DestSocketId: 9, Control: &ControlPacket{Type: ControlTypePeerError, TypeSpecific: 4000}},
		{Timestamp: 12, DestSocketId: 9, Control: &ControlPacket{Type: ControlTypeUser, Subtype: 3, Cif: []byte{1, 2, 3, 4}}},
		{Timestamp: 13, DestSocketId: 9, Data: &DataPacket{
			SequenceNumber: 0x7FFFFFFE,
			Position:       PacketPositionSingle,
			Order:          true,
			Encryption:     DataEncryptionNone,
			Retransmitted:  true,
			MessageNumber:  0x03FFFFFF,
			Payload:        []byte{0x47, 0x40, 0x00, 0x10},
		}},
		{Timestamp: 14, DestSocketId: 9, Data: &DataPacket{
			SequenceNumber: 1,
			Position:       PacketPositionFirst,
			Encryption:     DataEncryptionOddKey,
			MessageNumber:  1,
			Payload:        []byte{0x47},
		}},
	}
	for _, c := range cases {
		testRoundTrip(t, c)
	}
}

func TestPacket_Header(t *testing.T) {
	pkt := &Packet{
		Timestamp:    0x01020304,
		DestSocketId: 0x0A0B0C0D,
		Data: &DataPacket{
			SequenceNumber: 0x12345678,
			Position:       PacketPositionLast,
			Order:          true,
			Encryption:     DataEncryptionEvenKey,
			Retransmitted:  true,
			MessageNumber:  0x00ABCDEF,
			Payload:        []byte{1},
		},
	}
	b, err := pkt.Pack()
	assert.Equal(t, nil, err)
	assert.Equal(t, 17, len(b))
	assert.Equal(t, uint32(0x12345678), bele.BeUint32(b))
	// PP=01 O=1 KK=01 R=1 => 0110 11.. => 0x6C
	assert.Equal(t, uint32(0x6CABCDEF), bele.BeUint32(b[4:]))
	assert.Equal(t, uint32(0x01020304), bele.BeUint32(b[8:]))
	assert.Equal(t, uint32(0x0A0B0C0D), bele.BeUint32(b[12:]))

	cp := &Packet{Control: &ControlPacket{Type: ControlTypeAckAck, Subtype: 0x0102, TypeSpecific: 0x03040506}}
	b, err = cp.Pack()
	assert.Equal(t, nil, err)
	assert.Equal(t, []byte{0x80, 0x06, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06}, b[:8])
	assert.Equal(t, true, cp.IsControl())
	assert.Equal(t, true, cp.IsControlType(ControlTypeAckAck))
	assert.Equal(t, uint32(0x03040506), cp.Control.AckNumber())
}

func TestPacket_AckKindByLength(t *testing.T) {
	// 对端可能在full ACK后附带更多字段
	b := make([]byte, HeaderSize+ackFullCifSize+4)
	bele.BePutUint16(b, 0x8002)
	bele.BePutUint32(b[HeaderSize:], 0x80000009)
	pkt, err := ParsePacket(b)
	assert.Equal(t, nil, err)
	assert.Equal(t, AckKindFull, pkt.Control.Ack.Kind)
	assert.Equal(t, uint32(9), pkt.Control.Ack.LastAckPacketSeq)

	pkt, err = ParsePacket(b[:HeaderSize+ackSmallCifSize])
	assert.Equal(t, nil, err)
	assert.Equal(t, AckKindSmall, pkt.Control.Ack.Kind)

	pkt, err = ParsePacket(b[:HeaderSize+ackLightCifSize])
	assert.Equal(t, nil, err)
	assert.Equal(t, AckKindLight, pkt.Control.Ack.Kind)

	_, err = ParsePacket(b[:HeaderSize+2])
	assert.Equal(t, true, errors.Is(err, base.ErrSrtShortBuffer))
}

func TestParsePacket_Errors(t *testing.T) {
	_, err := ParsePacket(make([]byte, 15))
	assert.Equal(t, true, errors.Is(err, base.ErrSrtShortBuffer))

	b := make([]byte, HeaderSize)
	bele.BePutUint16(b, 0x8009)
	_, err = ParsePacket(b)
	assert.Equal(t, true, errors.Is(err, base.ErrSrtInvalidControlType))

	// 握手CIF不足48字节
	b = make([]byte, HeaderSize+40)
	bele.BePutUint16(b, 0x8000)
	_, err = ParsePacket(b)
	assert.Equal(t, true, errors.Is(err, base.ErrSrtShortBuffer))

	newHs := func() []byte {
		b := make([]byte, HeaderSize+HandshakeCifSize)
		bele.BePutUint16(b, 0x8000)
		bele.BePutUint32(b[HeaderSize:], HandshakeVersion5)
		bele.BePutUint32(b[HeaderSize+20:], uint32(HandshakeTypeInduction))
		return b
	}
	_, err = ParsePacket(newHs())
	assert.Equal(t, nil, err)

	b = newHs()
	bele.BePutUint16(b[HeaderSize+4:], 1)
	_, err = ParsePacket(b)
	assert.Equal(t, true, errors.Is(err, base.ErrSrtInvalidEncryption))

	b = newHs()
	bele.BePutUint32(b[HeaderSize+20:], 5)
	_, err = ParsePacket(b)
	assert.Equal(t, true, errors.Is(err, base.ErrSrtInvalidHandshakeType))

	// 扩展声明了3个字但只有2个
	b = append(newHs(), 0x00, byte(ExtensionTypeHsReq), 0x00, 0x03, 1, 2, 3, 4, 5, 6, 7, 8)
	_, err = ParsePacket(b)
	assert.Equal(t, true, errors.Is(err, base.ErrSrtInvalidExtension))

	// KM的sign不对
	km := append([]byte{}, kmContent...)
	km[1] = 0
	b = append(newHs(), 0x00, byte(ExtensionTypeKmReq), 0x00, byte(len(km)/4))
	b = append(b, km...)
	_, err = ParsePacket(b)
	assert.Equal(t, true, errors.Is(err, base.ErrSrtInvalidExtension))

	// NAK区间只有起点
	b = make([]byte, HeaderSize+4)
	bele.BePutUint16(b, 0x8003)
	bele.BePutUint32(b[HeaderSize:], 0x80000001)
	_, err = ParsePacket(b)
	assert.Equal(t, true, errors.Is(err, base.ErrSrtShortBuffer))

	b = make([]byte, HeaderSize+4)
	bele.BePutUint16(b, 0x8007)
	_, err = ParsePacket(b)
	assert.Equal(t, true, errors.Is(err, base.ErrSrtShortBuffer))
}

func TestPacket_PackKeyMaterialWithoutRaw(t *testing.T) {
	pkt := &Packet{Control: &ControlPacket{Type: ControlTypeHandshake, Handshake: &Handshake{
		Type:       HandshakeTypeConclusion,
		Extensions: []HandshakeExtension{{Type: ExtensionTypeKmRsp, Km: &KeyMaterialExtension{Sign: 0x2029}}},
	}}}
	_, err := pkt.Pack()
	assert.Equal(t, true, errors.Is(err, base.ErrSrtUnsupported))

	_, err = (&Packet{}).Pack()
	assert.Equal(t, true, errors.Is(err, base.ErrSrt))
}

func TestStreamIdCodec(t *testing.T) {
	assert.Equal(t, []byte("dcba\x00\x00\x00e"), encodeStreamId("abcde"))
	assert.Equal(t, []byte("dcba"), encodeStreamId("abcd"))
	assert.Equal(t, "abcde", decodeStreamId([]byte("dcba\x00\x00\x00e")))
	assert.Equal(t, "", decodeStreamId(nil))

	hs := &Handshake{Type: HandshakeTypeConclusion, Extensions: []HandshakeExtension{NewStreamIdExtension("abcde")}}
	b, err := hs.Pack()
	assert.Equal(t, nil, err)
	assert.Equal(t, HandshakeCifSize+4+8, len(b))
	assert.Equal(t, uint16(ExtensionTypeSid), bele.BeUint16(b[HandshakeCifSize:]))
	assert.Equal(t, uint16(2), bele.BeUint16(b[HandshakeCifSize+2:]))

	out, err := ParseHandshake(b)
	assert.Equal(t, nil, err)
	sid, ok := out.StreamId()
	assert.Equal(t, true, ok)
	assert.Equal(t, "abcde", sid)
	assert.Equal(t, (*SrtHsExtension)(nil), out.SrtHs())
	assert.Equal(t, (*KeyMaterialExtension)(nil), out.KeyMaterial())
	assert.Equal(t, (*GroupExtension)(nil), out.Group())
}

func TestParseStreamId(t *testing.T) {
	id, err := ParseStreamId("#!::r=live/test,m=publish,u=chef,h=example.com,s=abc,t=stream")
	assert.Equal(t, nil, err)
	assert.Equal(t, "live/test", id.Resource)
	assert.Equal(t, "publish", id.Mode)
	assert.Equal(t, "chef", id.User)
	assert.Equal(t, "example.com", id.Host)
	assert.Equal(t, "abc", id.SessionId)
	assert.Equal(t, "stream", id.Type)

	id, err = ParseStreamId("test110")
	assert.Equal(t, nil, err)
	assert.Equal(t, "test110", id.Resource)
	assert.Equal(t, "test110", id.Raw)

	id, err = ParseStreamId("#!::r=a=b")
	assert.Equal(t, nil, err)
	assert.Equal(t, "a=b", id.Resource)

	_, err = ParseStreamId("#!::r")
	assert.Equal(t, true, errors.Is(err, base.ErrSrt))
}
