// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/srt2hls
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

// Package srt 实现SRT协议接收端：报文编解码，握手，ACK/NAK/RTT以及按地址分发的UDP服务
//
// 参考 <https://datatracker.ietf.org/doc/html/draft-sharabayko-srt>
package srt

import "github.com/q191201771/srt2hls/pkg/base"

var Log = base.Log

const (
	MaxPacketSize = 1500
	HeaderSize    = 16

	// MaxSequenceNumber 序号是31位，回绕
	MaxSequenceNumber uint32 = 0x7FFFFFFF

	// MaxMessageNumber 消息号是26位
	MaxMessageNumber uint32 = 0x03FFFFFF

	HandshakeCifSize = 48

	HandshakeVersion4 uint32 = 4
	HandshakeVersion5 uint32 = 5

	// HandshakeMagicCode Induction回包中extension field携带的值
	HandshakeMagicCode uint16 = 0x4A17

	// (微秒)
	RttInitUs         uint32 = 100000
	RttVarInitUs      uint32 = 50000
	FullAckIntervalUs uint32 = 10000

	DefaultMtu             uint32 = 1500
	DefaultFlowWindowSize  uint32 = 8192
	DefaultAvailBufferSize uint32 = 8192
)

// ControlType
// <draft-sharabayko-srt> <Table 1: SRT Control Packet Types>
type ControlType uint16

const (
	ControlTypeHandshake         ControlType = 0x0000
	ControlTypeKeepAlive         ControlType = 0x0001
	ControlTypeAck               ControlType = 0x0002
	ControlTypeNak               ControlType = 0x0003
	ControlTypeCongestionWarning ControlType = 0x0004
	ControlTypeShutdown          ControlType = 0x0005
	ControlTypeAckAck            ControlType = 0x0006
	ControlTypeDropReq           ControlType = 0x0007
	ControlTypePeerError         ControlType = 0x0008
	ControlTypeUser              ControlType = 0x7FFF
)

func (t ControlType) String() string {
	switch t {
	case ControlTypeHandshake:
		return "HANDSHAKE"
	case ControlTypeKeepAlive:
		return "KEEPALIVE"
	case ControlTypeAck:
		return "ACK"
	case ControlTypeNak:
		return "NAK"
	case ControlTypeCongestionWarning:
		return "CONGESTIONWARNING"
	case ControlTypeShutdown:
		return "SHUTDOWN"
	case ControlTypeAckAck:
		return "ACKACK"
	case ControlTypeDropReq:
		return "DROPREQ"
	case ControlTypePeerError:
		return "PEERERROR"
	case ControlTypeUser:
		return "USER"
	}
	return "unknown"
}

func (t ControlType) isValid() bool {
	return t <= ControlTypePeerError || t == ControlTypeUser
}

// HandshakeType
type HandshakeType uint32

const (
	HandshakeTypeDone       HandshakeType = 0xFFFFFFFD
	HandshakeTypeAgreement  HandshakeType = 0xFFFFFFFE
	HandshakeTypeConclusion HandshakeType = 0xFFFFFFFF
	HandshakeTypeWaveHand   HandshakeType = 0x00000000
	HandshakeTypeInduction  HandshakeType = 0x00000001
)

func (t HandshakeType) String() string {
	switch t {
	case HandshakeTypeDone:
		return "DONE"
	case HandshakeTypeAgreement:
		return "AGREEMENT"
	case HandshakeTypeConclusion:
		return "CONCLUSION"
	case HandshakeTypeWaveHand:
		return "WAVEHAND"
	case HandshakeTypeInduction:
		return "INDUCTION"
	}
	return "unknown"
}

func (t HandshakeType) isValid() bool {
	switch t {
	case HandshakeTypeDone, HandshakeTypeAgreement, HandshakeTypeConclusion, HandshakeTypeWaveHand, HandshakeTypeInduction:
		return true
	}
	return false
}

// 握手中的加密字段
const (
	EncryptionNone   uint16 = 0
	EncryptionAes128 uint16 = 2
	EncryptionAes192 uint16 = 3
	EncryptionAes256 uint16 = 4
)

// 握手extension field中的标志位
const (
	ExtensionFlagHsReq  uint16 = 0x0001
	ExtensionFlagKmReq  uint16 = 0x0002
	ExtensionFlagConfig uint16 = 0x0004
)

// 握手扩展块的类型
const (
	ExtensionTypeHsReq      uint16 = 1
	ExtensionTypeHsRsp      uint16 = 2
	ExtensionTypeKmReq      uint16 = 3
	ExtensionTypeKmRsp      uint16 = 4
	ExtensionTypeSid        uint16 = 5
	ExtensionTypeCongestion uint16 = 6
	ExtensionTypeFilter     uint16 = 7
	ExtensionTypeGroup      uint16 = 8
)

// HSREQ/HSRSP中的SRT flags
const (
	HsFlagTsbpdSnd     uint32 = 0x00000001
	HsFlagTsbpdRcv     uint32 = 0x00000002
	HsFlagCrypt        uint32 = 0x00000004
	HsFlagTlPktDrop    uint32 = 0x00000008
	HsFlagPeriodicNak  uint32 = 0x00000010
	HsFlagRexmitFlg    uint32 = 0x00000020
	HsFlagStream       uint32 = 0x00000040
	HsFlagPacketFilter uint32 = 0x00000080
)

// GROUP扩展中的组类型
const (
	GroupTypeUndefined  uint8 = 0
	GroupTypeBroadcast  uint8 = 1
	GroupTypeMainBackup uint8 = 2
	GroupTypeBalancing  uint8 = 3
	GroupTypeMulticast  uint8 = 4
)

// 数据包中的位置标志
type PacketPosition uint8

const (
	PacketPositionMiddle PacketPosition = 0
	PacketPositionLast   PacketPosition = 1
	PacketPositionFirst  PacketPosition = 2
	PacketPositionSingle PacketPosition = 3
)

func (p PacketPosition) String() string {
	switch p {
	case PacketPositionMiddle:
		return "MIDDLE"
	case PacketPositionLast:
		return "LAST"
	case PacketPositionFirst:
		return "FIRST"
	case PacketPositionSingle:
		return "SINGLE"
	}
	return "unknown"
}

// 数据包中的加密标志
const (
	DataEncryptionNone    uint8 = 0
	DataEncryptionEvenKey uint8 = 1
	DataEncryptionOddKey  uint8 = 2
)
