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
	"strings"

	"github.com/q191201771/naza/pkg/bele"
	"github.com/q191201771/srt2hls/pkg/base"
)

// HandshakeExtension 握手扩展块
//
// 根据 Type 只有一个解析结果字段有效。KM以及未知类型的内容原样保存在 Raw 中
type HandshakeExtension struct {
	Type uint16

	Hs       *SrtHsExtension       // HSREQ HSRSP
	Km       *KeyMaterialExtension // KMREQ KMRSP
	StreamId string                // SID
	Group    *GroupExtension       // GROUP
	Raw      []byte
}

// SrtHsExtension
//
// ------------------------------------------------
// <draft-sharabayko-srt> <3.2.1.1. Handshake Extension Message>
// SRT Version          [32b]
// SRT Flags            [32b]
// Receiver TSBPD Delay [16b]
// Sender TSBPD Delay   [16b]
// ------------------------------------------------
type SrtHsExtension struct {
	SrtVersion    uint32
	SrtFlags      uint32
	ReceiverDelay uint16
	SenderDelay   uint16
}

// KeyMaterialExtension 只解析，不支持加密
//
// ------------------------------------------------
// <draft-sharabayko-srt> <3.2.2. Key Material>
// S|V|PT           [1b|3b|4b]
// Sign             [16b] * 0x2029
// Resv1|KK         [6b|2b]
// KEKI             [32b]
// Cipher           [8b]
// Auth             [8b]
// SE               [8b]
// Resv2            [8b]
// Resv3            [16b]
// SLen/4           [8b]
// KLen/4           [8b]
// Salt             [SLen*8b]
// Wrapped Key      [...]
// ------------------------------------------------
type KeyMaterialExtension struct {
	Version             uint8
	PacketType          uint8
	Sign                uint16
	KeyBasedEncryption  uint8 // 1 even, 2 odd, 3 both
	Keki                uint32
	Cipher              uint8
	Auth                uint8
	StreamEncapsulation uint8
	SaltLen             int
	KeyLen              int
}

// GroupExtension
//
// ------------------------------------------------
// <draft-sharabayko-srt> <3.2.1.4. Group Membership Extension>
// Group ID [32b]
// Type     [8b]
// Flags    [8b]
// Weight   [16b]
// ------------------------------------------------
type GroupExtension struct {
	GroupId uint32
	Type    uint8
	Flags   uint8
	Weight  uint16
}

const (
	srtHsExtensionSize   = 12
	kmExtensionMinSize   = 16
	groupExtensionSize   = 8
	keyMaterialSign      = 0x2029
	keyMaterialKkMask    = 0x03
	keyMaterialPtMask    = 0x0F
	keyMaterialVerShift  = 4
	keyMaterialVerMask   = 0x07
	keyMaterialLenFactor = 4
)

func NewSrtHsExtension(typ uint16, hs SrtHsExtension) HandshakeExtension {
	return HandshakeExtension{Type: typ, Hs: &hs}
}

func NewStreamIdExtension(streamId string) HandshakeExtension {
	return HandshakeExtension{Type: ExtensionTypeSid, StreamId: streamId}
}

func NewGroupExtension(g GroupExtension) HandshakeExtension {
	return HandshakeExtension{Type: ExtensionTypeGroup, Group: &g}
}

func parseHandshakeExtension(typ uint16, content []byte) (ext HandshakeExtension, err error) {
	ext.Type = typ
	switch typ {
	case ExtensionTypeHsReq, ExtensionTypeHsRsp:
		if len(content) < srtHsExtensionSize {
			return ext, newErrExtension(typ, srtHsExtensionSize, len(content))
		}
		ext.Hs = &SrtHsExtension{
			SrtVersion:    bele.BeUint32(content),
			SrtFlags:      bele.BeUint32(content[4:]),
			ReceiverDelay: bele.BeUint16(content[8:]),
			SenderDelay:   bele.BeUint16(content[10:]),
		}
	case ExtensionTypeKmReq, ExtensionTypeKmRsp:
		if ext.Km, err = parseKeyMaterial(content); err != nil {
			return ext, err
		}
		ext.Raw = content
	case ExtensionTypeSid:
		ext.StreamId = decodeStreamId(content)
	case ExtensionTypeGroup:
		if len(content) < groupExtensionSize {
			return ext, newErrExtension(typ, groupExtensionSize, len(content))
		}
		ext.Group = &GroupExtension{
			GroupId: bele.BeUint32(content),
			Type:    content[4],
			Flags:   content[5],
			Weight:  bele.BeUint16(content[6:]),
		}
	default:
		ext.Raw = content
	}
	return ext, nil
}

// packContent 返回不含type和length的扩展内容，长度是4的倍数
func (ext *HandshakeExtension) packContent() ([]byte, error) {
	switch {
	case ext.Hs != nil:
		out := make([]byte, srtHsExtensionSize)
		bele.BePutUint32(out, ext.Hs.SrtVersion)
		bele.BePutUint32(out[4:], ext.Hs.SrtFlags)
		bele.BePutUint16(out[8:], ext.Hs.ReceiverDelay)
		bele.BePutUint16(out[10:], ext.Hs.SenderDelay)
		return out, nil
	case ext.Km != nil:
		if ext.Raw == nil {
			return nil, fmt.Errorf("%w. pack key material", base.ErrSrtUnsupported)
		}
		return padTo4(ext.Raw), nil
	case ext.Type == ExtensionTypeSid:
		return encodeStreamId(ext.StreamId), nil
	case ext.Group != nil:
		out := make([]byte, groupExtensionSize)
		bele.BePutUint32(out, ext.Group.GroupId)
		out[4] = ext.Group.Type
		out[5] = ext.Group.Flags
		bele.BePutUint16(out[6:], ext.Group.Weight)
		return out, nil
	}
	return padTo4(ext.Raw), nil
}

func parseKeyMaterial(content []byte) (*KeyMaterialExtension, error) {
	if len(content) < kmExtensionMinSize {
		return nil, newErrExtension(ExtensionTypeKmReq, kmExtensionMinSize, len(content))
	}
	km := &KeyMaterialExtension{
		Version:             (content[0] >> keyMaterialVerShift) & keyMaterialVerMask,
		PacketType:          content[0] & keyMaterialPtMask,
		Sign:                bele.BeUint16(content[1:]),
		KeyBasedEncryption:  content[3] & keyMaterialKkMask,
		Keki:                bele.BeUint32(content[4:]),
		Cipher:              content[8],
		Auth:                content[9],
		StreamEncapsulation: content[10],
		SaltLen:             int(content[14]) * keyMaterialLenFactor,
		KeyLen:              int(content[15]) * keyMaterialLenFactor,
	}
	if km.Sign != keyMaterialSign {
		return nil, fmt.Errorf("%w. km sign=0x%04x", base.ErrSrtInvalidExtension, km.Sign)
	}
	if km.KeyBasedEncryption == 0 {
		return nil, fmt.Errorf("%w. km without key", base.ErrSrtInvalidExtension)
	}
	return km, nil
}

// decodeStreamId SID按4字节一组、组内逆序存放，末尾用0补齐
func decodeStreamId(content []byte) string {
	var sb strings.Builder
	for i := 0; i+4 <= len(content); i += 4 {
		sb.WriteByte(content[i+3])
		sb.WriteByte(content[i+2])
		sb.WriteByte(content[i+1])
		sb.WriteByte(content[i])
	}
	return strings.TrimRight(sb.String(), "\x00")
}

func encodeStreamId(streamId string) []byte {
	out := padTo4([]byte(streamId))
	for i := 0; i+4 <= len(out); i += 4 {
		out[i], out[i+1], out[i+2], out[i+3] = out[i+3], out[i+2], out[i+1], out[i]
	}
	return out
}

// padTo4 总是返回新的内存块
func padTo4(b []byte) []byte {
	n := (len(b) + 3) / 4 * 4
	out := make([]byte, n)
	copy(out, b)
	return out
}

func newErrExtension(typ uint16, need, actual int) error {
	return fmt.Errorf("%w. type=%d, need=%d, actual=%d", base.ErrSrtInvalidExtension, typ, need, actual)
}
