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

// Handshake 握手包的CIF
//
// ------------------------------------------------
// <draft-sharabayko-srt> <3.2.1. Handshake>
// Version                              [32b]
// Encryption Field                     [16b]
// Extension Field                      [16b]
// Initial Packet Sequence Number       [32b]
// Maximum Transmission Unit Size       [32b]
// Maximum Flow Window Size             [32b]
// Handshake Type                       [32b]
// SRT Socket ID                        [32b]
// SYN Cookie                           [32b]
// Peer IP Address                      [128b]
// Extension Type                       [16b] *
// Extension Length                     [16b] * 单位是4字节
// Extension Contents                   [n*32b] *
// ------------------------------------------------
type Handshake struct {
	Version                     uint32
	Encryption                  uint16
	ExtensionField              uint16
	InitialPacketSequenceNumber uint32
	Mtu                         uint32
	MaxFlowWindowSize           uint32
	Type                        HandshakeType
	SrtSocketId                 uint32
	SynCookie                   uint32
	PeerIp                      [16]byte

	Extensions []HandshakeExtension
}

// ParseHandshake
//
// 扩展块从第48字节开始按TLV逐个解析，不依赖 ExtensionField 中的标志位。
// Induction阶段的 ExtensionField 是magic code，按标志位解释会出错
func ParseHandshake(cif []byte) (*Handshake, error) {
	if len(cif) < HandshakeCifSize {
		return nil, base.NewErrSrtShortBuffer(HandshakeCifSize, len(cif), "handshake cif")
	}

	h := &Handshake{
		Version:                     bele.BeUint32(cif),
		Encryption:                  bele.BeUint16(cif[4:]),
		ExtensionField:              bele.BeUint16(cif[6:]),
		InitialPacketSequenceNumber: bele.BeUint32(cif[8:]) & MaxSequenceNumber,
		Mtu:                         bele.BeUint32(cif[12:]),
		MaxFlowWindowSize:           bele.BeUint32(cif[16:]),
		Type:                        HandshakeType(bele.BeUint32(cif[20:])),
		SrtSocketId:                 bele.BeUint32(cif[24:]),
		SynCookie:                   bele.BeUint32(cif[28:]),
	}
	copy(h.PeerIp[:], cif[32:48])

	switch h.Encryption {
	case EncryptionNone, EncryptionAes128, EncryptionAes192, EncryptionAes256:
	default:
		return nil, fmt.Errorf("%w. encryption=%d", base.ErrSrtInvalidEncryption, h.Encryption)
	}
	if !h.Type.isValid() {
		return nil, fmt.Errorf("%w. type=0x%08x", base.ErrSrtInvalidHandshakeType, uint32(h.Type))
	}

	rest := cif[HandshakeCifSize:]
	for len(rest) >= 4 {
		typ := bele.BeUint16(rest)
		size := int(bele.BeUint16(rest[2:])) * 4
		if len(rest) < 4+size {
			return nil, fmt.Errorf("%w. type=%d, need=%d, actual=%d", base.ErrSrtInvalidExtension, typ, 4+size, len(rest))
		}
		ext, err := parseHandshakeExtension(typ, rest[4:4+size])
		if err != nil {
			return nil, err
		}
		h.Extensions = append(h.Extensions, ext)
		rest = rest[4+size:]
	}
	return h, nil
}

func (h *Handshake) Pack() ([]byte, error) {
	out := make([]byte, HandshakeCifSize)
	bele.BePutUint32(out, h.Version)
	bele.BePutUint16(out[4:], h.Encryption)
	bele.BePutUint16(out[6:], h.ExtensionField)
	bele.BePutUint32(out[8:], h.InitialPacketSequenceNumber&MaxSequenceNumber)
	bele.BePutUint32(out[12:], h.Mtu)
	bele.BePutUint32(out[16:], h.MaxFlowWindowSize)
	bele.BePutUint32(out[20:], uint32(h.Type))
	bele.BePutUint32(out[24:], h.SrtSocketId)
	bele.BePutUint32(out[28:], h.SynCookie)
	copy(out[32:48], h.PeerIp[:])

	for i := range h.Extensions {
		content, err := h.Extensions[i].packContent()
		if err != nil {
			return nil, err
		}
		eh := make([]byte, 4)
		bele.BePutUint16(eh, h.Extensions[i].Type)
		bele.BePutUint16(eh[2:], uint16(len(content)/4))
		out = append(out, eh...)
		out = append(out, content...)
	}
	return out, nil
}

// StreamId 返回SID扩展中的stream id，第二个返回值表示是否携带了SID扩展
func (h *Handshake) StreamId() (string, bool) {
	for _, ext := range h.Extensions {
		if ext.Type == ExtensionTypeSid {
			return ext.StreamId, true
		}
	}
	return "", false
}

// SrtHs 返回HSREQ或HSRSP扩展
func (h *Handshake) SrtHs() *SrtHsExtension {
	for _, ext := range h.Extensions {
		if ext.Hs != nil {
			return ext.Hs
		}
	}
	return nil
}

func (h *Handshake) KeyMaterial() *KeyMaterialExtension {
	for _, ext := range h.Extensions {
		if ext.Km != nil {
			return ext.Km
		}
	}
	return nil
}

func (h *Handshake) Group() *GroupExtension {
	for _, ext := range h.Extensions {
		if ext.Group != nil {
			return ext.Group
		}
	}
	return nil
}

func (h *Handshake) DebugString() string {
	sid, _ := h.StreamId()
	return fmt.Sprintf("type=%s, version=%d, enc=%d, ext=0x%04x, isn=%d, mtu=%d, window=%d, socket=%d, cookie=%d, sid=%s, exts=%d",
		h.Type, h.Version, h.Encryption, h.ExtensionField, h.InitialPacketSequenceNumber, h.Mtu, h.MaxFlowWindowSize,
		h.SrtSocketId, h.SynCookie, sid, len(h.Extensions))
}
