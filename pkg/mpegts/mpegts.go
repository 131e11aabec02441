// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/srt2hls
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

// Package mpegts 解析188字节的TS packet，以及其中承载的PSI(PAT/PMT)和PES头
package mpegts

import "github.com/q191201771/srt2hls/pkg/base"

var Log = base.Log

const (
	SyncByte   uint8 = 0x47
	PacketSize       = 188
)

// PID
const (
	PidPat  uint16 = 0x0000
	PidCat  uint16 = 0x0001
	PidTsdt uint16 = 0x0002
	PidIpmp uint16 = 0x0003
	PidNull uint16 = 0x1FFF
)

// stream_type
// <iso13818-1.pdf> <Table 2-29 Stream type assignments> <page 66/174>
const (
	StreamTypeMpeg1Video uint8 = 0x01
	StreamTypeMpeg2Video uint8 = 0x02
	StreamTypeMpeg1Audio uint8 = 0x03
	StreamTypeMpeg2Audio uint8 = 0x04
	StreamTypePrivate    uint8 = 0x06
	StreamTypeAac        uint8 = 0x0F
	StreamTypeMpeg4Video uint8 = 0x10
	StreamTypeAvc        uint8 = 0x1B
	StreamTypeHevc       uint8 = 0x24
	StreamTypeAc3        uint8 = 0x81
)

// IsVideoStreamType 可作为切片时钟参考的视频类型
func IsVideoStreamType(t uint8) bool {
	switch t {
	case StreamTypeAvc, StreamTypeHevc, StreamTypeMpeg4Video:
		return true
	}
	return false
}

// PidSet 调用方从PAT中学习到的PMT PID集合
type PidSet map[uint16]struct{}

func NewPidSet(pids ...uint16) PidSet {
	s := make(PidSet, len(pids))
	for _, pid := range pids {
		s[pid] = struct{}{}
	}
	return s
}

func (s PidSet) Add(pid uint16) {
	s[pid] = struct{}{}
}

func (s PidSet) Has(pid uint16) bool {
	_, ok := s[pid]
	return ok
}

// IsPsiPid 固定分配给PSI的PID，或者已知的PMT PID
func IsPsiPid(pid uint16, pmtPids PidSet) bool {
	switch pid {
	case PidPat, PidCat, PidTsdt, PidIpmp:
		return true
	}
	return pmtPids.Has(pid)
}
