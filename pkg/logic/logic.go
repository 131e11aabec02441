// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/srt2hls
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package logic

import (
	"strings"

	"github.com/q191201771/srt2hls/pkg/base"
	"github.com/q191201771/srt2hls/pkg/srt"
)

var Log = base.Log

// StreamStat 一路正在推流的流的状态
type StreamStat struct {
	StreamName       string  `json:"stream_name"`
	SessionId        string  `json:"session_id"`
	RemoteAddr       string  `json:"remote_addr"`
	SegmentIndex     uint64  `json:"segment_index"`
	SegmentNum       int     `json:"segment_num"`
	RttUs            uint32  `json:"rtt_us"`
	RttVarUs         uint32  `json:"rtt_var_us"`
	RecvPackets      uint64  `json:"recv_packets"`
	LossPackets      uint64  `json:"loss_packets"`
	RecvBitrateKbits float32 `json:"recv_bitrate_kbits"`
}

// StreamNameOfStreamId 从stream id中得到流名称，用作目录名，不能包含路径分隔符
//
// stream id为空或者解析失败时，使用 defaultName
func StreamNameOfStreamId(streamId string, defaultName string) string {
	sid, err := srt.ParseStreamId(streamId)
	if err != nil {
		Log.Warnf("parse stream id failed, use default stream name. stream id=%s, err=%+v", streamId, err)
		return defaultName
	}

	name := sid.Resource
	if i := strings.LastIndexAny(name, "/\\"); i != -1 {
		name = name[i+1:]
	}
	if name == "" || name == "." || name == ".." {
		return defaultName
	}
	return name
}
