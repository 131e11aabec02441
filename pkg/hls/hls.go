// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/srt2hls
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package hls

import "github.com/q191201771/srt2hls/pkg/base"

// https://developer.apple.com/documentation/http_live_streaming/example_playlists_for_http_live_streaming/event_playlist_construction
// #EXTM3U                     // 固定串
// #EXT-X-VERSION:3            // 固定串
// #EXT-X-PLAYLIST-TYPE:EVENT  // 固定串
// #EXT-X-TARGETDURATION       // 切片时长
// #EXT-X-MEDIA-SEQUENCE       // 窗口内第一个切片的序号
// #EXTINF:                    // 时长以及TS文件名
// #EXT-X-ENDLIST              // 流结束后才有

// 输入是SRT负载中按188字节对齐的TS packet，输出是<outPath>/<streamName>/下的segment_<N>.ts以及playlist.m3u8
//
// N = PTS / 90000 / 切片时长，只在收到PAT时切换，保证每个切片以PAT开始

var Log = base.Log

const (
	DefaultSegmentDurationSec = 2
	DefaultPlaylistWindow     = 5
)

const (
	ContentTypeM3u8 = "application/vnd.apple.mpegurl"
	ContentTypeTs   = "application/octet-stream"
)
