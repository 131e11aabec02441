// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/srt2hls
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package hls

import (
	"fmt"
	"path/filepath"
	"strings"
)

// 聚合以下功能：
// - 落盘策略： 生成HLS（m3u8文件+ts文件）时，文件命名规则，以及文件存放规则
// - 路由策略： HTTP请求HLS时，request URI和文件路径的映射规则

type RequestInfo struct {
	FileName string
	FileType string

	StreamName       string
	FileNameWithPath string
}

type IPathStrategy interface {
	IPathRequestStrategy
	IPathWriteStrategy
}

// IPathRequestStrategy 路由策略
// 接到HTTP请求时，对应文件路径的映射逻辑
type IPathRequestStrategy interface {
	// GetRequestInfo 解析HTTP请求的path，得到文件名、文件类型、流名称、文件所在路径
	GetRequestInfo(urlPath string, rootOutPath string) RequestInfo
}

// IPathWriteStrategy 落盘策略
type IPathWriteStrategy interface {
	// GetSegmenterOutPath 获取单个流对应的文件根路径
	GetSegmenterOutPath(rootOutPath string, streamName string) string

	// GetPlaylistFileName 获取单个流对应的m3u8文件路径
	//
	// @param outPath: func GetSegmenterOutPath的结果
	GetPlaylistFileName(outPath string) string

	// GetRecordFileName 获取单个流对应的原始TS录制文件路径
	GetRecordFileName(outPath string) string

	// GetSegmentFileName ts文件名的生成策略
	GetSegmentFileName(index uint64) string

	// GetSegmentFileNameWithPath 获取单个流对应的ts文件路径
	GetSegmentFileNameWithPath(outPath string, fileName string) string
}

var PathStrategy IPathStrategy = &DefaultPathStrategy{}

// ---------------------------------------------------------------------------------------------------------------------

const (
	playlistM3u8FileName = "playlist.m3u8"
	recordTsFileName     = "record.ts"
)

// DefaultPathStrategy 默认的路由，落盘策略
//
// 每个流在<rootPath>下以流名称生成一个子目录，目录下包含:
//
// - playlist.m3u8   HLS文件，每次切片时刷新，流结束后带上#EXT-X-ENDLIST
// - record.ts       可选，从流开始至今收到的原始TS流
// - segment_0.ts    TS分片文件，命名格式为segment_{index}.ts，index由PTS计算得到，单调递增但不一定连续
// - segment_2.ts
// - ...             一系列的TS文件
//
// 假设
// 流名称="test110"
// rootPath="/tmp/srt2hls/hls/"
//
// 则
// http://127.0.0.1:8080/hls/test110/playlist.m3u8 -> /tmp/srt2hls/hls/test110/playlist.m3u8
// http://127.0.0.1:8080/hls/test110/segment_3.ts  -> /tmp/srt2hls/hls/test110/segment_3.ts
// http://127.0.0.1:8080/hls/test110/record.ts     -> /tmp/srt2hls/hls/test110/record.ts
// http://127.0.0.1:8080/hls/test110.m3u8          -> /tmp/srt2hls/hls/test110/playlist.m3u8
// 最下面这个做了特殊映射
type DefaultPathStrategy struct {
}

// GetRequestInfo
//
// urlPath                      -> FileName       StreamName FileType FileNameWithPath
// /hls/test110.m3u8            -> test110.m3u8   test110    m3u8     {rootOutPath}/test110/playlist.m3u8
// /hls/test110/playlist.m3u8   -> playlist.m3u8  test110    m3u8     {rootOutPath}/test110/playlist.m3u8
// /hls/test110/segment_3.ts    -> segment_3.ts   test110    ts       {rootOutPath}/test110/segment_3.ts
// /hls/segment_3.ts            -> segment_3.ts              ts       没有流名称，无法映射
func (dps *DefaultPathStrategy) GetRequestInfo(urlPath string, rootOutPath string) (ri RequestInfo) {
	items := strings.Split(strings.TrimPrefix(urlPath, "/"), "/")
	ri.FileName = items[len(items)-1]
	if ri.FileName == "" || strings.Contains(ri.FileName, "..") {
		return
	}
	idx := strings.LastIndex(ri.FileName, ".")
	if idx == -1 {
		return
	}
	fileNameWithOutType := ri.FileName[:idx]
	ri.FileType = ri.FileName[idx+1:]

	// items[0]是pattern中的前缀，比如hls
	var dirStreamName string
	if len(items) >= 3 {
		dirStreamName = items[len(items)-2]
	}

	switch ri.FileType {
	case "m3u8":
		if ri.FileName == playlistM3u8FileName {
			ri.StreamName = dirStreamName
		} else if len(items) == 2 {
			ri.StreamName = fileNameWithOutType
		}
		if ri.StreamName != "" {
			ri.FileNameWithPath = dps.GetPlaylistFileName(dps.GetSegmenterOutPath(rootOutPath, ri.StreamName))
		}
	case "ts":
		ri.StreamName = dirStreamName
		if ri.StreamName != "" {
			ri.FileNameWithPath = dps.GetSegmentFileNameWithPath(dps.GetSegmenterOutPath(rootOutPath, ri.StreamName), ri.FileName)
		}
	}
	return
}

// GetSegmenterOutPath <rootOutPath>/<streamName>
func (*DefaultPathStrategy) GetSegmenterOutPath(rootOutPath string, streamName string) string {
	return filepath.Join(rootOutPath, streamName)
}

func (*DefaultPathStrategy) GetPlaylistFileName(outPath string) string {
	return filepath.Join(outPath, playlistM3u8FileName)
}

func (*DefaultPathStrategy) GetRecordFileName(outPath string) string {
	return filepath.Join(outPath, recordTsFileName)
}

func (*DefaultPathStrategy) GetSegmentFileName(index uint64) string {
	return fmt.Sprintf("segment_%d.ts", index)
}

func (*DefaultPathStrategy) GetSegmentFileNameWithPath(outPath string, fileName string) string {
	return filepath.Join(outPath, fileName)
}
