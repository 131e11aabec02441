// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/srt2hls
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package hls

import (
	"bytes"
	"fmt"
	"sort"
)

// writeM3u8File 先写临时文件再rename，避免读到写了一半的m3u8
//
// @param content     需写入文件的内容
// @param filename    m3u8文件名
// @param filenameBak m3u8临时文件名
func writeM3u8File(content []byte, filename string, filenameBak string) error {
	if err := fslCtx.WriteFile(filenameBak, content, 0666); err != nil {
		return err
	}

	return fslCtx.Rename(filenameBak, filename)
}

// RenderPlaylist
//
// @param segmentDurationSec: 用于 #EXT-X-TARGETDURATION 以及每个切片的 #EXTINF
// @param segmentNames:       所有已完成的切片文件名，顺序不要求，内部按 SortSegmentNames 排序
// @param window:             只保留最后window个切片，#EXT-X-MEDIA-SEQUENCE 为被跳过的个数
// @param urlPrefix:          拼接在切片文件名前面，为空时是相对playlist的路径
// @param ended:              为true时追加 #EXT-X-ENDLIST
func RenderPlaylist(segmentDurationSec int, segmentNames []string, window int, urlPrefix string, ended bool) []byte {
	names := make([]string, len(segmentNames))
	copy(names, segmentNames)
	SortSegmentNames(names)

	skip := 0
	if window > 0 && len(names) > window {
		skip = len(names) - window
	}

	var buf bytes.Buffer
	buf.WriteString("#EXTM3U\n")
	buf.WriteString("#EXT-X-VERSION:3\n")
	buf.WriteString("#EXT-X-PLAYLIST-TYPE:EVENT\n")
	buf.WriteString(fmt.Sprintf("#EXT-X-TARGETDURATION:%d\n", segmentDurationSec))
	buf.WriteString(fmt.Sprintf("#EXT-X-MEDIA-SEQUENCE:%d\n", skip))

	for _, name := range names[skip:] {
		buf.WriteString(fmt.Sprintf("#EXTINF:%d.000,\n%s%s\n", segmentDurationSec, urlPrefix, name))
	}

	if ended {
		buf.WriteString("#EXT-X-ENDLIST\n")
	}
	return buf.Bytes()
}

// SortSegmentNames 先按长度再按字典序，对segment_<N>.ts这种没有补零的文件名等价于按N排序
func SortSegmentNames(names []string) {
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) < len(names[j])
		}
		return names[i] < names[j]
	})
}
