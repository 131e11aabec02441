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

	"github.com/q191201771/srt2hls/pkg/base"
)

const streamIdAccessControlPrefix = "#!::"

// StreamId
//
// 参考 <https://github.com/Haivision/srt/blob/master/docs/features/access-control.md>
type StreamId struct {
	Raw string

	User      string // u
	Host      string // h
	Resource  string // r
	SessionId string // s
	Type      string // t
	Mode      string // m
}

// ParseStreamId 支持 `#!::r=live/test,m=publish` 格式，不带前缀时整体作为 Resource
func ParseStreamId(raw string) (*StreamId, error) {
	id := &StreamId{Raw: raw}
	if !strings.HasPrefix(raw, streamIdAccessControlPrefix) {
		id.Resource = raw
		return id, nil
	}

	items := strings.Split(strings.TrimPrefix(raw, streamIdAccessControlPrefix), ",")
	for _, item := range items {
		if item == "" {
			continue
		}
		kv := strings.SplitN(item, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("%w. invalid stream id item. item=%s", base.ErrSrt, item)
		}
		switch kv[0] {
		case "u":
			id.User = kv[1]
		case "h":
			id.Host = kv[1]
		case "r":
			id.Resource = kv[1]
		case "s":
			id.SessionId = kv[1]
		case "t":
			id.Type = kv[1]
		case "m":
			id.Mode = kv[1]
		}
	}
	return id, nil
}
