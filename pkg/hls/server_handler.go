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
	"net/http"

	"github.com/q191201771/srt2hls/pkg/base"
)

// IPlaylistProvider 正在推流的流由它生成playlist，不存在时读文件
type IPlaylistProvider interface {
	GetPlaylist(streamName string) ([]byte, bool)
}

type ServerHandler struct {
	outPath  string
	provider IPlaylistProvider
}

// NewServerHandler
//
// @param provider: 可以为nil，此时playlist也从文件读取
func NewServerHandler(outPath string, provider IPlaylistProvider) *ServerHandler {
	return &ServerHandler{
		outPath:  outPath,
		provider: provider,
	}
}

func (s *ServerHandler) ServeHTTP(resp http.ResponseWriter, req *http.Request) {
	content, fileType, err := s.ReadContent(req.URL.Path)
	if err != nil {
		Log.Warnf("read hls content failed. path=%s, err=%+v", req.URL.Path, err)
		resp.WriteHeader(http.StatusNotFound)
		return
	}

	switch fileType {
	case "m3u8":
		resp.Header().Add("Content-Type", ContentTypeM3u8)
		resp.Header().Add("Server", base.HlsM3u8Server)
	case "ts":
		resp.Header().Add("Content-Type", ContentTypeTs)
		resp.Header().Add("Server", base.HlsTsServer)
	}
	resp.Header().Add("Cache-Control", "no-cache")
	if base.AddCors2HlsFlag {
		base.AddCorsHeaders(resp)
	}

	_, _ = resp.Write(content)
}

// ReadContent 根据url路径获取playlist或切片的内容，fileType为"m3u8"或"ts"
//
// 请求路径不合法时返回 base.ErrHls，流或者文件不存在时返回 base.ErrHlsStreamNotFound
func (s *ServerHandler) ReadContent(urlPath string) (content []byte, fileType string, err error) {
	ri := PathStrategy.GetRequestInfo(urlPath, s.outPath)
	if ri.FileName == "" || (ri.FileType != "m3u8" && ri.FileType != "ts") || ri.StreamName == "" || ri.FileNameWithPath == "" {
		return nil, "", fmt.Errorf("%w. invalid request. request=%+v", base.ErrHls, ri)
	}

	if ri.FileType == "m3u8" && s.provider != nil {
		if content, ok := s.provider.GetPlaylist(ri.StreamName); ok {
			return content, ri.FileType, nil
		}
	}

	content, err = ReadFile(ri.FileNameWithPath)
	if err != nil {
		return nil, "", fmt.Errorf("%w. stream=%s, file=%s, err=%s", base.ErrHlsStreamNotFound, ri.StreamName, ri.FileName, err.Error())
	}
	return content, ri.FileType, nil
}
