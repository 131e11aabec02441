// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/srt2hls
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import "strings"

// 版本信息相关
// 一部分版本信息使用了naza.bininfo，另外一些信息在本文件中提供，并打入日志和http header中

// Version 整个工程的版本号。注意，该变量由外部脚本修改维护，不要手动在代码中修改
//
const Version = "v0.1.0"

// ConfVersion srt2hls配置文件的版本号
//
const ConfVersion = "v0.1.0"

var (
	LibraryName = "srt2hls"
	GithubRepo  = "github.com/q191201771/srt2hls"
	GithubSite  = "https://github.com/q191201771/srt2hls"

	// FullInfo e.g. srt2hls v0.1.0 (github.com/q191201771/srt2hls)
	FullInfo = LibraryName + " " + Version + " (" + GithubRepo + ")"

	// VersionDot e.g. 0.1.0
	VersionDot string
)

var (
	// HlsM3u8Server e.g. srt2hls0.1.0
	HlsM3u8Server string

	// HlsTsServer e.g. srt2hls0.1.0
	HlsTsServer string
)

func init() {
	VersionDot = strings.TrimPrefix(Version, "v")

	HlsM3u8Server = LibraryName + VersionDot
	HlsTsServer = LibraryName + VersionDot
}
