// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/srt2hls
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import "github.com/q191201771/naza/pkg/unique"

const (
	UkPreSrtServer     = "SRTSERVER"
	UkPreSrtConnection = "SRTCONN"
	UkPreSrtCaller     = "SRTCALLER"
	UkPreHlsSegmenter  = "HLSSEGMENTER"
	UkPreServerManager = "SERVERMANAGER"
)

func GenUkSrtServer() string {
	return siUkSrtServer.GenUniqueKey()
}

func GenUkSrtConnection() string {
	return siUkSrtConnection.GenUniqueKey()
}

func GenUkSrtCaller() string {
	return siUkSrtCaller.GenUniqueKey()
}

func GenUkHlsSegmenter() string {
	return siUkHlsSegmenter.GenUniqueKey()
}

func GenUkServerManager() string {
	return siUkServerManager.GenUniqueKey()
}

var (
	siUkSrtServer     *unique.SingleGenerator
	siUkSrtConnection *unique.SingleGenerator
	siUkSrtCaller     *unique.SingleGenerator
	siUkHlsSegmenter  *unique.SingleGenerator
	siUkServerManager *unique.SingleGenerator
)

func init() {
	siUkSrtServer = unique.NewSingleGenerator(UkPreSrtServer)
	siUkSrtConnection = unique.NewSingleGenerator(UkPreSrtConnection)
	siUkSrtCaller = unique.NewSingleGenerator(UkPreSrtCaller)
	siUkHlsSegmenter = unique.NewSingleGenerator(UkPreHlsSegmenter)
	siUkServerManager = unique.NewSingleGenerator(UkPreServerManager)
}
