// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/srt2hls
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import "github.com/q191201771/naza/pkg/nazalog"

var Log = nazalog.GetGlobalLogger()

// ----- hls --------------------
var (
	// AddCors2HlsFlag 是否为hls增加跨域相关的http header
	AddCors2HlsFlag = true
)

// ----- srt --------------------
var (
	// SrtConnectionIdleTimeoutMs 超过该时长没有收到任何数据的srt连接将被回收
	SrtConnectionIdleTimeoutMs = 10000
)
