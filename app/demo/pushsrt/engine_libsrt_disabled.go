// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/srt2hls
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

//go:build !libsrt
// +build !libsrt

package main

import (
	"fmt"

	"github.com/q191201771/srt2hls/pkg/base"
)

// libsrt依赖cgo以及系统安装的libsrt，默认不编译
func newLibsrtPusher(addr string, streamId string) (IPusher, error) {
	return nil, fmt.Errorf("%w. libsrt engine not compiled in, rebuild with `-tags libsrt`", base.ErrSrtUnsupported)
}
