// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/srt2hls
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package main

import (
	"github.com/q191201771/srt2hls/pkg/srt"
)

type builtinPusher struct {
	caller *srt.Caller
}

func newBuiltinPusher(addr string, streamId string) (*builtinPusher, error) {
	caller := srt.NewCaller(func(option *srt.CallerOption) {
		option.StreamId = streamId
	})
	if err := caller.Dial(addr); err != nil {
		return nil, err
	}
	return &builtinPusher{caller: caller}, nil
}

func (p *builtinPusher) Write(b []byte) error {
	select {
	case err := <-p.caller.WaitChan():
		return err
	default:
	}
	return p.caller.Write(b)
}

func (p *builtinPusher) Dispose() error {
	return p.caller.Dispose()
}
