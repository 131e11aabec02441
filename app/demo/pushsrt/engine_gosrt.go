// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/srt2hls
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package main

import (
	gosrt "github.com/datarhei/gosrt"
	"github.com/q191201771/srt2hls/pkg/srt"
)

type gosrtPusher struct {
	conn gosrt.Conn
}

func newGosrtPusher(addr string, streamId string) (*gosrtPusher, error) {
	config := gosrt.DefaultConfig()
	config.StreamId = streamId
	config.PayloadSize = srt.DefaultPayloadSize

	conn, err := gosrt.Dial("srt", addr, config)
	if err != nil {
		return nil, err
	}
	return &gosrtPusher{conn: conn}, nil
}

func (p *gosrtPusher) Write(b []byte) error {
	_, err := p.conn.Write(b)
	return err
}

func (p *gosrtPusher) Dispose() error {
	return p.conn.Close()
}
