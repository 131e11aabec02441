// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/srt2hls
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

//go:build libsrt
// +build libsrt

package main

import (
	"net"
	"strconv"

	"github.com/haivision/srtgo"
)

type libsrtPusher struct {
	socket *srtgo.SrtSocket
}

func newLibsrtPusher(addr string, streamId string) (*libsrtPusher, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return nil, err
	}

	options := make(map[string]string)
	options["transtype"] = "live"
	options["blocking"] = "1"
	if streamId != "" {
		options["streamid"] = streamId
	}

	socket := srtgo.NewSrtSocket(host, uint16(port), options)
	if err = socket.Connect(); err != nil {
		socket.Close()
		return nil, err
	}
	return &libsrtPusher{socket: socket}, nil
}

func (p *libsrtPusher) Write(b []byte) error {
	_, err := p.socket.Write(b)
	return err
}

func (p *libsrtPusher) Dispose() error {
	p.socket.Close()
	return nil
}
