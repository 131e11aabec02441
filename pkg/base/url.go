// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/srt2hls
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// 见单元测试

// SrtUrlContext
//
// srt://host:port?streamid=#!::r=live/test110,m=publish&latency=120
type SrtUrlContext struct {
	Url string

	HostWithPort string
	Host         string
	Port         int

	StreamId  string
	LatencyMs int // 为0表示没有指定
	RawQuery  string
}

// ParseSrtUrl
//
// @param rawUrl: 不带scheme时，必须是host:port，此时没有stream id
func ParseSrtUrl(rawUrl string) (ctx SrtUrlContext, err error) {
	ctx.Url = rawUrl

	if !strings.Contains(rawUrl, "://") {
		ctx.Host, ctx.Port, err = splitHostPort(rawUrl)
		if err != nil {
			return ctx, err
		}
		ctx.HostWithPort = rawUrl
		return ctx, nil
	}

	stdUrl, err := url.Parse(rawUrl)
	if err != nil {
		return ctx, err
	}
	if stdUrl.Scheme != "srt" {
		return ctx, fmt.Errorf("%w. url=%s", ErrInvalidUrl, rawUrl)
	}
	ctx.Host, ctx.Port, err = splitHostPort(stdUrl.Host)
	if err != nil {
		return ctx, err
	}
	ctx.HostWithPort = stdUrl.Host

	// stream id中的`#`会被url.Parse当作fragment，这里从原始字符串中取
	q := rawUrl[strings.Index(rawUrl, "://")+3:]
	if i := strings.IndexByte(q, '?'); i != -1 {
		q = q[i+1:]
		ctx.RawQuery = q
		for _, item := range strings.Split(q, "&") {
			kv := strings.SplitN(item, "=", 2)
			if len(kv) != 2 {
				continue
			}
			switch kv[0] {
			case "streamid":
				if ctx.StreamId, err = url.QueryUnescape(kv[1]); err != nil {
					return ctx, err
				}
			case "latency":
				if ctx.LatencyMs, err = strconv.Atoi(kv[1]); err != nil {
					return ctx, fmt.Errorf("%w. invalid latency. url=%s", ErrInvalidUrl, rawUrl)
				}
			}
		}
	}
	return ctx, nil
}

// srt没有约定的默认端口，端口必须存在
func splitHostPort(hostport string) (host string, port int, err error) {
	h, p, err := net.SplitHostPort(hostport)
	if err != nil {
		return "", 0, fmt.Errorf("%w. %s", ErrInvalidUrl, err.Error())
	}
	port, err = strconv.Atoi(p)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, fmt.Errorf("%w. invalid port. hostport=%s", ErrInvalidUrl, hostport)
	}
	return h, port, nil
}
