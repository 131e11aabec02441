// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/srt2hls
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import (
	"errors"
	"net"
	"net/http"

	"github.com/q191201771/naza/pkg/nazaerrors"
)

// HttpServerManager 管理http server，一个地址上可以注册多个pattern
type HttpServerManager struct {
	addr2ServerCtx map[string]*httpServerCtx
}

type httpServerCtx struct {
	listener   net.Listener
	httpServer http.Server
	mux        *http.ServeMux
	patterns   map[string]struct{}
}

func NewHttpServerManager() *HttpServerManager {
	return &HttpServerManager{
		addr2ServerCtx: make(map[string]*httpServerCtx),
	}
}

// AddListen 地址第一次出现时立即监听
//
// @param pattern 必须以`/`开始，并以`/`结束
func (s *HttpServerManager) AddListen(addr string, pattern string, handler http.HandlerFunc) error {
	if addr == "" {
		return ErrAddrEmpty
	}

	ctx, ok := s.addr2ServerCtx[addr]
	if !ok {
		l, err := net.Listen("tcp", addr)
		if err != nil {
			return err
		}
		mux := http.NewServeMux()
		ctx = &httpServerCtx{
			listener:   l,
			httpServer: http.Server{Handler: mux},
			mux:        mux,
			patterns:   make(map[string]struct{}),
		}
		s.addr2ServerCtx[addr] = ctx
	}

	if _, ok := ctx.patterns[pattern]; ok {
		return ErrMultiRegisterForPattern
	}
	ctx.patterns[pattern] = struct{}{}
	ctx.mux.HandleFunc(pattern, handler)
	return nil
}

// ListenAddr 返回实际监听的地址，addr端口为0时可用于获取系统分配的端口
func (s *HttpServerManager) ListenAddr(addr string) net.Addr {
	ctx, ok := s.addr2ServerCtx[addr]
	if !ok {
		return nil
	}
	return ctx.listener.Addr()
}

// RunLoop 阻塞直到任意一个server出错，调用 Dispose 关闭时返回nil
func (s *HttpServerManager) RunLoop() error {
	if len(s.addr2ServerCtx) == 0 {
		return nil
	}

	errChan := make(chan error, len(s.addr2ServerCtx))
	for _, v := range s.addr2ServerCtx {
		go func(ctx *httpServerCtx) {
			errChan <- ctx.httpServer.Serve(ctx.listener)
			_ = ctx.httpServer.Close()
		}(v)
	}

	err := <-errChan
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *HttpServerManager) Dispose() error {
	var es []error
	for _, v := range s.addr2ServerCtx {
		es = append(es, v.httpServer.Close())
	}
	return nazaerrors.CombineErrors(es...)
}
