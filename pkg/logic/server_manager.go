// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/srt2hls
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package logic

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/q191201771/naza/pkg/nazaerrors"
	"github.com/q191201771/srt2hls/pkg/base"
	"github.com/q191201771/srt2hls/pkg/hls"
	"github.com/q191201771/srt2hls/pkg/srt"
	"golang.org/x/sync/errgroup"
)

// ServerManager SRT收流，按流名称切片为HLS，并通过http提供访问
//
// 一条SRT连接对应一路流，流名称来自stream id，同名的流同时只能有一路
type ServerManager struct {
	uniqueKey string
	config    *Config

	srtServer         *srt.Server
	httpServerManager *base.HttpServerManager
	hlsServerHandler  *hls.ServerHandler

	exitChan    chan struct{}
	disposeOnce sync.Once

	mutex    sync.Mutex
	disposed bool
	streams  map[string]*streamCtx // key是流名称
	conn2Key map[*srt.Connection]string
}

type streamCtx struct {
	conn      *srt.Connection
	segmenter *hls.Segmenter
}

func NewServerManager(config *Config) *ServerManager {
	uk := base.GenUkServerManager()
	sm := &ServerManager{
		uniqueKey: uk,
		config:    config,
		exitChan:  make(chan struct{}),
		streams:   make(map[string]*streamCtx),
		conn2Key:  make(map[*srt.Connection]string),
	}

	sm.srtServer = srt.NewServer(config.SrtConfig.Addr, sm, func(option *srt.ServerOption) {
		option.IdleTimeoutMs = config.SrtConfig.IdleTimeoutMs
		option.DumpFilename = config.SrtConfig.DumpFilename
	})
	if config.HlsConfig.HttpListenAddr != "" {
		sm.httpServerManager = base.NewHttpServerManager()
		sm.hlsServerHandler = hls.NewServerHandler(config.HlsConfig.OutPath, sm)
	}
	Log.Infof("[%s] lifecycle new server manager.", uk)
	return sm
}

// Listen 绑定SRT的UDP端口以及HLS的http端口，任意一个失败都返回错误
func (sm *ServerManager) Listen() error {
	hls.SetUseMemoryAsDiskFlag(sm.config.HlsConfig.UseMemoryAsDiskFlag)

	if err := sm.srtServer.Listen(); err != nil {
		return nazaerrors.Wrap(err)
	}

	if sm.httpServerManager != nil {
		err := sm.httpServerManager.AddListen(
			sm.config.HlsConfig.HttpListenAddr,
			sm.config.HlsConfig.UrlPattern,
			sm.hlsServerHandler.ServeHTTP,
		)
		if err != nil {
			Log.Errorf("[%s] add http listen for hls failed. addr=%s, pattern=%s, err=%+v",
				sm.uniqueKey, sm.config.HlsConfig.HttpListenAddr, sm.config.HlsConfig.UrlPattern, err)
			_ = sm.srtServer.Dispose()
			return err
		}
		Log.Infof("[%s] add http listen for hls. addr=%s, pattern=%s",
			sm.uniqueKey, sm.config.HlsConfig.HttpListenAddr, sm.config.HlsConfig.UrlPattern)
	}
	return nil
}

// RunLoop 阻塞直到 Dispose 被调用，或者任意一个服务出错，出错时其他服务也会被关闭
func (sm *ServerManager) RunLoop() error {
	g, ctx := errgroup.WithContext(context.Background())

	g.Go(func() error {
		return sm.srtServer.RunLoop()
	})

	if sm.httpServerManager != nil {
		g.Go(func() error {
			return sm.httpServerManager.RunLoop()
		})
	}

	g.Go(func() error {
		var tickC <-chan time.Time
		if sm.config.StatIntervalSec > 0 {
			t := time.NewTicker(time.Duration(sm.config.StatIntervalSec) * time.Second)
			defer t.Stop()
			tickC = t.C
		}
		for {
			select {
			case <-ctx.Done():
				sm.Dispose()
				return nil
			case <-sm.exitChan:
				return nil
			case <-tickC:
				for _, st := range sm.StatStreams() {
					Log.Infof("[%s] stat. %+v", sm.uniqueKey, st)
				}
			}
		}
	})

	return g.Wait()
}

// Dispose 可重复调用
func (sm *ServerManager) Dispose() {
	sm.disposeOnce.Do(func() {
		Log.Infof("[%s] lifecycle dispose server manager.", sm.uniqueKey)
		close(sm.exitChan)

		err := sm.srtServer.Dispose()
		if sm.httpServerManager != nil {
			err = nazaerrors.CombineErrors(err, sm.httpServerManager.Dispose())
		}

		sm.mutex.Lock()
		sm.disposed = true
		for name, ctx := range sm.streams {
			err = nazaerrors.CombineErrors(err, ctx.segmenter.Dispose())
			delete(sm.streams, name)
		}
		sm.conn2Key = make(map[*srt.Connection]string)
		sm.mutex.Unlock()

		if err != nil {
			Log.Warnf("[%s] dispose server manager with error. err=%+v", sm.uniqueKey, err)
		}
	})
}

func (sm *ServerManager) Config() *Config {
	return sm.config
}

// HlsListenAddr 实际监听的http地址，没有开启http时为空
func (sm *ServerManager) HlsListenAddr() string {
	if sm.httpServerManager == nil {
		return ""
	}
	addr := sm.httpServerManager.ListenAddr(sm.config.HlsConfig.HttpListenAddr)
	if addr == nil {
		return ""
	}
	return addr.String()
}

// StatStreams 按流名称排序
func (sm *ServerManager) StatStreams() []StreamStat {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	out := make([]StreamStat, 0, len(sm.streams))
	for name, ctx := range sm.streams {
		rtt, rttVar := ctx.conn.Rtt()
		out = append(out, StreamStat{
			StreamName:       name,
			SessionId:        ctx.conn.UniqueKey(),
			RemoteAddr:       ctx.conn.RemoteAddr(),
			SegmentIndex:     ctx.segmenter.CurrentSegmentIndex(),
			SegmentNum:       len(ctx.segmenter.SegmentNames()),
			RttUs:            rtt,
			RttVarUs:         rttVar,
			RecvPackets:      ctx.conn.RecvPacketCount(),
			LossPackets:      ctx.conn.LossCount(),
			RecvBitrateKbits: ctx.conn.RecvBitrateKbits(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StreamName < out[j].StreamName
	})
	return out
}

// ----- implement srt.IServerObserver interface -----------------------------------------------------------------------

func (sm *ServerManager) OnSrtConnect(conn *srt.Connection) {
	sid, err := srt.ParseStreamId(conn.StreamId())
	if err == nil && sid.Mode == "request" {
		Log.Warnf("[%s] pull mode not supported, ignore. stream id=%s", conn.UniqueKey(), conn.StreamId())
		return
	}

	name := StreamNameOfStreamId(conn.StreamId(), sm.config.SrtConfig.DefaultStreamName)

	sm.mutex.Lock()
	defer sm.mutex.Unlock()
	if sm.disposed {
		return
	}

	if prev, ok := sm.streams[name]; ok {
		Log.Warnf("[%s] stream already exist, ignore. stream=%s, exist=%s", conn.UniqueKey(), name, prev.conn.UniqueKey())
		return
	}

	segmenter := hls.NewSegmenter(name, &sm.config.HlsConfig.SegmenterConfig)
	if err := segmenter.Start(); err != nil {
		Log.Errorf("[%s] start hls segmenter failed. stream=%s, err=%+v", conn.UniqueKey(), name, err)
		return
	}

	sm.streams[name] = &streamCtx{
		conn:      conn,
		segmenter: segmenter,
	}
	sm.conn2Key[conn] = name
	Log.Infof("[%s] srt stream start. stream=%s, remote=%s, segmenter=%s",
		conn.UniqueKey(), name, conn.RemoteAddr(), segmenter.UniqueKey())
}

func (sm *ServerManager) OnSrtDisconnect(conn *srt.Connection) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	name, ok := sm.conn2Key[conn]
	if !ok {
		return
	}
	delete(sm.conn2Key, conn)

	ctx := sm.streams[name]
	delete(sm.streams, name)
	if err := ctx.segmenter.Dispose(); err != nil {
		Log.Warnf("[%s] dispose hls segmenter failed. stream=%s, err=%+v", conn.UniqueKey(), name, err)
	}
	Log.Infof("[%s] srt stream stop. stream=%s, segments=%d, loss=%d",
		conn.UniqueKey(), name, len(ctx.segmenter.SegmentNames()), conn.LossCount())
}

func (sm *ServerManager) OnSrtData(conn *srt.Connection, payload []byte) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	name, ok := sm.conn2Key[conn]
	if !ok {
		return
	}
	if err := sm.streams[name].segmenter.FeedPayload(payload); err != nil {
		Log.Errorf("[%s] feed hls segmenter failed. stream=%s, err=%+v", conn.UniqueKey(), name, err)
	}
}

// ----- implement hls.IPlaylistProvider interface ---------------------------------------------------------------------

func (sm *ServerManager) GetPlaylist(streamName string) ([]byte, bool) {
	sm.mutex.Lock()
	ctx, ok := sm.streams[streamName]
	sm.mutex.Unlock()
	if !ok {
		return nil, false
	}
	return ctx.segmenter.Playlist(), true
}
