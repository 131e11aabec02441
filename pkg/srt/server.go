// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/srt2hls
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package srt

import (
	"fmt"
	"math/rand"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/q191201771/naza/pkg/nazaatomic"
	"github.com/q191201771/naza/pkg/nazamd5"
	"github.com/q191201771/naza/pkg/nazanet"
	"github.com/q191201771/srt2hls/pkg/base"
)

// IServerObserver 回调都在server的接收协程中同步执行
type IServerObserver interface {
	// OnSrtConnect 握手完成
	OnSrtConnect(conn *Connection)

	// OnSrtDisconnect 收到SHUTDOWN，或者连接超时，或者同一地址发起了新的握手
	OnSrtDisconnect(conn *Connection)

	// OnSrtData 数据包的负载，回调返回后 payload 的内存可能被复用
	OnSrtData(conn *Connection, payload []byte)
}

type ServerOption struct {
	// IdleTimeoutMs 超过该时长没有收到任何包的连接会被回收，为0时使用 base.SrtConnectionIdleTimeoutMs
	IdleTimeoutMs int

	// DumpFilename 不为空时，把收到的所有UDP包原样写入该文件，用于问题复现
	DumpFilename string
}

type ModServerOption func(option *ServerOption)

const reapIntervalMs = 1000

// cookie以该时长分桶，同一地址在同一桶内的cookie相同
const cookieBucketSec = 64

type Server struct {
	uniqueKey string
	addr      string
	observer  IServerObserver
	option    ServerOption
	now       func() time.Time

	conn     *nazanet.UdpConnection
	sender   IPacketSender
	secret   string
	dumpFile *base.DumpFile
	disposed nazaatomic.Bool

	mutex        sync.Mutex
	connections  map[string]*Connection // key是对端地址
	lastReapTime time.Time
}

func NewServer(addr string, observer IServerObserver, modOptions ...ModServerOption) *Server {
	option := ServerOption{
		IdleTimeoutMs: base.SrtConnectionIdleTimeoutMs,
	}
	for _, fn := range modOptions {
		fn(&option)
	}
	if option.IdleTimeoutMs <= 0 {
		option.IdleTimeoutMs = base.SrtConnectionIdleTimeoutMs
	}

	uk := base.GenUkSrtServer()
	s := &Server{
		uniqueKey:   uk,
		addr:        addr,
		observer:    observer,
		option:      option,
		now:         time.Now,
		secret:      strconv.FormatInt(rand.Int63(), 16),
		connections: make(map[string]*Connection),
	}
	Log.Infof("[%s] lifecycle new srt server. addr=%s", uk, addr)
	return s
}

func (s *Server) Listen() (err error) {
	s.conn, err = nazanet.NewUdpConnection(func(option *nazanet.UdpConnectionOption) {
		option.LAddr = s.addr
		option.MaxReadPacketSize = MaxPacketSize
	})
	if err != nil {
		return err
	}
	s.sender = s.conn
	Log.Infof("[%s] start srt server listen. addr=%s", s.uniqueKey, s.addr)

	if s.option.DumpFilename != "" {
		s.dumpFile = base.NewDumpFile()
		if err = s.dumpFile.OpenToWrite(s.option.DumpFilename); err != nil {
			Log.Errorf("[%s] open dump file failed. filename=%s, err=%+v", s.uniqueKey, s.option.DumpFilename, err)
			s.dumpFile = nil
		}
	}
	return nil
}

// RunLoop 阻塞直到 Dispose 被调用，或者socket读取出错
func (s *Server) RunLoop() error {
	err := s.conn.RunLoop(func(b []byte, raddr *net.UDPAddr, err error) bool {
		if err != nil {
			return false
		}
		s.onDatagram(b, raddr)
		return true
	})
	if s.disposed.Load() {
		return nil
	}
	return err
}

func (s *Server) Dispose() error {
	if s.disposed.Load() {
		return nil
	}
	s.disposed.Store(true)
	Log.Infof("[%s] lifecycle dispose srt server.", s.uniqueKey)

	if s.dumpFile != nil {
		_ = s.dumpFile.Close()
	}
	if s.conn == nil {
		return nil
	}
	return s.conn.Dispose()
}

func (s *Server) UniqueKey() string {
	return s.uniqueKey
}

// Connections 当前所有连接的快照，包括还在握手的
func (s *Server) Connections() []*Connection {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	out := make([]*Connection, 0, len(s.connections))
	for _, c := range s.connections {
		out = append(out, c)
	}
	return out
}

// ---------------------------------------------------------------------------------------------------------------------

func (s *Server) onDatagram(b []byte, raddr *net.UDPAddr) {
	if s.dumpFile != nil {
		_ = s.dumpFile.WriteWithType(b, base.DumpTypeSrtDatagram)
	}

	now := s.now()
	s.reapIdleConnections(now)

	key := raddr.String()
	conn := s.getConnection(key)

	pkt, err := ParsePacket(b)
	if err != nil {
		if conn != nil && conn.State() == ConnectionStateHandshaking {
			s.removeConnection(key)
			Log.Warnf("[%s] handshake aborted by invalid packet. remote=%s, err=%+v", s.uniqueKey, key, err)
			return
		}
		Log.Warnf("[%s] parse packet failed. remote=%s, len=%d, err=%+v", s.uniqueKey, key, len(b), err)
		return
	}

	isInduction := pkt.IsControlType(ControlTypeHandshake) && pkt.Control.Handshake.Type == HandshakeTypeInduction

	// 同一地址重新握手，旧的连接作废
	if conn != nil && conn.State() == ConnectionStateEstablished && isInduction {
		Log.Infof("[%s] new induction from established peer, close old connection. remote=%s", s.uniqueKey, key)
		s.closeConnection(key, conn)
		conn = nil
	}

	if conn == nil {
		if !isInduction {
			Log.Debugf("[%s] drop packet from unknown peer. remote=%s, %s", s.uniqueKey, key, pkt.DebugString())
			return
		}
		conn = newConnection(raddr, s.sender, s.genSocketId(), s.genCookie(key, now), s.now)
		s.mutex.Lock()
		s.connections[key] = conn
		s.mutex.Unlock()
	}

	switch conn.State() {
	case ConnectionStateHandshaking:
		established, err := conn.handleHandshake(pkt)
		if err != nil {
			Log.Warnf("[%s] handshake failed. remote=%s, err=%+v", s.uniqueKey, key, err)
			s.removeConnection(key)
			_ = conn.Close()
			return
		}
		if established && s.observer != nil {
			s.observer.OnSrtConnect(conn)
		}
	case ConnectionStateEstablished:
		payload, err := conn.Handle(pkt)
		if err != nil {
			Log.Warnf("[%s] handle packet failed. err=%+v", conn.UniqueKey(), err)
		}
		if conn.State() == ConnectionStateClosed {
			s.removeConnection(key)
			if s.observer != nil {
				s.observer.OnSrtDisconnect(conn)
			}
			return
		}
		if payload != nil && s.observer != nil {
			s.observer.OnSrtData(conn, payload)
		}
	}
}

func (s *Server) reapIdleConnections(now time.Time) {
	if now.Sub(s.lastReapTime) < reapIntervalMs*time.Millisecond {
		return
	}
	s.lastReapTime = now

	timeout := time.Duration(s.option.IdleTimeoutMs) * time.Millisecond
	s.mutex.Lock()
	var idle []string
	for key, c := range s.connections {
		if c.IsIdle(now, timeout) {
			idle = append(idle, key)
		}
	}
	s.mutex.Unlock()

	for _, key := range idle {
		conn := s.getConnection(key)
		Log.Warnf("[%s] connection idle timeout. stream=%s, remote=%s", conn.UniqueKey(), conn.StreamId(), key)
		s.closeConnection(key, conn)
	}
}

// closeConnection 移除连接，已建立的连接会给对端发SHUTDOWN并回调 OnSrtDisconnect
func (s *Server) closeConnection(key string, conn *Connection) {
	s.removeConnection(key)
	wasEstablished := conn.State() == ConnectionStateEstablished
	if err := conn.Close(); err != nil {
		Log.Warnf("[%s] send shutdown failed. err=%+v", conn.UniqueKey(), err)
	}
	if wasEstablished && s.observer != nil {
		s.observer.OnSrtDisconnect(conn)
	}
}

func (s *Server) getConnection(key string) *Connection {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.connections[key]
}

func (s *Server) removeConnection(key string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.connections, key)
}

func (s *Server) genSocketId() uint32 {
	for {
		if id := rand.Uint32(); id != 0 {
			return id
		}
	}
}

// genCookie 由对端地址、时间桶以及server私有的secret生成
func (s *Server) genCookie(key string, now time.Time) uint32 {
	h := nazamd5.Md5([]byte(fmt.Sprintf("%s|%d|%s", key, now.Unix()/cookieBucketSec, s.secret)))
	v, _ := strconv.ParseUint(h[:8], 16, 32)
	return uint32(v)
}
