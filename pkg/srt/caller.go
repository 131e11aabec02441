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
	"sync"
	"time"

	"github.com/q191201771/naza/pkg/nazaatomic"
	"github.com/q191201771/naza/pkg/nazaerrors"
	"github.com/q191201771/naza/pkg/nazanet"
	"github.com/q191201771/srt2hls/pkg/base"
)

// 1316 = 7 * 188
const DefaultPayloadSize = 1316

const callerSrtVersion uint32 = 0x00010401

type CallerOption struct {
	StreamId           string
	HandshakeTimeoutMs int
	PayloadSize        int // 每个数据包负载的最大长度
	LatencyMs          uint16
}

var defaultCallerOption = CallerOption{
	HandshakeTimeoutMs: 3000,
	PayloadSize:        DefaultPayloadSize,
	LatencyMs:          120,
}

type ModCallerOption func(option *CallerOption)

// Caller 简单的SRT推流端，只发送不重传，用于测试和demo
//
// 握手完成后后台协程处理对端的控制包：ACK回ACKACK，KEEPALIVE回显，NAK计数，SHUTDOWN结束
type Caller struct {
	uniqueKey string
	option    CallerOption

	conn         *nazanet.UdpConnection
	socketId     uint32
	peerSocketId uint32
	startTime    time.Time

	mutex  sync.Mutex
	seq    uint32
	msgNum uint32

	ackCount  nazaatomic.Uint32
	nakCount  nazaatomic.Uint32
	closed    nazaatomic.Bool
	waitChan  chan error
	closeOnce sync.Once
}

func NewCaller(modOptions ...ModCallerOption) *Caller {
	option := defaultCallerOption
	for _, fn := range modOptions {
		fn(&option)
	}
	uk := base.GenUkSrtCaller()
	Log.Infof("[%s] lifecycle new srt caller. stream=%s", uk, option.StreamId)
	return &Caller{
		uniqueKey: uk,
		option:    option,
		socketId:  rand.Uint32() | 1,
		seq:       rand.Uint32() & MaxSequenceNumber,
		msgNum:    1,
		waitChan:  make(chan error, 1),
	}
}

// Dial 完成Induction和Conclusion两轮握手，成功后启动后台读协程
func (c *Caller) Dial(addr string) (err error) {
	c.conn, err = nazanet.NewUdpConnection(func(option *nazanet.UdpConnectionOption) {
		option.RAddr = addr
		option.MaxReadPacketSize = MaxPacketSize
	})
	if err != nil {
		return err
	}
	c.startTime = time.Now()

	hs := Handshake{
		Version:                     HandshakeVersion4,
		ExtensionField:              2, // UDT_DGRAM
		InitialPacketSequenceNumber: c.seq,
		Mtu:                         DefaultMtu,
		MaxFlowWindowSize:           DefaultFlowWindowSize,
		Type:                        HandshakeTypeInduction,
		SrtSocketId:                 c.socketId,
	}
	resp, err := c.exchangeHandshake(&hs)
	if err != nil {
		return nazaerrors.Wrap(err)
	}
	if resp.Version != HandshakeVersion5 || resp.ExtensionField != HandshakeMagicCode {
		return fmt.Errorf("%w. unexpected induction response. %s", base.ErrSrtHandshakeAborted, resp.DebugString())
	}

	hs.Version = HandshakeVersion5
	hs.Type = HandshakeTypeConclusion
	hs.SynCookie = resp.SynCookie
	hs.ExtensionField = ExtensionFlagHsReq
	hs.Extensions = []HandshakeExtension{
		NewSrtHsExtension(ExtensionTypeHsReq, SrtHsExtension{
			SrtVersion:    callerSrtVersion,
			SrtFlags:      HsFlagTsbpdSnd | HsFlagTsbpdRcv | HsFlagTlPktDrop | HsFlagPeriodicNak | HsFlagRexmitFlg,
			ReceiverDelay: c.option.LatencyMs,
			SenderDelay:   c.option.LatencyMs,
		}),
	}
	if c.option.StreamId != "" {
		hs.ExtensionField |= ExtensionFlagConfig
		hs.Extensions = append(hs.Extensions, NewStreamIdExtension(c.option.StreamId))
	}
	if resp, err = c.exchangeHandshake(&hs); err != nil {
		return nazaerrors.Wrap(err)
	}
	if resp.Type != HandshakeTypeConclusion {
		return fmt.Errorf("%w. unexpected conclusion response. %s", base.ErrSrtHandshakeAborted, resp.DebugString())
	}
	c.peerSocketId = resp.SrtSocketId
	Log.Infof("[%s] srt caller connected. addr=%s, peer socket=%d", c.uniqueKey, addr, c.peerSocketId)

	go c.runReadLoop()
	return nil
}

// Write 按 PayloadSize 切分后逐个发送，每个数据包是一个独立消息
func (c *Caller) Write(b []byte) error {
	if c.closed.Load() {
		return base.ErrSrtServerClosed
	}
	for len(b) > 0 {
		n := c.option.PayloadSize
		if n > len(b) {
			n = len(b)
		}
		if err := c.writeDataPacket(b[:n]); err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

// WaitChan 对端关闭或者读出错时可读
func (c *Caller) WaitChan() <-chan error {
	return c.waitChan
}

func (c *Caller) Dispose() error {
	var err error
	c.closeOnce.Do(func() {
		Log.Infof("[%s] lifecycle dispose srt caller.", c.uniqueKey)
		if c.conn == nil {
			return
		}
		if !c.closed.Load() {
			err = c.send(&Packet{Control: &ControlPacket{Type: ControlTypeShutdown}})
		}
		c.closed.Store(true)
		err = nazaerrors.CombineErrors(err, c.conn.Dispose())
	})
	return err
}

func (c *Caller) UniqueKey() string {
	return c.uniqueKey
}

// RecvAckCount 收到的ACK个数
func (c *Caller) RecvAckCount() uint32 {
	return c.ackCount.Load()
}

func (c *Caller) RecvNakCount() uint32 {
	return c.nakCount.Load()
}

// ---------------------------------------------------------------------------------------------------------------------

func (c *Caller) writeDataPacket(payload []byte) error {
	c.mutex.Lock()
	seq := c.seq
	msg := c.msgNum
	c.seq = (c.seq + 1) & MaxSequenceNumber
	c.msgNum = (c.msgNum + 1) & MaxMessageNumber
	if c.msgNum == 0 {
		c.msgNum = 1
	}
	c.mutex.Unlock()

	return c.send(&Packet{
		Data: &DataPacket{
			SequenceNumber: seq,
			Position:       PacketPositionSingle,
			MessageNumber:  msg,
			Payload:        payload,
		},
	})
}

func (c *Caller) exchangeHandshake(hs *Handshake) (*Handshake, error) {
	if err := c.send(&Packet{Control: &ControlPacket{Type: ControlTypeHandshake, Handshake: hs}}); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(time.Duration(c.option.HandshakeTimeoutMs) * time.Millisecond)
	for {
		remain := time.Until(deadline)
		if remain <= 0 {
			return nil, fmt.Errorf("%w. handshake timeout", base.ErrSrtHandshakeAborted)
		}
		b, _, err := c.conn.ReadWithTimeout(int(remain.Milliseconds()) + 1)
		if err != nil {
			return nil, err
		}
		pkt, err := ParsePacket(b)
		if err != nil {
			Log.Warnf("[%s] parse packet failed while handshaking. err=%+v", c.uniqueKey, err)
			continue
		}
		if pkt.IsControlType(ControlTypeHandshake) {
			return pkt.Control.Handshake, nil
		}
	}
}

func (c *Caller) runReadLoop() {
	err := c.conn.RunLoop(func(b []byte, raddr *net.UDPAddr, err error) bool {
		if err != nil {
			return false
		}
		pkt, err := ParsePacket(b)
		if err != nil {
			Log.Warnf("[%s] parse packet failed. err=%+v", c.uniqueKey, err)
			return true
		}
		if pkt.Control == nil {
			return true
		}
		switch pkt.Control.Type {
		case ControlTypeAck:
			c.ackCount.Increment()
			_ = c.send(&Packet{Control: &ControlPacket{Type: ControlTypeAckAck, TypeSpecific: pkt.Control.AckNumber()}})
		case ControlTypeKeepAlive:
			_ = c.send(&Packet{Control: &ControlPacket{Type: ControlTypeKeepAlive}})
		case ControlTypeNak:
			c.nakCount.Increment()
		case ControlTypeShutdown:
			Log.Infof("[%s] < R shutdown.", c.uniqueKey)
			c.closed.Store(true)
			return false
		}
		return true
	})
	c.closed.Store(true)
	c.waitChan <- err
}

func (c *Caller) send(pkt *Packet) error {
	pkt.Timestamp = uint32(time.Since(c.startTime).Microseconds())
	pkt.DestSocketId = c.peerSocketId
	out, err := pkt.Pack()
	if err != nil {
		return err
	}
	return c.conn.Write(out)
}
