// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/srt2hls
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package srt

import (
	"encoding/hex"
	"fmt"
	"net"
	"time"

	"github.com/datarhei/gosrt/circular"
	"github.com/q191201771/naza/pkg/bitrate"
	"github.com/q191201771/naza/pkg/nazaatomic"
	"github.com/q191201771/naza/pkg/nazabytes"
	"github.com/q191201771/naza/pkg/nazaerrors"
	"github.com/q191201771/srt2hls/pkg/base"
)

type ConnectionState uint32

const (
	ConnectionStateHandshaking ConnectionState = iota + 1
	ConnectionStateEstablished
	ConnectionStateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case ConnectionStateHandshaking:
		return "HANDSHAKING"
	case ConnectionStateEstablished:
		return "ESTABLISHED"
	case ConnectionStateClosed:
		return "CLOSED"
	}
	return "unknown"
}

// IPacketSender 连接通过它回包，nazanet.UdpConnection 满足该接口
type IPacketSender interface {
	Write2Addr(b []byte, ruaddr *net.UDPAddr) error
}

// Connection 接收端的一个SRT连接，对应一个对端UDP地址
//
// 除构造以外的写操作都在server的接收协程中进行。统计相关的字段使用原子变量，可以在其他协程中读取
type Connection struct {
	uniqueKey string
	addr      *net.UDPAddr
	sender    IPacketSender
	now       func() time.Time

	socketId uint32
	cookie   uint32

	state           nazaatomic.Uint32
	peerSocketId    nazaatomic.Uint32
	streamId        string
	establishedTime time.Time
	conclusionResp  []byte

	ackNumber       nazaatomic.Uint32
	lastAckSentUs   nazaatomic.Uint64 // 最近一次发送full ACK的时间，unix微秒
	lastRecvSeq     nazaatomic.Uint32
	rtt             nazaatomic.Uint64 // 高32位rtt，低32位rtt方差，微秒
	lossCount       nazaatomic.Uint64
	recvPacketCount nazaatomic.Uint64
	recvBytes       nazaatomic.Uint64
	lastActiveUs    nazaatomic.Uint64

	brBytes   bitrate.Bitrate
	brPackets bitrate.Bitrate

	debugLogDump base.LogDump
}

func newConnection(addr *net.UDPAddr, sender IPacketSender, socketId, cookie uint32, now func() time.Time) *Connection {
	uk := base.GenUkSrtConnection()
	c := &Connection{
		uniqueKey: uk,
		addr:      addr,
		sender:    sender,
		now:       now,
		socketId:  socketId,
		cookie:    cookie,
		brBytes: bitrate.New(func(option *bitrate.Option) {
			option.WindowMs = 1000
		}),
		brPackets: bitrate.New(func(option *bitrate.Option) {
			option.WindowMs = 1000
		}),
		debugLogDump: base.NewLogDump(Log, 8),
	}
	c.state.Store(uint32(ConnectionStateHandshaking))
	c.rtt.Store(packRtt(RttInitUs, RttVarInitUs))
	c.lastActiveUs.Store(uint64(now().UnixNano() / 1e3))
	Log.Infof("[%s] lifecycle new srt connection. remote=%s, socket=%d", uk, addr.String(), socketId)
	return c
}

func (c *Connection) UniqueKey() string {
	return c.uniqueKey
}

func (c *Connection) RemoteAddr() string {
	return c.addr.String()
}

func (c *Connection) State() ConnectionState {
	return ConnectionState(c.state.Load())
}

// StreamId 握手中SID扩展携带的stream id，没有时为空
func (c *Connection) StreamId() string {
	return c.streamId
}

func (c *Connection) SocketId() uint32 {
	return c.socketId
}

func (c *Connection) PeerSocketId() uint32 {
	return c.peerSocketId.Load()
}

func (c *Connection) EstablishedTime() time.Time {
	return c.establishedTime
}

// Rtt 平滑后的rtt以及rtt方差，单位微秒
func (c *Connection) Rtt() (rtt uint32, rttVar uint32) {
	return unpackRtt(c.rtt.Load())
}

// LossCount 检测到的丢包个数
func (c *Connection) LossCount() uint64 {
	return c.lossCount.Load()
}

func (c *Connection) RecvPacketCount() uint64 {
	return c.recvPacketCount.Load()
}

func (c *Connection) RecvBytes() uint64 {
	return c.recvBytes.Load()
}

// RecvBitrateKbits 最近1秒的接收码率
func (c *Connection) RecvBitrateKbits() float32 {
	return c.brBytes.Rate()
}

// IsIdle 超过 timeout 没有收到任何包
func (c *Connection) IsIdle(now time.Time, timeout time.Duration) bool {
	return now.UnixNano()/1e3-int64(c.lastActiveUs.Load()) > timeout.Microseconds()
}

// handleHandshake 处理握手阶段收到的包
//
// @return established: 本次调用后连接是否进入了 ConnectionStateEstablished
func (c *Connection) handleHandshake(pkt *Packet) (established bool, err error) {
	c.touch()

	if !pkt.IsControlType(ControlTypeHandshake) {
		return false, fmt.Errorf("%w. unexpected packet while handshaking. %s", base.ErrSrtHandshakeAborted, pkt.DebugString())
	}
	hs := pkt.Control.Handshake
	Log.Debugf("[%s] < R handshake. %s", c.uniqueKey, hs.DebugString())

	switch hs.Type {
	case HandshakeTypeInduction:
		return false, c.replyInduction(pkt, hs)
	case HandshakeTypeConclusion:
		if err = c.replyConclusion(pkt, hs); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, fmt.Errorf("%w. handshake type=%s", base.ErrSrtHandshakeAborted, hs.Type)
}

// Handle 处理已建立连接上收到的包
//
// @return payload: 数据包的负载，引用输入内存块。非数据包时为nil
func (c *Connection) Handle(pkt *Packet) (payload []byte, err error) {
	c.touch()

	if c.State() != ConnectionStateEstablished {
		return nil, fmt.Errorf("%w. connection not established. state=%s", base.ErrSrt, c.State())
	}

	if pkt.Data != nil {
		payload = pkt.Data.Payload
		err = c.handleData(pkt.Data)
	} else {
		err = c.handleControl(pkt)
	}

	if c.State() == ConnectionStateEstablished {
		err = nazaerrors.CombineErrors(err, c.checkAck())
	}
	return payload, err
}

// Close 主动关闭，会给对端发送SHUTDOWN
func (c *Connection) Close() error {
	if c.state.Load() == uint32(ConnectionStateClosed) {
		return nil
	}
	wasEstablished := c.State() == ConnectionStateEstablished
	c.state.Store(uint32(ConnectionStateClosed))
	Log.Infof("[%s] lifecycle dispose srt connection. stream=%s, recv=%d, loss=%d",
		c.uniqueKey, c.streamId, c.recvPacketCount.Load(), c.lossCount.Load())
	if !wasEstablished {
		return nil
	}
	return c.send(&Packet{Control: &ControlPacket{Type: ControlTypeShutdown}})
}

// ---------------------------------------------------------------------------------------------------------------------

func (c *Connection) replyInduction(pkt *Packet, hs *Handshake) error {
	c.peerSocketId.Store(hs.SrtSocketId)

	resp := *hs
	resp.Version = HandshakeVersion5
	resp.ExtensionField = HandshakeMagicCode
	resp.SrtSocketId = c.socketId
	resp.SynCookie = c.cookie
	resp.Extensions = nil

	return c.sendRaw(&Packet{
		Timestamp:    pkt.Timestamp + 1,
		DestSocketId: hs.SrtSocketId,
		Control: &ControlPacket{
			Type:      ControlTypeHandshake,
			Handshake: &resp,
		},
	})
}

func (c *Connection) replyConclusion(pkt *Packet, hs *Handshake) error {
	if hs.SynCookie != c.cookie {
		return fmt.Errorf("%w. expected=%d, actual=%d", base.ErrSrtInvalidCookie, c.cookie, hs.SynCookie)
	}
	if hs.Version != HandshakeVersion5 {
		return fmt.Errorf("%w. version=%d", base.ErrSrtHandshakeAborted, hs.Version)
	}
	if hs.Encryption != EncryptionNone || hs.KeyMaterial() != nil {
		Log.Warnf("[%s] peer asks for encryption which is not supported. enc=%d", c.uniqueKey, hs.Encryption)
	}

	// 回显对端的握手，HSREQ应答为HSRSP，其它扩展不回
	resp := *hs
	resp.SrtSocketId = c.socketId
	resp.ExtensionField = 0
	resp.Extensions = nil
	if req := hs.SrtHs(); req != nil {
		resp.ExtensionField = ExtensionFlagHsReq
		resp.Extensions = append(resp.Extensions, NewSrtHsExtension(ExtensionTypeHsRsp, *req))
	}

	out, err := (&Packet{
		Timestamp:    pkt.Timestamp + 1,
		DestSocketId: hs.SrtSocketId,
		Control: &ControlPacket{
			Type:      ControlTypeHandshake,
			Handshake: &resp,
		},
	}).Pack()
	if err != nil {
		return err
	}

	c.peerSocketId.Store(hs.SrtSocketId)
	c.streamId, _ = hs.StreamId()
	c.establishedTime = c.now()
	c.lastAckSentUs.Store(uint64(c.establishedTime.UnixNano() / 1e3))
	c.lastRecvSeq.Store(circular.New(hs.InitialPacketSequenceNumber, MaxSequenceNumber).Dec().Val())
	c.conclusionResp = out
	c.state.Store(uint32(ConnectionStateEstablished))

	Log.Infof("[%s] srt connection established. remote=%s, stream=%s, peer socket=%d, isn=%d",
		c.uniqueKey, c.addr.String(), c.streamId, hs.SrtSocketId, hs.InitialPacketSequenceNumber)

	return c.sender.Write2Addr(out, c.addr)
}

func (c *Connection) handleData(d *DataPacket) error {
	c.recvPacketCount.Increment()
	c.recvBytes.Add(uint64(len(d.Payload)))
	c.brBytes.Add(len(d.Payload))
	c.brPackets.Add(1)

	if c.debugLogDump.ShouldDump() {
		c.debugLogDump.Outf("[%s] < R data. seq=%d, msg=%d, len=%d, hex=%s",
			c.uniqueKey, d.SequenceNumber, d.MessageNumber, len(d.Payload), hex.Dump(nazabytes.Prefix(d.Payload, 32)))
	}

	last := circular.New(c.lastRecvSeq.Load(), MaxSequenceNumber)
	seq := circular.New(d.SequenceNumber, MaxSequenceNumber)
	expected := last.Inc()

	// 重传或者乱序的旧包
	if !seq.Gt(last) {
		return nil
	}
	c.lastRecvSeq.Store(seq.Val())

	if seq.Equals(expected) || d.MessageNumber == 1 {
		return nil
	}

	lost := seq.Distance(expected)
	c.lossCount.Add(uint64(lost))
	Log.Warnf("[%s] packet loss detected. expected=%d, actual=%d, lost=%d", c.uniqueKey, expected.Val(), seq.Val(), lost)

	return c.send(&Packet{
		Control: &ControlPacket{
			Type: ControlTypeNak,
			Nak: &Nak{
				Entries: []NakEntry{{From: seq.Dec().Val()}},
			},
		},
	})
}

func (c *Connection) handleControl(pkt *Packet) error {
	cp := pkt.Control
	switch cp.Type {
	case ControlTypeKeepAlive:
		return c.send(&Packet{Control: &ControlPacket{Type: ControlTypeKeepAlive}})
	case ControlTypeAckAck:
		c.updateRtt()
	case ControlTypeShutdown:
		c.state.Store(uint32(ConnectionStateClosed))
		Log.Infof("[%s] < R shutdown. stream=%s", c.uniqueKey, c.streamId)
	case ControlTypeHandshake:
		// 对端没收到conclusion的回包时会重发
		if cp.Handshake.Type == HandshakeTypeConclusion && c.conclusionResp != nil {
			return c.sender.Write2Addr(c.conclusionResp, c.addr)
		}
	case ControlTypeDropReq:
		Log.Debugf("[%s] < R dropreq. msg=%d, first=%d, last=%d",
			c.uniqueKey, cp.MessageNumber(), cp.DropReq.FirstSeq, cp.DropReq.LastSeq)
	case ControlTypePeerError:
		Log.Warnf("[%s] < R peer error. code=%d", c.uniqueKey, cp.ErrorCode())
	default:
		Log.Debugf("[%s] < R control ignored. type=%s", c.uniqueKey, cp.Type)
	}
	return nil
}

// updateRtt 以距离上次发送full ACK的时长作为rtt样本
func (c *Connection) updateRtt() {
	sample := uint32(c.nowUs() - c.lastAckSentUs.Load())
	for {
		old := c.rtt.Load()
		rtt, rttVar := unpackRtt(old)
		nrtt, nvar := smoothRtt(rtt, rttVar, sample)
		if c.rtt.CompareAndSwap(old, packRtt(nrtt, nvar)) {
			return
		}
	}
}

func (c *Connection) checkAck() error {
	nowUs := c.nowUs()
	if nowUs-c.lastAckSentUs.Load() <= uint64(FullAckIntervalUs) {
		return nil
	}
	c.lastAckSentUs.Store(nowUs)

	rtt, rttVar := c.Rtt()
	// kbit/s转换为包每秒以及字节每秒
	pps := uint32(c.brPackets.Rate() * 1000 / 8)
	bps := uint32(c.brBytes.Rate() * 1000 / 8)
	return c.send(&Packet{
		Control: &ControlPacket{
			Type:         ControlTypeAck,
			TypeSpecific: c.ackNumber.Increment(),
			Ack: &Ack{
				Kind:                  AckKindFull,
				LastAckPacketSeq:      circular.New(c.lastRecvSeq.Load(), MaxSequenceNumber).Inc().Val(),
				Rtt:                   rtt,
				RttVariance:           rttVar,
				AvailableBufferSize:   DefaultAvailBufferSize,
				PacketsReceivingRate:  pps,
				EstimatedLinkCapacity: pps,
				ReceivingRate:         bps,
			},
		},
	})
}

// send 填充时间戳和对端socket id后发送
func (c *Connection) send(pkt *Packet) error {
	pkt.Timestamp = uint32(c.now().Sub(c.establishedTime).Microseconds())
	pkt.DestSocketId = c.peerSocketId.Load()
	return c.sendRaw(pkt)
}

func (c *Connection) sendRaw(pkt *Packet) error {
	out, err := pkt.Pack()
	if err != nil {
		return err
	}
	return c.sender.Write2Addr(out, c.addr)
}

func (c *Connection) touch() {
	c.lastActiveUs.Store(c.nowUs())
}

func (c *Connection) nowUs() uint64 {
	return uint64(c.now().UnixNano() / 1e3)
}

// smoothRtt
//
// rtt = rtt*7/8 + sample/8
// var = var*3/4 + |rtt - sample|/4 ，其中rtt是更新前的值
func smoothRtt(rtt, rttVar, sample uint32) (uint32, uint32) {
	var diff uint32
	if rtt > sample {
		diff = rtt - sample
	} else {
		diff = sample - rtt
	}
	return uint32(uint64(rtt)*7/8 + uint64(sample)/8), uint32(uint64(rttVar)*3/4 + uint64(diff)/4)
}

func packRtt(rtt, rttVar uint32) uint64 {
	return uint64(rtt)<<32 | uint64(rttVar)
}

func unpackRtt(v uint64) (uint32, uint32) {
	return uint32(v >> 32), uint32(v)
}
