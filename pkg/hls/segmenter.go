// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/srt2hls
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package hls

import (
	"errors"
	"fmt"
	"sync"

	"github.com/q191201771/naza/pkg/filesystemlayer"
	"github.com/q191201771/naza/pkg/nazaatomic"
	"github.com/q191201771/naza/pkg/nazaerrors"
	"github.com/q191201771/srt2hls/pkg/base"
	"github.com/q191201771/srt2hls/pkg/mpegts"
)

type SegmenterConfig struct {
	OutPath            string `json:"out_path"`
	SegmentDurationSec int    `json:"segment_duration_sec"`
	PlaylistWindow     int    `json:"playlist_window"`
	SegmentUrlPrefix   string `json:"segment_url_prefix"`
	RecordRawTs        bool   `json:"record_raw_ts"`
}

// Segmenter 一路流的切片器
//
// Feed系列函数以及 Start Dispose 需在同一个协程中调用，其他只读的函数可以在任意协程中调用
type Segmenter struct {
	uniqueKey string

	streamName          string
	outPath             string
	playlistFilename    string
	playlistFilenameBak string

	config SegmenterConfig

	pmtPids       mpegts.PidSet
	clockPid      uint16
	clockPidKnown bool
	pending       uint64 // 由最新PTS计算出的切片序号，收到PAT时生效
	remain        []byte // 上次输入中不足188字节的部分

	current  nazaatomic.Uint64 // 当前正在写的切片序号
	running  nazaatomic.Bool
	disposed bool
	fp       filesystemlayer.IFile
	recorder *mpegts.FileWriter

	mutex        sync.Mutex
	segmentNames []string // 已经写完的切片

	debugLogDump base.LogDump
}

func NewSegmenter(streamName string, config *SegmenterConfig) *Segmenter {
	uk := base.GenUkHlsSegmenter()

	c := *config
	if c.SegmentDurationSec <= 0 {
		c.SegmentDurationSec = DefaultSegmentDurationSec
	}
	if c.PlaylistWindow <= 0 {
		c.PlaylistWindow = DefaultPlaylistWindow
	}

	op := PathStrategy.GetSegmenterOutPath(c.OutPath, streamName)
	playlistFilename := PathStrategy.GetPlaylistFileName(op)
	s := &Segmenter{
		uniqueKey:           uk,
		streamName:          streamName,
		outPath:             op,
		playlistFilename:    playlistFilename,
		playlistFilenameBak: fmt.Sprintf("%s.bak", playlistFilename),
		config:              c,
		pmtPids:             mpegts.NewPidSet(),
		debugLogDump:        base.NewLogDump(Log, 8),
	}
	Log.Infof("[%s] lifecycle new hls segmenter. streamName=%s, outPath=%s", uk, streamName, op)
	return s
}

// Start 创建输出目录，如果目录已经存在，老的目录会被删除
func (s *Segmenter) Start() error {
	Log.Infof("[%s] start hls segmenter.", s.uniqueKey)
	if err := fslCtx.RemoveAll(s.outPath); err != nil {
		return err
	}
	if err := fslCtx.MkdirAll(s.outPath, 0777); err != nil {
		return err
	}

	if s.config.RecordRawTs {
		s.recorder = &mpegts.FileWriter{Fsl: fslCtx}
		filename := PathStrategy.GetRecordFileName(s.outPath)
		if err := s.recorder.Create(filename); err != nil {
			Log.Errorf("[%s] create record file failed. filename=%s, err=%+v", s.uniqueKey, filename, err)
			s.recorder = nil
		}
	}

	s.running.Store(true)
	return nil
}

// Dispose 关闭当前切片，写入带 #EXT-X-ENDLIST 的playlist
func (s *Segmenter) Dispose() error {
	if s.disposed {
		return nil
	}
	s.disposed = true
	Log.Infof("[%s] lifecycle dispose hls segmenter.", s.uniqueKey)

	s.running.Store(false)
	err := s.closeSegment()
	err = nazaerrors.CombineErrors(err, s.writePlaylist())
	if s.recorder != nil {
		err = nazaerrors.CombineErrors(err, s.recorder.Dispose())
		s.recorder = nil
	}
	return err
}

// FeedPayload 输入任意长度的TS流，内部按188字节切分，不足188字节的部分缓存到下次
//
// 丢包等原因导致不对齐时，丢弃缓存或者向后查找sync byte，重新对齐
//
// 单个packet解析失败只打日志，返回的错误只来自文件写入
func (s *Segmenter) FeedPayload(b []byte) error {
	if !s.running.Load() {
		return base.ErrHlsSegmenterStopped
	}

	if len(s.remain) != 0 {
		need := mpegts.PacketSize - len(s.remain)
		if len(b) > need && b[0] == mpegts.SyncByte && b[need] != mpegts.SyncByte {
			// 本次输入从packet边界开始，缓存的部分拼不出完整的packet
			Log.Warnf("[%s] drop incomplete ts packet. size=%d", s.uniqueKey, len(s.remain))
			s.remain = s.remain[:0]
		} else {
			if len(b) < need {
				s.remain = append(s.remain, b...)
				return nil
			}
			s.remain = append(s.remain, b[:need]...)
			b = b[need:]
			err := s.feedChunk(s.remain)
			s.remain = s.remain[:0]
			if err != nil {
				return err
			}
		}
	}

	for len(b) >= mpegts.PacketSize {
		if b[0] != mpegts.SyncByte {
			n := resync(b)
			if s.debugLogDump.ShouldDump() {
				s.debugLogDump.Outf("[%s] resync, skip bytes. n=%d", s.uniqueKey, n)
			}
			b = b[n:]
			continue
		}
		if err := s.feedChunk(b[:mpegts.PacketSize]); err != nil {
			return err
		}
		b = b[mpegts.PacketSize:]
	}

	if len(b) != 0 && b[0] == mpegts.SyncByte {
		s.remain = append(s.remain, b...)
	}
	return nil
}

// FeedTsPacket 输入一个188字节的TS packet
//
// PSI CRC错误之类的解析失败不影响写入，sync byte错误的packet被丢弃
func (s *Segmenter) FeedTsPacket(b []byte) error {
	if !s.running.Load() {
		return base.ErrHlsSegmenterStopped
	}

	pkt, err := mpegts.ParseTransportPacket(b, s.pmtPids)
	if err != nil {
		if errors.Is(err, base.ErrSyncByte) || errors.Is(err, base.ErrShortBuffer) {
			return err
		}
		Log.Warnf("[%s] parse ts packet failed, write it as is. err=%+v", s.uniqueKey, err)
	} else {
		s.inspect(pkt)
	}

	return s.write(b[:mpegts.PacketSize])
}

func (s *Segmenter) UniqueKey() string {
	return s.uniqueKey
}

func (s *Segmenter) StreamName() string {
	return s.streamName
}

func (s *Segmenter) OutPath() string {
	return s.outPath
}

// CurrentSegmentIndex 正在写的切片序号
func (s *Segmenter) CurrentSegmentIndex() uint64 {
	return s.current.Load()
}

func (s *Segmenter) IsRunning() bool {
	return s.running.Load()
}

// SegmentNames 已经写完的切片文件名
func (s *Segmenter) SegmentNames() []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	out := make([]string, len(s.segmentNames))
	copy(out, s.segmentNames)
	return out
}

// Playlist 根据当前状态生成m3u8内容，流结束后带 #EXT-X-ENDLIST
func (s *Segmenter) Playlist() []byte {
	return RenderPlaylist(s.config.SegmentDurationSec, s.SegmentNames(), s.config.PlaylistWindow,
		s.config.SegmentUrlPrefix, !s.running.Load())
}

// ---------------------------------------------------------------------------------------------------------------------

func (s *Segmenter) feedChunk(b []byte) error {
	err := s.FeedTsPacket(b)
	if err == nil {
		return nil
	}
	if errors.Is(err, base.ErrSyncByte) {
		if s.debugLogDump.ShouldDump() {
			s.debugLogDump.Outf("[%s] drop ts packet. err=%+v", s.uniqueKey, err)
		}
		return nil
	}
	return err
}

// resync 返回下一个packet的起始位置
//
// sync byte之后188字节处也是sync byte，或者之后的数据不足188字节时，认为找到了。找不到时返回len(b)
func resync(b []byte) int {
	for i := 1; i < len(b); i++ {
		if b[i] != mpegts.SyncByte {
			continue
		}
		next := i + mpegts.PacketSize
		if next >= len(b) || b[next] == mpegts.SyncByte {
			return i
		}
	}
	return len(b)
}

func (s *Segmenter) inspect(pkt *mpegts.TransportPacket) {
	if pkt.Payload == nil {
		return
	}

	switch pkt.Payload.Kind {
	case mpegts.PayloadKindPsi:
		psi := pkt.Payload.Psi
		if psi.Pat != nil {
			s.pmtPids = mpegts.NewPidSet(psi.Pat.PmtPids()...)
			s.rollover()
		}
		if psi.Pmt != nil {
			pid := psi.Pmt.VideoPid()
			if !s.clockPidKnown || pid != s.clockPid {
				Log.Infof("[%s] clock pid learned from pmt. pid=%d", s.uniqueKey, pid)
			}
			s.clockPid = pid
			s.clockPidKnown = true
		}
	case mpegts.PayloadKindPes:
		if !s.clockPidKnown || pkt.Header.Pid != s.clockPid {
			return
		}
		h := pkt.Payload.Pes.Header
		if h == nil || !h.HasPts() {
			return
		}
		s.pending = h.Pts / 90000 / uint64(s.config.SegmentDurationSec)
		if s.debugLogDump.ShouldDump() {
			s.debugLogDump.Outf("[%s] pes. pid=%d, pts=%d, pending=%d", s.uniqueKey, pkt.Header.Pid, h.Pts, s.pending)
		}
	}
}

// rollover 收到PAT时调用，切换到 pending 对应的切片
//
// PTS回退时不切换，继续写当前切片，保证切片序号单调递增
func (s *Segmenter) rollover() {
	cur := s.current.Load()
	if s.pending <= cur {
		if s.pending < cur && s.debugLogDump.ShouldDump() {
			s.debugLogDump.Outf("[%s] pts rewind, keep current segment. current=%d, pending=%d", s.uniqueKey, cur, s.pending)
		}
		return
	}

	if err := s.closeSegment(); err != nil {
		Log.Errorf("[%s] close segment failed. err=%+v", s.uniqueKey, err)
	}
	s.current.Store(s.pending)
	if err := s.writePlaylist(); err != nil {
		Log.Errorf("[%s] write playlist failed. err=%+v", s.uniqueKey, err)
	}
}

func (s *Segmenter) write(b []byte) error {
	if s.fp == nil {
		if err := s.openSegment(); err != nil {
			return err
		}
	}
	if _, err := s.fp.Write(b); err != nil {
		return err
	}
	if s.recorder != nil {
		return s.recorder.Write(b)
	}
	return nil
}

func (s *Segmenter) openSegment() (err error) {
	filename := PathStrategy.GetSegmentFileNameWithPath(s.outPath, PathStrategy.GetSegmentFileName(s.current.Load()))
	s.fp, err = fslCtx.Create(filename)
	if err != nil {
		s.fp = nil
		return err
	}
	Log.Debugf("[%s] open segment. filename=%s", s.uniqueKey, filename)
	return nil
}

func (s *Segmenter) closeSegment() error {
	if s.fp == nil {
		return nil
	}
	err := s.fp.Close()
	s.fp = nil

	s.mutex.Lock()
	s.segmentNames = append(s.segmentNames, PathStrategy.GetSegmentFileName(s.current.Load()))
	s.mutex.Unlock()
	return err
}

func (s *Segmenter) writePlaylist() error {
	return writeM3u8File(s.Playlist(), s.playlistFilename, s.playlistFilenameBak)
}
