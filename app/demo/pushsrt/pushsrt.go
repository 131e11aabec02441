// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/srt2hls
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/asticode/go-astits"
	"github.com/q191201771/naza/pkg/bininfo"
	"github.com/q191201771/naza/pkg/nazalog"
	"github.com/q191201771/srt2hls/pkg/base"
	"github.com/q191201771/srt2hls/pkg/mpegts"
	"github.com/q191201771/srt2hls/pkg/srt"
)

// 读取TS文件，按PCR控制发送速度，通过SRT推送给srt2hls
//
// 推流端有三种实现可选:
//   - builtin 本项目 pkg/srt 中的Caller
//   - gosrt   纯Go实现的 github.com/datarhei/gosrt
//   - libsrt  基于cgo和libsrt的 github.com/haivision/srtgo，需要使用 `-tags libsrt` 编译
//
// Example:
//   ./bin/pushsrt -i test.ts -o 127.0.0.1:9000 -s '#!::r=live/test110,m=publish' -engine gosrt -r

type IPusher interface {
	Write(b []byte) error
	Dispose() error
}

const (
	EngineBuiltin = "builtin"
	EngineGosrt   = "gosrt"
	EngineLibsrt  = "libsrt"
)

// PCR跳变超过该值时重新对齐时钟
const maxPcrJumpMs = 10000

func main() {
	_ = nazalog.Init(func(option *nazalog.Option) {
		option.AssertBehavior = nazalog.AssertFatal
	})
	defer nazalog.Sync()

	filename, outUrl, streamId, engine, isRecursive := parseFlag()

	urlCtx, err := base.ParseSrtUrl(outUrl)
	nazalog.Assert(nil, err)
	addr := urlCtx.HostWithPort
	if streamId == "" {
		streamId = urlCtx.StreamId
	}

	content, err := os.ReadFile(filename)
	nazalog.Assert(nil, err)
	content = content[:len(content)/mpegts.PacketSize*mpegts.PacketSize]
	nazalog.Infof("read ts file succ. filename=%s, size=%d", filename, len(content))

	err = probe(content)
	nazalog.Assert(nil, err)

	var pusher IPusher
	switch engine {
	case EngineBuiltin:
		pusher, err = newBuiltinPusher(addr, streamId)
	case EngineGosrt:
		pusher, err = newGosrtPusher(addr, streamId)
	case EngineLibsrt:
		pusher, err = newLibsrtPusher(addr, streamId)
	default:
		err = fmt.Errorf("unknown engine. engine=%s", engine)
	}
	nazalog.Assert(nil, err)
	nazalog.Infof("srt connected. engine=%s, addr=%s, stream id=%s", engine, addr, streamId)

	for {
		if err = push(pusher, content); err != nil {
			nazalog.Errorf("push failed. err=%+v", err)
			break
		}
		if !isRecursive {
			break
		}
		nazalog.Infof("push file done, restart.")
	}

	err = pusher.Dispose()
	nazalog.Infof("< pusher.Dispose. err=%+v", err)
}

// push 每次发送7个TS packet，遇到PCR时按PCR与墙上时钟对齐
func push(pusher IPusher, content []byte) error {
	var (
		pmtPids   = mpegts.NewPidSet()
		pcrPid    uint16
		hasPcrPid bool
		basePcr   uint64
		lastPcr   uint64
		baseTime  time.Time
		started   bool
		pending   []byte
		totalSize int
	)

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		err := pusher.Write(pending)
		totalSize += len(pending)
		pending = nil
		return err
	}

	for i := 0; i+mpegts.PacketSize <= len(content); i += mpegts.PacketSize {
		b := content[i : i+mpegts.PacketSize]
		pkt, err := mpegts.ParseTransportPacket(b, pmtPids)
		if err == nil {
			if pkt.Payload != nil && pkt.Payload.Kind == mpegts.PayloadKindPsi {
				if pat := pkt.Payload.Psi.Pat; pat != nil {
					pmtPids = mpegts.NewPidSet(pat.PmtPids()...)
				}
				if pmt := pkt.Payload.Psi.Pmt; pmt != nil && !hasPcrPid {
					pcrPid = pmt.PcrPid
					hasPcrPid = true
				}
			}

			if hasPcrPid && pkt.Header.Pid == pcrPid && pkt.AdaptationField != nil && pkt.AdaptationField.HasPcr {
				pcr := pkt.AdaptationField.Pcr.Value() / 27000
				if !started || pcr < lastPcr || pcr-lastPcr > maxPcrJumpMs {
					if started {
						nazalog.Warnf("pcr jump, reset clock. last=%d, curr=%d", lastPcr, pcr)
					}
					basePcr = pcr
					baseTime = time.Now()
					started = true
				}
				lastPcr = pcr

				if err := flush(); err != nil {
					return err
				}
				wait := time.Duration(pcr-basePcr)*time.Millisecond - time.Since(baseTime)
				if wait > 0 {
					time.Sleep(wait)
				}
			}
		}

		pending = append(pending, b...)
		if len(pending) >= srt.DefaultPayloadSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}
	nazalog.Infof("push done. size=%d", totalSize)
	return nil
}

// probe 使用go-astits解析节目信息并打印
func probe(content []byte) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dmx := astits.NewDemuxer(ctx, bytes.NewReader(content))
	for {
		d, err := dmx.NextData()
		if err != nil {
			if errors.Is(err, astits.ErrNoMorePackets) {
				return fmt.Errorf("%w. no pmt found", base.ErrMpegts)
			}
			return err
		}
		if d.PMT == nil {
			continue
		}

		nazalog.Infof("program. number=%d, pcr pid=%d", d.PMT.ProgramNumber, d.PMT.PCRPID)
		for _, es := range d.PMT.ElementaryStreams {
			nazalog.Infof("  stream. pid=%d, stream type=%d", es.ElementaryPID, uint8(es.StreamType))
		}
		return nil
	}
}

func parseFlag() (filename, outUrl, streamId, engine string, isRecursive bool) {
	binInfoFlag := flag.Bool("v", false, "show bin info")
	i := flag.String("i", "", "specify ts file")
	o := flag.String("o", "", "specify srt server, host:port or srt://host:port?streamid=xxx")
	s := flag.String("s", "", "specify srt stream id, overwrite the streamid in srt url")
	e := flag.String("engine", EngineBuiltin, "specify srt engine, builtin|gosrt|libsrt")
	r := flag.Bool("r", false, "recursive push if reach end of file")
	flag.Parse()
	if *binInfoFlag {
		_, _ = fmt.Fprint(os.Stderr, bininfo.StringifyMultiLine())
		_, _ = fmt.Fprintln(os.Stderr, base.FullInfo)
		os.Exit(0)
	}
	if *i == "" || *o == "" {
		flag.Usage()
		_, _ = fmt.Fprintf(os.Stderr, `Example:
  %s -i test.ts -o 127.0.0.1:9000 -s '#!::r=live/test110,m=publish' -engine gosrt -r
  %s -i test.ts -o 'srt://127.0.0.1:9000?streamid=#!::r=live/test110,m=publish'
`, os.Args[0], os.Args[0])
		base.OsExitAndWaitPressIfWindows(1)
	}
	return *i, *o, *s, *e, *r
}
