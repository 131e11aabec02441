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
	"sort"

	"github.com/asticode/go-astits"
	"github.com/q191201771/naza/pkg/bininfo"
	"github.com/q191201771/naza/pkg/nazalog"
	"github.com/q191201771/srt2hls/pkg/base"
	"github.com/q191201771/srt2hls/pkg/mpegts"
)

// 分析TS文件:
// - 打印PAT PMT
// - 按PID统计packet个数、PES个数、PTS范围、CC不连续次数
// - 用go-astits解析同一个文件，逐个对比每个PID上PES的PTS

type pidStat struct {
	pid        uint16
	kind       string
	packets    int
	pesNum     int
	firstPts   uint64
	lastPts    uint64
	ccErrors   int
	lastCc     uint8
	hasLastCc  bool
	pcrNum     int
	ptsList    []uint64
	parseError int
}

func main() {
	_ = nazalog.Init(func(option *nazalog.Option) {
		option.AssertBehavior = nazalog.AssertFatal
	})
	defer nazalog.Sync()

	filename := parseFlag()
	content, err := os.ReadFile(filename)
	nazalog.Assert(nil, err)

	stats := analyse(content)

	astitsPts, err := collectPtsByAstits(content)
	nazalog.Assert(nil, err)

	pids := make([]int, 0, len(stats))
	for pid := range stats {
		pids = append(pids, int(pid))
	}
	sort.Ints(pids)

	for _, pid := range pids {
		s := stats[uint16(pid)]
		nazalog.Infof("pid=%d(0x%04x), kind=%s, packets=%d, pes=%d, pts=[%d, %d], pcr=%d, cc errors=%d, parse errors=%d",
			s.pid, s.pid, s.kind, s.packets, s.pesNum, s.firstPts, s.lastPts, s.pcrNum, s.ccErrors, s.parseError)

		if s.pesNum == 0 {
			continue
		}
		other := astitsPts[s.pid]
		mismatch := 0
		n := len(s.ptsList)
		if len(other) < n {
			n = len(other)
		}
		for i := 0; i < n; i++ {
			if s.ptsList[i] != other[i] {
				mismatch++
			}
		}
		if mismatch != 0 || len(s.ptsList) != len(other) {
			nazalog.Warnf("pid=%d pts cross check failed. count=%d, astits count=%d, mismatch=%d",
				s.pid, len(s.ptsList), len(other), mismatch)
		} else {
			nazalog.Infof("pid=%d pts cross check succ. count=%d", s.pid, len(s.ptsList))
		}
	}
}

func analyse(content []byte) map[uint16]*pidStat {
	stats := make(map[uint16]*pidStat)
	pmtPids := mpegts.NewPidSet()

	for i := 0; i+mpegts.PacketSize <= len(content); i += mpegts.PacketSize {
		b := content[i : i+mpegts.PacketSize]
		h := mpegts.ParseTsPacketHeader(b)

		s, ok := stats[h.Pid]
		if !ok {
			s = &pidStat{pid: h.Pid, kind: "DATA"}
			stats[h.Pid] = s
		}
		s.packets++

		if h.HasPayload() && h.Pid != mpegts.PidNull {
			expected := (s.lastCc + 1) & 0xF
			if s.hasLastCc && h.Cc != expected && h.Cc != s.lastCc {
				s.ccErrors++
			}
			s.lastCc = h.Cc
			s.hasLastCc = true
		}

		pkt, err := mpegts.ParseTransportPacket(b, pmtPids)
		if err != nil {
			s.parseError++
			continue
		}

		if pkt.AdaptationField != nil && pkt.AdaptationField.HasPcr {
			s.pcrNum++
		}
		if pkt.Payload == nil {
			continue
		}
		s.kind = pkt.Payload.Kind.String()

		switch pkt.Payload.Kind {
		case mpegts.PayloadKindPsi:
			if pat := pkt.Payload.Psi.Pat; pat != nil {
				pmtPids = mpegts.NewPidSet(pat.PmtPids()...)
				if s.packets == 1 {
					for _, ppe := range pat.ProgramElements {
						nazalog.Infof("PAT. program number=%d, pmt pid=%d", ppe.ProgramNumber, ppe.Pid)
					}
				}
			}
			if pmt := pkt.Payload.Psi.Pmt; pmt != nil && s.packets == 1 {
				nazalog.Infof("PMT. pid=%d, pcr pid=%d, video pid=%d", h.Pid, pmt.PcrPid, pmt.VideoPid())
				for _, ppe := range pmt.ProgramElements {
					nazalog.Infof("  stream. pid=%d, stream type=0x%02x, descriptors=%d", ppe.Pid, ppe.StreamType, len(ppe.Descriptors))
				}
			}
		case mpegts.PayloadKindPes:
			pes := pkt.Payload.Pes
			if pes.Header == nil || !pes.Header.HasPts() {
				continue
			}
			if s.pesNum == 0 {
				s.firstPts = pes.Header.Pts
			}
			s.pesNum++
			s.lastPts = pes.Header.Pts
			s.ptsList = append(s.ptsList, pes.Header.Pts)
		}
	}
	return stats
}

// collectPtsByAstits 用go-astits解析，得到每个PID上按顺序的PES PTS
func collectPtsByAstits(content []byte) (map[uint16][]uint64, error) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(map[uint16][]uint64)
	dmx := astits.NewDemuxer(ctx, bytes.NewReader(content))
	for {
		d, err := dmx.NextData()
		if err != nil {
			if errors.Is(err, astits.ErrNoMorePackets) {
				return out, nil
			}
			return nil, err
		}
		if d.PES == nil || d.PES.Header == nil || d.PES.Header.OptionalHeader == nil || d.PES.Header.OptionalHeader.PTS == nil {
			continue
		}
		pid := d.FirstPacket.Header.PID
		out[pid] = append(out[pid], uint64(d.PES.Header.OptionalHeader.PTS.Base))
	}
}

func parseFlag() string {
	binInfoFlag := flag.Bool("v", false, "show bin info")
	i := flag.String("i", "", "specify ts file")
	flag.Parse()
	if *binInfoFlag {
		_, _ = fmt.Fprint(os.Stderr, bininfo.StringifyMultiLine())
		_, _ = fmt.Fprintln(os.Stderr, base.FullInfo)
		os.Exit(0)
	}
	if *i == "" {
		flag.Usage()
		_, _ = fmt.Fprintf(os.Stderr, `Example:
  %s -i test.ts
`, os.Args[0])
		base.OsExitAndWaitPressIfWindows(1)
	}
	return *i
}
