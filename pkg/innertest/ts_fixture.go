// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/srt2hls
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package innertest

import (
	"github.com/q191201771/naza/pkg/bele"
	"github.com/q191201771/naza/pkg/nazabits"
	"github.com/q191201771/srt2hls/pkg/mpegts"
)

// 测试用的TS packet构造，只覆盖测试用到的字段，不是通用的TS muxer

type PatProgram struct {
	ProgramNumber uint16
	Pid           uint16
}

type PmtStream struct {
	StreamType  uint8
	Pid         uint16
	Descriptors []byte // 已经打包好的descriptor loop
}

// PackPsiSection 从table_id开始打包一个section，包含CRC_32
func PackPsiSection(tableId uint8, tableIdExtension uint16, body []byte) []byte {
	sl := 5 + len(body) + 4
	section := make([]byte, 3+sl)
	bw := nazabits.NewBitWriter(section)
	bw.WriteBits8(8, tableId)
	bw.WriteBit(1) // section_syntax_indicator
	bw.WriteBit(0)
	bw.WriteBits8(2, 0xff)
	bw.WriteBits16(12, uint16(sl))
	bw.WriteBits16(16, tableIdExtension)
	bw.WriteBits8(2, 0xff)
	bw.WriteBits8(5, 0) // version_number
	bw.WriteBit(1)      // current_next_indicator
	bw.WriteBits8(8, 0)
	bw.WriteBits8(8, 0)
	copy(section[8:], body)

	crc := mpegts.CalcCrc32(section[:len(section)-4])
	bele.BePutUint32(section[len(section)-4:], crc)
	return section
}

func PackPatSection(programs []PatProgram) []byte {
	body := make([]byte, 4*len(programs))
	for i, p := range programs {
		bele.BePutUint16(body[i*4:], p.ProgramNumber)
		bele.BePutUint16(body[i*4+2:], 0xE000|p.Pid)
	}
	return PackPsiSection(mpegts.TsPsiIdPas, 1, body)
}

func PackPmtSection(programNumber uint16, pcrPid uint16, programInfo []byte, streams []PmtStream) []byte {
	body := make([]byte, 4, 1024)
	bele.BePutUint16(body, 0xE000|pcrPid)
	bele.BePutUint16(body[2:], 0xF000|uint16(len(programInfo)))
	body = append(body, programInfo...)
	for _, s := range streams {
		e := make([]byte, 5)
		e[0] = s.StreamType
		bele.BePutUint16(e[1:], 0xE000|s.Pid)
		bele.BePutUint16(e[3:], 0xF000|uint16(len(s.Descriptors)))
		body = append(body, e...)
		body = append(body, s.Descriptors...)
	}
	return PackPsiSection(mpegts.TsPsiIdPms, programNumber, body)
}

// PackPsiPacket 打包一个承载完整section的packet，payload剩余部分用0xFF填充
func PackPsiPacket(pid uint16, cc uint8, section []byte) []byte {
	payload := make([]byte, 184)
	payload[0] = 0 // pointer_field
	copy(payload[1:], section)
	for i := 1 + len(section); i < len(payload); i++ {
		payload[i] = 0xFF
	}
	return PackTsPacket(pid, true, cc, nil, payload)
}

func PackPatPacket(cc uint8, programs []PatProgram) []byte {
	return PackPsiPacket(mpegts.PidPat, cc, PackPatSection(programs))
}

func PackPmtPacket(pid uint16, cc uint8, pcrPid uint16, streams []PmtStream) []byte {
	return PackPsiPacket(pid, cc, PackPmtSection(1, pcrPid, nil, streams))
}

// PackPesHeader 打包PES header，pts等于dts时只写PTS
func PackPesHeader(streamId uint8, pts, dts uint64, esLen int) []byte {
	headerSize := uint8(5)
	flags := uint8(0x80)
	if dts != pts {
		headerSize += 5
		flags |= 0x40
	}

	out := make([]byte, 9+int(headerSize))
	out[2] = 0x01
	out[3] = streamId
	pesSize := esLen + int(headerSize) + 3
	if pesSize > 0xFFFF {
		pesSize = 0
	}
	bele.BePutUint16(out[4:], uint16(pesSize))
	out[6] = 0x80
	out[7] = flags
	out[8] = headerSize
	PackPts(out[9:], flags>>6, pts)
	if dts != pts {
		PackPts(out[14:], 1, dts)
	}
	return out
}

// PackPesPacket 打包一个payload_unit_start_indicator为1的PES packet，es需要足够小能放进一个packet
//
// @param withPcr: 为true时在adaptation field中写入PCR，值为dts
func PackPesPacket(pid uint16, cc uint8, streamId uint8, pts, dts uint64, withPcr bool, es []byte) []byte {
	var af []byte
	if withPcr {
		af = make([]byte, 7)
		af[0] = 0x50 // random_access_indicator + PCR_flag
		PackPcr(af[1:], dts)
	}
	payload := append(PackPesHeader(streamId, pts, dts, len(es)), es...)
	return PackTsPacket(pid, true, cc, af, payload)
}

// PackTsPacket
//
// @param af: adaptation field中flags及之后的内容，不包括adaptation_field_length。
//            为nil并且payload不足184字节时，用adaptation field填充
func PackTsPacket(pid uint16, pusi bool, cc uint8, af []byte, payload []byte) []byte {
	packet := make([]byte, mpegts.PacketSize)
	packet[0] = mpegts.SyncByte
	packet[1] = uint8(pid>>8) & 0x1F
	if pusi {
		packet[1] |= 0x40
	}
	packet[2] = uint8(pid)

	afc := uint8(0)
	if len(payload) > 0 {
		afc |= 0x1
	}

	space := 184 - len(payload) // adaptation field总大小
	if af != nil || space > 0 {
		afc |= 0x2
		packet[4] = uint8(space - 1)
		if space >= 2 {
			// af为nil时只有一个全0的flags字节，之后才是stuffing
			if af == nil {
				af = []byte{0}
			}
			copy(packet[5:], af)
			for i := 5 + len(af); i < 4+space; i++ {
				packet[i] = 0xFF
			}
		}
	}
	packet[3] = afc<<4 | cc&0x0F
	copy(packet[4+space:], payload)
	return packet
}

func PackNullPacket() []byte {
	return PackTsPacket(mpegts.PidNull, false, 0, nil, make([]byte, 184))
}

func PackPcr(out []byte, pcr uint64) {
	out[0] = uint8(pcr >> 25)
	out[1] = uint8(pcr >> 17)
	out[2] = uint8(pcr >> 9)
	out[3] = uint8(pcr >> 1)
	out[4] = uint8(pcr<<7) | 0x7e
	out[5] = 0
}

// PackPts PTS和DTS都使用这个函数打包，fb为前4位的标识
func PackPts(out []byte, fb uint8, pts uint64) {
	var val uint64
	out[0] = (fb << 4) | (uint8(pts>>29) & 0x0E) | 1

	val = (((pts >> 15) & 0x7FFF) << 1) | 1
	out[1] = uint8(val >> 8)
	out[2] = uint8(val)

	val = ((pts & 0x7FFF) << 1) | 1
	out[3] = uint8(val >> 8)
	out[4] = uint8(val)
}

// ---------------------------------------------------------------------------------------------------------------------

type TsStreamOption struct {
	ProgramNumber   uint16
	PmtPid          uint16
	VideoPid        uint16
	VideoStreamType uint8
	AudioPid        uint16 // 为0时不生成音频

	StartPts      uint64
	FrameInterval uint64 // 90kHz，默认3600即25fps
	FrameNum      int
	PsiInterval   int // 每隔多少帧插入一次PAT和PMT，默认25
}

// GenTsStream 生成一段单节目的TS流，PAT和PMT周期性出现，每个视频帧一个带PCR的packet
func GenTsStream(modOptions ...func(option *TsStreamOption)) []byte {
	option := TsStreamOption{
		ProgramNumber:   1,
		PmtPid:          0x1000,
		VideoPid:        0x100,
		VideoStreamType: mpegts.StreamTypeAvc,
		FrameInterval:   3600,
		FrameNum:        100,
		PsiInterval:     25,
	}
	for _, fn := range modOptions {
		fn(&option)
	}

	streams := []PmtStream{{StreamType: option.VideoStreamType, Pid: option.VideoPid}}
	if option.AudioPid != 0 {
		streams = append(streams, PmtStream{StreamType: mpegts.StreamTypeAac, Pid: option.AudioPid})
	}

	var out []byte
	var patCc, pmtCc, vCc, aCc uint8
	for i := 0; i < option.FrameNum; i++ {
		if i%option.PsiInterval == 0 {
			out = append(out, PackPatPacket(patCc, []PatProgram{{ProgramNumber: option.ProgramNumber, Pid: option.PmtPid}})...)
			out = append(out, PackPmtPacket(option.PmtPid, pmtCc, option.VideoPid, streams)...)
			patCc++
			pmtCc++
		}
		pts := option.StartPts + uint64(i)*option.FrameInterval
		es := []byte{0, 0, 0, 1, 0x09, 0xF0, byte(i)}
		out = append(out, PackPesPacket(option.VideoPid, vCc, mpegts.StreamIdVideo, pts, pts, true, es)...)
		vCc++
		if option.AudioPid != 0 {
			out = append(out, PackPesPacket(option.AudioPid, aCc, mpegts.StreamIdAudio, pts, pts, false, []byte{0xFF, 0xF1, byte(i)})...)
			aCc++
		}
	}
	return out
}
