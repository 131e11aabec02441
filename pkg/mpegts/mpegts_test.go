// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/srt2hls
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package mpegts_test

import (
	"errors"
	"testing"

	"github.com/q191201771/naza/pkg/assert"
	"github.com/q191201771/naza/pkg/filesystemlayer"
	"github.com/q191201771/srt2hls/pkg/base"
	"github.com/q191201771/srt2hls/pkg/innertest"
	"github.com/q191201771/srt2hls/pkg/mpegts"
)

// ffmpeg默认输出的PAT和PMT，h264 PID 0x100，aac PID 0x101，PMT PID 0x1000
var (
	ffmpegPatSection = []byte{0x00, 0xB0, 0x0D, 0x00, 0x01, 0xC1, 0x00, 0x00, 0x00, 0x01, 0xF0, 0x00, 0x2A, 0xB1, 0x04, 0xB2}
	ffmpegPmtSection = []byte{
		0x02, 0xB0, 0x17, 0x00, 0x01, 0xC1, 0x00, 0x00, 0xE1, 0x00, 0xF0, 0x00,
		0x1B, 0xE1, 0x00, 0xF0, 0x00,
		0x0F, 0xE1, 0x01, 0xF0, 0x00,
		0x2F, 0x44, 0xB9, 0x9B,
	}
)

func TestCalcCrc32(t *testing.T) {
	assert.Equal(t, uint32(0x2AB104B2), mpegts.CalcCrc32(ffmpegPatSection[:12]))
	assert.Equal(t, uint32(0x2F44B99B), mpegts.CalcCrc32(ffmpegPmtSection[:22]))
	assert.Equal(t, uint32(0xFFFFFFFF), mpegts.CalcCrc32(nil))
}

func TestParsePsi_Pat(t *testing.T) {
	b := innertest.PackPsiPacket(mpegts.PidPat, 0, ffmpegPatSection)
	pkt, err := mpegts.ParseTransportPacket(b, nil)
	assert.Equal(t, nil, err)
	if err != nil {
		return
	}
	assert.Equal(t, mpegts.PidPat, pkt.Header.Pid)
	assert.Equal(t, uint8(1), pkt.Header.PayloadUnitStart)
	assert.Equal(t, mpegts.PayloadKindPsi, pkt.Payload.Kind)

	psi := pkt.Payload.Psi
	assert.Equal(t, uint8(mpegts.TsPsiIdPas), psi.TableId)
	assert.Equal(t, uint16(13), psi.SectionLength)
	assert.Equal(t, uint16(1), psi.TableIdExtension)
	assert.Equal(t, uint8(0), psi.VersionNumber)
	assert.Equal(t, uint8(1), psi.CurrentNextIndicator)
	assert.Equal(t, uint32(0x2AB104B2), psi.Crc32)
	assert.Equal(t, false, psi.Unsupported)
	assert.Equal(t, []mpegts.PatProgramElement{{ProgramNumber: 1, Pid: 0x1000}}, psi.Pat.ProgramElements)
	assert.Equal(t, true, psi.Pat.SearchPid(0x1000))
	assert.Equal(t, false, psi.Pat.SearchPid(0x1001))
	assert.Equal(t, []uint16{0x1000}, psi.Pat.PmtPids())
}

func TestParsePsi_Pmt(t *testing.T) {
	b := innertest.PackPsiPacket(0x1000, 0, ffmpegPmtSection)
	pkt, err := mpegts.ParseTransportPacket(b, mpegts.NewPidSet(0x1000))
	assert.Equal(t, nil, err)
	if err != nil {
		return
	}
	assert.Equal(t, mpegts.PayloadKindPsi, pkt.Payload.Kind)

	pmt := pkt.Payload.Psi.Pmt
	assert.Equal(t, uint16(0x100), pmt.PcrPid)
	assert.Equal(t, uint16(0), pmt.ProgramInfoLength)
	assert.Equal(t, 2, len(pmt.ProgramElements))
	assert.Equal(t, mpegts.StreamTypeAvc, pmt.ProgramElements[0].StreamType)
	assert.Equal(t, uint16(0x100), pmt.ProgramElements[0].Pid)
	assert.Equal(t, mpegts.StreamTypeAac, pmt.ProgramElements[1].StreamType)
	assert.Equal(t, uint16(0x101), pmt.ProgramElements[1].Pid)
	assert.Equal(t, uint16(0x100), pmt.VideoPid())
	assert.Equal(t, mpegts.StreamTypeAac, pmt.SearchPid(0x101).StreamType)
	assert.Equal(t, true, pmt.SearchPid(0x102) == nil)
}

func TestParsePsi_PmtDescriptors(t *testing.T) {
	programInfo := []byte{
		mpegts.DescriptorTagPrivateDataIndicator, 4, 0x43, 0x55, 0x45, 0x49,
		mpegts.DescriptorTagIso639Language, 4, 'e', 'n', 'g', 0,
	}
	streams := []innertest.PmtStream{
		{StreamType: mpegts.StreamTypeMpeg4Video, Pid: 0x200, Descriptors: []byte{mpegts.DescriptorTagMpeg4Video, 1, 0xF5}},
		{StreamType: mpegts.StreamTypeAac, Pid: 0x201},
	}
	section := innertest.PackPmtSection(1, 0x201, programInfo, streams)

	psi, err := mpegts.ParsePsi(append([]byte{0}, section...))
	assert.Equal(t, nil, err)
	if err != nil {
		return
	}
	pmt := psi.Pmt
	assert.Equal(t, uint16(0x201), pmt.PcrPid)
	assert.Equal(t, uint16(len(programInfo)), pmt.ProgramInfoLength)
	assert.Equal(t, 2, len(pmt.Descriptors))
	assert.Equal(t, uint32(0x43554549), pmt.Descriptors[0].PrivateDataIndicator.PrivateDataIndicator)
	assert.Equal(t, false, pmt.Descriptors[0].Unsupported)
	assert.Equal(t, true, pmt.Descriptors[1].Unsupported)
	assert.Equal(t, []byte{'e', 'n', 'g', 0}, pmt.Descriptors[1].Data)

	assert.Equal(t, 2, len(pmt.ProgramElements))
	assert.Equal(t, uint16(3), pmt.ProgramElements[0].EsInfoLength)
	assert.Equal(t, uint8(0xF5), pmt.ProgramElements[0].Descriptors[0].Mpeg4Video.VisualProfileAndLevel)
	assert.Equal(t, 0, len(pmt.ProgramElements[1].Descriptors))
	assert.Equal(t, uint16(0x200), pmt.VideoPid())
}

func TestParsePsi_CrcMismatch(t *testing.T) {
	for _, section := range [][]byte{ffmpegPatSection, ffmpegPmtSection} {
		corrupted := make([]byte, len(section))
		copy(corrupted, section)
		corrupted[len(corrupted)-1] ^= 0x01

		_, err := mpegts.ParsePsi(append([]byte{0}, corrupted...))
		assert.Equal(t, true, errors.Is(err, base.ErrPsiCrc))

		pkt := innertest.PackPsiPacket(0x1000, 0, corrupted)
		_, err = mpegts.ParseTransportPacket(pkt, mpegts.NewPidSet(0x1000))
		assert.Equal(t, true, errors.Is(err, base.ErrPsiCrc))
	}
}

func TestParsePsi_Unsupported(t *testing.T) {
	// SDT
	psi, err := mpegts.ParsePsi([]byte{0x00, 0x42, 0xF0, 0x25, 0x00, 0x01})
	assert.Equal(t, nil, err)
	if err != nil {
		return
	}
	assert.Equal(t, true, psi.Unsupported)
	assert.Equal(t, uint8(0x42), psi.TableId)
	assert.Equal(t, true, psi.Pat == nil && psi.Pmt == nil)
}

func TestParsePsi_ShortBuffer(t *testing.T) {
	_, err := mpegts.ParsePsi(nil)
	assert.Equal(t, true, errors.Is(err, base.ErrShortBuffer))

	// pointer_field超出范围
	_, err = mpegts.ParsePsi([]byte{0x10, 0x00, 0xB0})
	assert.Equal(t, true, errors.Is(err, base.ErrShortBuffer))

	// section跨越了packet
	_, err = mpegts.ParsePsi(append([]byte{0}, ffmpegPmtSection[:20]...))
	assert.Equal(t, true, errors.Is(err, base.ErrShortBuffer))
}

func TestParseTransportPacket_Classification(t *testing.T) {
	pat := innertest.PackPatPacket(0, []innertest.PatProgram{{ProgramNumber: 1, Pid: 0x1000}})
	pkt, err := mpegts.ParseTransportPacket(pat, nil)
	assert.Equal(t, nil, err)
	if err != nil {
		return
	}

	pmtPids := mpegts.NewPidSet()
	for _, pid := range pkt.Payload.Psi.Pat.PmtPids() {
		pmtPids.Add(pid)
	}

	pmt := innertest.PackPmtPacket(0x1000, 0, 0x100, []innertest.PmtStream{{StreamType: mpegts.StreamTypeAvc, Pid: 0x100}})
	pkt, err = mpegts.ParseTransportPacket(pmt, pmtPids)
	assert.Equal(t, nil, err)
	if err != nil {
		return
	}
	assert.Equal(t, mpegts.PayloadKindPsi, pkt.Payload.Kind)
	assert.Equal(t, "PSI", pkt.Payload.Kind.String())
	assert.Equal(t, true, pkt.Payload.Pes == nil)

	// 不知道PMT PID时按PES解析
	_, err = mpegts.ParseTransportPacket(pmt, nil)
	assert.Equal(t, true, errors.Is(err, base.ErrPesStartCode))

	pes := innertest.PackPesPacket(0x100, 0, mpegts.StreamIdVideo, 9000, 9000, false, []byte{1, 2, 3})
	pkt, err = mpegts.ParseTransportPacket(pes, pmtPids)
	assert.Equal(t, nil, err)
	if err != nil {
		return
	}
	assert.Equal(t, mpegts.PayloadKindPes, pkt.Payload.Kind)
	assert.Equal(t, uint64(9000), pkt.Payload.Pes.Header.Pts)
	assert.Equal(t, []byte{1, 2, 3}, pkt.Payload.Pes.Data)

	data := innertest.PackTsPacket(0x100, false, 1, nil, []byte{4, 5, 6})
	pkt, err = mpegts.ParseTransportPacket(data, pmtPids)
	assert.Equal(t, nil, err)
	if err != nil {
		return
	}
	assert.Equal(t, mpegts.PayloadKindData, pkt.Payload.Kind)
	assert.Equal(t, []byte{4, 5, 6}, pkt.Payload.Raw)
	assert.Equal(t, uint8(1), pkt.Header.Cc)
}

func TestParseTransportPacket_Header(t *testing.T) {
	payload := make([]byte, 184)
	copy(payload, innertest.PackPesHeader(mpegts.StreamIdVideo, 0, 0, 184-14))
	b := innertest.PackTsPacket(0x1FFE, true, 0x0F, nil, payload)
	b[1] |= 0x80 | 0x20 // transport_error_indicator, transport_priority
	b[3] |= 0xC0        // transport_scrambling_control
	pkt, err := mpegts.ParseTransportPacket(b, nil)
	assert.Equal(t, nil, err)
	if err != nil {
		return
	}
	assert.Equal(t, mpegts.TsPacketHeader{
		Sync:             0x47,
		Err:              1,
		PayloadUnitStart: 1,
		Prio:             1,
		Pid:              0x1FFE,
		Scra:             3,
		Adaptation:       1,
		Cc:               0x0F,
	}, pkt.Header)
	assert.Equal(t, true, pkt.AdaptationField == nil)
}

func TestParseTransportPacket_Error(t *testing.T) {
	b := innertest.PackNullPacket()
	b[0] = 0x48
	_, err := mpegts.ParseTransportPacket(b, nil)
	assert.Equal(t, true, errors.Is(err, base.ErrSyncByte))

	_, err = mpegts.ParseTransportPacket(innertest.PackNullPacket()[:187], nil)
	assert.Equal(t, true, errors.Is(err, base.ErrShortBuffer))

	_, err = mpegts.ParseTransportPacket(nil, nil)
	assert.Equal(t, true, errors.Is(err, base.ErrShortBuffer))
}

func TestParseTransportPacket_AdaptationOnly(t *testing.T) {
	b := innertest.PackTsPacket(0x100, false, 0, []byte{0x80}, nil)
	assert.Equal(t, uint8(0x20), b[3]&0x30)
	pkt, err := mpegts.ParseTransportPacket(b, nil)
	assert.Equal(t, nil, err)
	if err != nil {
		return
	}
	assert.Equal(t, true, pkt.Payload == nil)
	assert.Equal(t, uint8(183), pkt.AdaptationField.Length)
	assert.Equal(t, 184, pkt.AdaptationField.Size())
	assert.Equal(t, true, pkt.AdaptationField.Discontinuity)
	assert.Equal(t, false, pkt.AdaptationField.HasPcr)
}

func TestParseTransportPacket_EmptyAdaptationField(t *testing.T) {
	b := innertest.PackTsPacket(0x100, false, 0, nil, make([]byte, 183))
	pkt, err := mpegts.ParseTransportPacket(b, nil)
	assert.Equal(t, nil, err)
	if err != nil {
		return
	}
	assert.Equal(t, true, pkt.AdaptationField.IsEmpty())
	assert.Equal(t, 1, pkt.AdaptationField.Size())
	assert.Equal(t, 183, len(pkt.Payload.Raw))
}

func TestParseTransportPacket_Stuffing(t *testing.T) {
	// payload不足184字节，用只有flags字节的adaptation field加0xFF填充
	b := innertest.PackTsPacket(0x101, false, 2, nil, []byte{7, 8, 9})
	assert.Equal(t, uint8(181), b[4])
	assert.Equal(t, uint8(0), b[5])
	assert.Equal(t, uint8(0xFF), b[6])
	assert.Equal(t, uint8(0xFF), b[184])
	pkt, err := mpegts.ParseTransportPacket(b, nil)
	assert.Equal(t, nil, err)
	if err != nil {
		return
	}
	af := pkt.AdaptationField
	assert.Equal(t, 182, af.Size())
	assert.Equal(t, false, af.HasPcr)
	assert.Equal(t, false, af.HasOpcr)
	assert.Equal(t, false, af.HasSplicingPoint)
	assert.Equal(t, false, af.HasPrivateData)
	assert.Equal(t, true, af.Extension == nil)
	assert.Equal(t, []byte{7, 8, 9}, pkt.Payload.Raw)

	// 只剩两字节时，adaptation field只有length和flags
	b = innertest.PackTsPacket(0x101, false, 3, nil, make([]byte, 182))
	pkt, err = mpegts.ParseTransportPacket(b, nil)
	assert.Equal(t, nil, err)
	if err != nil {
		return
	}
	assert.Equal(t, 2, pkt.AdaptationField.Size())
	assert.Equal(t, 182, len(pkt.Payload.Raw))
}

func TestParseTransportPacket_Pcr(t *testing.T) {
	b := innertest.PackPesPacket(0x100, 0, mpegts.StreamIdVideo, 0x1FFFFFFFF, 0x1FFFFFFFF, true, []byte{0xAA})
	pkt, err := mpegts.ParseTransportPacket(b, nil)
	assert.Equal(t, nil, err)
	if err != nil {
		return
	}
	af := pkt.AdaptationField
	assert.Equal(t, true, af.RandomAccess)
	assert.Equal(t, true, af.HasPcr)
	assert.Equal(t, uint64(0x1FFFFFFFF), af.Pcr.Base)
	assert.Equal(t, uint16(0), af.Pcr.Ext)
	assert.Equal(t, uint64(0x1FFFFFFFF)*300, af.Pcr.Value())

	// base 1, ext 299
	pcr := mpegts.ClockReference{Base: 1, Ext: 299}
	assert.Equal(t, uint64(599), pcr.Value())
}

func TestParseAdaptationField(t *testing.T) {
	// PCR + OPCR + splice_countdown + private data
	af := []byte{
		19,
		0x1E,
		0x00, 0x00, 0x00, 0x00, 0xFE, 0x05, // PCR base 1, ext 5
		0x00, 0x00, 0x00, 0x01, 0x7E, 0x00, // OPCR base 2
		0xFE,       // splice_countdown -2
		3, 1, 2, 3, // private data
		0xFF,       // stuffing
	}
	f, err := mpegts.ParseAdaptationField(af)
	assert.Equal(t, nil, err)
	if err != nil {
		return
	}
	assert.Equal(t, 20, f.Size())
	assert.Equal(t, mpegts.ClockReference{Base: 1, Ext: 5}, f.Pcr)
	assert.Equal(t, mpegts.ClockReference{Base: 2, Ext: 0}, f.Opcr)
	assert.Equal(t, true, f.HasSplicingPoint)
	assert.Equal(t, int8(-2), f.SpliceCountdown)
	assert.Equal(t, []byte{1, 2, 3}, f.PrivateData)
	assert.Equal(t, true, f.Extension == nil)

	// PCR_flag置位但长度不够
	_, err = mpegts.ParseAdaptationField([]byte{2, 0x10, 0x00})
	assert.Equal(t, true, errors.Is(err, base.ErrAdaptationField))

	// adaptation_field_length超出packet
	_, err = mpegts.ParseAdaptationField([]byte{5, 0x00})
	assert.Equal(t, true, errors.Is(err, base.ErrAdaptationField))

	// private data长度超出
	_, err = mpegts.ParseAdaptationField([]byte{3, 0x02, 5, 1})
	assert.Equal(t, true, errors.Is(err, base.ErrAdaptationField))
}

func TestParseAdaptationField_Extension(t *testing.T) {
	afBody := []byte{0x01, 0x0b, 0xe0, 0x92, 0x34, 0xc1, 0x23, 0x45, 0x35, 0xaf, 0x37, 0xde, 0x03}
	b := innertest.PackTsPacket(0x100, false, 0, afBody, make([]byte, 184-14))
	pkt, err := mpegts.ParseTransportPacket(b, nil)
	assert.Equal(t, nil, err)
	if err != nil {
		return
	}
	ext := pkt.AdaptationField.Extension
	assert.Equal(t, uint8(11), ext.Length)
	assert.Equal(t, true, ext.HasLtw)
	assert.Equal(t, true, ext.LtwValid)
	assert.Equal(t, uint16(0x1234), ext.LtwOffset)
	assert.Equal(t, true, ext.HasPiecewiseRate)
	assert.Equal(t, uint32(0x12345), ext.PiecewiseRate)
	assert.Equal(t, true, ext.HasSeamlessSplice)
	assert.Equal(t, uint8(3), ext.SpliceType)
	assert.Equal(t, uint64(0x0ABCDEF01), ext.DtsNextAu)

	// extension长度声明超出
	_, err = mpegts.ParseAdaptationField([]byte{3, 0x01, 5, 0x80})
	assert.Equal(t, true, errors.Is(err, base.ErrAdaptationField))
}

func TestParsePes(t *testing.T) {
	// PTS only
	b := innertest.PackPesHeader(mpegts.StreamIdVideo, 0x123456789, 0x123456789, 0)
	pes, err := mpegts.ParsePes(b)
	assert.Equal(t, nil, err)
	if err != nil {
		return
	}
	assert.Equal(t, mpegts.StreamIdVideo, pes.StreamId)
	assert.Equal(t, mpegts.PtsDtsFlagsPts, pes.Header.PtsDtsFlags)
	assert.Equal(t, true, pes.Header.HasPts())
	assert.Equal(t, false, pes.Header.HasDts())
	assert.Equal(t, uint64(0x123456789), pes.Header.Pts)
	assert.Equal(t, uint64(0x123456789), pes.Header.Dts)
	assert.Equal(t, uint8(5), pes.Header.HeaderDataLength)
	assert.Equal(t, 0, len(pes.Data))

	// PTS + DTS
	b = innertest.PackPesHeader(mpegts.StreamIdVideo, 0x1FFFFFFFF, 0x087654321, 2)
	b = append(b, 0xAB, 0xCD)
	pes, err = mpegts.ParsePes(b)
	assert.Equal(t, nil, err)
	if err != nil {
		return
	}
	assert.Equal(t, uint16(2+10+3), pes.PacketLength)
	assert.Equal(t, mpegts.PtsDtsFlagsPtsDts, pes.Header.PtsDtsFlags)
	assert.Equal(t, uint64(0x1FFFFFFFF), pes.Header.Pts)
	assert.Equal(t, uint64(0x087654321), pes.Header.Dts)
	assert.Equal(t, []byte{0xAB, 0xCD}, pes.Data)
}

func TestParsePes_TimestampTopBits(t *testing.T) {
	// PTS[32..30]为0b100，其余位为0
	b := []byte{0x00, 0x00, 0x01, 0xE0, 0x00, 0x08, 0x80, 0x80, 0x05, 0x29, 0x00, 0x01, 0x00, 0x01}
	pes, err := mpegts.ParsePes(b)
	assert.Equal(t, nil, err)
	if err != nil {
		return
	}
	assert.Equal(t, uint64(0x100000000), pes.Header.Pts)

	// 所有位为1
	b = []byte{0x00, 0x00, 0x01, 0xE0, 0x00, 0x08, 0x80, 0x80, 0x05, 0x2F, 0xFF, 0xFF, 0xFF, 0xFF}
	pes, err = mpegts.ParsePes(b)
	assert.Equal(t, nil, err)
	if err != nil {
		return
	}
	assert.Equal(t, uint64(0x1FFFFFFFF), pes.Header.Pts)
}

func TestParsePes_AllOptionalFields(t *testing.T) {
	b := []byte{
		0x00, 0x00, 0x01, 0xe0, 0x00, 0x00, 0x8c, 0xff, 0x18,
		0x39, 0x8d, 0x15, 0xcf, 0x13, 0x15, 0x1d, 0x95, 0x86, 0x43, // PTS DTS
		0xe4, 0x00, 0x04, 0x00, 0x0e, 0xab, // ESCR
		0xd5, 0x55, 0x55, // ES_rate
		0x5a,       // trick mode
		0xb3,       // additional_copy_info
		0xbe, 0xef, // previous_PES_CRC
		0x00,       // extension
		0x11, 0x22,
	}
	pes, err := mpegts.ParsePes(b)
	assert.Equal(t, nil, err)
	if err != nil {
		return
	}
	h := pes.Header
	assert.Equal(t, true, h.Priority)
	assert.Equal(t, true, h.DataAlignment)
	assert.Equal(t, false, h.Copyright)
	assert.Equal(t, uint64(0x123456789), h.Pts)
	assert.Equal(t, uint64(0x087654321), h.Dts)
	assert.Equal(t, true, h.HasEscr)
	assert.Equal(t, mpegts.ClockReference{Base: 0x100000001, Ext: 0x155}, h.Escr)
	assert.Equal(t, true, h.HasEsRate)
	assert.Equal(t, uint32(0x2AAAAA), h.EsRate)
	assert.Equal(t, uint8(0x5A), h.TrickMode)
	assert.Equal(t, uint8(0x33), h.AdditionalCopyInfo)
	assert.Equal(t, uint16(0xBEEF), h.PreviousCrc)
	assert.Equal(t, true, h.ExtensionUnsupported)
	assert.Equal(t, []byte{0x11, 0x22}, pes.Data)
}

func TestParsePes_Error(t *testing.T) {
	_, err := mpegts.ParsePes([]byte{0x00, 0x00, 0x02, 0xE0, 0x00, 0x00})
	assert.Equal(t, true, errors.Is(err, base.ErrPesStartCode))

	_, err = mpegts.ParsePes([]byte{0x00, 0x00, 0x01})
	assert.Equal(t, true, errors.Is(err, base.ErrShortBuffer))

	// PTS_DTS_flags为01
	_, err = mpegts.ParsePes([]byte{0x00, 0x00, 0x01, 0xE0, 0x00, 0x00, 0x80, 0x40, 0x00})
	assert.Equal(t, true, errors.Is(err, base.ErrPtsDtsFlags))

	// header_data_length超出
	_, err = mpegts.ParsePes([]byte{0x00, 0x00, 0x01, 0xE0, 0x00, 0x00, 0x80, 0x80, 0x05, 0x21})
	assert.Equal(t, true, errors.Is(err, base.ErrShortBuffer))

	// PTS_DTS_flags声明了DTS，但header_data_length只有5
	b := innertest.PackPesHeader(mpegts.StreamIdVideo, 100, 100, 0)
	b[7] = 0xC0
	_, err = mpegts.ParsePes(b)
	assert.Equal(t, true, errors.Is(err, base.ErrShortBuffer))
}

func TestParsePes_NoHeader(t *testing.T) {
	for _, sid := range []uint8{0xBC, 0xBD, 0xBE, 0xBF, 0xF0, 0xF1, 0xF2, 0xF8, 0xFF} {
		pes, err := mpegts.ParsePes([]byte{0x00, 0x00, 0x01, sid, 0x00, 0x02, 0xFF, 0xFF})
		assert.Equal(t, nil, err)
		if err != nil {
			return
		}
		assert.Equal(t, true, pes.Header == nil)
		assert.Equal(t, []byte{0xFF, 0xFF}, pes.Data)
	}
	assert.Equal(t, true, mpegts.HasPesHeader(mpegts.StreamIdAudio))
}

func TestParseDescriptors(t *testing.T) {
	ds, err := mpegts.ParseDescriptors(nil)
	assert.Equal(t, nil, err)
	assert.Equal(t, 0, len(ds))

	_, err = mpegts.ParseDescriptors([]byte{mpegts.DescriptorTagMpeg4Video, 2, 0x01})
	assert.Equal(t, true, errors.Is(err, base.ErrShortBuffer))

	_, err = mpegts.ParseDescriptors([]byte{mpegts.DescriptorTagPrivateDataIndicator, 2, 0x01, 0x02})
	assert.Equal(t, true, errors.Is(err, base.ErrShortBuffer))

	_, err = mpegts.ParseDescriptors([]byte{0x05})
	assert.Equal(t, true, errors.Is(err, base.ErrShortBuffer))
}

func TestFileWriter(t *testing.T) {
	fsl := filesystemlayer.FslFactory(filesystemlayer.FslTypeMemory)
	fw := mpegts.FileWriter{Fsl: fsl}
	assert.Equal(t, true, errors.Is(fw.Write([]byte{1}), base.ErrMpegts))

	err := fw.Create("/tmp/srt2hls/record.ts")
	assert.Equal(t, nil, err)
	assert.Equal(t, "/tmp/srt2hls/record.ts", fw.Name())
	stream := innertest.GenTsStream(func(option *innertest.TsStreamOption) {
		option.FrameNum = 3
	})
	assert.Equal(t, nil, fw.Write(stream))
	assert.Equal(t, nil, fw.Dispose())

	b, err := fsl.ReadFile("/tmp/srt2hls/record.ts")
	assert.Equal(t, nil, err)
	assert.Equal(t, stream, b)
}

func TestGenTsStream(t *testing.T) {
	stream := innertest.GenTsStream(func(option *innertest.TsStreamOption) {
		option.FrameNum = 30
		option.AudioPid = 0x101
	})
	// 两组PAT+PMT，每帧一个视频packet一个音频packet
	assert.Equal(t, (2*2+30*2)*mpegts.PacketSize, len(stream))

	pmtPids := mpegts.NewPidSet()
	var ptsList []uint64
	for i := 0; i < len(stream); i += mpegts.PacketSize {
		pkt, err := mpegts.ParseTransportPacket(stream[i:i+mpegts.PacketSize], pmtPids)
		assert.Equal(t, nil, err)
		if err != nil {
			return
		}
		switch {
		case pkt.Payload.Kind == mpegts.PayloadKindPsi && pkt.Payload.Psi.Pat != nil:
			for _, pid := range pkt.Payload.Psi.Pat.PmtPids() {
				pmtPids.Add(pid)
			}
		case pkt.Payload.Kind == mpegts.PayloadKindPes && pkt.Header.Pid == 0x100:
			ptsList = append(ptsList, pkt.Payload.Pes.Header.Pts)
			assert.Equal(t, pkt.Payload.Pes.Header.Pts*300, pkt.AdaptationField.Pcr.Value())
		}
	}
	assert.Equal(t, 30, len(ptsList))
	assert.Equal(t, uint64(29*3600), ptsList[29])
}
