// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/srt2hls
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package mpegts

import (
	"fmt"

	"github.com/q191201771/naza/pkg/bele"
	"github.com/q191201771/srt2hls/pkg/base"
)

const (
	DescriptorTagRegistration         = 0x05
	DescriptorTagDataStreamAlignment  = 0x06
	DescriptorTagIso639Language       = 0x0a
	DescriptorTagMaximumBitrate       = 0x0e
	DescriptorTagPrivateDataIndicator = 0x0f
	DescriptorTagMpeg4Video           = 0x1b
	DescriptorTagAvcVideo             = 0x28
	DescriptorTagStreamIdentifier     = 0x52
	DescriptorTagTeletext             = 0x56
	DescriptorTagSubtitling           = 0x59
	DescriptorTagAc3                  = 0x6a
	DescriptorTagEnhancedAc3          = 0x7a
	DescriptorTagExtension            = 0x7f
)

// Descriptor
//
// descriptor_tag    [8b]
// descriptor_length [8b]
// data              [descriptor_length]
//
// 目前只解析MPEG-4 video和private data indicator，其他tag的 Unsupported 为true，原始数据保存在 Data 中
type Descriptor struct {
	Tag    uint8
	Length uint8
	Data   []byte

	Mpeg4Video           *DescriptorMpeg4Video
	PrivateDataIndicator *DescriptorPrivateDataIndicator

	Unsupported bool
}

// DescriptorMpeg4Video <iso13818-1.pdf> <2.6.36>
type DescriptorMpeg4Video struct {
	VisualProfileAndLevel uint8
}

// DescriptorPrivateDataIndicator <iso13818-1.pdf> <2.6.28>
type DescriptorPrivateDataIndicator struct {
	PrivateDataIndicator uint32
}

// ParseDescriptors 解析descriptor loop，b的长度即loop的长度
func ParseDescriptors(b []byte) ([]Descriptor, error) {
	var ret []Descriptor
	for len(b) > 0 {
		if len(b) < 2 {
			return nil, base.NewErrShortBuffer(2, len(b), "descriptor header")
		}
		d := Descriptor{
			Tag:    b[0],
			Length: b[1],
		}
		l := int(d.Length)
		if len(b) < 2+l {
			return nil, base.NewErrShortBuffer(2+l, len(b), fmt.Sprintf("descriptor %d", d.Tag))
		}
		d.Data = b[2 : 2+l]

		switch d.Tag {
		case DescriptorTagMpeg4Video:
			if l < 1 {
				return nil, base.NewErrShortBuffer(1, l, "mpeg4 video descriptor")
			}
			d.Mpeg4Video = &DescriptorMpeg4Video{VisualProfileAndLevel: d.Data[0]}
		case DescriptorTagPrivateDataIndicator:
			if l < 4 {
				return nil, base.NewErrShortBuffer(4, l, "private data indicator descriptor")
			}
			d.PrivateDataIndicator = &DescriptorPrivateDataIndicator{PrivateDataIndicator: bele.BeUint32(d.Data)}
		default:
			d.Unsupported = true
		}

		ret = append(ret, d)
		b = b[2+l:]
	}
	return ret, nil
}
