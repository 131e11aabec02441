// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/srt2hls
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package mpegts

// CRC-32/MPEG-2: poly 0x04C11DB7, init 0xFFFFFFFF, 不反转输入输出，结果不异或
var crc32Table [256]uint32

func init() {
	for i := 0; i < 256; i++ {
		crc := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if crc&0x80000000 != 0 {
				crc = (crc << 1) ^ 0x04C11DB7
			} else {
				crc <<= 1
			}
		}
		crc32Table[i] = crc
	}
}

// CalcCrc32 对PSI section从table_id开始到CRC_32之前的所有字节计算
func CalcCrc32(b []byte) uint32 {
	crc := uint32(0xFFFFFFFF)
	for _, v := range b {
		crc = (crc << 8) ^ crc32Table[byte(crc>>24)^v]
	}
	return crc
}
