// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/srt2hls
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

// Package bits 按大端位序随机读取字节切片中的位字段
//
// 位序号0为第一个字节的最高位。
// 不带Try前缀的函数不检查长度，调用方需要事先保证 offset+amount <= 8*len(b) 。
package bits

import (
	"fmt"

	"github.com/q191201771/srt2hls/pkg/base"
)

// Bit8 返回字节v的第index位，index为0时是最高位
func Bit8(v uint8, index uint) bool {
	return v&(0x80>>index) != 0
}

func Bit(b []byte, index uint) bool {
	return b[index>>3]&(0x80>>(index&7)) != 0
}

func Bits8(b []byte, offset, amount uint) uint8 {
	return uint8(Bits64(b, offset, amount))
}

func Bits16(b []byte, offset, amount uint) uint16 {
	return uint16(Bits64(b, offset, amount))
}

func Bits32(b []byte, offset, amount uint) uint32 {
	return uint32(Bits64(b, offset, amount))
}

// Bits64 从offset位开始读取amount位，高位在前，结果放在返回值的低位
func Bits64(b []byte, offset, amount uint) (v uint64) {
	for amount > 0 {
		avail := 8 - offset&7
		n := avail
		if n > amount {
			n = amount
		}
		chunk := uint64(b[offset>>3]>>(avail-n)) & (1<<n - 1)
		v = v<<n | chunk
		offset += n
		amount -= n
	}
	return
}

func TryBit(b []byte, index uint) (bool, error) {
	if index >= uint(len(b))*8 {
		return false, fmt.Errorf("%w. index=%d, len=%d", base.ErrBitsOutOfRange, index, len(b))
	}
	return Bit(b, index), nil
}

func TryBits8(b []byte, offset, amount uint) (uint8, error) {
	if err := check(b, offset, amount, 8); err != nil {
		return 0, err
	}
	return Bits8(b, offset, amount), nil
}

func TryBits16(b []byte, offset, amount uint) (uint16, error) {
	if err := check(b, offset, amount, 16); err != nil {
		return 0, err
	}
	return Bits16(b, offset, amount), nil
}

func TryBits32(b []byte, offset, amount uint) (uint32, error) {
	if err := check(b, offset, amount, 32); err != nil {
		return 0, err
	}
	return Bits32(b, offset, amount), nil
}

func TryBits64(b []byte, offset, amount uint) (uint64, error) {
	if err := check(b, offset, amount, 64); err != nil {
		return 0, err
	}
	return Bits64(b, offset, amount), nil
}

func check(b []byte, offset, amount, width uint) error {
	if amount > width {
		return fmt.Errorf("%w. amount=%d, width=%d", base.ErrBitsWidth, amount, width)
	}
	if offset+amount > uint(len(b))*8 {
		return fmt.Errorf("%w. offset=%d, amount=%d, len=%d", base.ErrBitsOutOfRange, offset, amount, len(b))
	}
	return nil
}
