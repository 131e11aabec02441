// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/srt2hls
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package bits

import (
	"errors"
	"math/big"
	"math/rand"
	"testing"

	"github.com/q191201771/naza/pkg/assert"
	"github.com/q191201771/srt2hls/pkg/base"
)

func refBits(b []byte, offset, amount uint) uint64 {
	x := new(big.Int).SetBytes(b)
	x.Rsh(x, uint(len(b))*8-offset-amount)
	mask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), amount), big.NewInt(1))
	return x.And(x, mask).Uint64()
}

func TestBit(t *testing.T) {
	b := []byte{0x80, 0x01, 0xA5}
	assert.Equal(t, true, Bit(b, 0))
	assert.Equal(t, false, Bit(b, 1))
	assert.Equal(t, true, Bit(b, 15))
	assert.Equal(t, true, Bit(b, 16))
	assert.Equal(t, false, Bit(b, 17))
	assert.Equal(t, true, Bit(b, 18))

	r := rand.New(rand.NewSource(1))
	buf := make([]byte, 32)
	r.Read(buf)
	for i := uint(0); i < uint(len(buf))*8; i++ {
		assert.Equal(t, refBits(buf, i, 1) == 1, Bit(buf, i))
	}

	assert.Equal(t, true, Bit8(0x80, 0))
	assert.Equal(t, true, Bit8(0x01, 7))
	assert.Equal(t, false, Bit8(0x01, 6))
}

func TestBits(t *testing.T) {
	b := []byte{0x47, 0x41, 0x00, 0x10}
	assert.Equal(t, uint8(0x47), Bits8(b, 0, 8))
	assert.Equal(t, uint16(0x100), Bits16(b, 11, 13))
	assert.Equal(t, uint8(1), Bits8(b, 27, 1))
	assert.Equal(t, uint32(0x47410010), Bits32(b, 0, 32))
	assert.Equal(t, uint64(0), Bits64(b, 5, 0))

	r := rand.New(rand.NewSource(2))
	buf := make([]byte, 24)
	r.Read(buf)
	total := uint(len(buf)) * 8
	for offset := uint(0); offset < total; offset++ {
		for amount := uint(0); amount <= 64 && offset+amount <= total; amount++ {
			expected := refBits(buf, offset, amount)
			assert.Equal(t, expected, Bits64(buf, offset, amount))
			if amount <= 32 {
				assert.Equal(t, uint32(expected), Bits32(buf, offset, amount))
			}
			if amount <= 16 {
				assert.Equal(t, uint16(expected), Bits16(buf, offset, amount))
			}
			if amount <= 8 {
				assert.Equal(t, uint8(expected), Bits8(buf, offset, amount))
			}
		}
	}
}

func TestTryBits(t *testing.T) {
	b := []byte{0xFF, 0x00}

	v, err := TryBits8(b, 4, 8)
	assert.Equal(t, nil, err)
	assert.Equal(t, uint8(0xF0), v)

	_, err = TryBits8(b, 0, 9)
	assert.Equal(t, true, errors.Is(err, base.ErrBitsWidth))

	_, err = TryBits16(b, 9, 8)
	assert.Equal(t, true, errors.Is(err, base.ErrBitsOutOfRange))

	_, err = TryBits32(b, 0, 33)
	assert.Equal(t, true, errors.Is(err, base.ErrBitsWidth))

	_, err = TryBits64(b, 0, 17)
	assert.Equal(t, true, errors.Is(err, base.ErrBitsOutOfRange))

	bit, err := TryBit(b, 7)
	assert.Equal(t, nil, err)
	assert.Equal(t, true, bit)

	_, err = TryBit(b, 16)
	assert.Equal(t, true, errors.Is(err, base.ErrBitsOutOfRange))

	_, err = TryBit(nil, 0)
	assert.Equal(t, true, errors.Is(err, base.ErrBitsOutOfRange))
}
