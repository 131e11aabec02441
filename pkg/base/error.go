// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/srt2hls
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import (
	"errors"
	"fmt"
)

// ----- 通用的 ---------------------------------------------------------------------------------------------------------

var (
	ErrShortBuffer  = errors.New("srt2hls: buffer too short")
	ErrFileNotExist = errors.New("srt2hls: file not exist")
	ErrInvalidUrl   = errors.New("srt2hls: invalid url")
)

func NewErrShortBuffer(need, actual int, msg string) error {
	return fmt.Errorf("%w. need=%d, actual=%d, msg=%s", ErrShortBuffer, need, actual, msg)
}

// ----- pkg/bits ------------------------------------------------------------------------------------------------------

var (
	ErrBitsOutOfRange = errors.New("srt2hls.bits: bit index out of range")
	ErrBitsWidth      = errors.New("srt2hls.bits: amount exceeds target width")
)

// ----- pkg/base ------------------------------------------------------------------------------------------------------

var (
	ErrAddrEmpty               = errors.New("srt2hls.base: http server addr empty")
	ErrMultiRegisterForPattern = errors.New("srt2hls.base: http server multiple registrations for pattern")
)

// ----- pkg/mpegts ----------------------------------------------------------------------------------------------------

var (
	ErrMpegts = errors.New("srt2hls.mpegts: fxxk")

	ErrSyncByte        = errors.New("srt2hls.mpegts: invalid sync byte")
	ErrAdaptationField = errors.New("srt2hls.mpegts: invalid adaptation field")
	ErrPsiCrc          = errors.New("srt2hls.mpegts: psi crc32 mismatch")
	ErrPesStartCode    = errors.New("srt2hls.mpegts: invalid pes start code")
	ErrPtsDtsFlags     = errors.New("srt2hls.mpegts: invalid pts dts flags")
)

func NewErrPsiCrc(expected, actual uint32) error {
	return fmt.Errorf("%w. expected=%08x, actual=%08x", ErrPsiCrc, expected, actual)
}

// ----- pkg/srt -------------------------------------------------------------------------------------------------------

var (
	ErrSrt            = errors.New("srt2hls.srt: fxxk")
	ErrSrtShortBuffer = errors.New("srt2hls.srt: buffer too short")
	ErrSrtUnsupported = errors.New("srt2hls.srt: unsupported")

	ErrSrtInvalidControlType   = errors.New("srt2hls.srt: invalid control type")
	ErrSrtInvalidHandshakeType = errors.New("srt2hls.srt: invalid handshake type")
	ErrSrtInvalidEncryption    = errors.New("srt2hls.srt: invalid encryption")
	ErrSrtInvalidExtension     = errors.New("srt2hls.srt: invalid handshake extension")
	ErrSrtInvalidCookie        = errors.New("srt2hls.srt: invalid syn cookie")
	ErrSrtHandshakeAborted     = errors.New("srt2hls.srt: handshake aborted")
	ErrSrtServerClosed         = errors.New("srt2hls.srt: server closed")
)

func NewErrSrtShortBuffer(need, actual int, msg string) error {
	return fmt.Errorf("%w. need=%d, actual=%d, msg=%s", ErrSrtShortBuffer, need, actual, msg)
}

// ----- pkg/hls -------------------------------------------------------------------------------------------------------

var (
	ErrHls                 = errors.New("srt2hls.hls: fxxk")
	ErrHlsStreamNotFound   = errors.New("srt2hls.hls: stream not found")
	ErrHlsSegmenterStopped = errors.New("srt2hls.hls: segmenter stopped")
)
