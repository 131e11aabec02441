// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/srt2hls
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/q191201771/naza/pkg/bele"
	"github.com/q191201771/naza/pkg/nazabytes"
)

const (
	DumpFileVersion uint32 = 1

	DumpTypeSrtDatagram uint32 = 1 // 收到的srt udp包，原样保存
)

// DumpFile 以 | ver(4) | typ(4) | len(4) | timestamp(4) | body(len) | 的格式逐条保存二进制消息，大端
type DumpFile struct {
	file *os.File
}

type DumpFileMessage struct {
	Ver       uint32
	Typ       uint32
	Len       uint32
	Timestamp uint32
	Body      []byte
}

func NewDumpFile() *DumpFile {
	return &DumpFile{}
}

func (d *DumpFile) OpenToWrite(filename string) (err error) {
	if err = os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return err
	}
	d.file, err = os.Create(filename)
	return
}

func (d *DumpFile) OpenToRead(filename string) (err error) {
	d.file, err = os.Open(filename)
	return
}

func (d *DumpFile) WriteWithType(b []byte, typ uint32) error {
	_, err := d.file.Write(d.pack(b, typ))
	return err
}

// ReadOneMessage 读完时返回io.EOF
func (d *DumpFile) ReadOneMessage() (m DumpFileMessage, err error) {
	if m.Ver, err = bele.ReadBeUint32(d.file); err != nil {
		return
	}
	if m.Typ, err = bele.ReadBeUint32(d.file); err != nil {
		return
	}
	if m.Len, err = bele.ReadBeUint32(d.file); err != nil {
		return
	}
	if m.Timestamp, err = bele.ReadBeUint32(d.file); err != nil {
		return
	}
	m.Body = make([]byte, m.Len)
	if _, err = io.ReadFull(d.file, m.Body); err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return
}

func (d *DumpFile) Close() error {
	if d.file == nil {
		return nil
	}
	return d.file.Close()
}

// ---------------------------------------------------------------------------------------------------------------------

func (m *DumpFileMessage) DebugString() string {
	return fmt.Sprintf("ver: %d, typ: %d, len: %d, timestamp: %d, hex: %s",
		m.Ver, m.Typ, m.Len, m.Timestamp, hex.Dump(nazabytes.Prefix(m.Body, 16)))
}

// ---------------------------------------------------------------------------------------------------------------------

func (d *DumpFile) pack(b []byte, typ uint32) []byte {
	ret := make([]byte, len(b)+16)
	bele.BePutUint32(ret, DumpFileVersion)
	bele.BePutUint32(ret[4:], typ)
	bele.BePutUint32(ret[8:], uint32(len(b)))
	bele.BePutUint32(ret[12:], uint32(time.Now().Unix()))
	copy(ret[16:], b)
	return ret
}
