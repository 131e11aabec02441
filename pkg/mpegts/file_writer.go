// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/srt2hls
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package mpegts

import (
	"github.com/q191201771/naza/pkg/filesystemlayer"
	"github.com/q191201771/srt2hls/pkg/base"
)

// FileWriter 将收到的TS流原样写入文件
//
// Fsl 为nil时写磁盘
type FileWriter struct {
	Fsl filesystemlayer.IFileSystemLayer

	fp   filesystemlayer.IFile
	name string
}

func (fw *FileWriter) Create(filename string) (err error) {
	if fw.Fsl == nil {
		fw.Fsl = filesystemlayer.FslFactory(filesystemlayer.FslTypeDisk)
	}
	fw.fp, err = fw.Fsl.Create(filename)
	if err != nil {
		return
	}
	fw.name = filename
	return
}

func (fw *FileWriter) Write(b []byte) (err error) {
	if fw.fp == nil {
		return base.ErrMpegts
	}
	_, err = fw.fp.Write(b)
	return
}

func (fw *FileWriter) Dispose() error {
	if fw.fp == nil {
		return base.ErrMpegts
	}
	err := fw.fp.Close()
	fw.fp = nil
	return err
}

func (fw *FileWriter) Name() string {
	return fw.name
}
