// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/srt2hls
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package logic_test

import (
	"testing"

	"github.com/q191201771/naza/pkg/assert"
	"github.com/q191201771/naza/pkg/nazalog"
	"github.com/q191201771/srt2hls/pkg/base"
	"github.com/q191201771/srt2hls/pkg/hls"
	"github.com/q191201771/srt2hls/pkg/innertest"
	"github.com/q191201771/srt2hls/pkg/logic"
)

func TestLogic(t *testing.T) {
	innertest.Entry(t)
}

func TestParseConf(t *testing.T) {
	// 所有字段使用默认值
	config, err := logic.ParseConf([]byte(`{}`))
	assert.Equal(t, nil, err)
	assert.Equal(t, ":9000", config.SrtConfig.Addr)
	assert.Equal(t, base.SrtConnectionIdleTimeoutMs, config.SrtConfig.IdleTimeoutMs)
	assert.Equal(t, "live", config.SrtConfig.DefaultStreamName)
	assert.Equal(t, "./srt2hls/hls/", config.HlsConfig.OutPath)
	assert.Equal(t, hls.DefaultSegmentDurationSec, config.HlsConfig.SegmentDurationSec)
	assert.Equal(t, hls.DefaultPlaylistWindow, config.HlsConfig.PlaylistWindow)
	assert.Equal(t, ":8080", config.HlsConfig.HttpListenAddr)
	assert.Equal(t, "/hls/", config.HlsConfig.UrlPattern)
	assert.Equal(t, false, config.HlsConfig.RecordRawTs)
	assert.Equal(t, 10, config.StatIntervalSec)
	assert.Equal(t, nazalog.LevelDebug, config.LogConfig.Level)
	assert.Equal(t, true, config.LogConfig.IsToStdout)

	// 显式配置的零值不会被默认值覆盖
	config, err = logic.ParseConf([]byte(`{
  "srt": {"addr": ":10080", "idle_timeout_ms": 3000, "default_stream_name": "srt"},
  "hls": {"out_path": "/data/hls/", "segment_duration_sec": 4, "playlist_window": 0, "http_listen_addr": "",
    "record_raw_ts": true},
  "log": {"level": 3, "is_to_stdout": false},
  "stat_interval_sec": 0
}`))
	assert.Equal(t, nil, err)
	assert.Equal(t, ":10080", config.SrtConfig.Addr)
	assert.Equal(t, 3000, config.SrtConfig.IdleTimeoutMs)
	assert.Equal(t, "srt", config.SrtConfig.DefaultStreamName)
	assert.Equal(t, "/data/hls/", config.HlsConfig.OutPath)
	assert.Equal(t, 4, config.HlsConfig.SegmentDurationSec)
	assert.Equal(t, 0, config.HlsConfig.PlaylistWindow)
	assert.Equal(t, "", config.HlsConfig.HttpListenAddr)
	assert.Equal(t, "/hls/", config.HlsConfig.UrlPattern)
	assert.Equal(t, true, config.HlsConfig.RecordRawTs)
	assert.Equal(t, 0, config.StatIntervalSec)
	assert.Equal(t, nazalog.LevelWarn, config.LogConfig.Level)
	assert.Equal(t, false, config.LogConfig.IsToStdout)

	_, err = logic.ParseConf([]byte(`{"srt":`))
	assert.IsNotNil(t, err)
}

func TestStreamNameOfStreamId(t *testing.T) {
	golden := []struct {
		streamId string
		name     string
	}{
		{"", "live"},
		{"test110", "test110"},
		{"live/test110", "test110"},
		{"#!::r=live/test110,m=publish", "test110"},
		{"#!::u=admin,r=test110", "test110"},
		{"#!::m=publish", "live"},
		{"#!::r=..", "live"},
		{"#!::r=live/", "live"},
		{"#!::r", "live"},
		{`a\b`, "b"},
	}
	for _, item := range golden {
		assert.Equal(t, item.name, logic.StreamNameOfStreamId(item.streamId, "live"), item.streamId)
	}
}

func TestServerManager_GetPlaylist(t *testing.T) {
	config, err := logic.ParseConf([]byte(`{"hls": {"http_listen_addr": ""}}`))
	assert.Equal(t, nil, err)
	sm := logic.NewServerManager(config)
	_, ok := sm.GetPlaylist("notexist")
	assert.Equal(t, false, ok)
	assert.Equal(t, "", sm.HlsListenAddr())
	assert.Equal(t, 0, len(sm.StatStreams()))
	sm.Dispose()
	sm.Dispose()
}
