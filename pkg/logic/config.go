// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/srt2hls
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package logic

import (
	"encoding/json"
	"path/filepath"

	"github.com/q191201771/naza/pkg/nazajson"
	"github.com/q191201771/naza/pkg/nazalog"
	"github.com/q191201771/srt2hls/pkg/base"
	"github.com/q191201771/srt2hls/pkg/hls"
)

const (
	defaultSrtAddr         = ":9000"
	defaultHlsOutPath      = "./srt2hls/hls/"
	defaultHlsHttpAddr     = ":8080"
	defaultHlsUrlPattern   = "/hls/"
	defaultStatIntervalSec = 10
	defaultStreamName      = "live"
	defaultLogFilename     = "./logs/srt2hls.log"
)

type Config struct {
	ConfVersion     string         `json:"conf_version"`
	SrtConfig       SrtConfig      `json:"srt"`
	HlsConfig       HlsConfig      `json:"hls"`
	LogConfig       nazalog.Option `json:"log"`
	StatIntervalSec int            `json:"stat_interval_sec"`
}

type SrtConfig struct {
	Addr          string `json:"addr"`
	IdleTimeoutMs int    `json:"idle_timeout_ms"`
	DumpFilename  string `json:"dump_filename"`

	// DefaultStreamName stream id中没有资源名时使用的流名称
	DefaultStreamName string `json:"default_stream_name"`
}

type HlsConfig struct {
	UseMemoryAsDiskFlag bool   `json:"use_memory_as_disk_flag"`
	HttpListenAddr      string `json:"http_listen_addr"` // 为空时不提供http服务，只落盘
	UrlPattern          string `json:"url_pattern"`
	hls.SegmenterConfig
}

// DefaultConfFilenameList 没有指定配置文件时，按顺序作为优先级，找到第一个存在的并使用
var DefaultConfFilenameList = []string{
	filepath.FromSlash("srt2hls.conf.json"),
	filepath.FromSlash("./conf/srt2hls.conf.json"),
	filepath.FromSlash("../srt2hls.conf.json"),
	filepath.FromSlash("../conf/srt2hls.conf.json"),
	filepath.FromSlash("../../conf/srt2hls.conf.json"),
}

// LoadConfAndInitLog 读取配置文件，填充默认值，并初始化全局日志
//
// @param confFile: 为空时尝试 DefaultConfFilenameList
func LoadConfAndInitLog(confFile string) (*Config, error) {
	rawContent, err := base.ReadConfigFile(confFile, DefaultConfFilenameList)
	if err != nil {
		return nil, err
	}
	config, err := ParseConf(rawContent)
	if err != nil {
		return nil, err
	}

	// 日志配置尽量提前，使得后续的日志按配置输出
	if err = Log.Init(func(option *nazalog.Option) {
		*option = config.LogConfig
	}); err != nil {
		return nil, err
	}

	if config.ConfVersion != base.ConfVersion {
		Log.Warnf("config version invalid. conf version of srt2hls=%s, conf version of config file=%s",
			base.ConfVersion, config.ConfVersion)
	}
	Log.Infof("load conf file succ. raw content=%s parsed=%+v", rawContent, config)
	return config, nil
}

// ParseConf 解析json格式的配置内容，配置文件中不存在的字段使用默认值
func ParseConf(rawContent []byte) (*Config, error) {
	var config Config
	if err := json.Unmarshal(rawContent, &config); err != nil {
		return nil, err
	}

	j, err := nazajson.New(rawContent)
	if err != nil {
		return nil, err
	}

	if !j.Exist("srt.addr") {
		config.SrtConfig.Addr = defaultSrtAddr
	}
	if !j.Exist("srt.idle_timeout_ms") {
		config.SrtConfig.IdleTimeoutMs = base.SrtConnectionIdleTimeoutMs
	}
	if !j.Exist("srt.default_stream_name") {
		config.SrtConfig.DefaultStreamName = defaultStreamName
	}

	if !j.Exist("hls.out_path") {
		config.HlsConfig.OutPath = defaultHlsOutPath
	}
	if !j.Exist("hls.segment_duration_sec") {
		config.HlsConfig.SegmentDurationSec = hls.DefaultSegmentDurationSec
	}
	if !j.Exist("hls.playlist_window") {
		config.HlsConfig.PlaylistWindow = hls.DefaultPlaylistWindow
	}
	if !j.Exist("hls.http_listen_addr") {
		config.HlsConfig.HttpListenAddr = defaultHlsHttpAddr
	}
	if !j.Exist("hls.url_pattern") {
		config.HlsConfig.UrlPattern = defaultHlsUrlPattern
	}

	if !j.Exist("stat_interval_sec") {
		config.StatIntervalSec = defaultStatIntervalSec
	}

	if !j.Exist("log.level") {
		config.LogConfig.Level = nazalog.LevelDebug
	}
	if !j.Exist("log.filename") {
		config.LogConfig.Filename = defaultLogFilename
	}
	if !j.Exist("log.is_to_stdout") {
		config.LogConfig.IsToStdout = true
	}
	if !j.Exist("log.is_rotate_daily") {
		config.LogConfig.IsRotateDaily = true
	}
	if !j.Exist("log.short_file_flag") {
		config.LogConfig.ShortFileFlag = true
	}
	if !j.Exist("log.timestamp_flag") {
		config.LogConfig.TimestampFlag = true
	}
	if !j.Exist("log.timestamp_with_ms_flag") {
		config.LogConfig.TimestampWithMsFlag = true
	}
	if !j.Exist("log.level_flag") {
		config.LogConfig.LevelFlag = true
	}
	if !j.Exist("log.assert_behavior") {
		config.LogConfig.AssertBehavior = nazalog.AssertError
	}

	return &config, nil
}
