// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/srt2hls
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package innertest

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/q191201771/naza/pkg/assert"
	"github.com/q191201771/naza/pkg/nazalog"
	"github.com/q191201771/naza/pkg/nazamd5"
	"github.com/q191201771/naza/pkg/nazanet"
	"github.com/q191201771/srt2hls/pkg/logic"
	"github.com/q191201771/srt2hls/pkg/mpegts"
	"github.com/q191201771/srt2hls/pkg/srt"
)

// 开启一个srt2hls服务，服务的切片存储在内存中
// 使用SRT caller推送构造的TS流
// 推流过程中通过http拉取playlist和切片，与推送的内容对比
// 断开推流后再拉取一次，playlist应该带上 #EXT-X-ENDLIST

const (
	innerTestStreamName = "innertest"
	innerTestOutPath    = "/tmp/srt2hls_innertest/hls/"
	waitTimeout         = 5 * time.Second
)

func Entry(t *testing.T) {
	pool := nazanet.NewAvailUdpConnPool(41000, 42000)
	port, err := pool.Peek()
	assert.Equal(t, nil, err)
	srtAddr := fmt.Sprintf("127.0.0.1:%d", port)

	config, err := logic.ParseConf([]byte(fmt.Sprintf(`{
  "conf_version": "v0.1.0",
  "srt": {
    "addr": "%s"
  },
  "hls": {
    "use_memory_as_disk_flag": true,
    "http_listen_addr": "127.0.0.1:0",
    "out_path": "%s",
    "segment_duration_sec": 1,
    "record_raw_ts": true
  },
  "stat_interval_sec": 1
}`, srtAddr, innerTestOutPath)))
	assert.Equal(t, nil, err)

	sm := logic.NewServerManager(config)
	err = sm.Listen()
	assert.Equal(t, nil, err)
	runErrChan := make(chan error, 1)
	go func() {
		runErrChan <- sm.RunLoop()
	}()
	hlsAddr := sm.HlsListenAddr()
	nazalog.Debugf("innertest server started. srt=%s, hls=%s", srtAddr, hlsAddr)

	caller := srt.NewCaller(func(option *srt.CallerOption) {
		option.StreamId = "#!::r=live/" + innerTestStreamName + ",m=publish"
	})
	err = caller.Dial(srtAddr)
	assert.Equal(t, nil, err)

	waitUntil(t, func() bool {
		return len(sm.StatStreams()) == 1
	})
	assert.Equal(t, innerTestStreamName, sm.StatStreams()[0].StreamName)

	stream := GenTsStream()
	packetNum := (len(stream) + srt.DefaultPayloadSize - 1) / srt.DefaultPayloadSize
	for i := 0; i < len(stream); i += srt.DefaultPayloadSize {
		end := i + srt.DefaultPayloadSize
		if end > len(stream) {
			end = len(stream)
		}
		err = caller.Write(stream[i:end])
		assert.Equal(t, nil, err)
		time.Sleep(time.Millisecond)
	}

	waitUntil(t, func() bool {
		stats := sm.StatStreams()
		return len(stats) == 1 && stats[0].RecvPackets == uint64(packetNum)
	})
	stat := sm.StatStreams()[0]
	assert.Equal(t, uint64(0), stat.LossPackets)
	assert.Equal(t, uint64(2), stat.SegmentIndex)
	assert.Equal(t, 2, stat.SegmentNum)

	urlPrefix := fmt.Sprintf("http://%s/hls/%s/", hlsAddr, innerTestStreamName)

	// 推流中
	playlist, code := httpGet(t, urlPrefix+"playlist.m3u8")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, bytes.Contains(playlist, []byte("segment_0.ts\n")))
	assert.Equal(t, true, bytes.Contains(playlist, []byte("segment_1.ts\n")))
	assert.Equal(t, false, bytes.Contains(playlist, []byte("segment_2.ts\n")))
	assert.Equal(t, false, bytes.Contains(playlist, []byte("#EXT-X-ENDLIST")))

	seg0, code := httpGet(t, urlPrefix+"segment_0.ts")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, nazamd5.Md5(stream[:54*mpegts.PacketSize]), nazamd5.Md5(seg0))

	// 断开推流
	err = caller.Dispose()
	assert.Equal(t, nil, err)
	waitUntil(t, func() bool {
		return len(sm.StatStreams()) == 0
	})

	playlist, code = httpGet(t, fmt.Sprintf("http://%s/hls/%s.m3u8", hlsAddr, innerTestStreamName))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, bytes.HasSuffix(playlist, []byte("segment_2.ts\n#EXT-X-ENDLIST\n")))

	seg2, code := httpGet(t, urlPrefix+"segment_2.ts")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, stream[81*mpegts.PacketSize:], seg2)

	record, code := httpGet(t, urlPrefix+"record.ts")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, nazamd5.Md5(stream), nazamd5.Md5(record))

	_, code = httpGet(t, fmt.Sprintf("http://%s/hls/notexist/playlist.m3u8", hlsAddr))
	assert.Equal(t, http.StatusNotFound, code)

	sm.Dispose()
	select {
	case err = <-runErrChan:
		assert.Equal(t, nil, err)
	case <-time.After(waitTimeout):
		t.Fatal("wait server manager run loop timeout")
	}
}

func waitUntil(t *testing.T, cond func() bool) {
	deadline := time.Now().Add(waitTimeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("wait condition timeout")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func httpGet(t *testing.T, url string) ([]byte, int) {
	resp, err := http.Get(url)
	assert.Equal(t, nil, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	assert.Equal(t, nil, err)
	return body, resp.StatusCode
}
