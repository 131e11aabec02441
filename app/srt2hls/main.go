// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/srt2hls
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/q191201771/naza/pkg/bininfo"
	"github.com/q191201771/srt2hls/pkg/base"
	"github.com/q191201771/srt2hls/pkg/logic"
)

func main() {
	confFile := parseFlag()

	config, err := logic.LoadConfAndInitLog(confFile)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "load conf failed. file=%s, err=%+v\n", confFile, err)
		base.OsExitAndWaitPressIfWindows(1)
	}
	base.LogoutStartInfo()

	sm := logic.NewServerManager(config)
	if err = sm.Listen(); err != nil {
		logic.Log.Errorf("listen failed. err=%+v", err)
		base.OsExitAndWaitPressIfWindows(1)
	}

	go base.RunSignalHandler(func() {
		sm.Dispose()
	})

	err = sm.RunLoop()
	logic.Log.Infof("exit. err=%+v", err)
}

func parseFlag() string {
	binInfoFlag := flag.Bool("v", false, "show bin info")
	cf := flag.String("c", "", "specify conf file")
	flag.Parse()
	if *binInfoFlag {
		_, _ = fmt.Fprint(os.Stderr, bininfo.StringifyMultiLine())
		_, _ = fmt.Fprintln(os.Stderr, base.FullInfo)
		os.Exit(0)
	}
	if *cf == "" {
		_, _ = fmt.Fprintf(os.Stderr, `no conf file specified, try default conf files.

Example:
  ./bin/srt2hls -c ./conf/srt2hls.conf.json
`)
	}
	return *cf
}
