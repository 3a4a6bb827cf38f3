// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/lalrtx
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/q191201771/lalrtx/pkg/base"
	"github.com/q191201771/lalrtx/pkg/loopback"
	"github.com/q191201771/naza/pkg/bininfo"
	"github.com/q191201771/naza/pkg/nazalog"
)

// 用一份sdp同时构造发送端和接收端，随机重传一部分包，检查接收端还原出来的包和原始包一致

func main() {
	confFile, dumpFile := parseFlag()
	if dumpFile != "" {
		readDump(dumpFile)
		return
	}

	config := loadConf(confFile)
	initLog(config.Log)
	base.Log = nazalog.GetGlobalLogger()
	nazalog.Infof("bininfo: %s", bininfo.StringifySingleLine())
	nazalog.Infof("version: %s", base.LalRtxFullInfo)

	l, err := loopback.NewLoopbackFromConf(*config)
	if err != nil {
		nazalog.Errorf("create loopback failed. err=%+v", err)
		os.Exit(1)
	}

	stat, err := l.Run()
	if e := l.Dispose(); e != nil {
		nazalog.Warnf("[%s] dispose loopback failed. err=%+v", l.UniqueKey(), e)
	}
	if err != nil {
		nazalog.Errorf("[%s] loopback mismatch. stat=%+v, err=%+v", l.UniqueKey(), stat, err)
		os.Exit(1)
	}
	nazalog.Infof("[%s] loopback succ. sent=%d, retransmitted=%d, restored=%d",
		l.UniqueKey(), stat.Sent, stat.Retransmitted, stat.Restored)
}

func parseFlag() (confFile string, dumpFile string) {
	binInfoFlag := flag.Bool("v", false, "show bin info")
	cf := flag.String("c", "", "specify conf file")
	df := flag.String("r", "", "read and print dump file")
	flag.Parse()
	if *binInfoFlag {
		_, _ = fmt.Fprint(os.Stderr, bininfo.StringifyMultiLine())
		_, _ = fmt.Fprintln(os.Stderr, base.LalRtxFullInfo)
		os.Exit(0)
	}
	if *cf == "" && *df == "" {
		flag.Usage()
		_, _ = fmt.Fprintf(os.Stderr, `
Example:
  ./bin/rtxloopback -c ./conf/rtxloopback.conf.json
  ./bin/rtxloopback -r ./logs/rtxloopback.laldump
`)
		os.Exit(1)
	}
	return *cf, *df
}

func readDump(filename string) {
	df := base.NewDumpFile()
	if err := df.OpenToRead(filename); err != nil {
		nazalog.Errorf("open dump file failed. file=%s, err=%+v", filename, err)
		os.Exit(1)
	}
	defer df.Close()

	n := 0
	for {
		m, err := df.ReadOneMessage()
		if err == io.EOF {
			break
		}
		if err != nil {
			nazalog.Errorf("read dump file failed. file=%s, n=%d, err=%+v", filename, n, err)
			return
		}
		n++
		nazalog.Debugf("%s", m.DebugString())
	}
	nazalog.Infof("read dump file done. file=%s, n=%d", filename, n)
}

func loadConf(confFile string) *loopback.Config {
	config, err := loopback.LoadConf(confFile)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "load conf failed. file=%s err=%+v\n", confFile, err)
		os.Exit(1)
	}
	return config
}

func initLog(opt nazalog.Option) {
	if err := nazalog.Init(func(option *nazalog.Option) {
		*option = opt
	}); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "initial log failed. err=%+v\n", err)
		os.Exit(1)
	}
	nazalog.Info("initial log succ.")
}
