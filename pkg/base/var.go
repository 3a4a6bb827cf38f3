// Copyright 2021, Chef.  All rights reserved.
// https://github.com/q191201771/lalrtx
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import "github.com/q191201771/naza/pkg/nazalog"

var Log = nazalog.GetGlobalLogger()

// ----- rtx --------------------
var (
	// RtxDebugDumpPacketMaxNum 日志级别为debug时，每个transformer打印被丢弃RTX包详情的最大次数
	RtxDebugDumpPacketMaxNum = 10
)
