// Copyright 2020, Chef.  All rights reserved.
// https://github.com/q191201771/lalrtx
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import "strings"

// 版本信息相关
// 一部分版本信息使用了naza.bininfo，另外一些信息在本文件提供

// LalRtxVersion 版本，该变量由外部脚本修改维护
const LalRtxVersion = "v0.1.0"

var (
	LalRtxLibraryName = "lalrtx"
	LalRtxGithubRepo  = "github.com/q191201771/lalrtx"
	LalRtxGithubSite  = "https://github.com/q191201771/lalrtx"

	// LalRtxFullInfo e.g. lalrtx v0.1.0 (github.com/q191201771/lalrtx)
	LalRtxFullInfo = LalRtxLibraryName + " " + LalRtxVersion + " (" + LalRtxGithubRepo + ")"

	// LalRtxVersionDot e.g. 0.1.0
	LalRtxVersionDot string
)

func init() {
	LalRtxVersionDot = strings.TrimPrefix(LalRtxVersion, "v")
}
