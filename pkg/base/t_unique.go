// Copyright 2020, Chef.  All rights reserved.
// https://github.com/q191201771/lalrtx
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import "github.com/q191201771/naza/pkg/unique"

const (
	UkPreRtxTransformer = "RTXTRANS"
	UkPreRtxLoopback    = "RTXLOOP"
)

func GenUkRtxTransformer() string {
	return siUkRtxTransformer.GenUniqueKey()
}

func GenUkRtxLoopback() string {
	return siUkRtxLoopback.GenUniqueKey()
}

var (
	siUkRtxTransformer *unique.SingleGenerator
	siUkRtxLoopback    *unique.SingleGenerator
)

func init() {
	siUkRtxTransformer = unique.NewSingleGenerator(UkPreRtxTransformer)
	siUkRtxLoopback = unique.NewSingleGenerator(UkPreRtxLoopback)
}
