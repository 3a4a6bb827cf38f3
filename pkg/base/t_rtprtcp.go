// Copyright 2020, Chef.  All rights reserved.
// https://github.com/q191201771/lalrtx
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

const (
	// RtpPacketTypeVp8 webrtc场景下的常见取值，真实取值以协商结果为准
	//
	// 我遇到过的：
	// VP8使用96，对应RTX使用97
	// H264使用102，对应RTX使用121
	RtpPacketTypeVp8    = 96
	RtpPacketTypeVp8Rtx = 97

	// RtxOsnLength rfc4588 4. RTX Payload Format, original sequence number 2字节
	RtxOsnLength = 2

	RtxEncodingName = "rtx"
)
