// Copyright 2020, Chef.  All rights reserved.
// https://github.com/q191201771/lalrtx
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package rtprtcp

import (
	"github.com/q191201771/naza/pkg/bele"
)

//        0                   1                   2                   3
//        0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
//        +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// header |V=2|P|    RC   |      PT       |             length            |
//        +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+

const (
	RtcpHeaderLength = 4

	RtcpVersion = 2
)

type RtcpHeader struct {
	Version       uint8  // 2b
	Padding       uint8  // 1b
	CountOrFormat uint8  // 5b
	PacketType    uint8  // 8b
	Length        uint16 // 16b, whole packet byte length = (Length+1) * 4
}

// ParseRtcpHeader 调用方保证长度>=4
func ParseRtcpHeader(b []byte) RtcpHeader {
	var h RtcpHeader
	h.Version = b[0] >> 6
	h.Padding = (b[0] >> 5) & 0x1
	h.CountOrFormat = b[0] & 0x1F
	h.PacketType = b[1]
	h.Length = bele.BeUint16(b[2:])
	return h
}

// IsRtcpPacket rtp和rtcp复用同一个端口时区分两者
//
// rfc5761 4. Distinguishable RTP and RTCP Packets
// 第二个字节在[192, 223]区间的是rtcp，对应rtp的情况是mark位为1且payload type在[64, 95]区间，
// 这段payload type不会被动态分配
func IsRtcpPacket(b []byte) bool {
	if len(b) < RtcpHeaderLength {
		return false
	}
	h := ParseRtcpHeader(b)
	if h.Version != RtcpVersion {
		return false
	}
	return h.PacketType >= 192 && h.PacketType <= 223
}
