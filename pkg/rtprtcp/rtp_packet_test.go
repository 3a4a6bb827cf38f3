// Copyright 2021, Chef.  All rights reserved.
// https://github.com/q191201771/lalrtx
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package rtprtcp_test

import (
	"testing"

	"github.com/pion/rtp"
	"github.com/q191201771/lalrtx/pkg/rtprtcp"

	"github.com/q191201771/naza/pkg/assert"
)

// padding字节由调用方追加在payload后面，pion只负责设置P位
func marshalWithPadding(t *testing.T, h rtp.Header, payload []byte, paddingLength int) []byte {
	h.Padding = paddingLength > 0
	b, err := h.Marshal()
	assert.Equal(t, nil, err)
	b = append(b, payload...)
	if paddingLength > 0 {
		pad := make([]byte, paddingLength)
		pad[paddingLength-1] = byte(paddingLength)
		b = append(b, pad...)
	}
	return b
}

func TestMakeRtpPacket(t *testing.T) {
	h := rtprtcp.MakeDefaultRtpHeader()
	h.PacketType = 96
	h.Seq = 50
	h.Timestamp = 3000
	h.Ssrc = 1000
	// 会被清零
	h.Padding = 1
	h.CsrcCount = 3
	pkt := rtprtcp.MakeRtpPacket(h, []byte{1, 2, 3})

	assert.Equal(t, 15, pkt.Len())
	assert.Equal(t, 0, pkt.Offset())
	assert.Equal(t, 12, pkt.HeaderLength())
	assert.Equal(t, 3, pkt.PayloadLength())
	assert.Equal(t, 0, pkt.PaddingLength())
	assert.Equal(t, []byte{1, 2, 3}, pkt.Payload())
	assert.Equal(t, true, pkt.Padding() == nil)
	assert.Equal(t, uint32(1000), pkt.Ssrc())
	assert.Equal(t, uint16(50), pkt.Seq())
	assert.Equal(t, uint8(96), pkt.PayloadType())
	assert.Equal(t, uint32(3000), pkt.Timestamp())
	assert.Equal(t, byte(0x80), pkt.Raw()[0])

	var ph rtp.Header
	n, err := ph.Unmarshal(pkt.Raw())
	assert.Equal(t, nil, err)
	assert.Equal(t, pkt.HeaderLength(), n)
	assert.Equal(t, uint32(1000), ph.SSRC)
	assert.Equal(t, false, ph.Padding)
	assert.Equal(t, 0, len(ph.CSRC))
}

func TestParseRtpPacket(t *testing.T) {
	ph := rtp.Header{
		Version:        2,
		PayloadType:    96,
		SequenceNumber: 50,
		Timestamp:      90000,
		SSRC:           1000,
		CSRC:           []uint32{11},
	}
	b := marshalWithPadding(t, ph, []byte{0xa, 0xb, 0xc}, 4)

	pkt, err := rtprtcp.ParseRtpPacket(b)
	assert.Equal(t, nil, err)
	assert.Equal(t, len(b), pkt.Len())
	assert.Equal(t, 16, pkt.HeaderLength())
	assert.Equal(t, 3, pkt.PayloadLength())
	assert.Equal(t, 4, pkt.PaddingLength())
	assert.Equal(t, []byte{0xa, 0xb, 0xc}, pkt.Payload())
	assert.Equal(t, []byte{0, 0, 0, 4}, pkt.Padding())
	assert.Equal(t, pkt.Len(), pkt.HeaderLength()+pkt.PayloadLength()+pkt.PaddingLength())

	// 拷贝语义，修改不影响原内存
	pkt.SetSsrc(2000)
	assert.Equal(t, uint32(2000), pkt.Ssrc())
	assert.Equal(t, byte(0xe8), b[11])
}

func TestParseRtpPacketRef(t *testing.T) {
	h := rtprtcp.MakeDefaultRtpHeader()
	h.PacketType = 96
	h.Seq = 1
	h.Ssrc = 1000
	src := rtprtcp.MakeRtpPacket(h, []byte{1, 2, 3, 4})

	buf := make([]byte, 4+src.Len()+4)
	copy(buf[4:], src.Raw())

	pkt, err := rtprtcp.ParseRtpPacketRef(buf, 4, src.Len())
	assert.Equal(t, nil, err)
	assert.Equal(t, 4, pkt.Offset())
	assert.Equal(t, src.Len(), pkt.Len())
	assert.Equal(t, []byte{1, 2, 3, 4}, pkt.Payload())
	assert.Equal(t, len(buf), len(pkt.Buffer()))

	// 引用语义，修改写入buf
	pkt.SetSeq(0x1234)
	assert.Equal(t, byte(0x12), buf[4+2])
	assert.Equal(t, byte(0x34), buf[4+3])

	_, err = rtprtcp.ParseRtpPacketRef(buf, 9, src.Len())
	assert.IsNotNil(t, err)
	_, err = rtprtcp.ParseRtpPacketRef(buf, -1, src.Len())
	assert.IsNotNil(t, err)
	_, err = rtprtcp.ParseRtpPacketRef(buf, 4, 11)
	assert.IsNotNil(t, err)
}

func TestParseRtpPacketInvalidPadding(t *testing.T) {
	ph := rtp.Header{
		Version:        2,
		PayloadType:    96,
		SequenceNumber: 1,
		SSRC:           1000,
	}

	// 只有包头却设置了P位
	b := marshalWithPadding(t, ph, nil, 0)
	b[0] |= 0x20
	_, err := rtprtcp.ParseRtpPacket(b)
	assert.IsNotNil(t, err)

	// padding长度为0
	b = marshalWithPadding(t, ph, []byte{1, 2}, 2)
	b[len(b)-1] = 0
	_, err = rtprtcp.ParseRtpPacket(b)
	assert.IsNotNil(t, err)

	// padding长度超出payload区间
	b = marshalWithPadding(t, ph, []byte{1, 2}, 2)
	b[len(b)-1] = 5
	_, err = rtprtcp.ParseRtpPacket(b)
	assert.IsNotNil(t, err)

	// padding占满整个payload区间是合法的
	b = marshalWithPadding(t, ph, nil, 3)
	pkt, err := rtprtcp.ParseRtpPacket(b)
	assert.Equal(t, nil, err)
	assert.Equal(t, 0, pkt.PayloadLength())
	assert.Equal(t, 3, pkt.PaddingLength())
	assert.Equal(t, 0, len(pkt.Payload()))
}

func TestRtpPacketSetter(t *testing.T) {
	h := rtprtcp.MakeDefaultRtpHeader()
	h.Mark = 1
	h.PacketType = 96
	h.Seq = 65535
	h.Ssrc = 1
	pkt := rtprtcp.MakeRtpPacket(h, []byte{1, 2})

	pkt.SetPayloadType(97)
	assert.Equal(t, uint8(97), pkt.PayloadType())
	assert.Equal(t, byte(0x80|97), pkt.Raw()[1])

	pkt.SetPayloadType(0xFF)
	assert.Equal(t, uint8(0x7F), pkt.PayloadType())
	assert.Equal(t, byte(0xFF), pkt.Raw()[1])

	pkt.SetSeq(0)
	assert.Equal(t, uint16(0), pkt.Seq())
	pkt.SetSsrc(0xFFFFFFFF)
	assert.Equal(t, uint32(0xFFFFFFFF), pkt.Ssrc())
}

func TestRtpPacketSetOffsetLength(t *testing.T) {
	h := rtprtcp.MakeDefaultRtpHeader()
	h.Ssrc = 1
	src := rtprtcp.MakeRtpPacket(h, []byte{1, 2, 3})
	buf := make([]byte, src.Len()+2)
	copy(buf, src.Raw())
	pkt, err := rtprtcp.ParseRtpPacketRef(buf, 0, src.Len())
	assert.Equal(t, nil, err)

	assert.Equal(t, nil, pkt.SetOffset(2))
	assert.Equal(t, 2, pkt.Offset())
	assert.IsNotNil(t, pkt.SetOffset(3))
	assert.IsNotNil(t, pkt.SetOffset(-1))
	assert.Equal(t, 2, pkt.Offset())

	assert.Equal(t, nil, pkt.SetLength(12))
	assert.Equal(t, 0, pkt.PayloadLength())
	assert.IsNotNil(t, pkt.SetLength(11))
	assert.IsNotNil(t, pkt.SetLength(src.Len()+1))
	assert.Equal(t, 12, pkt.Len())
}

func TestRtpPacketClone(t *testing.T) {
	h := rtprtcp.MakeDefaultRtpHeader()
	h.Ssrc = 1000
	src := rtprtcp.MakeRtpPacket(h, []byte{1, 2, 3})
	buf := make([]byte, 3+src.Len())
	copy(buf[3:], src.Raw())
	pkt, err := rtprtcp.ParseRtpPacketRef(buf, 3, src.Len())
	assert.Equal(t, nil, err)

	c := pkt.Clone()
	assert.Equal(t, 0, c.Offset())
	assert.Equal(t, pkt.Raw(), c.Raw())
	assert.Equal(t, pkt.Len(), len(c.Buffer()))

	c.SetSsrc(2000)
	assert.Equal(t, uint32(1000), pkt.Ssrc())
	assert.Equal(t, uint32(2000), c.Ssrc())
}
