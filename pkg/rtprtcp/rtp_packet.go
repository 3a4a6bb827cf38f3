// Copyright 2021, Chef.  All rights reserved.
// https://github.com/q191201771/lalrtx
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package rtprtcp

import (
	"github.com/pion/rtp"
	"github.com/q191201771/lalrtx/pkg/base"
	"github.com/q191201771/naza/pkg/bele"
	"github.com/q191201771/naza/pkg/nazaerrors"
)

// -----------------------------------
// rfc3550 5.1 RTP Fixed Header Fields
// -----------------------------------
//
// 0                   1                   2                   3
// 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |V=2|P|X|  CC   |M|     PT      |       sequence number         |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |                           timestamp                           |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |           synchronization source (SSRC) identifier            |
// +=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+
// |            contributing source (CSRC) identifiers             |
// |                             ....                              |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+

const (
	RtpFixedHeaderLength = 12

	DefaultRtpVersion = 2
)

type RtpHeader struct {
	Version    uint8  // 2b  *
	Padding    uint8  // 1b
	Extension  uint8  // 1
	CsrcCount  uint8  // 4b
	Mark       uint8  // 1b  *
	PacketType uint8  // 7b
	Seq        uint16 // 16b **
	Timestamp  uint32 // 32b **** samples
	Ssrc       uint32 // 32b **** Synchronization source

	payloadOffset uint32 // 包含固定头、CSRC列表以及扩展头
}

// RtpPacket 一个rtp包在内存块上的视图
//
// 内存块 buf 的 [offset, offset+length) 区间为整个rtp包，满足：
// HeaderLength() + PayloadLength() + PaddingLength() == Len()
//
// 修改包头字段直接写 buf，RtpPacket 的值拷贝之间共享同一块内存
type RtpPacket struct {
	buf    []byte
	offset int
	length int

	headerLength  int
	paddingLength int
}

// PackTo 只写入12字节的固定头，调用方保证 out 长度足够
func (h *RtpHeader) PackTo(out []byte) {
	out[0] = h.CsrcCount | (h.Extension << 4) | (h.Padding << 5) | (h.Version << 6)
	out[1] = h.PacketType | (h.Mark << 7)
	bele.BePutUint16(out[2:], h.Seq)
	bele.BePutUint32(out[4:], h.Timestamp)
	bele.BePutUint32(out[8:], h.Ssrc)
}

func (h *RtpHeader) HeaderLength() int {
	return int(h.payloadOffset)
}

func MakeDefaultRtpHeader() RtpHeader {
	return RtpHeader{
		Version:       DefaultRtpVersion,
		Padding:       0,
		Extension:     0,
		CsrcCount:     0,
		payloadOffset: RtpFixedHeaderLength,
	}
}

// MakeRtpPacket 使用固定头以及 payload 构造一个新的rtp包，不带CSRC、扩展头以及padding
func MakeRtpPacket(h RtpHeader, payload []byte) (pkt RtpPacket) {
	h.CsrcCount = 0
	h.Extension = 0
	h.Padding = 0
	pkt.buf = make([]byte, RtpFixedHeaderLength+len(payload))
	h.PackTo(pkt.buf)
	copy(pkt.buf[RtpFixedHeaderLength:], payload)
	pkt.length = len(pkt.buf)
	pkt.headerLength = RtpFixedHeaderLength
	return
}

// ParseRtpHeader 解析rtp包头，CSRC以及扩展头的长度交给 pion/rtp 计算
func ParseRtpHeader(b []byte) (h RtpHeader, err error) {
	if len(b) < RtpFixedHeaderLength {
		err = base.NewErrRtpRtcpShortBuffer(RtpFixedHeaderLength, len(b), "rtp header")
		return
	}

	var ph rtp.Header
	n, err := ph.Unmarshal(b)
	if err != nil {
		err = nazaerrors.Wrap(err)
		return
	}

	h.Version = ph.Version
	h.Padding = (b[0] >> 5) & 0x1
	h.Extension = (b[0] >> 4) & 0x1
	h.CsrcCount = b[0] & 0xF
	h.Mark = b[1] >> 7
	h.PacketType = ph.PayloadType
	h.Seq = ph.SequenceNumber
	h.Timestamp = ph.Timestamp
	h.Ssrc = ph.SSRC

	h.payloadOffset = uint32(n)
	return
}

// ParseRtpPacket 函数调用结束后，不持有参数<b>的内存块
func ParseRtpPacket(b []byte) (pkt RtpPacket, err error) {
	raw := make([]byte, len(b))
	copy(raw, b)
	return ParseRtpPacketRef(raw, 0, len(raw))
}

// ParseRtpPacketRef 直接引用 buf 的 [offset, offset+length) 区间，不拷贝
//
// 后续对返回值的修改会写入 buf
func ParseRtpPacketRef(buf []byte, offset, length int) (pkt RtpPacket, err error) {
	if offset < 0 || length < 0 || offset+length > len(buf) {
		err = base.NewErrRtpOutOfRange(offset, length, len(buf))
		return
	}

	raw := buf[offset : offset+length]
	h, err := ParseRtpHeader(raw)
	if err != nil {
		return
	}

	pkt.buf = buf
	pkt.offset = offset
	pkt.length = length
	pkt.headerLength = h.HeaderLength()

	if h.Padding == 1 {
		// rfc3550 5.1 padding的最后一个字节是padding的长度，包含自身
		if length == pkt.headerLength {
			err = base.ErrRtpInvalidPadding
			return
		}
		n := int(raw[length-1])
		if n == 0 || n > length-pkt.headerLength {
			err = base.ErrRtpInvalidPadding
			return
		}
		pkt.paddingLength = n
	}
	return
}

// Buffer 底层的整个内存块，不只是rtp包所在的区间
func (p *RtpPacket) Buffer() []byte {
	return p.buf
}

func (p *RtpPacket) Offset() int {
	return p.offset
}

func (p *RtpPacket) Len() int {
	return p.length
}

// Raw 整个rtp包的内存，包含header
func (p *RtpPacket) Raw() []byte {
	return p.buf[p.offset : p.offset+p.length]
}

func (p *RtpPacket) HeaderLength() int {
	return p.headerLength
}

// PayloadLength 不包含header以及padding
func (p *RtpPacket) PayloadLength() int {
	return p.length - p.headerLength - p.paddingLength
}

func (p *RtpPacket) PaddingLength() int {
	return p.paddingLength
}

// Payload 不包含padding
func (p *RtpPacket) Payload() []byte {
	start := p.offset + p.headerLength
	return p.buf[start : start+p.PayloadLength()]
}

// Padding padding区间，包含最后一个表示长度的字节，没有padding时返回nil
func (p *RtpPacket) Padding() []byte {
	if p.paddingLength == 0 {
		return nil
	}
	end := p.offset + p.length
	return p.buf[end-p.paddingLength : end]
}

func (p *RtpPacket) Ssrc() uint32 {
	return bele.BeUint32(p.buf[p.offset+8:])
}

func (p *RtpPacket) SetSsrc(ssrc uint32) {
	bele.BePutUint32(p.buf[p.offset+8:], ssrc)
}

func (p *RtpPacket) Seq() uint16 {
	return bele.BeUint16(p.buf[p.offset+2:])
}

func (p *RtpPacket) SetSeq(seq uint16) {
	bele.BePutUint16(p.buf[p.offset+2:], seq)
}

func (p *RtpPacket) PayloadType() uint8 {
	return p.buf[p.offset+1] & 0x7F
}

// SetPayloadType 保留mark位
func (p *RtpPacket) SetPayloadType(pt uint8) {
	p.buf[p.offset+1] = (p.buf[p.offset+1] & 0x80) | (pt & 0x7F)
}

func (p *RtpPacket) Timestamp() uint32 {
	return bele.BeUint32(p.buf[p.offset+4:])
}

// SetOffset 移动包的起始位置，不移动内存中的数据，调用方保证新位置上是完整的包头
func (p *RtpPacket) SetOffset(offset int) error {
	if offset < 0 || offset+p.length > len(p.buf) {
		return base.NewErrRtpOutOfRange(offset, p.length, len(p.buf))
	}
	p.offset = offset
	return nil
}

// SetLength 修改包的总长度，header以及padding的长度不变，所以只有payload的长度发生变化
func (p *RtpPacket) SetLength(length int) error {
	if length < p.headerLength+p.paddingLength || p.offset+length > len(p.buf) {
		return base.NewErrRtpOutOfRange(p.offset, length, len(p.buf))
	}
	p.length = length
	return nil
}

// Clone 深拷贝，返回值使用新申请的内存块，offset为0
func (p *RtpPacket) Clone() RtpPacket {
	out := *p
	out.buf = make([]byte, p.length)
	copy(out.buf, p.Raw())
	out.offset = 0
	return out
}
