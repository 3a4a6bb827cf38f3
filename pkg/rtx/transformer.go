// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/lalrtx
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package rtx

import (
	"github.com/q191201771/lalrtx/pkg/base"
	"github.com/q191201771/lalrtx/pkg/rtprtcp"
	"github.com/q191201771/naza/pkg/bele"
	"github.com/q191201771/naza/pkg/nazaatomic"
)

// rfc4588 4. RTX Payload Format
//
//  0                   1                   2                   3
//  0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |                         RTP Header                            |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |            OSN                |                               |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+                               |
// |                  Original RTP Packet Payload                  |
// |                                                               |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+

type TransformerOption struct {
	// DebugDumpPacketMaxNum 日志级别为debug时，打印被丢弃包详情的最大次数
	DebugDumpPacketMaxNum int

	// SeqAllocator 为nil时内部创建
	SeqAllocator *SeqAllocator
}

var defaultTransformerOption = TransformerOption{
	DebugDumpPacketMaxNum: base.RtxDebugDumpPacketMaxNum,
}

type ModTransformerOption func(option *TransformerOption)

type TransformerStat struct {
	RtxRecv          uint32 `json:"rtx_recv"`
	RtxDecoded       uint32 `json:"rtx_decoded"`
	DropPaddingOnly  uint32 `json:"drop_padding_only"`
	DropUnresolved   uint32 `json:"drop_unresolved"`
	RtxSent          uint32 `json:"rtx_sent"`
	RtxSendFailed    uint32 `json:"rtx_send_failed"`
	PlainSent        uint32 `json:"plain_sent"`
	RetransmitFailed uint32 `json:"retransmit_failed"`
}

// Transformer 一个媒体会话对应一个
//
// 接收方向上去掉rtx封装，发送方向上按需将重传包封装成rtx。
// 所有方法都可以被多个协程同时调用。
type Transformer struct {
	uniqueKey string
	option    TransformerOption

	resolver     IEncodingResolver
	injector     IPacketInjector
	seqAllocator *SeqAllocator
	dropDump     *base.LogDump

	rtxRecv          nazaatomic.Uint32
	rtxDecoded       nazaatomic.Uint32
	dropPaddingOnly  nazaatomic.Uint32
	dropUnresolved   nazaatomic.Uint32
	rtxSent          nazaatomic.Uint32
	rtxSendFailed    nazaatomic.Uint32
	plainSent        nazaatomic.Uint32
	retransmitFailed nazaatomic.Uint32
}

func NewTransformer(resolver IEncodingResolver, injector IPacketInjector, modOptions ...ModTransformerOption) *Transformer {
	option := defaultTransformerOption
	for _, fn := range modOptions {
		fn(&option)
	}
	if option.SeqAllocator == nil {
		option.SeqAllocator = NewSeqAllocator()
	}

	t := &Transformer{
		uniqueKey:    base.GenUkRtxTransformer(),
		option:       option,
		resolver:     resolver,
		injector:     injector,
		seqAllocator: option.SeqAllocator,
		dropDump:     base.NewLogDump(base.Log, option.DebugDumpPacketMaxNum),
	}
	base.Log.Infof("[%s] lifecycle new rtx Transformer. transformer=%p", t.uniqueKey, t)
	return t
}

func (t *Transformer) UniqueKey() string {
	return t.uniqueKey
}

func (t *Transformer) Dispose() {
	base.Log.Infof("[%s] lifecycle dispose rtx Transformer. stat=%+v", t.uniqueKey, t.GetStat())
}

// Transform 发送方向，不做处理
func (t *Transformer) Transform(pkt rtprtcp.RtpPacket) (rtprtcp.RtpPacket, bool) {
	return pkt, true
}

// ReverseTransform 接收方向，如果是rtx包，则还原成原始的媒体包
//
// @return 第二个返回值为false时，包应该被丢弃
func (t *Transformer) ReverseTransform(pkt rtprtcp.RtpPacket) (rtprtcp.RtpPacket, bool) {
	if rtprtcp.IsRtcpPacket(pkt.Raw()) {
		return pkt, true
	}
	if !t.IsRtx(pkt) {
		return pkt, true
	}
	t.rtxRecv.Increment()
	return t.deRtx(pkt)
}

// IsRtx 未知ssrc的包，或者没有协商rtx payload type的包，都不是rtx包
func (t *Transformer) IsRtx(pkt rtprtcp.RtpPacket) bool {
	params, ok := t.resolver.RemoteEncodingParameters(pkt.Ssrc())
	if !ok {
		return false
	}
	rtxPt, ok := params.RtxPayloadType.Get()
	return ok && rtxPt == pkt.PayloadType()
}

func (t *Transformer) GetStat() TransformerStat {
	return TransformerStat{
		RtxRecv:          t.rtxRecv.Load(),
		RtxDecoded:       t.rtxDecoded.Load(),
		DropPaddingOnly:  t.dropPaddingOnly.Load(),
		DropUnresolved:   t.dropUnresolved.Load(),
		RtxSent:          t.rtxSent.Load(),
		RtxSendFailed:    t.rtxSendFailed.Load(),
		PlainSent:        t.plainSent.Load(),
		RetransmitFailed: t.retransmitFailed.Load(),
	}
}

// deRtx 在原内存块上去掉rtx封装
//
// 把包头整体往后挪 OSN 的长度，覆盖掉 OSN，然后修改起始位置和长度，不申请新的内存
func (t *Transformer) deRtx(pkt rtprtcp.RtpPacket) (rtprtcp.RtpPacket, bool) {
	rtxSsrc := pkt.Ssrc()

	if pkt.PayloadLength() < base.RtxOsnLength {
		t.dropPaddingOnly.Increment()
		if t.dropDump.ShouldDump() {
			t.dropDump.Outf("[%s] drop incoming rtx packet with padding only. ssrc=%d, seq=%d, len=%d, padding=%d",
				t.uniqueKey, rtxSsrc, pkt.Seq(), pkt.Len(), pkt.PaddingLength())
		}
		return pkt, false
	}

	// 和 IsRtx 之间参数可能被重新协商，所以重新获取
	params, ok := t.resolver.RemoteEncodingParameters(rtxSsrc)
	if !ok {
		t.dropUnresolved.Increment()
		base.Log.Warnf("[%s] rtx packet received, but encoding parameters are gone. ssrc=%d", t.uniqueKey, rtxSsrc)
		return pkt, false
	}
	apt, ok := params.Apt.Get()
	if !ok {
		t.dropUnresolved.Increment()
		base.Log.Warnf("[%s] rtx packet received, but no apt is defined. ssrc=%d, media ssrc=%d",
			t.uniqueKey, rtxSsrc, params.MediaSsrc)
		return pkt, false
	}

	osn := bele.BeUint16(pkt.Payload())

	buf := pkt.Buffer()
	off := pkt.Offset()
	hl := pkt.HeaderLength()
	copy(buf[off+base.RtxOsnLength:off+base.RtxOsnLength+hl], buf[off:off+hl])
	if err := pkt.SetLength(pkt.Len() - base.RtxOsnLength); err != nil {
		base.Log.Errorf("[%s] shrink rtx packet failed. err=%+v", t.uniqueKey, err)
		return pkt, false
	}
	if err := pkt.SetOffset(off + base.RtxOsnLength); err != nil {
		base.Log.Errorf("[%s] shift rtx packet failed. err=%+v", t.uniqueKey, err)
		return pkt, false
	}

	pkt.SetSsrc(params.MediaSsrc)
	pkt.SetSeq(osn)
	pkt.SetPayloadType(apt)

	t.rtxDecoded.Increment()
	return pkt, true
}
