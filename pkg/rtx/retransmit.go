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
)

// Retransmit 重传一个包
//
// 如果对端协商了rtx，则封装成rtx发送，封装或发送失败时退化为原样重发一次；
// 否则直接原样重发。
//
// @param pkt:   之前发送过的原始包，调用结束后不会被修改
// @param after: 透传给 IPacketInjector.InjectPacket
//
// @return 是否发送成功
func (t *Transformer) Retransmit(pkt rtprtcp.RtpPacket, after InsertionPoint) bool {
	retransmitPlain := true

	if rtxParams, ok := t.resolveLocalRtx(); ok {
		if rtxSsrc, ok := rtxParams.Ssrc.Get(); ok {
			retransmitPlain = t.encapsulateAndTransmit(pkt, rtxSsrc, rtxParams.PayloadType, after) != nil
		} else {
			base.Log.Warnf("[%s] cannot find ssrc for rtx, retransmitting plain. ssrc=%d",
				t.uniqueKey, pkt.Ssrc())
		}
	}

	if !retransmitPlain {
		return true
	}

	if err := t.injector.InjectPacket(pkt, true, after); err != nil {
		t.retransmitFailed.Increment()
		base.Log.Warnf("[%s] failed to retransmit a packet. ssrc=%d, seq=%d, err=%+v",
			t.uniqueKey, pkt.Ssrc(), pkt.Seq(), err)
		return false
	}
	t.plainSent.Increment()
	return true
}

func (t *Transformer) resolveLocalRtx() (LocalRtxParameters, bool) {
	pt, ok := t.resolver.PrimaryPayloadType()
	if !ok {
		return LocalRtxParameters{}, false
	}
	return t.resolver.LocalRtxParameters(pt)
}

// encapsulateAndTransmit 封装成rtx包并发送
//
// 新申请 len+2 的内存块：原包头 + OSN + 原payload + 原padding
func (t *Transformer) encapsulateAndTransmit(pkt rtprtcp.RtpPacket, rtxSsrc uint32, rtxPayloadType OptPayloadType, after InsertionPoint) error {
	rtxPt, ok := rtxPayloadType.Get()
	if !ok {
		base.Log.Warnf("[%s] rtx ssrc negotiated without rtx payload type, retransmitting plain. ssrc=%d, rtx ssrc=%d",
			t.uniqueKey, pkt.Ssrc(), rtxSsrc)
		return base.ErrRtxNoPayloadType
	}

	raw := pkt.Raw()
	hl := pkt.HeaderLength()
	pl := pkt.PayloadLength()

	b := make([]byte, pkt.Len()+base.RtxOsnLength)
	copy(b, raw[:hl])
	bele.BePutUint16(b[hl:], pkt.Seq())
	copy(b[hl+base.RtxOsnLength:], raw[hl:hl+pl])
	copy(b[hl+base.RtxOsnLength+pl:], pkt.Padding())

	rtxPkt, err := rtprtcp.ParseRtpPacketRef(b, 0, len(b))
	if err != nil {
		base.Log.Warnf("[%s] build rtx packet failed. ssrc=%d, seq=%d, err=%+v",
			t.uniqueKey, pkt.Ssrc(), pkt.Seq(), err)
		return err
	}
	rtxPkt.SetSsrc(rtxSsrc)
	rtxPkt.SetPayloadType(rtxPt)

	// 分配seq会消耗掉一个seq，所以放在确定发送之前的最后一步
	rtxPkt.SetSeq(t.seqAllocator.Next(rtxSsrc))

	if err = t.injector.InjectPacket(rtxPkt, true, after); err != nil {
		t.rtxSendFailed.Increment()
		base.Log.Warnf("[%s] failed to transmit an rtx packet. ssrc=%d, seq=%d, rtx ssrc=%d, err=%+v",
			t.uniqueKey, pkt.Ssrc(), pkt.Seq(), rtxSsrc, err)
		return err
	}
	t.rtxSent.Increment()
	return nil
}
