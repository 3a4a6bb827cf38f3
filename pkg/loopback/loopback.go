// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/lalrtx
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package loopback

import (
	"bytes"
	"fmt"
	"io/ioutil"

	"github.com/pion/randutil"
	"github.com/q191201771/lalrtx/pkg/base"
	"github.com/q191201771/lalrtx/pkg/rtprtcp"
	"github.com/q191201771/lalrtx/pkg/rtx"
	"github.com/q191201771/lalrtx/pkg/sdp"
	"github.com/q191201771/naza/pkg/nazaerrors"
)

// 发送端媒体包以及rtx包的seq分别从这里开始，保证跑一轮就会回绕
const (
	startSeq    = uint16(65500)
	rtxStartSeq = uint16(65530)
)

type Stat struct {
	Sent             int `json:"sent"`
	Retransmitted    int `json:"retransmitted"`
	RetransmitFailed int `json:"retransmit_failed"`
	Received         int `json:"received"`
	Restored         int `json:"restored"`
	Dropped          int `json:"dropped"`
	Mismatched       int `json:"mismatched"`
	RtxSeqConsumed   int `json:"rtx_seq_consumed"`

	Sender   rtx.TransformerStat `json:"sender"`
	Receiver rtx.TransformerStat `json:"receiver"`
}

// Loopback 同一个sdp既作为发送端的本端sdp，也作为接收端的对端sdp
//
// 发送端把部分包重传给 MemInjector，接收端解封装后和原始包逐字节比较
type Loopback struct {
	uniqueKey string
	config    Config

	mediaSsrc          uint32
	primaryPayloadType uint8
	rtxSsrc            uint32
	hasRtxSsrc         bool

	injector     *MemInjector
	seqAllocator *rtx.SeqAllocator
	sender       *rtx.Transformer
	receiver     *rtx.Transformer
	dump         *base.DumpFile

	rand randutil.MathRandomGenerator
}

func NewLoopbackFromConf(config Config) (*Loopback, error) {
	raw, err := ioutil.ReadFile(config.SdpFile)
	if err != nil {
		return nil, err
	}
	return NewLoopback(config, raw)
}

func NewLoopback(config Config, sdpRaw []byte) (*Loopback, error) {
	uk := base.GenUkRtxLoopback()

	n, err := sdp.ParseRtxNegotiation(sdpRaw)
	if err != nil {
		return nil, err
	}
	mediaSsrc, pt, err := pickVideo(n)
	if err != nil {
		return nil, err
	}

	senderResolver, err := rtx.NewStaticResolverFromSdp(nil, sdpRaw)
	if err != nil {
		return nil, err
	}
	receiverResolver, err := rtx.NewStaticResolverFromSdp(sdpRaw, nil)
	if err != nil {
		return nil, err
	}

	var rtxSsrc uint32
	var hasRtxSsrc bool
	if local, ok := senderResolver.LocalRtxParameters(pt); ok {
		rtxSsrc, hasRtxSsrc = local.Ssrc.Get()
	}

	modOption := func(option *rtx.TransformerOption) {
		option.DebugDumpPacketMaxNum = config.DebugDumpPacketMaxNum
	}
	seqAllocator := rtx.NewSeqAllocator(func(option *rtx.SeqAllocatorOption) {
		option.InitialSeq = func(ssrc uint32) uint16 {
			return rtxStartSeq
		}
	})
	injector := NewMemInjector(config.InjectFailPercent)
	sender := rtx.NewTransformer(senderResolver, injector, modOption, func(option *rtx.TransformerOption) {
		option.SeqAllocator = seqAllocator
	})
	l := &Loopback{
		uniqueKey:          uk,
		config:             config,
		mediaSsrc:          mediaSsrc,
		primaryPayloadType: pt,
		rtxSsrc:            rtxSsrc,
		hasRtxSsrc:         hasRtxSsrc,
		injector:           injector,
		seqAllocator:       seqAllocator,
		sender:             sender,
		// 接收端不发送
		receiver: rtx.NewTransformer(receiverResolver, NewMemInjector(0), modOption),
		rand:     randutil.NewMathRandomGenerator(),
	}
	if config.DumpFilename != "" {
		l.dump = base.NewDumpFile()
		if err = l.dump.OpenToWrite(config.DumpFilename); err != nil {
			l.sender.Dispose()
			l.receiver.Dispose()
			return nil, err
		}
	}
	base.Log.Infof("[%s] lifecycle new rtx Loopback. loopback=%p, sender=%s, receiver=%s, media ssrc=%d, pt=%d",
		uk, l, l.sender.UniqueKey(), l.receiver.UniqueKey(), mediaSsrc, pt)
	return l, nil
}

func (l *Loopback) UniqueKey() string {
	return l.uniqueKey
}

// Run 跑一轮，返回统计，有包没能还原时返回错误
func (l *Loopback) Run() (Stat, error) {
	var stat Stat

	history := make(map[uint16][]byte, l.config.PacketNum)
	for i := 0; i < l.config.PacketNum; i++ {
		pkt := l.makePacket(i)
		c := pkt.Clone()
		history[pkt.Seq()] = c.Raw()
		l.dumpPacket(c.Raw(), base.DumpTypeRtpOriginal)
		stat.Sent++

		if l.rand.Intn(100) >= l.config.RetransmitPercent {
			continue
		}
		if l.sender.Retransmit(pkt, nil) {
			stat.Retransmitted++
		} else {
			stat.RetransmitFailed++
		}
	}

	var errs []error
	lastRtxIndex := -1
	for _, pkt := range l.injector.Drain() {
		stat.Received++
		// 解封装会修改内存块，先写
		l.dumpPacket(pkt.Raw(), base.DumpTypeRtpRetransmitted)
		if l.receiver.IsRtx(pkt) {
			// 按分配顺序注入，rtx seq只能往后走
			index := rtprtcp.DistanceSeq(rtxStartSeq, pkt.Seq())
			if index <= lastRtxIndex {
				errs = append(errs, fmt.Errorf("%w. seq=%d, prev=%d", base.ErrLoopbackRtxSeq, pkt.Seq(), rtxStartSeq+uint16(lastRtxIndex)))
			}
			lastRtxIndex = index
		}
		out, ok := l.receiver.ReverseTransform(pkt)
		if !ok {
			stat.Dropped++
			continue
		}
		orig, exist := history[out.Seq()]
		if !exist || out.Ssrc() != l.mediaSsrc || !bytes.Equal(orig, out.Raw()) {
			stat.Mismatched++
			errs = append(errs, fmt.Errorf("%w. ssrc=%d, seq=%d, len=%d", base.ErrLoopbackMismatch, out.Ssrc(), out.Seq(), out.Len()))
			continue
		}
		l.dumpPacket(out.Raw(), base.DumpTypeRtpRestored)
		stat.Restored++
	}

	stat.Sender = l.sender.GetStat()
	stat.Receiver = l.receiver.GetStat()
	stat.RtxSeqConsumed = l.rtxSeqConsumed()
	// 发送失败的rtx包也消耗seq
	if expected := int(stat.Sender.RtxSent + stat.Sender.RtxSendFailed); stat.RtxSeqConsumed != expected {
		errs = append(errs, fmt.Errorf("%w. consumed=%d, expected=%d", base.ErrLoopbackRtxSeq, stat.RtxSeqConsumed, expected))
	}
	base.Log.Infof("[%s] loopback run done. stat=%+v", l.uniqueKey, stat)

	if len(errs) != 0 {
		return stat, nazaerrors.CombineErrors(errs...)
	}
	return stat, nil
}

func (l *Loopback) Dispose() error {
	base.Log.Infof("[%s] lifecycle dispose rtx Loopback.", l.uniqueKey)
	l.sender.Dispose()
	l.receiver.Dispose()
	if l.dump != nil {
		return l.dump.Close()
	}
	return nil
}

// rtxSeqConsumed 从 rtxStartSeq 到最后一次分配的seq之间的个数
func (l *Loopback) rtxSeqConsumed() int {
	if !l.hasRtxSsrc {
		return 0
	}
	last, ok := l.seqAllocator.Peek(l.rtxSsrc)
	if !ok {
		return 0
	}
	return rtprtcp.DistanceSeq(rtxStartSeq, last) + 1
}

func (l *Loopback) dumpPacket(b []byte, typ uint32) {
	if l.dump == nil {
		return
	}
	if err := l.dump.WriteWithType(b, typ); err != nil {
		base.Log.Warnf("[%s] write dump file failed. err=%+v", l.uniqueKey, err)
	}
}

func (l *Loopback) makePacket(i int) rtprtcp.RtpPacket {
	h := rtprtcp.MakeDefaultRtpHeader()
	h.PacketType = l.primaryPayloadType
	h.Seq = startSeq + uint16(i)
	h.Timestamp = uint32(i) * 3000
	h.Ssrc = l.mediaSsrc
	if i%30 == 29 {
		h.Mark = 1
	}

	payload := make([]byte, l.config.PayloadSize)
	for k := range payload {
		payload[k] = byte(i + k)
	}
	return rtprtcp.MakeRtpPacket(h, payload)
}

// pickVideo 第一个video中带rtx分组的媒体ssrc，以及主编码
func pickVideo(n sdp.RtxNegotiation) (uint32, uint8, error) {
	for _, md := range n.MediaDescList {
		if md.Media != "video" {
			continue
		}
		pt, ok := md.PrimaryPayloadType()
		if !ok {
			break
		}
		if len(md.FidGroups) != 0 {
			return md.FidGroups[0].MediaSsrc, pt, nil
		}
		if len(md.Ssrcs) != 0 {
			return md.Ssrcs[0], pt, nil
		}
		break
	}
	return 0, 0, base.ErrLoopbackNoVideo
}
