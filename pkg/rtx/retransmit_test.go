// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/lalrtx
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package rtx_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/q191201771/lalrtx/pkg/base"
	"github.com/q191201771/lalrtx/pkg/rtprtcp"
	"github.com/q191201771/lalrtx/pkg/rtx"

	"github.com/q191201771/naza/pkg/assert"
)

func newLocalResolver(params rtx.LocalRtxParameters) *rtx.StaticResolver {
	r := rtx.NewStaticResolver()
	r.SetPrimaryPayloadType(rtx.SomePayloadType(testMediaPt))
	r.UpdateLocal(testMediaPt, params)
	return r
}

func newTestTransformer(resolver rtx.IEncodingResolver, injector rtx.IPacketInjector, initialSeq uint16) (*rtx.Transformer, *rtx.SeqAllocator) {
	allocator := rtx.NewSeqAllocator(fixedInitialSeq(initialSeq))
	tr := rtx.NewTransformer(resolver, injector, func(option *rtx.TransformerOption) {
		option.SeqAllocator = allocator
	})
	return tr, allocator
}

func failAt(indexes ...int) func(index int, pkt rtprtcp.RtpPacket) error {
	return func(index int, pkt rtprtcp.RtpPacket) error {
		for _, i := range indexes {
			if i == index {
				return base.ErrRtxInjectFailed
			}
		}
		return nil
	}
}

func TestRetransmitRtx(t *testing.T) {
	injector := &mockInjector{}
	tr, allocator := newTestTransformer(newLocalResolver(rtx.LocalRtxParameters{
		Ssrc:        rtx.SomeSsrc(testRtxSsrc),
		PayloadType: rtx.SomePayloadType(testRtxPt),
	}), injector, 100)

	pkt := buildPacket(t, testMediaSsrc, 50, testMediaPt, []byte{1, 2, 3}, packetOption{})
	orig := cloneRaw(pkt)
	after := "after-me"

	assert.Equal(t, true, tr.Retransmit(pkt, after))
	assert.Equal(t, orig, pkt.Raw())

	records := injector.Records()
	assert.Equal(t, 1, len(records))
	rec := records[0]
	assert.Equal(t, true, rec.isData)
	assert.Equal(t, after, rec.after)

	raw := rec.pkt.Raw()
	assert.Equal(t, len(orig)+2, len(raw))
	assert.Equal(t, testRtxSsrc, rec.pkt.Ssrc())
	assert.Equal(t, testRtxPt, rec.pkt.PayloadType())
	assert.Equal(t, uint16(100), rec.pkt.Seq())
	assert.Equal(t, uint32(90000), rec.pkt.Timestamp())
	assert.Equal(t, []byte{0x00, 0x32}, raw[12:14])
	assert.Equal(t, []byte{0x00, 0x32, 1, 2, 3}, rec.pkt.Payload())
	// mark位保留
	assert.Equal(t, byte(0x80), raw[1]&0x80)

	seq, ok := allocator.Peek(testRtxSsrc)
	assert.Equal(t, true, ok)
	assert.Equal(t, uint16(100), seq)

	// 第二次重传使用下一个seq
	assert.Equal(t, true, tr.Retransmit(pkt, nil))
	records = injector.Records()
	assert.Equal(t, 2, len(records))
	assert.Equal(t, uint16(101), records[1].pkt.Seq())

	stat := tr.GetStat()
	assert.Equal(t, uint32(2), stat.RtxSent)
	assert.Equal(t, uint32(0), stat.PlainSent)
}

func TestRetransmitWithoutRtxSsrc(t *testing.T) {
	injector := &mockInjector{}
	tr, allocator := newTestTransformer(newLocalResolver(rtx.LocalRtxParameters{
		PayloadType: rtx.SomePayloadType(testRtxPt),
	}), injector, 100)

	pkt := buildPacket(t, testMediaSsrc, 50, testMediaPt, []byte{1, 2, 3}, packetOption{paddingLength: 2})
	orig := cloneRaw(pkt)

	assert.Equal(t, true, tr.Retransmit(pkt, nil))
	records := injector.Records()
	assert.Equal(t, 1, len(records))
	assert.Equal(t, orig, records[0].pkt.Raw())
	assert.Equal(t, true, records[0].isData)

	_, ok := allocator.Peek(testRtxSsrc)
	assert.Equal(t, false, ok)
	assert.Equal(t, uint32(1), tr.GetStat().PlainSent)
}

func TestRetransmitWithoutRtxPayloadType(t *testing.T) {
	injector := &mockInjector{}
	tr, allocator := newTestTransformer(newLocalResolver(rtx.LocalRtxParameters{
		Ssrc: rtx.SomeSsrc(testRtxSsrc),
	}), injector, 100)

	pkt := buildPacket(t, testMediaSsrc, 50, testMediaPt, []byte{1, 2, 3}, packetOption{})
	orig := cloneRaw(pkt)

	assert.Equal(t, true, tr.Retransmit(pkt, nil))
	records := injector.Records()
	assert.Equal(t, 1, len(records))
	assert.Equal(t, orig, records[0].pkt.Raw())

	// 没有消耗seq
	_, ok := allocator.Peek(testRtxSsrc)
	assert.Equal(t, false, ok)
}

func TestRetransmitWithoutLocalRtx(t *testing.T) {
	// 没有主编码
	injector := &mockInjector{}
	tr, _ := newTestTransformer(rtx.NewStaticResolver(), injector, 100)
	pkt := buildPacket(t, testMediaSsrc, 50, testMediaPt, []byte{1, 2, 3}, packetOption{})
	orig := cloneRaw(pkt)
	assert.Equal(t, true, tr.Retransmit(pkt, nil))
	assert.Equal(t, 1, len(injector.Records()))
	assert.Equal(t, orig, injector.Records()[0].pkt.Raw())

	// 主编码没有对应的rtx
	r := rtx.NewStaticResolver()
	r.SetPrimaryPayloadType(rtx.SomePayloadType(testMediaPt))
	injector = &mockInjector{}
	tr, _ = newTestTransformer(r, injector, 100)
	assert.Equal(t, true, tr.Retransmit(pkt, nil))
	assert.Equal(t, 1, len(injector.Records()))
	assert.Equal(t, orig, injector.Records()[0].pkt.Raw())
}

func TestRetransmitRtxFailed(t *testing.T) {
	injector := &mockInjector{failFn: failAt(0)}
	tr, allocator := newTestTransformer(newLocalResolver(rtx.LocalRtxParameters{
		Ssrc:        rtx.SomeSsrc(testRtxSsrc),
		PayloadType: rtx.SomePayloadType(testRtxPt),
	}), injector, 100)

	pkt := buildPacket(t, testMediaSsrc, 50, testMediaPt, []byte{1, 2, 3}, packetOption{})
	orig := cloneRaw(pkt)

	assert.Equal(t, true, tr.Retransmit(pkt, nil))
	records := injector.Records()
	assert.Equal(t, 2, len(records))
	assert.Equal(t, testRtxSsrc, records[0].pkt.Ssrc())
	assert.Equal(t, orig, records[1].pkt.Raw())

	// 失败的rtx包也消耗了一个seq
	seq, ok := allocator.Peek(testRtxSsrc)
	assert.Equal(t, true, ok)
	assert.Equal(t, uint16(100), seq)

	stat := tr.GetStat()
	assert.Equal(t, uint32(1), stat.RtxSendFailed)
	assert.Equal(t, uint32(1), stat.PlainSent)
	assert.Equal(t, uint32(0), stat.RetransmitFailed)
}

func TestRetransmitAllFailed(t *testing.T) {
	var gotErr error
	injector := &mockInjector{failFn: func(index int, pkt rtprtcp.RtpPacket) error {
		gotErr = failAt(0, 1)(index, pkt)
		return gotErr
	}}
	tr, _ := newTestTransformer(newLocalResolver(rtx.LocalRtxParameters{
		Ssrc:        rtx.SomeSsrc(testRtxSsrc),
		PayloadType: rtx.SomePayloadType(testRtxPt),
	}), injector, 100)

	pkt := buildPacket(t, testMediaSsrc, 50, testMediaPt, []byte{1, 2, 3}, packetOption{})
	assert.Equal(t, false, tr.Retransmit(pkt, nil))
	assert.Equal(t, 2, len(injector.Records()))
	assert.Equal(t, true, errors.Is(gotErr, base.ErrRtxInjectFailed))
	assert.Equal(t, uint32(1), tr.GetStat().RetransmitFailed)

	// 没有rtx时只尝试一次
	injector = &mockInjector{failFn: failAt(0)}
	tr, _ = newTestTransformer(rtx.NewStaticResolver(), injector, 100)
	assert.Equal(t, false, tr.Retransmit(pkt, nil))
	assert.Equal(t, 1, len(injector.Records()))
}

func TestRetransmitConcurrent(t *testing.T) {
	const (
		goroutineNum = 8
		loopNum      = 200
	)
	initialSeq := uint16(65500)

	injector := &mockInjector{}
	tr, _ := newTestTransformer(newLocalResolver(rtx.LocalRtxParameters{
		Ssrc:        rtx.SomeSsrc(testRtxSsrc),
		PayloadType: rtx.SomePayloadType(testRtxPt),
	}), injector, initialSeq)

	var wg sync.WaitGroup
	wg.Add(goroutineNum)
	for i := 0; i < goroutineNum; i++ {
		go func(i int) {
			defer wg.Done()
			for j := 0; j < loopNum; j++ {
				pkt := buildPacket(t, testMediaSsrc, uint16(i*loopNum+j), testMediaPt, []byte{byte(i), byte(j)}, packetOption{})
				tr.Retransmit(pkt, nil)
			}
		}(i)
	}
	wg.Wait()

	records := injector.Records()
	assert.Equal(t, goroutineNum*loopNum, len(records))
	seen := make(map[uint16]bool)
	osns := make(map[uint16]bool)
	for _, rec := range records {
		seen[rec.pkt.Seq()] = true
		osns[uint16(rec.pkt.Payload()[0])<<8|uint16(rec.pkt.Payload()[1])] = true
	}
	assert.Equal(t, goroutineNum*loopNum, len(seen))
	assert.Equal(t, goroutineNum*loopNum, len(osns))
	for i := 0; i < goroutineNum*loopNum; i++ {
		assert.Equal(t, true, seen[initialSeq+uint16(i)])
	}
	assert.Equal(t, uint32(goroutineNum*loopNum), tr.GetStat().RtxSent)
}

func TestRtxVp8Example(t *testing.T) {
	payload := make([]byte, 100)
	for i := range payload {
		payload[i] = byte(i * 7)
	}

	injector := &mockInjector{}
	sender, allocator := newTestTransformer(newLocalResolver(rtx.LocalRtxParameters{
		Ssrc:        rtx.SomeSsrc(2000),
		PayloadType: rtx.SomePayloadType(97),
	}), injector, 4321)
	receiver := rtx.NewTransformer(newRemoteResolver(t), &mockInjector{})

	pkt := buildPacket(t, 1000, 50, 96, payload, packetOption{})
	assert.Equal(t, 12, pkt.HeaderLength())
	assert.Equal(t, 100, pkt.PayloadLength())

	assert.Equal(t, true, sender.Retransmit(pkt, nil))
	records := injector.Records()
	assert.Equal(t, 1, len(records))
	rtxPkt := records[0].pkt
	assert.Equal(t, pkt.Len()+2, rtxPkt.Len())
	assert.Equal(t, uint32(2000), rtxPkt.Ssrc())
	assert.Equal(t, uint8(97), rtxPkt.PayloadType())
	seq, _ := allocator.Peek(2000)
	assert.Equal(t, seq, rtxPkt.Seq())
	assert.Equal(t, uint16(4321), rtxPkt.Seq())
	assert.Equal(t, []byte{0x00, 0x32}, rtxPkt.Raw()[12:14])

	out, ok := receiver.ReverseTransform(rtxPkt)
	assert.Equal(t, true, ok)
	assert.Equal(t, uint32(1000), out.Ssrc())
	assert.Equal(t, uint16(50), out.Seq())
	assert.Equal(t, uint8(96), out.PayloadType())
	assert.Equal(t, payload, out.Payload())
}
