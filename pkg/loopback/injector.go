// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/lalrtx
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package loopback

import (
	"fmt"
	"sync"

	"github.com/pion/randutil"
	"github.com/q191201771/lalrtx/pkg/base"
	"github.com/q191201771/lalrtx/pkg/rtprtcp"
	"github.com/q191201771/lalrtx/pkg/rtx"
	"github.com/q191201771/naza/pkg/nazaatomic"
)

var _ rtx.IPacketInjector = &MemInjector{}

// MemInjector 内存中的发送管道，按比例随机注入失败，成功的包排队等待 Drain
type MemInjector struct {
	failPercent int
	rand        randutil.MathRandomGenerator

	mu    sync.Mutex
	queue []rtprtcp.RtpPacket

	injected nazaatomic.Uint32
	failed   nazaatomic.Uint32
}

func NewMemInjector(failPercent int) *MemInjector {
	return &MemInjector{
		failPercent: failPercent,
		rand:        randutil.NewMathRandomGenerator(),
	}
}

func (m *MemInjector) InjectPacket(pkt rtprtcp.RtpPacket, isData bool, after rtx.InsertionPoint) error {
	if m.failPercent > 0 && m.rand.Intn(100) < m.failPercent {
		m.failed.Increment()
		return fmt.Errorf("%w. ssrc=%d, seq=%d, is_data=%t", base.ErrRtxInjectFailed, pkt.Ssrc(), pkt.Seq(), isData)
	}

	// 调用方可能复用内存块
	c := pkt.Clone()
	m.mu.Lock()
	m.queue = append(m.queue, c)
	m.mu.Unlock()
	m.injected.Increment()
	return nil
}

// Drain 取出所有排队的包
func (m *MemInjector) Drain() []rtprtcp.RtpPacket {
	m.mu.Lock()
	defer m.mu.Unlock()
	ret := m.queue
	m.queue = nil
	return ret
}

func (m *MemInjector) Injected() uint32 {
	return m.injected.Load()
}

func (m *MemInjector) Failed() uint32 {
	return m.failed.Load()
}
