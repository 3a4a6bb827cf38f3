// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/lalrtx
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package rtx

import (
	"sync"

	"github.com/pion/randutil"
)

type SeqAllocatorOption struct {
	// InitialSeq ssrc第一次分配时使用的seq，默认是随机值
	InitialSeq func(ssrc uint32) uint16
}

type ModSeqAllocatorOption func(option *SeqAllocatorOption)

// SeqAllocator 为每个rtx ssrc分配发送用的rtp seq
//
// 一个 Transformer 持有一个，表只增不减，生命周期和 Transformer 相同。
// 由于simulcast等场景下，多个源ssrc可能被转发到同一个rtx ssrc上，所以按rtx ssrc而不是源ssrc计数。
type SeqAllocator struct {
	option SeqAllocatorOption

	mu      sync.Mutex
	lastSeq map[uint32]uint16
}

func NewSeqAllocator(modOptions ...ModSeqAllocatorOption) *SeqAllocator {
	option := SeqAllocatorOption{
		InitialSeq: newRandomInitialSeq(),
	}
	for _, fn := range modOptions {
		fn(&option)
	}
	if option.InitialSeq == nil {
		option.InitialSeq = newRandomInitialSeq()
	}

	return &SeqAllocator{
		option:  option,
		lastSeq: make(map[uint32]uint16),
	}
}

// Next 分配下一个seq
//
// 每次调用都会消耗一个seq，所以只在确定要发送rtx包时调用
func (a *SeqAllocator) Next(ssrc uint32) uint16 {
	a.mu.Lock()
	defer a.mu.Unlock()

	seq, ok := a.lastSeq[ssrc]
	if ok {
		seq++
	} else {
		seq = a.option.InitialSeq(ssrc)
	}
	a.lastSeq[ssrc] = seq
	return seq
}

// Peek 最后一次分配的seq，不消耗seq
func (a *SeqAllocator) Peek(ssrc uint32) (uint16, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	seq, ok := a.lastSeq[ssrc]
	return seq, ok
}

func newRandomInitialSeq() func(ssrc uint32) uint16 {
	r := randutil.NewMathRandomGenerator()
	return func(ssrc uint32) uint16 {
		return uint16(r.Intn(1 << 16))
	}
}
