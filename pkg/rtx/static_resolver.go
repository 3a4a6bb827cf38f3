// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/lalrtx
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package rtx

import (
	"fmt"
	"sync"

	"github.com/q191201771/lalrtx/pkg/base"
	"github.com/q191201771/lalrtx/pkg/sdp"
)

var _ IEncodingResolver = &StaticResolver{}

// StaticResolver 内存中的 IEncodingResolver 实现，可以在运行中被重新协商修改
type StaticResolver struct {
	mu sync.RWMutex

	remote     map[uint32]RemoteEncodingParameters // media ssrc -> params
	rtxToMedia map[uint32]uint32                   // rtx ssrc -> media ssrc

	primaryPayloadType OptPayloadType
	local              map[uint8]LocalRtxParameters // primary payload type -> params
}

func NewStaticResolver() *StaticResolver {
	return &StaticResolver{
		remote:     make(map[uint32]RemoteEncodingParameters),
		rtxToMedia: make(map[uint32]uint32),
		local:      make(map[uint8]LocalRtxParameters),
	}
}

// NewStaticResolverFromSdp
//
// @param remoteSdp: 对端的sdp，用于接收方向识别rtx包
// @param localSdp:  本端的sdp，用于发送方向封装rtx包
//
// 只使用第一个video的m=行，为空的sdp不处理
func NewStaticResolverFromSdp(remoteSdp, localSdp []byte) (*StaticResolver, error) {
	r := NewStaticResolver()
	if err := r.Renegotiate(remoteSdp, localSdp); err != nil {
		return nil, err
	}
	return r, nil
}

// Renegotiate 重新协商后，用新的sdp替换对应方向上的所有参数，为空的sdp对应方向保持不变
//
// sdp解析失败时不做任何修改
func (r *StaticResolver) Renegotiate(remoteSdp, localSdp []byte) error {
	var remote, local sdp.RtxNegotiation
	var err error
	if len(remoteSdp) != 0 {
		if remote, err = sdp.ParseRtxNegotiation(remoteSdp); err != nil {
			return err
		}
	}
	if len(localSdp) != 0 {
		if local, err = sdp.ParseRtxNegotiation(localSdp); err != nil {
			return err
		}
	}

	if len(remoteSdp) != 0 {
		for _, ssrc := range r.remoteMediaSsrcs() {
			r.RemoveRemote(ssrc)
		}
		if md, ok := firstVideo(remote); ok {
			if err = r.updateRemoteFromMediaDesc(md); err != nil {
				return err
			}
		}
	}

	if len(localSdp) != 0 {
		for _, pt := range r.localPayloadTypes() {
			r.RemoveLocal(pt)
		}
		r.SetPrimaryPayloadType(OptPayloadType{})
		if md, ok := firstVideo(local); ok {
			r.updateLocalFromMediaDesc(md)
		}
	}
	return nil
}

// UpdateRemote 以 MediaSsrc 为key新增或覆盖，同时建立rtx ssrc的索引
func (r *StaticResolver) UpdateRemote(params RemoteEncodingParameters) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rtxSsrc, ok := params.RtxSsrc.Get(); ok {
		if rtxSsrc == params.MediaSsrc {
			return fmt.Errorf("%w. media ssrc=%d, rtx ssrc=%d", base.ErrRtxEncodingDuplicate, params.MediaSsrc, rtxSsrc)
		}
		if owner, exist := r.rtxToMedia[rtxSsrc]; exist && owner != params.MediaSsrc {
			return fmt.Errorf("%w. rtx ssrc=%d, owner=%d", base.ErrRtxEncodingDuplicate, rtxSsrc, owner)
		}
		if _, exist := r.remote[rtxSsrc]; exist {
			return fmt.Errorf("%w. rtx ssrc=%d is a media ssrc", base.ErrRtxEncodingDuplicate, rtxSsrc)
		}
	}
	if _, exist := r.rtxToMedia[params.MediaSsrc]; exist {
		return fmt.Errorf("%w. media ssrc=%d is a rtx ssrc", base.ErrRtxEncodingDuplicate, params.MediaSsrc)
	}

	r.removeRemoteLocked(params.MediaSsrc)
	r.remote[params.MediaSsrc] = params
	if rtxSsrc, ok := params.RtxSsrc.Get(); ok {
		r.rtxToMedia[rtxSsrc] = params.MediaSsrc
	}
	return nil
}

// RemoveRemote 同时删除对应的rtx ssrc索引
func (r *StaticResolver) RemoveRemote(mediaSsrc uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeRemoteLocked(mediaSsrc)
}

func (r *StaticResolver) SetPrimaryPayloadType(pt OptPayloadType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.primaryPayloadType = pt
}

func (r *StaticResolver) UpdateLocal(payloadType uint8, params LocalRtxParameters) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.local[payloadType] = params
}

func (r *StaticResolver) RemoveLocal(payloadType uint8) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.local, payloadType)
}

// ----- implement IEncodingResolver -----------------------------------------------------------------------------------

func (r *StaticResolver) RemoteEncodingParameters(ssrc uint32) (RemoteEncodingParameters, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if params, ok := r.remote[ssrc]; ok {
		return params, true
	}
	if mediaSsrc, ok := r.rtxToMedia[ssrc]; ok {
		params, ok := r.remote[mediaSsrc]
		return params, ok
	}
	return RemoteEncodingParameters{}, false
}

func (r *StaticResolver) PrimaryPayloadType() (uint8, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.primaryPayloadType.Get()
}

func (r *StaticResolver) LocalRtxParameters(payloadType uint8) (LocalRtxParameters, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	params, ok := r.local[payloadType]
	return params, ok
}

// ---------------------------------------------------------------------------------------------------------------------

func (r *StaticResolver) remoteMediaSsrcs() []uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ret := make([]uint32, 0, len(r.remote))
	for ssrc := range r.remote {
		ret = append(ret, ssrc)
	}
	return ret
}

func (r *StaticResolver) localPayloadTypes() []uint8 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ret := make([]uint8, 0, len(r.local))
	for pt := range r.local {
		ret = append(ret, pt)
	}
	return ret
}

func (r *StaticResolver) removeRemoteLocked(mediaSsrc uint32) {
	old, ok := r.remote[mediaSsrc]
	if !ok {
		return
	}
	if rtxSsrc, ok := old.RtxSsrc.Get(); ok {
		delete(r.rtxToMedia, rtxSsrc)
	}
	delete(r.remote, mediaSsrc)
}

func (r *StaticResolver) updateRemoteFromMediaDesc(md sdp.RtxMediaDesc) error {
	primary, hasPrimary := md.PrimaryPayloadType()

	var params RemoteEncodingParameters
	if codec, ok := md.RtxCodecFor(primary); hasPrimary && ok {
		params.RtxPayloadType = SomePayloadType(codec.PayloadType)
		params.Apt = SomePayloadType(codec.Apt)
	} else if len(md.RtxCodecs) != 0 {
		// rtx的apt没有指向主编码，或者没有apt
		codec := md.RtxCodecs[0]
		params.RtxPayloadType = SomePayloadType(codec.PayloadType)
		if codec.HasApt {
			params.Apt = SomePayloadType(codec.Apt)
		}
	}

	grouped := make(map[uint32]bool)
	for _, g := range md.FidGroups {
		p := params
		p.MediaSsrc = g.MediaSsrc
		p.RtxSsrc = SomeSsrc(g.RtxSsrc)
		if err := r.UpdateRemote(p); err != nil {
			return err
		}
		grouped[g.MediaSsrc] = true
		grouped[g.RtxSsrc] = true
	}
	// 没有FID分组的ssrc，收到的包不会被识别为rtx
	for _, ssrc := range md.Ssrcs {
		if grouped[ssrc] {
			continue
		}
		if err := r.UpdateRemote(RemoteEncodingParameters{MediaSsrc: ssrc}); err != nil {
			return err
		}
	}
	return nil
}

func (r *StaticResolver) updateLocalFromMediaDesc(md sdp.RtxMediaDesc) {
	primary, ok := md.PrimaryPayloadType()
	if !ok {
		return
	}
	r.SetPrimaryPayloadType(SomePayloadType(primary))

	codec, ok := md.RtxCodecFor(primary)
	if !ok {
		return
	}
	params := LocalRtxParameters{
		PayloadType: SomePayloadType(codec.PayloadType),
	}
	if len(md.FidGroups) != 0 {
		params.Ssrc = SomeSsrc(md.FidGroups[0].RtxSsrc)
	}
	r.UpdateLocal(primary, params)
}

func firstVideo(n sdp.RtxNegotiation) (sdp.RtxMediaDesc, bool) {
	for _, md := range n.MediaDescList {
		if md.Media == "video" {
			return md, true
		}
	}
	return sdp.RtxMediaDesc{}, false
}
