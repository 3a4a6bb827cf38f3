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

	"github.com/q191201771/lalrtx/pkg/rtprtcp"
)

// OptPayloadType 可能没有协商的payload type
type OptPayloadType struct {
	v  uint8
	ok bool
}

func SomePayloadType(pt uint8) OptPayloadType {
	return OptPayloadType{v: pt, ok: true}
}

func (o OptPayloadType) Get() (uint8, bool) {
	return o.v, o.ok
}

func (o OptPayloadType) String() string {
	if !o.ok {
		return "none"
	}
	return fmt.Sprintf("%d", o.v)
}

// OptSsrc 可能没有协商的ssrc
type OptSsrc struct {
	v  uint32
	ok bool
}

func SomeSsrc(ssrc uint32) OptSsrc {
	return OptSsrc{v: ssrc, ok: true}
}

func (o OptSsrc) Get() (uint32, bool) {
	return o.v, o.ok
}

func (o OptSsrc) String() string {
	if !o.ok {
		return "none"
	}
	return fmt.Sprintf("%d", o.v)
}

// RemoteEncodingParameters 对端发送过来的一路编码的协商结果
//
// 媒体ssrc以及rtx ssrc都映射到同一个 RemoteEncodingParameters
type RemoteEncodingParameters struct {
	MediaSsrc      uint32
	RtxSsrc        OptSsrc
	RtxPayloadType OptPayloadType
	Apt            OptPayloadType // associated payload type，rtx解封装后使用的payload type
}

// LocalRtxParameters 发送方向上，某个媒体payload type对应的rtx协商结果
type LocalRtxParameters struct {
	Ssrc        OptSsrc
	PayloadType OptPayloadType
}

// InsertionPoint 注入位置，由 IPacketInjector 解释，本包只透传
type InsertionPoint interface{}

// IEncodingResolver 由外部的媒体会话实现，返回值只读，内容可能随重新协商随时变化
type IEncodingResolver interface {
	// RemoteEncodingParameters 通过ssrc（媒体ssrc或者rtx ssrc）查找，未知ssrc返回false
	RemoteEncodingParameters(ssrc uint32) (RemoteEncodingParameters, bool)

	// PrimaryPayloadType 发送方向上主编码的payload type
	PrimaryPayloadType() (uint8, bool)

	// LocalRtxParameters 发送方向上，payloadType对应的rtx参数，没有协商rtx时返回false
	LocalRtxParameters(payloadType uint8) (LocalRtxParameters, bool)
}

// IPacketInjector 将包注入到下游的发送管道中
type IPacketInjector interface {
	// InjectPacket 返回非nil表示发送失败
	//
	// @param isData: true表示数据包，false表示控制包
	// @param after:  透传 Transformer.Retransmit 的参数
	InjectPacket(pkt rtprtcp.RtpPacket, isData bool, after InsertionPoint) error
}
