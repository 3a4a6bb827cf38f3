// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/lalrtx
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package sdp

import (
	"fmt"
	"strconv"
	"strings"

	psdp "github.com/pion/sdp/v3"
	"github.com/q191201771/lalrtx/pkg/base"
	"github.com/q191201771/naza/pkg/nazaerrors"
)

// rfc4588 8.6 Examples
//
// m=video 49170 RTP/AVPF 96 97
// a=rtpmap:96 MP4V-ES/90000
// a=rtpmap:97 rtx/90000
// a=fmtp:97 apt=96;rtx-time=3000
//
// rfc5576 4.2 ssrc-group，FID中第一个是媒体ssrc，第二个是rtx ssrc
//
// a=ssrc-group:FID 1000 2000

const (
	SsrcGroupSemanticsFid = "FID"

	fmtpKeyApt = "apt"
)

type RtxNegotiation struct {
	MediaDescList []RtxMediaDesc
}

type RtxCodec struct {
	PayloadType uint8
	Apt         uint8
	HasApt      bool
}

type FidGroup struct {
	MediaSsrc uint32
	RtxSsrc   uint32
}

type RtxMediaDesc struct {
	Media string

	// Formats m=行中的payload type，保持顺序
	Formats []uint8

	RtxCodecs []RtxCodec
	FidGroups []FidGroup
	Ssrcs     []uint32
}

// ParseRtxNegotiation 从sdp中提取和rtx相关的协商信息
func ParseRtxNegotiation(b []byte) (RtxNegotiation, error) {
	var ret RtxNegotiation

	var sd psdp.SessionDescription
	if err := sd.Unmarshal(b); err != nil {
		return ret, nazaerrors.Wrap(err)
	}

	for _, md := range sd.MediaDescriptions {
		desc, err := parseRtxMediaDesc(md)
		if err != nil {
			return ret, err
		}
		ret.MediaDescList = append(ret.MediaDescList, desc)
	}
	return ret, nil
}

// PrimaryPayloadType m=行中第一个不是rtx的payload type
func (d *RtxMediaDesc) PrimaryPayloadType() (uint8, bool) {
	for _, f := range d.Formats {
		if !d.isRtxPayloadType(f) {
			return f, true
		}
	}
	return 0, false
}

// RtxCodecFor 找到apt为 payloadType 的rtx codec
func (d *RtxMediaDesc) RtxCodecFor(payloadType uint8) (RtxCodec, bool) {
	for _, c := range d.RtxCodecs {
		if c.HasApt && c.Apt == payloadType {
			return c, true
		}
	}
	return RtxCodec{}, false
}

func (d *RtxMediaDesc) isRtxPayloadType(pt uint8) bool {
	for _, c := range d.RtxCodecs {
		if c.PayloadType == pt {
			return true
		}
	}
	return false
}

func parseRtxMediaDesc(md *psdp.MediaDescription) (desc RtxMediaDesc, err error) {
	desc.Media = md.MediaName.Media

	for _, f := range md.MediaName.Formats {
		pt, e := strconv.ParseUint(f, 10, 7)
		if e != nil {
			// 比如application m=行的webrtc-datachannel
			continue
		}
		desc.Formats = append(desc.Formats, uint8(pt))
	}

	apts := make(map[uint8]uint8)
	for _, a := range md.Attributes {
		line := a.Key + ":" + a.Value
		switch a.Key {
		case "rtpmap":
			rtpMap, e := ParseARtpMap(line)
			if e != nil {
				return desc, e
			}
			if strings.EqualFold(rtpMap.EncodingName, base.RtxEncodingName) {
				desc.RtxCodecs = append(desc.RtxCodecs, RtxCodec{PayloadType: uint8(rtpMap.PayloadType)})
			}
		case "fmtp":
			fmtp, e := ParseAFmtPBase(line)
			if e != nil {
				// 非rtx的fmtp格式五花八门，解析失败不影响rtx
				continue
			}
			if v, ok := fmtp.Parameters[fmtpKeyApt]; ok {
				apt, e := strconv.ParseUint(v, 10, 7)
				if e != nil {
					return desc, fmt.Errorf("%w. fmtp=%s", base.ErrSdp, a.Value)
				}
				apts[uint8(fmtp.Format)] = uint8(apt)
			}
		case "ssrc-group":
			group, e := ParseASsrcGroup(line)
			if e != nil {
				return desc, e
			}
			if group.Semantics != SsrcGroupSemanticsFid {
				continue
			}
			if len(group.Ssrcs) != 2 {
				return desc, fmt.Errorf("%w. ssrc-group=%s", base.ErrSdpBadFidLine, a.Value)
			}
			desc.FidGroups = append(desc.FidGroups, FidGroup{MediaSsrc: group.Ssrcs[0], RtxSsrc: group.Ssrcs[1]})
		case "ssrc":
			ssrc, e := ParseASsrc(line)
			if e != nil {
				return desc, e
			}
			desc.addSsrc(ssrc)
		}
	}

	for i := range desc.RtxCodecs {
		if apt, ok := apts[desc.RtxCodecs[i].PayloadType]; ok {
			desc.RtxCodecs[i].Apt = apt
			desc.RtxCodecs[i].HasApt = true
		}
	}
	return desc, nil
}

func (d *RtxMediaDesc) addSsrc(ssrc uint32) {
	for _, s := range d.Ssrcs {
		if s == ssrc {
			return
		}
	}
	d.Ssrcs = append(d.Ssrcs, ssrc)
}
