// Copyright 2020, Chef.  All rights reserved.
// https://github.com/q191201771/lalrtx
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package sdp

import (
	"strconv"
	"strings"

	"github.com/q191201771/lalrtx/pkg/base"
	"github.com/q191201771/naza/pkg/nazaerrors"
)

// 单个attribute的解析
//
// 既可以传入完整的行，比如`a=rtpmap:96 VP8/90000`，
// 也可以传入 pion/sdp 拆分后的 key:value，比如`rtpmap:96 VP8/90000`

type ARtpMap struct {
	PayloadType        int
	EncodingName       string
	ClockRate          int
	EncodingParameters string
}

type AFmtPBase struct {
	Format     int               // same as PayloadType
	Parameters map[string]string // name -> value
}

type ASsrcGroup struct {
	Semantics string // FID, SIM, FEC-FR ...
	Ssrcs     []uint32
}

// ParseARtpMap 例子见单元测试
func ParseARtpMap(s string) (ret ARtpMap, err error) {
	// rfc 3640 3.3.1.  General
	//
	// a=rtpmap:<payload type> <encoding name>/<clock rate>[/<encoding parameters>]
	//

	items := strings.SplitN(s, ":", 2)
	if len(items) != 2 {
		err = nazaerrors.Wrap(base.ErrSdp)
		return
	}
	items = strings.SplitN(strings.TrimSpace(items[1]), " ", 2)
	if len(items) != 2 {
		err = nazaerrors.Wrap(base.ErrSdp)
		return
	}
	ret.PayloadType, err = strconv.Atoi(items[0])
	if err != nil {
		return
	}
	items = strings.SplitN(items[1], "/", 3)
	switch len(items) {
	case 3:
		ret.EncodingParameters = items[2]
		fallthrough
	case 2:
		ret.EncodingName = items[0]
		ret.ClockRate, err = strconv.Atoi(items[1])
		if err != nil {
			return
		}
	default:
		err = nazaerrors.Wrap(base.ErrSdp)
	}
	return
}

// ParseAFmtPBase 例子见单元测试
func ParseAFmtPBase(s string) (ret AFmtPBase, err error) {
	// rfc 3640 4.4.1.  The a=fmtp Keyword
	//
	// a=fmtp:<format> <parameter name>=<value>[; <parameter name>=<value>]
	//

	ret.Parameters = make(map[string]string)

	items := strings.SplitN(s, ":", 2)
	if len(items) != 2 {
		err = nazaerrors.Wrap(base.ErrSdp)
		return
	}

	items = strings.SplitN(strings.TrimSpace(items[1]), " ", 2)
	if len(items) != 2 {
		err = nazaerrors.Wrap(base.ErrSdp)
		return
	}

	ret.Format, err = strconv.Atoi(items[0])
	if err != nil {
		return
	}

	items[1] = strings.Trim(items[1], ";")

	items = strings.Split(items[1], ";")
	for _, pp := range items {
		pp = strings.TrimSpace(pp)
		kv := strings.SplitN(pp, "=", 2)
		if len(kv) != 2 {
			err = nazaerrors.Wrap(base.ErrSdp)
			return
		}
		ret.Parameters[kv[0]] = kv[1]
	}

	return
}

// ParseASsrcGroup 例子见单元测试
func ParseASsrcGroup(s string) (ret ASsrcGroup, err error) {
	// rfc 5576 4.2.  The "ssrc-group" Media Attribute
	//
	// a=ssrc-group:<semantics> <ssrc-id> ...
	//

	items := strings.SplitN(s, ":", 2)
	if len(items) != 2 {
		err = nazaerrors.Wrap(base.ErrSdp)
		return
	}
	fields := strings.Fields(items[1])
	if len(fields) < 2 {
		err = nazaerrors.Wrap(base.ErrSdp)
		return
	}
	ret.Semantics = fields[0]
	for _, f := range fields[1:] {
		v, e := strconv.ParseUint(f, 10, 32)
		if e != nil {
			err = nazaerrors.Wrap(e)
			return
		}
		ret.Ssrcs = append(ret.Ssrcs, uint32(v))
	}
	return
}

// ParseASsrc 只解析ssrc-id，忽略后面的attribute
func ParseASsrc(s string) (ssrc uint32, err error) {
	// rfc 5576 4.1.  The "ssrc" Media Attribute
	//
	// a=ssrc:<ssrc-id> <attribute>:<value>
	//

	items := strings.SplitN(s, ":", 2)
	if len(items) != 2 {
		err = nazaerrors.Wrap(base.ErrSdp)
		return
	}
	fields := strings.Fields(items[1])
	if len(fields) < 1 {
		err = nazaerrors.Wrap(base.ErrSdp)
		return
	}
	v, err := strconv.ParseUint(fields[0], 10, 32)
	if err != nil {
		err = nazaerrors.Wrap(err)
		return
	}
	return uint32(v), nil
}
