// Copyright 2021, Chef.  All rights reserved.
// https://github.com/q191201771/lalrtx
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import (
	"errors"
	"fmt"
)

var (
	ErrDumpFileBadVersion = errors.New("lal.base: dump file version mismatch")
	ErrDumpFileBadBodyLen = errors.New("lal.base: dump file body too large")
)

// ----- pkg/rtprtcp ---------------------------------------------------------------------------------------------------

var (
	ErrRtpRtcpShortBuffer = errors.New("lal.rtprtcp: buffer too short")
	ErrRtpInvalidPadding  = errors.New("lal.rtprtcp: invalid padding")
	ErrRtpOutOfRange      = errors.New("lal.rtprtcp: window out of buffer range")
)

func NewErrRtpRtcpShortBuffer(need, actual int, msg string) error {
	return fmt.Errorf("%w. need=%d, actual=%d, msg=%s", ErrRtpRtcpShortBuffer, need, actual, msg)
}

func NewErrRtpOutOfRange(offset, length, capacity int) error {
	return fmt.Errorf("%w. offset=%d, length=%d, cap=%d", ErrRtpOutOfRange, offset, length, capacity)
}

// ----- pkg/sdp -------------------------------------------------------------------------------------------------------

var (
	ErrSdp           = errors.New("lal.sdp: fxxk")
	ErrSdpBadFidLine = errors.New("lal.sdp: invalid ssrc-group FID")
)

// ----- pkg/rtx -------------------------------------------------------------------------------------------------------

var (
	ErrRtxNoPayloadType     = errors.New("lal.rtx: rtx payload type not negotiated")
	ErrRtxInjectFailed      = errors.New("lal.rtx: inject packet failed")
	ErrRtxEncodingDuplicate = errors.New("lal.rtx: ssrc already bound to another encoding")
)

// ----- pkg/loopback --------------------------------------------------------------------------------------------------

var (
	ErrLoopbackConfig   = errors.New("lal.loopback: invalid config")
	ErrLoopbackNoVideo  = errors.New("lal.loopback: no video media with ssrc in sdp")
	ErrLoopbackMismatch = errors.New("lal.loopback: restored packet mismatch")
	ErrLoopbackRtxSeq   = errors.New("lal.loopback: rtx seq not continuous")
)

// ---------------------------------------------------------------------------------------------------------------------
