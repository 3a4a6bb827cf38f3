// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/lalrtx
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package loopback

import (
	"encoding/json"
	"fmt"
	"io/ioutil"

	"github.com/q191201771/lalrtx/pkg/base"
	"github.com/q191201771/lalrtx/pkg/rtprtcp"
	"github.com/q191201771/naza/pkg/nazajson"
	"github.com/q191201771/naza/pkg/nazalog"
)

const (
	defaultPacketNum         = 1000
	defaultPayloadSize       = 1000
	defaultRetransmitPercent = 10
	defaultInjectFailPercent = 5

	maxPacketNum = 65536

	// 封装成rtx后仍然可以写入抓包文件
	maxPayloadSize = base.DumpFileMaxBodyLength - rtprtcp.RtpFixedHeaderLength - base.RtxOsnLength
)

type Config struct {
	// SdpFile 发送端的sdp，接收端把它当作对端sdp
	SdpFile string `json:"sdp_file"`

	PacketNum   int `json:"packet_num"`
	PayloadSize int `json:"payload_size"`

	// 百分比，[0, 100]
	RetransmitPercent int `json:"retransmit_percent"`
	InjectFailPercent int `json:"inject_fail_percent"`

	DebugDumpPacketMaxNum int `json:"debug_dump_packet_max_num"`

	// DumpFilename 不为空时，把原始包、重传包、还原包都写入抓包文件
	DumpFilename string `json:"dump_filename"`

	Log nazalog.Option `json:"log"`
}

func LoadConf(confFile string) (*Config, error) {
	rawContent, err := ioutil.ReadFile(confFile)
	if err != nil {
		return nil, err
	}
	return ParseConf(rawContent)
}

func ParseConf(rawContent []byte) (*Config, error) {
	var config Config
	if err := json.Unmarshal(rawContent, &config); err != nil {
		return nil, err
	}

	j, err := nazajson.New(rawContent)
	if err != nil {
		return nil, err
	}
	if !j.Exist("packet_num") {
		config.PacketNum = defaultPacketNum
	}
	if !j.Exist("payload_size") {
		config.PayloadSize = defaultPayloadSize
	}
	if !j.Exist("retransmit_percent") {
		config.RetransmitPercent = defaultRetransmitPercent
	}
	if !j.Exist("inject_fail_percent") {
		config.InjectFailPercent = defaultInjectFailPercent
	}
	if !j.Exist("debug_dump_packet_max_num") {
		config.DebugDumpPacketMaxNum = base.RtxDebugDumpPacketMaxNum
	}
	if !j.Exist("log.level") {
		config.Log.Level = nazalog.LevelDebug
	}
	if !j.Exist("log.filename") {
		config.Log.Filename = "./logs/rtxloopback.log"
	}
	if !j.Exist("log.is_to_stdout") {
		config.Log.IsToStdout = true
	}
	if !j.Exist("log.is_rotate_daily") {
		config.Log.IsRotateDaily = true
	}
	if !j.Exist("log.short_file_flag") {
		config.Log.ShortFileFlag = true
	}

	if err = config.check(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) check() error {
	if c.SdpFile == "" {
		return fmt.Errorf("%w. sdp_file is empty", base.ErrLoopbackConfig)
	}
	if c.PacketNum <= 0 || c.PacketNum > maxPacketNum {
		return fmt.Errorf("%w. packet_num=%d", base.ErrLoopbackConfig, c.PacketNum)
	}
	if c.PayloadSize < 0 || c.PayloadSize > maxPayloadSize {
		return fmt.Errorf("%w. payload_size=%d", base.ErrLoopbackConfig, c.PayloadSize)
	}
	if !isPercent(c.RetransmitPercent) {
		return fmt.Errorf("%w. retransmit_percent=%d", base.ErrLoopbackConfig, c.RetransmitPercent)
	}
	if !isPercent(c.InjectFailPercent) {
		return fmt.Errorf("%w. inject_fail_percent=%d", base.ErrLoopbackConfig, c.InjectFailPercent)
	}
	return nil
}

func isPercent(v int) bool {
	return v >= 0 && v <= 100
}
