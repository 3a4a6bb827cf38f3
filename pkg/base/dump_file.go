// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lalrtx
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/q191201771/naza/pkg/bele"
	"github.com/q191201771/naza/pkg/nazabytes"
)

// 抓包文件，每条消息为16字节头加上包体:
//
// | Ver(4) | Typ(4) | Len(4) | Timestamp(4) | Body(Len) |
//
// 字段都是大端，Timestamp为写入时的unix秒

const (
	DumpFileVersion = 1

	// DumpFileMaxBodyLength 单条消息包体的最大长度，rtp包不会超过这个值
	DumpFileMaxBodyLength = 64 * 1024

	dumpFileHeaderLength = 16
)

const (
	DumpTypeDefault uint32 = 1

	DumpTypeRtpOriginal      uint32 = 17 // 发送端的原始包
	DumpTypeRtpRetransmitted uint32 = 18 // 发送端注入的重传包，rtx或者原样重传
	DumpTypeRtpRestored      uint32 = 19 // 接收端还原后的包
)

type DumpFile struct {
	mu   sync.Mutex
	file *os.File
}

type DumpFileMessage struct {
	Ver       uint32
	Typ       uint32
	Len       uint32
	Timestamp uint32
	Body      []byte
}

func NewDumpFile() *DumpFile {
	return &DumpFile{}
}

func (d *DumpFile) OpenToWrite(filename string) (err error) {
	dir := filepath.Dir(filename)
	if err = os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	d.file, err = os.Create(filename)
	return
}

func (d *DumpFile) OpenToRead(filename string) (err error) {
	d.file, err = os.Open(filename)
	return
}

func (d *DumpFile) Write(b []byte) error {
	return d.WriteWithType(b, DumpTypeDefault)
}

// WriteWithType 可以被多个协程同时调用
func (d *DumpFile) WriteWithType(b []byte, typ uint32) error {
	if len(b) > DumpFileMaxBodyLength {
		return fmt.Errorf("%w. len=%d", ErrDumpFileBadBodyLen, len(b))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := d.file.Write(d.pack(b, typ))
	return err
}

// ReadOneMessage 读到文件末尾时返回 io.EOF
func (d *DumpFile) ReadOneMessage() (m DumpFileMessage, err error) {
	m.Ver, err = bele.ReadBeUint32(d.file)
	if err != nil {
		return
	}
	if m.Ver != DumpFileVersion {
		err = fmt.Errorf("%w. ver=%d", ErrDumpFileBadVersion, m.Ver)
		return
	}
	m.Typ, err = bele.ReadBeUint32(d.file)
	if err != nil {
		return
	}
	m.Len, err = bele.ReadBeUint32(d.file)
	if err != nil {
		return
	}
	m.Timestamp, err = bele.ReadBeUint32(d.file)
	if err != nil {
		return
	}
	if m.Len > DumpFileMaxBodyLength {
		err = fmt.Errorf("%w. len=%d", ErrDumpFileBadBodyLen, m.Len)
		return
	}
	m.Body = make([]byte, m.Len)
	if _, err = io.ReadFull(d.file, m.Body); err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return
}

func (d *DumpFile) Close() error {
	if d.file == nil {
		return nil
	}
	return d.file.Close()
}

// ---------------------------------------------------------------------------------------------------------------------

func (m *DumpFileMessage) DebugString() string {
	return fmt.Sprintf("ver: %d, typ: %d, len: %d, timestamp: %d, hex: %s",
		m.Ver, m.Typ, m.Len, m.Timestamp, hex.Dump(nazabytes.Prefix(m.Body, 16)))
}

// ---------------------------------------------------------------------------------------------------------------------

func (d *DumpFile) pack(b []byte, typ uint32) []byte {
	ret := make([]byte, len(b)+dumpFileHeaderLength)
	bele.BePutUint32(ret, DumpFileVersion)
	bele.BePutUint32(ret[4:], typ)
	bele.BePutUint32(ret[8:], uint32(len(b)))
	bele.BePutUint32(ret[12:], uint32(time.Now().Unix()))
	copy(ret[dumpFileHeaderLength:], b)
	return ret
}
