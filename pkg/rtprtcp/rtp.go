// Copyright 2020, Chef.  All rights reserved.
// https://github.com/q191201771/lalrtx
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package rtprtcp

// DistanceSeq 从from往后递增到to需要的步数，内部处理序号翻转问题，始终为非负值
//
// 比如 DistanceSeq(65535, 1) 为 2，DistanceSeq(1, 0) 为 65535
func DistanceSeq(from, to uint16) int {
	return int(to - from)
}
