// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sandbox

import (
	"context"
	"fmt"
	"regexp"
	"time"
)

// 包名加可选 extras 与版本约束，如 pandas、requests[socks]、numpy>=1.26
var packagePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._\-]*(\[[A-Za-z0-9._,\-]+\])?([<>=!~]=?[A-Za-z0-9.*+!\-]+(,[<>=!~]=?[A-Za-z0-9.*+!\-]+)*)?$`)

// ValidatePackages 拒绝以 - 开头或包含非法字符的包名
func ValidatePackages(pkgs []string) error {
	if len(pkgs) == 0 {
		return fmt.Errorf("no dependencies given")
	}
	for _, p := range pkgs {
		if !packagePattern.MatchString(p) {
			return fmt.Errorf("invalid package name %q", p)
		}
	}
	return nil
}

// Install 将依赖安装到工作目录的 deps 目录；后续 RunPython 通过 PYTHONPATH 可见
func (s *Sandbox) Install(ctx context.Context, ws *Workspace, pkgs []string) (*Result, error) {
	if err := ValidatePackages(pkgs); err != nil {
		return nil, err
	}
	args := append([]string{}, s.install[1:]...)
	args = append(args, "--target", ws.DepsDir)
	args = append(args, pkgs...)
	// 安装通常比执行代码慢，给两倍时长
	return s.runProcess(ctx, ws, s.install[0], args, 2*s.cfg.CodeTimeout+time.Second)
}
