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

package secrets

import (
	"context"
	"fmt"
)

// Credentials 进程级身份与共享密钥：启动时加载一次，之后只读
type Credentials struct {
	Identity string
	Secret   string
}

// LoadCredentials 从 store 读取身份与密钥；两者都必须非空
func LoadCredentials(ctx context.Context, store Store, identityKey, secretKey string) (Credentials, error) {
	identity, err := store.Get(ctx, identityKey)
	if err != nil {
		return Credentials{}, fmt.Errorf("load identity %q: %w", identityKey, err)
	}
	secret, err := store.Get(ctx, secretKey)
	if err != nil {
		return Credentials{}, fmt.Errorf("load secret %q: %w", secretKey, err)
	}
	if identity == "" || secret == "" {
		return Credentials{}, fmt.Errorf("credentials %q/%q must not be empty", identityKey, secretKey)
	}
	return Credentials{Identity: identity, Secret: secret}, nil
}
