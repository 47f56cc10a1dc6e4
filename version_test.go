/*
Copyright 2022 The Mantis Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package mantis

import (
	"fmt"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionString(t *testing.T) {
	v := Version{
		Version:      "1.0.0",
		BuildDate:    "2023-05-01T12:00:00Z",
		GitCommit:    "abcdef1234567890",
		GitTag:       "v1.0.0",
		GitTreeState: "clean",
		GoVersion:    "go1.22",
		Compiler:     "gc",
		Platform:     "linux/amd64",
	}
	assert.Equal(t, "Version: 1.0.0, BuildDate: 2023-05-01T12:00:00Z, GitCommit: abcdef1234567890, GitTag: v1.0.0, GitTreeState: clean, GoVersion: go1.22, Compiler: gc, Platform: linux/amd64", v.String())
}

func TestGetVersion(t *testing.T) {
	origVersion, origCommit, origTag, origTreeState := version, gitCommit, gitTag, gitTreeState
	defer func() {
		version, gitCommit, gitTag, gitTreeState = origVersion, origCommit, origTag, origTreeState
	}()

	tests := []struct {
		name      string
		version   string
		commit    string
		tag       string
		treeState string
		want      string
	}{
		{
			name:      "tagged release on a clean tree",
			version:   "dev",
			commit:    "1234567890abcdef",
			tag:       "v1.2.3",
			treeState: "clean",
			want:      "v1.2.3",
		},
		{
			name:      "dirty tree",
			version:   "dev",
			commit:    "1234567890abcdef",
			tag:       "v1.2.3",
			treeState: "dirty",
			want:      "dev+1234567.dirty",
		},
		{
			name:      "no commit recorded",
			version:   "dev",
			commit:    "",
			tag:       "",
			treeState: "clean",
			want:      "dev+unknown",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, gitCommit, gitTag, gitTreeState = tt.version, tt.commit, tt.tag, tt.treeState
			v := GetVersion()
			assert.Equal(t, tt.want, v.Version)
			assert.Equal(t, tt.commit, v.GitCommit)
		})
	}
}

func TestGetVersionRuntimeInfo(t *testing.T) {
	v := GetVersion()
	assert.Equal(t, runtime.Version(), v.GoVersion)
	assert.Equal(t, runtime.Compiler, v.Compiler)
	assert.Equal(t, fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH), v.Platform)
}
