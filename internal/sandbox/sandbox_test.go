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
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWorkspace(t *testing.T) *Workspace {
	t.Helper()
	ws, err := NewWorkspace(t.TempDir(), "job-1")
	require.NoError(t, err)
	return ws
}

func TestWorkspace_Resolve(t *testing.T) {
	ws := newTestWorkspace(t)

	p, err := ws.Resolve("data/input.csv")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(ws.Root, "data", "input.csv"), p)

	for _, bad := range []string{"", "../x", "a/../../x", "/etc/passwd", "."} {
		_, err := ws.Resolve(bad)
		assert.ErrorIs(t, err, ErrPathEscape, bad)
	}
}

func TestNewWorkspace_InvalidID(t *testing.T) {
	for _, id := range []string{"", "..", "a/b"} {
		_, err := NewWorkspace(t.TempDir(), id)
		assert.Error(t, err, id)
	}
}

func TestWorkspaceContext(t *testing.T) {
	_, err := WorkspaceFromContext(context.Background())
	assert.ErrorIs(t, err, ErrNoWorkspace)

	ws := newTestWorkspace(t)
	got, err := WorkspaceFromContext(WithWorkspace(context.Background(), ws))
	require.NoError(t, err)
	assert.Same(t, ws, got)
}

func newTestSandbox(t *testing.T, cfg Config) *Sandbox {
	t.Helper()
	if cfg.PythonCommand == "" {
		cfg.PythonCommand = "python3"
	}
	if cfg.InstallCommand == "" {
		cfg.InstallCommand = "python3 -m pip install"
	}
	sb, err := New(cfg)
	require.NoError(t, err)
	return sb
}

func TestNew_RejectsEmptyCommand(t *testing.T) {
	_, err := New(Config{PythonCommand: "", InstallCommand: "pip install"})
	assert.Error(t, err)
}

func TestRunJavaScript_ConsoleOutput(t *testing.T) {
	sb := newTestSandbox(t, Config{})
	res, err := sb.RunJavaScript(context.Background(), `console.log("sum", 1 + 2); console.error("oops")`, 0)
	require.NoError(t, err)
	assert.Equal(t, "sum 3\n", res.Stdout)
	assert.Equal(t, "oops\n", res.Stderr)
	assert.Equal(t, 0, res.ExitCode)
	assert.Contains(t, res.String(), "STDERR:\noops")
}

func TestRunJavaScript_LastValue(t *testing.T) {
	sb := newTestSandbox(t, Config{})
	res, err := sb.RunJavaScript(context.Background(), `[1,2,3].map(x => x * 2).join(",")`, 0)
	require.NoError(t, err)
	assert.Equal(t, "2,4,6\n", res.Stdout)
}

func TestRunJavaScript_Exception(t *testing.T) {
	sb := newTestSandbox(t, Config{})
	res, err := sb.RunJavaScript(context.Background(), `throw new Error("boom")`, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExitCode)
	assert.Contains(t, res.Stderr, "boom")
}

func TestRunJavaScript_Timeout(t *testing.T) {
	sb := newTestSandbox(t, Config{CodeTimeout: 200 * time.Millisecond})
	start := time.Now()
	res, err := sb.RunJavaScript(context.Background(), `while (true) {}`, 0)
	require.NoError(t, err)
	assert.True(t, res.TimedOut)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Contains(t, res.String(), "timed out")
}

func TestRunJavaScript_NoHostBindings(t *testing.T) {
	sb := newTestSandbox(t, Config{})
	res, err := sb.RunJavaScript(context.Background(), `typeof require + " " + typeof fetch`, 0)
	require.NoError(t, err)
	assert.Equal(t, "undefined undefined\n", res.Stdout)
}

// 用 sh 代替解释器，验证子进程边界本身（cwd、环境变量、退出码）
func TestRunPython_ProcessBoundary(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	t.Setenv("QUIZ_SANDBOX_PASS", "visible")
	t.Setenv("QUIZ_SANDBOX_HIDDEN", "hidden")

	sb := newTestSandbox(t, Config{PythonCommand: "sh", PassEnv: []string{"QUIZ_SANDBOX_PASS"}})
	ws := newTestWorkspace(t)

	code := `echo "home=$HOME"
echo "pass=$QUIZ_SANDBOX_PASS hidden=$QUIZ_SANDBOX_HIDDEN"
echo "pp=$PYTHONPATH"
pwd
echo warn 1>&2
exit 3
`
	res, err := sb.RunPython(context.Background(), ws, code, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Contains(t, res.Stdout, "home="+ws.Root)
	assert.Contains(t, res.Stdout, "pass=visible hidden=\n")
	assert.Contains(t, res.Stdout, "pp="+ws.DepsDir)
	assert.Contains(t, res.Stdout, ws.Root+"\n")
	assert.Equal(t, "warn\n", res.Stderr)
	assert.True(t, strings.HasSuffix(res.String(), "exit code 3"))
}

func TestRunPython_Timeout(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	sb := newTestSandbox(t, Config{PythonCommand: "sh"})
	ws := newTestWorkspace(t)

	res, err := sb.RunPython(context.Background(), ws, "sleep 5\n", 200*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, res.TimedOut)
}

func TestRunPython_OutputCap(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	sb := newTestSandbox(t, Config{PythonCommand: "sh", MaxOutputBytes: 16})
	ws := newTestWorkspace(t)

	res, err := sb.RunPython(context.Background(), ws, "i=0; while [ $i -lt 100 ]; do echo 0123456789; i=$((i+1)); done\n", 0)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.Stdout, "0123456789\n01234"))
	assert.Contains(t, res.Stdout, "[output truncated]")
}

func TestRunPython_Real(t *testing.T) {
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}
	sb := newTestSandbox(t, Config{})
	ws := newTestWorkspace(t)

	res, err := sb.RunPython(context.Background(), ws, "print(sum(range(10)))\n", 0)
	require.NoError(t, err)
	assert.Equal(t, "45\n", res.Stdout)
}

func TestValidatePackages(t *testing.T) {
	assert.NoError(t, ValidatePackages([]string{"pandas", "requests[socks]", "numpy>=1.26", "beautifulsoup4==4.12.3"}))
	for _, bad := range []string{"-e", "--index-url=http://x", "pkg; rm -rf /", "a b", ""} {
		assert.Error(t, ValidatePackages([]string{bad}), bad)
	}
	assert.Error(t, ValidatePackages(nil))
}

func TestInstall_TargetsDepsDir(t *testing.T) {
	if _, err := exec.LookPath("echo"); err != nil {
		t.Skip("echo not available")
	}
	sb := newTestSandbox(t, Config{InstallCommand: "echo install"})
	ws := newTestWorkspace(t)

	res, err := sb.Install(context.Background(), ws, []string{"pandas", "numpy"})
	require.NoError(t, err)
	assert.Equal(t, "install --target "+ws.DepsDir+" pandas numpy\n", res.Stdout)

	_, err = sb.Install(context.Background(), ws, []string{"--pre"})
	assert.Error(t, err)
}
