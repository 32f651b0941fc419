/*
Copyright (c) 2025 Odd Kin <oddkin@oddkin.co>

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

package bundletool

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/hashicorp/go-version"
)

// MinimumVersion is the oldest bundletool release known to accept --device-spec on extract-apks
var MinimumVersion = version.Must(version.NewVersion("1.8.0"))

// ToolError reports a toolchain invocation that ran but exited unsuccessfully
type ToolError struct {
	Subcommand string
	ExitCode   int
	Stderr     string
}

func (e *ToolError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		msg = "no output"
	}
	return fmt.Sprintf("bundletool %s exited with code %d: %s", e.Subcommand, e.ExitCode, msg)
}

// BundleTool implements Toolchain by running the bundletool command line
type BundleTool struct {
	command  string
	baseArgs []string
	timeout  time.Duration
	log      logr.Logger
}

// NewBundleTool creates a toolchain that runs command with baseArgs prepended,
// e.g. "java" with ["-jar", "/opt/bundletool-all.jar"]
func NewBundleTool(command string, baseArgs []string, timeout time.Duration, log logr.Logger) *BundleTool {
	return &BundleTool{
		command:  command,
		baseArgs: baseArgs,
		timeout:  timeout,
		log:      log.WithName("bundletool"),
	}
}

// BuildApks runs build-apks
func (b *BundleTool) BuildApks(ctx context.Context, req BuildApksRequest) error {
	args := []string{
		"build-apks",
		"--bundle=" + req.BundlePath,
		"--output=" + req.OutputPath,
		"--overwrite",
		"--ks=" + req.KeystorePath,
		"--ks-pass=pass:" + req.KeystorePassword,
		"--ks-key-alias=" + req.KeyAlias,
		"--key-pass=pass:" + req.KeyPassword,
	}

	_, err := b.run(ctx, args)
	return err
}

// ExtractApks writes the device spec to a file, runs extract-apks and lists the extracted APKs
func (b *BundleTool) ExtractApks(ctx context.Context, req ExtractApksRequest) ([]string, error) {
	if err := os.MkdirAll(req.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	specFile, err := os.CreateTemp(filepath.Dir(req.OutputDir), "device-spec-*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to create device spec file: %w", err)
	}
	defer func() { _ = os.Remove(specFile.Name()) }()

	if err := json.NewEncoder(specFile).Encode(req.Device); err != nil {
		_ = specFile.Close()
		return nil, fmt.Errorf("failed to write device spec: %w", err)
	}
	if err := specFile.Close(); err != nil {
		return nil, fmt.Errorf("failed to write device spec: %w", err)
	}

	args := []string{
		"extract-apks",
		"--apks=" + req.ApksPath,
		"--output-dir=" + req.OutputDir,
		"--device-spec=" + specFile.Name(),
	}
	if len(req.Modules) > 0 {
		args = append(args, "--modules="+strings.Join(req.Modules, ","))
	}

	if _, err := b.run(ctx, args); err != nil {
		return nil, err
	}

	return listApks(req.OutputDir)
}

// Version runs "bundletool version" and parses the result
func (b *BundleTool) Version(ctx context.Context) (*version.Version, error) {
	out, err := b.run(ctx, []string{"version"})
	if err != nil {
		return nil, err
	}

	v, err := version.NewVersion(strings.TrimSpace(string(out)))
	if err != nil {
		return nil, fmt.Errorf("unrecognized bundletool version %q: %w", strings.TrimSpace(string(out)), err)
	}
	return v, nil
}

// run executes the toolchain and returns its stdout
func (b *BundleTool) run(ctx context.Context, args []string) ([]byte, error) {
	execCtx := ctx
	if b.timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	fullArgs := append(append([]string{}, b.baseArgs...), args...)
	cmd := exec.CommandContext(execCtx, b.command, fullArgs...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	b.log.V(1).Info("Running toolchain", "command", b.command, "args", redact(fullArgs))
	start := time.Now()

	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			toolErr := &ToolError{Subcommand: args[0], ExitCode: exitErr.ExitCode(), Stderr: stderr.String()}
			if toolErr.Stderr == "" {
				// bundletool reports some validation errors on stdout
				toolErr.Stderr = stdout.String()
			}
			return nil, toolErr
		}
		return nil, fmt.Errorf("failed to run %s %s: %w", b.command, args[0], err)
	}

	b.log.V(1).Info("Toolchain finished", "subcommand", args[0], "duration", time.Since(start))
	return stdout.Bytes(), nil
}

// listApks returns the .apk files under dir in lexical order
func listApks(dir string) ([]string, error) {
	var apks []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".apk") {
			apks = append(apks, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list extracted splits: %w", err)
	}

	sort.Strings(apks)
	return apks, nil
}

// redact hides password arguments before logging
func redact(args []string) []string {
	out := make([]string, len(args))
	for i, arg := range args {
		if strings.HasPrefix(arg, "--ks-pass=") || strings.HasPrefix(arg, "--key-pass=") {
			arg = arg[:strings.Index(arg, "=")+1] + "****"
		}
		out[i] = arg
	}
	return out
}
