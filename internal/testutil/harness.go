// Package testutil provides a standardized harness for end-to-end tests that
// exercise the full application lifecycle: writing collection files to a
// temporary directory, building an App, running an expansion, and capturing
// the log output it produced.
package testutil

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/snipweave/internal/app"
	"github.com/vk/snipweave/internal/hclload"
	"github.com/vk/snipweave/internal/vars"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// HarnessResult holds the outcomes of an integration test run.
type HarnessResult struct {
	LogOutput string
	Err       error
	App       *app.App
}

// RunIntegrationTest provides a standardized harness for running integration
// tests using a default background context and the core variable modules.
func RunIntegrationTest(t *testing.T, files map[string]string, reference string) *HarnessResult {
	t.Helper()
	return RunIntegrationTestWithContext(context.Background(), t, files, reference, nil)
}

// RunIntegrationTestWithContext provides a standardized harness for running
// integration tests with a specific context provided by the caller. The
// optional edit callback adjusts the app config before construction, and any
// extra variable modules replace the core set.
func RunIntegrationTestWithContext(ctx context.Context, t *testing.T, files map[string]string, reference string, edit func(*app.Config), modules ...vars.Module) *HarnessResult {
	t.Helper()

	// 1. Create a temporary root directory for the test.
	tmpDir, err := os.MkdirTemp("", ".tmp-integration-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	collectionsDir := filepath.Join(tmpDir, "collections")
	require.NoError(t, os.Mkdir(collectionsDir, 0755))

	// 2. Write all collection files to the temporary directory.
	//    The test provides relative paths (e.g., "work/team.hcl"), which
	//    naturally creates the subdirectory structure within collectionsDir.
	for name, content := range files {
		filePath := filepath.Join(collectionsDir, name)
		dir := filepath.Dir(filePath)
		require.NoError(t, os.MkdirAll(dir, 0755))
		err = os.WriteFile(filePath, []byte(content), 0644)
		require.NoError(t, err)
	}

	// 3. Configure the app against the dedicated collections directory.
	cfg := app.Config{
		CollectionsPath: collectionsDir,
		Reference:       reference,
		LogLevel:        "debug",
		LogFormat:       "text",
	}
	if edit != nil {
		edit(&cfg)
	}
	appConfig, err := app.NewConfig(cfg)
	require.NoError(t, err)

	logBuffer := &SafeBuffer{}

	var testApp *app.App
	var panicErr any
	func() {
		defer func() {
			if r := recover(); r != nil {
				if os.Getenv("SNIPWEAVE_TEST_LOGS") == "true" {
					t.Logf("--- HARNESS RECOVERED PANIC ---\n%q", fmt.Sprintf("%v", r))
				}
				panicErr = r
			}
		}()
		testApp = app.NewApp(logBuffer, appConfig, hclload.NewLoader(), modules...)
	}()

	if panicErr != nil {
		return &HarnessResult{
			LogOutput: logBuffer.String(),
			Err:       fmt.Errorf("application startup panicked | %v", panicErr),
			App:       nil,
		}
	}

	runErr := testApp.Run(ctx)

	if os.Getenv("SNIPWEAVE_TEST_LOGS") == "true" {
		t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
	}

	return &HarnessResult{
		LogOutput: logBuffer.String(),
		Err:       runErr,
		App:       testApp,
	}
}
