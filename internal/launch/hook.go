// SPDX-License-Identifier: MPL-2.0

package launch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strings"

	"github.com/azbin/azbin/internal/cache"
)

// hookScript unpacks a bundled pixi environment into the slot.
const hookScript = "pixi.sh"

// runHook runs "<slot>/pixi.sh -o <slot>" when the script exists. The
// combined output is attached to the error on failure.
func runHook(ctx context.Context, slot cache.Slot) (bool, error) {
	script := slot.Path(hookScript)
	if _, err := os.Stat(script); errors.Is(err, fs.ErrNotExist) {
		return false, nil
	} else if err != nil {
		return false, err
	}

	cmd := exec.CommandContext(ctx, script, "-o", slot.Dir)
	cmd.Dir = slot.Dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return true, fmt.Errorf("%w\n%s", err, strings.TrimRight(out.String(), "\n"))
	}
	return true, nil
}
