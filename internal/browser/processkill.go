package browser

import (
	"os"
	"os/exec"
	"runtime"
	"strconv"
)

// killProcessTree kills the Chrome process and its helpers.
// Chrome children (GPU, renderer, crashpad) outlive a plain Kill of the parent.
func killProcessTree(proc *os.Process) {
	if proc == nil {
		return
	}

	if runtime.GOOS == "windows" {
		_ = exec.Command("taskkill", "/F", "/T", "/PID", strconv.Itoa(proc.Pid)).Run()
		return
	}

	// chromedp starts Chrome in its own process group, so the group ID equals the PID.
	if err := exec.Command("kill", "-9", "--", "-"+strconv.Itoa(proc.Pid)).Run(); err != nil {
		_ = proc.Kill()
	}
}
