package launcher

import (
	"os"
	"path/filepath"
)

// startPlan is the resolved way to run one application's start script on one
// platform.
type startPlan struct {
	script string
	argv   []string
}

// resolveStart maps (platform, app) to the start script and the interpreter
// argv used to run it: run.bat through cmd /C on windows, run.sh through sh
// on darwin and linux. Unknown platforms fail before any filesystem access;
// a missing script fails afterwards.
func resolveStart(platform, appsDir, name string) (startPlan, error) {
	base := filepath.Join(appsDir, name)
	var plan startPlan
	switch platform {
	case "windows":
		plan.script = filepath.Join(base, "run.bat")
		plan.argv = []string{"cmd", "/C", plan.script}
	case "darwin", "linux":
		plan.script = filepath.Join(base, "run.sh")
		plan.argv = []string{"sh", plan.script}
	default:
		return startPlan{}, &UnsupportedPlatformError{Platform: platform}
	}
	if _, err := os.Stat(plan.script); err != nil {
		return startPlan{}, &ScriptNotFoundError{App: name, Path: plan.script}
	}
	return plan, nil
}
