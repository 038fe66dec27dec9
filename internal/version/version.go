// Package version хранит данные сборки marketplace, выставляемые через -ldflags.
package version

import (
	"fmt"
	"runtime/debug"
	"sync"

	log "github.com/sirupsen/logrus"
)

const service = "marketplace"

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"

	resolveOnce sync.Once
)

// Info возвращает версию, commit и дату сборки.
// Без ldflags версия и commit берутся из debug.BuildInfo, если Go их записал.
func Info() (v, c, d string) {
	resolveOnce.Do(resolveFromBuildInfo)
	return version, commit, date
}

func GetVersion() string { v, _, _ := Info(); return v }
func GetCommit() string { _, c, _ := Info(); return c }
func GetDate() string { _, _, d := Info(); return d }

func String() string {
	v, c, d := Info()
	return fmt.Sprintf("%s version=%s commit=%s date=%s", service, v, c, d)
}

// Fields — поля сборки для стартового лога.
func Fields() log.Fields {
	v, c, d := Info()
	return log.Fields{"service": service, "version": v, "commit": c, "build_date": d}
}

func resolveFromBuildInfo() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	applyBuildInfo(info)
}

func applyBuildInfo(info *debug.BuildInfo) {
	if version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		version = info.Main.Version
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if commit == "unknown" && s.Value != "" {
				commit = s.Value
				if len(commit) > 12 {
					commit = commit[:12]
				}
			}
		case "vcs.time":
			if date == "unknown" && s.Value != "" {
				date = s.Value
			}
		}
	}
}
