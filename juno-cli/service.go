package junocli

import "runtime/debug"

// Service identifies a junokit binary in logs, metrics and report keys.
type Service struct {
	Name    string
	Version string
}

func NewService(name string) Service {
	return Service{
		Name:    name,
		Version: CommitHash(),
	}
}

func (s Service) String() string {
	return s.Name + "@" + s.Version
}

// CommitHash reports the vcs revision stamped into the binary, falling back
// to the module version.
func CommitHash() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" {
			return setting.Value
		}
	}
	return info.Main.Version
}
