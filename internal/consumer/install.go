package consumer

import (
	"fmt"
	"strings"
)

// InstallType describes how the running app instance was acquired.
type InstallType string

const (
	InstallTypeFreshInstall InstallType = "fresh_install"
	InstallTypeUpdate       InstallType = "update"
	InstallTypeReinstall    InstallType = "reinstall"
)

// AllInstallTypes returns every install type the host can report.
func AllInstallTypes() []InstallType {
	return []InstallType{InstallTypeFreshInstall, InstallTypeUpdate, InstallTypeReinstall}
}

func (t InstallType) String() string { return string(t) }

// ParseInstallType accepts the canonical names, case-insensitively.
func ParseInstallType(s string) (InstallType, error) {
	want := InstallType(strings.ToLower(strings.TrimSpace(s)))
	for _, t := range AllInstallTypes() {
		if t == want {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown install type %q", s)
}

// ParseInstallTypes parses a list, failing on the first unknown name. A nil
// list stays nil.
func ParseInstallTypes(names []string) ([]InstallType, error) {
	if names == nil {
		return nil, nil
	}
	out := make([]InstallType, 0, len(names))
	for _, n := range names {
		t, err := ParseInstallType(n)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
