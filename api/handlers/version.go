package handlers

import (
	"net/http"
)

var buildInfo = struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}{Version: "dev", Commit: "none", Date: "unknown"}

// SetBuildInfo records the build metadata stamped in by LDFLAGS.
func SetBuildInfo(version, commit, date string) {
	buildInfo.Version = version
	buildInfo.Commit = commit
	buildInfo.Date = date
}

// GetVersion reports the build metadata.
func GetVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, buildInfo)
}
