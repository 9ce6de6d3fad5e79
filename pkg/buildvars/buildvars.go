// Package buildvars holds the values injected at link time, like
//
//	go build -ldflags "-X github.com/xaionaro-go/liverecorder/pkg/buildvars.Version=v1.0.0"
package buildvars

import (
	"strconv"
	"time"
)

var (
	GitCommit       string
	Version         string
	BuildDateString string
	BuildDate       *time.Time
)

func init() {
	unixTS, err := strconv.ParseInt(BuildDateString, 10, 64)
	if err == nil {
		t := time.Unix(unixTS, 0)
		BuildDate = &t
	}
}
