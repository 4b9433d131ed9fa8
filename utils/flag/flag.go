/*
flag Package set up cli flags shared across services

Usage:

	Flags listed in this package are shared across boundaries and service-agnostic
	For service dependent flags please define in their respective package
*/

package flag

import (
	"flag"
)

const (
	FeedServer = "feed_server"
)

var (
	IsDevelopment bool
	ServiceName   string
)

func init() {
	flag.BoolVar(&IsDevelopment, "dev", true, "set to true if the current run is for development. default value is true")
	flag.StringVar(&ServiceName, "service", FeedServer, "service name reported in logs and metrics")
}

// ParseFlags reads the shared flags from the command line. Called from main
// rather than init so binaries that register more flags after this package
// loads still start.
func ParseFlags() {
	flag.Parse()
}
