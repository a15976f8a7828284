package internal

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
)

var (
	Host      bool
	JoinAddr  string
	Port      uint16
	Name      string
	SessionID uint32
	Camera    bool
	Record    bool
	DebugMode bool
)

func init() {
	pflag.BoolVar(&Host, "host", false, "Start a new session as host")
	pflag.StringVar(&JoinAddr, "join", "", "Join an existing session at host:port")
	pflag.Uint16VarP(&Port, "port", "p", 9000, "UDP port to bind")
	pflag.StringVarP(&Name, "name", "n", "", "Display name for this participant")
	pflag.Uint32Var(&SessionID, "session-id", 1, "Session id to advertise (host only)")
	pflag.BoolVarP(&Camera, "camera", "c", false, "Enable camera capture and video send")
	pflag.BoolVarP(&Record, "record", "r", false, "Record this participant's audio to a local fMP4 file")
	pflag.BoolVarP(&DebugMode, "debug", "d", false, "Enable debug logging")
}

func SetupUsage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "HyperZoom - peer-to-peer audio/video conferencing client\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  %s --host --name alice [flags]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --join 203.0.113.5:9000 --name bob [flags]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Flags:\n")
		pflag.PrintDefaults()
	}
}

// ValidateMode ensures exactly one of --host/--join was given.
func ValidateMode() error {
	if Host == (JoinAddr != "") {
		return fmt.Errorf("specify exactly one of --host or --join")
	}
	return nil
}
