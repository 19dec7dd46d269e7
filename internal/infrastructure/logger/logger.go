package logger

import (
	"io"
	"log"
	"os"
)

var (
	Info  *log.Logger
	Error *log.Logger
	Debug *log.Logger
	Warn  *log.Logger
)

func init() {
	logFlags := log.Ldate | log.Ltime | log.LUTC | log.Lshortfile

	Info = log.New(os.Stdout, "INFO: ", logFlags)
	Error = log.New(os.Stderr, "ERROR: ", logFlags)
	Warn = log.New(os.Stderr, "WARN: ", logFlags)

	// Debug is chatty per dropped upload; off unless asked for.
	debugOut := io.Discard
	if os.Getenv("DEBUG") != "" {
		debugOut = os.Stdout
	}
	Debug = log.New(debugOut, "DEBUG: ", logFlags)
}
