/******************************************************************************
 *
 *  Description :
 *    Package exposes info, warning and error loggers.
 *
 *****************************************************************************/
package logs

import (
	"io"
	"log"
	"os"
)

var (
	// Info is the logger for informational messages.
	Info *log.Logger
	// Warn is the logger for warnings.
	Warn *log.Logger
	// Err is the logger for errors.
	Err *log.Logger
)

func init() {
	Init(false)
}

// Init creates the loggers. With debug set, messages are annotated with the
// file and line of the call site.
func Init(debug bool) {
	flags := log.LstdFlags | log.LUTC
	if debug {
		flags |= log.Lshortfile
	}
	Info = log.New(os.Stdout, "I", flags)
	Warn = log.New(os.Stdout, "W", flags)
	Err = log.New(os.Stderr, "E", flags)
}

// Writer returns the destination of informational messages, for handing to
// access-log middleware.
func Writer() io.Writer {
	return os.Stdout
}
