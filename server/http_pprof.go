/******************************************************************************
 *
 *  Description :
 *
 *    Runtime profiling endpoint, mounted only when -pprof_url is given.
 *    Serves the named runtime/pprof profile at <mount-path>/<profile-name>.
 *
 *****************************************************************************/

package main

import (
	"fmt"
	"net/http"
	"path"
	"runtime/pprof"
	"strings"

	"github.com/zentrio/fabric/server/logs"
)

var pprofRoot string

// servePprof mounts the profile dump handler at the given URL path. An empty
// or "-" path leaves profiling unexposed.
func servePprof(mux *http.ServeMux, serveAt string) {
	if serveAt == "" || serveAt == "-" {
		return
	}

	pprofRoot = path.Clean("/"+serveAt) + "/"
	mux.HandleFunc(pprofRoot, serveProfile)

	logs.Info.Printf("pprof: profiles exposed at '%s'", pprofRoot)
}

func serveProfile(wrt http.ResponseWriter, req *http.Request) {
	wrt.Header().Set("X-Content-Type-Options", "nosniff")
	wrt.Header().Set("Content-Type", "text/plain; charset=utf-8")

	name := strings.TrimPrefix(req.URL.Path, pprofRoot)
	profile := pprof.Lookup(name)
	if profile == nil {
		wrt.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(wrt, "unknown profile '%s'\n", name)
		return
	}

	profile.WriteTo(wrt, 2)
}
