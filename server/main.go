/******************************************************************************
 *
 *  Description :
 *
 *  Setup & initialization.
 *
 *****************************************************************************/

package main

import (
	"flag"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/gorilla/handlers"

	"github.com/zentrio/fabric/server/logs"
	"github.com/zentrio/fabric/server/queue"
)

const (
	// currentVersion is the API version.
	currentVersion = "1.4"
	// minSupportedVersion is the minimum supported API version.
	minSupportedVersion = "1.0"

	// Terminate idle sessions after this timeout.
	idleSessionTimeout = time.Second * 55
)

// Build timestamp set by the compiler:
// -ldflags "-X main.buildstamp=`date -u '+%Y%m%dT%H:%M:%SZ'`".
var buildstamp = "undef"

var globals struct {
	// The fabric core: sessions, presence, subscriptions, routing.
	fabric *Fabric

	// Salt used to verify API keys of backend services.
	apiKeySalt []byte

	// Maximum message size allowed from the clients.
	maxMessageSize int64
	// Add X-Forwarded-For headers to logged IP addresses.
	useXForwardedFor bool

	// Strict-Transport-Security max age, seconds, as a string.
	tlsStrictMaxAge string

	// Channel for stats updates, see stats.go.
	statsUpdate chan *varUpdate
}

func main() {
	executable, _ := os.Executable()
	logs.Info.Printf("Server v%s:%s; pid %d; %d process(es)",
		currentVersion, buildstamp, os.Getpid(), runtime.GOMAXPROCS(runtime.NumCPU()))

	var configfile = flag.String("config", "./fabric.conf", "Path to config file.")
	var listenOn = flag.String("listen", "", "Override address and port to listen on.")
	var pprofURL = flag.String("pprof_url", "", "Debugging only! URL path for exposing profiling info. Disabled if not set.")
	var logsDebug = flag.Bool("debug", false, "Include file and line in log messages.")
	flag.Parse()

	logs.Init(*logsDebug)

	logs.Info.Printf("Using config from '%s' (%s)", *configfile, executable)
	config := loadConfig(*configfile)

	if *listenOn != "" {
		config.Listen = *listenOn
	}

	if len(config.APIKeySalt) == 0 {
		logs.Err.Fatalln("API key salt is not set")
	}
	globals.apiKeySalt = config.APIKeySalt
	globals.maxMessageSize = config.MaxMessageSize
	globals.useXForwardedFor = config.UseXForwardedFor
	upgrader.EnableCompression = config.WSCompression

	verifier, err := makeVerifier(&config.Auth)
	if err != nil {
		logs.Err.Fatalln("Failed to initialize verifier:", err)
	}
	logs.Info.Printf("Credential scheme: %s", config.Auth.Scheme)

	globals.fabric, err = NewFabric(verifier, FabricConfig{
		WorkerID: config.WorkerID,
		SidKey:   config.SidKey,
	})
	if err != nil {
		logs.Err.Fatalln("Failed to initialize fabric:", err)
	}

	if config.AMQP != nil {
		broker, err := queue.Connect(config.AMQP)
		if err != nil {
			logs.Err.Fatalln("Failed to connect to broker:", err)
		}
		defer broker.Close()
		go globals.fabric.serveAMQP(broker)
	}

	mux := http.NewServeMux()

	servePprof(mux, *pprofURL)

	statsInit(mux, config.ExpvarPath, config.PromPath)
	statsRegisterInt("LiveSessions")
	statsRegisterInt("TotalSessions")
	statsRegisterInt("IncomingMessagesWebsockTotal")
	statsRegisterInt("IncomingMessagesAmqpTotal")
	statsRegisterInt("OutgoingMessagesWebsockTotal")
	statsRegisterInt("AuthFailuresTotal")
	statsRegisterInt("TopicSubscriptionsTotal")
	statsRegisterInt("InvalidTopicRequestsTotal")
	statsRegisterInt("EventsPublishedTotal")
	statsRegisterInt("EventsDeliveredTotal")
	statsRegisterInt("EventsUndeliveredTotal")
	statsRegisterInt("EventsDroppedTotal")

	// Streaming clients.
	mux.HandleFunc("/v0/channels", globals.fabric.serveWebSocket)
	// Server-to-server API.
	mux.HandleFunc("/v0/publish", globals.fabric.servePublish)
	mux.HandleFunc("/v0/presence/", globals.fabric.servePresence)
	mux.HandleFunc("/", serve404)

	handler := hstsHandler(handlers.CombinedLoggingHandler(logs.Writer(), mux))

	if err := listenAndServe(handler, config.Listen, config.TLS, signalHandler()); err != nil {
		logs.Err.Fatalln(err)
	}

	statsShutdown()
	logs.Info.Println("All done, good bye")
}
