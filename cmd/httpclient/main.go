// Command httpclient issues a single HTTP/1.1 request over the transport
// package and prints the response to stdout.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/kulaginds/sans/internal/agent/httpclient"
	"github.com/kulaginds/sans/internal/config"
	"github.com/kulaginds/sans/internal/logging"
	"github.com/kulaginds/sans/transport"
)

var appName = "sans httpclient"

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatalln(err)
	}
}

type parsedArgs struct {
	host     string
	port     int
	path     string
	method   string
	useRUDP  bool
	logLevel string
}

func run(args []string) error {
	parsed, action, err := parseFlags(args)
	if err != nil {
		return err
	}
	if action != "" {
		return nil
	}

	cfg, err := config.LoadWithOverrides(config.LoadOptions{LogLevel: parsed.logLevel})
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logging.Default().SetLevelFromString(cfg.Logging.Level)

	proto := transport.ProtoTCP
	if parsed.useRUDP {
		proto = transport.ProtoRUDP
	}

	tr := transport.New(cfg)

	return httpclient.Fetch(tr, parsed.host, parsed.port, proto, httpclient.Request{
		Method: parsed.method,
		Path:   parsed.path,
	}, os.Stdout)
}

func parseFlags(args []string) (parsedArgs, string, error) {
	fs := flag.NewFlagSet("httpclient", flag.ContinueOnError)
	host := fs.String("host", "127.0.0.1", "server host")
	port := fs.Int("port", 8080, "server port")
	path := fs.String("path", "/", "request path")
	method := fs.String("method", "GET", "HTTP method")
	rudp := fs.Bool("rudp", false, "use the reliable-UDP transport instead of TCP")
	logLevel := fs.String("log-level", "", "log level (debug, info, warn, error)")
	help := fs.Bool("help", false, "show help")

	if err := fs.Parse(args); err != nil {
		return parsedArgs{}, "", err
	}

	if *help {
		showHelp()
		return parsedArgs{}, "help", nil
	}

	return parsedArgs{
		host:     strings.TrimSpace(*host),
		port:     *port,
		path:     *path,
		method:   strings.ToUpper(strings.TrimSpace(*method)),
		useRUDP:  *rudp,
		logLevel: strings.TrimSpace(*logLevel),
	}, "", nil
}

func showHelp() {
	fmt.Println(appName)
	fmt.Println("USAGE: httpclient [options]")
	fmt.Println("OPTIONS:")
	fmt.Println("  -host        Server host (default 127.0.0.1)")
	fmt.Println("  -port        Server port (default 8080)")
	fmt.Println("  -path        Request path (default /)")
	fmt.Println("  -method      HTTP method (default GET)")
	fmt.Println("  -rudp        Use the reliable-UDP transport instead of TCP")
	fmt.Println("  -log-level   Set log level (debug, info, warn, error)")
	fmt.Println("  -help        Show this help message")
	fmt.Println("EXAMPLE: httpclient -host 127.0.0.1 -port " + strconv.Itoa(8080) + " -path /index.html")
}
