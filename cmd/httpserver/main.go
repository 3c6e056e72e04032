// Command httpserver serves a single static file over the transport
// package, then exits.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/kulaginds/sans/internal/agent/httpserver"
	"github.com/kulaginds/sans/internal/config"
	"github.com/kulaginds/sans/internal/logging"
	"github.com/kulaginds/sans/transport"
)

var appName = "sans httpserver"

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatalln(err)
	}
}

type parsedArgs struct {
	iface    string
	port     int
	root     string
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

	logging.Default().Info("serving %s on %s:%d", parsed.root, parsed.iface, parsed.port)

	return httpserver.ServeOne(tr, parsed.iface, parsed.port, proto, parsed.root)
}

func parseFlags(args []string) (parsedArgs, string, error) {
	fs := flag.NewFlagSet("httpserver", flag.ContinueOnError)
	iface := fs.String("iface", "0.0.0.0", "interface to listen on")
	port := fs.Int("port", 8080, "port to listen on")
	root := fs.String("root", ".", "directory to serve")
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
		iface:    strings.TrimSpace(*iface),
		port:     *port,
		root:     strings.TrimSpace(*root),
		useRUDP:  *rudp,
		logLevel: strings.TrimSpace(*logLevel),
	}, "", nil
}

func showHelp() {
	fmt.Println(appName)
	fmt.Println("USAGE: httpserver [options]")
	fmt.Println("OPTIONS:")
	fmt.Println("  -iface       Interface to listen on (default 0.0.0.0)")
	fmt.Println("  -port        Port to listen on (default 8080)")
	fmt.Println("  -root        Directory to serve (default .)")
	fmt.Println("  -rudp        Use the reliable-UDP transport instead of TCP")
	fmt.Println("  -log-level   Set log level (debug, info, warn, error)")
	fmt.Println("  -help        Show this help message")
	fmt.Println("EXAMPLE: httpserver -iface 0.0.0.0 -port 8080 -root ./public")
}
