// Command smtpagent submits a single email body to a recipient over the
// transport package's SMTP submission dialogue, then exits.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/kulaginds/sans/internal/agent/smtp"
	"github.com/kulaginds/sans/internal/config"
	"github.com/kulaginds/sans/internal/logging"
	"github.com/kulaginds/sans/transport"
)

var appName = "sans smtpagent"

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatalln(err)
	}
}

type parsedArgs struct {
	host     string
	port     int
	to       string
	body     string
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

	if parsed.to == "" || parsed.body == "" {
		if err := promptMissing(&parsed); err != nil {
			return err
		}
	}

	cfg, err := config.LoadWithOverrides(config.LoadOptions{LogLevel: parsed.logLevel})
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logging.Default().SetLevelFromString(cfg.Logging.Level)

	if parsed.useRUDP {
		return fmt.Errorf("smtpagent: -rudp is not supported; the SMTP agent connects over TCP only")
	}

	tr := transport.New(cfg)

	return smtp.Send(tr, parsed.host, parsed.port, parsed.to, parsed.body, os.Stdout)
}

// promptMissing asks for recipient/body on stdin, mirroring the reference
// agent's interactive scanf prompts.
func promptMissing(parsed *parsedArgs) error {
	reader := bufio.NewReader(os.Stdin)

	if parsed.to == "" {
		fmt.Print("recipient email: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read recipient: %w", err)
		}
		parsed.to = strings.TrimSpace(line)
	}

	if parsed.body == "" {
		fmt.Print("message body path: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read body path: %w", err)
		}
		parsed.body = strings.TrimSpace(line)
	}

	return nil
}

func parseFlags(args []string) (parsedArgs, string, error) {
	fs := flag.NewFlagSet("smtpagent", flag.ContinueOnError)
	host := fs.String("host", "127.0.0.1", "mail server host")
	port := fs.Int("port", 25, "mail server port")
	to := fs.String("to", "", "recipient email address")
	body := fs.String("body", "", "path to the message body file")
	rudp := fs.Bool("rudp", false, "not supported: the SMTP agent connects over TCP only")
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
		to:       strings.TrimSpace(*to),
		body:     strings.TrimSpace(*body),
		useRUDP:  *rudp,
		logLevel: strings.TrimSpace(*logLevel),
	}, "", nil
}

func showHelp() {
	fmt.Println(appName)
	fmt.Println("USAGE: smtpagent [options]")
	fmt.Println("OPTIONS:")
	fmt.Println("  -host        Mail server host (default 127.0.0.1)")
	fmt.Println("  -port        Mail server port (default 25)")
	fmt.Println("  -to          Recipient email address (prompted if omitted)")
	fmt.Println("  -body        Path to the message body file (prompted if omitted)")
	fmt.Println("  -rudp        Not supported; the SMTP agent connects over TCP only")
	fmt.Println("  -log-level   Set log level (debug, info, warn, error)")
	fmt.Println("  -help        Show this help message")
	fmt.Println("EXAMPLE: smtpagent -host mail.example.com -to alice@example.com -body ./message.txt")
}
