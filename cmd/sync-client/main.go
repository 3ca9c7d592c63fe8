package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"go.uber.org/zap"

	"covidash/pkg/utils"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:7070", "TCP feed address")
	pretty := flag.Bool("pretty", true, "pretty print JSON events")
	flag.Parse()

	logger, err := utils.NewLogger("info", true)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	for {
		if err := run(*addr, *pretty, os.Stdout, logger); err != nil {
			logger.Warn("disconnected", zap.Error(err))
		}
		time.Sleep(1 * time.Second) // auto reconnect
	}
}

func run(addr string, pretty bool, out io.Writer, logger *zap.Logger) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	logger.Info("connected", zap.String("addr", addr))
	return printEvents(conn, out, pretty)
}

// printEvents copies line-delimited events from r to out until r ends.
func printEvents(r io.Reader, out io.Writer, pretty bool) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Bytes()

		if !pretty {
			fmt.Fprintln(out, string(line))
			continue
		}

		var obj map[string]any
		if err := json.Unmarshal(line, &obj); err != nil {
			// not JSON? print raw
			fmt.Fprintln(out, string(line))
			continue
		}

		b, _ := json.MarshalIndent(obj, "", "  ")
		fmt.Fprintln(out, string(b))
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return io.EOF
}
