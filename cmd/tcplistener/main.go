// Command tcplistener accepts raw TCP connections and prints each request as
// the parser sees it. It answers every request with a short plain-text body.
package main

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"net"
	"os"
	"slices"

	"github.com/ridge/must/v2"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/Brownie44l1/minihttp/internal/config"
	"github.com/Brownie44l1/minihttp/internal/request"
	"github.com/Brownie44l1/minihttp/internal/response"
	"github.com/Brownie44l1/minihttp/internal/server"
)

const reply = "Hello from your HTTP server!\n"

func main() {
	addr := pflag.String("addr", ":42069", "address to listen on")
	maxHeader := pflag.Int("max-header-bytes", request.DefaultMaxHeaderBytes, "request header limit")
	maxBody := pflag.Int64("max-body-bytes", request.DefaultMaxBodyBytes, "request body limit")
	pflag.Parse()

	logger, _, err := server.NewLogger(config.LogConfig{Level: "info", Format: "text", Color: "auto"})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	listener := must.OK1(net.Listen("tcp", *addr))
	defer listener.Close()
	logger.Info("Listening", zap.Stringer("addr", listener.Addr()))

	limits := request.Limits{MaxHeaderBytes: *maxHeader, MaxBodyBytes: *maxBody}
	for {
		conn, err := listener.Accept()
		if err != nil {
			logger.Warn("Accept failed", zap.Error(err))
			continue
		}
		go handleConnection(conn, limits, os.Stdout, logger)
	}
}

func handleConnection(conn net.Conn, limits request.Limits, out io.Writer, logger *zap.Logger) {
	defer conn.Close()

	req, err := request.Parse(conn, limits)
	if err != nil {
		if !errors.Is(err, io.EOF) {
			logger.Info("Failed to parse request", zap.Stringer("remoteAddr", conn.RemoteAddr()), zap.Error(err))
		}
		return
	}
	printRequest(out, req)

	resp := response.Text(response.StatusOK, reply).WithHeader("Connection", "close")
	if _, err := conn.Write(resp.Bytes()); err != nil {
		logger.Debug("Failed to write response", zap.Error(err))
	}
}

func printRequest(w io.Writer, req *request.Request) {
	fmt.Fprintln(w, "Request line:")
	fmt.Fprintf(w, "- Method: %s\n", req.Method)
	fmt.Fprintf(w, "- Target: %s\n", req.Target)
	fmt.Fprintf(w, "- Version: %s\n", req.Version)

	fmt.Fprintln(w, "Headers:")
	all := req.Headers.All()
	for _, name := range slices.Sorted(maps.Keys(all)) {
		fmt.Fprintf(w, "- %s: %s\n", name, all[name])
	}

	if len(req.Query) > 0 {
		fmt.Fprintln(w, "Query:")
		for _, key := range slices.Sorted(maps.Keys(req.Query)) {
			fmt.Fprintf(w, "- %s: %s\n", key, req.Query[key])
		}
	}

	fmt.Fprintln(w, "Body:")
	fmt.Fprintf(w, "%s\n", req.Body)
}
