package main

import (
	"fmt"
	"net"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/GiterLab/coap-engine/message"
)

var (
	targetAddr string
	uriPath    string
	method     string
	confirm    bool
)

var rootCmd = &cobra.Command{
	Use:   "coap-client",
	Short: "send a single CoAP request and print the response",
	RunE:  runGet,
}

func init() {
	rootCmd.Flags().StringVar(&targetAddr, "addr", "127.0.0.1:5683", "server address")
	rootCmd.Flags().StringVar(&uriPath, "path", "sensors/temp", "request URI path, slash separated")
	rootCmd.Flags().StringVar(&method, "method", "GET", "request method: GET, POST, PUT, DELETE")
	rootCmd.Flags().BoolVar(&confirm, "confirmable", true, "send as a Confirmable message")
}

func runGet(cmd *cobra.Command, args []string) error {
	code, err := methodCode(method)
	if err != nil {
		return err
	}

	req := &message.Message{
		Code:      code,
		MessageID: uint16(time.Now().UnixNano()),
		Token:     []byte{0x01},
	}
	if confirm {
		req.Type = message.Confirmable
	} else {
		req.Type = message.NonConfirmable
	}
	for _, seg := range strings.Split(strings.Trim(uriPath, "/"), "/") {
		if seg != "" {
			req.Options.Add(message.NewString(message.URIPath, seg))
		}
	}

	raw := make([]byte, 1152)
	n, err := req.Serialize(raw)
	if err != nil {
		return fmt.Errorf("serialize request: %w", err)
	}

	addr, err := net.ResolveUDPAddr("udp", targetAddr)
	if err != nil {
		return err
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.Write(raw[:n]); err != nil {
		return fmt.Errorf("send request: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	buf := make([]byte, 1152)
	rn, err := conn.Read(buf)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	resp, _, err := message.Parse(buf[:rn])
	if err != nil {
		return fmt.Errorf("parse response: %w", err)
	}

	log.Infof("response code=%s payload=%q", resp.Code, string(resp.Payload))
	return nil
}

func methodCode(name string) (message.Code, error) {
	switch strings.ToUpper(name) {
	case "GET":
		return message.GET, nil
	case "POST":
		return message.POST, nil
	case "PUT":
		return message.PUT, nil
	case "DELETE":
		return message.DELETE, nil
	default:
		return 0, fmt.Errorf("unknown method %q", name)
	}
}
