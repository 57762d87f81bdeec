// Command coap-server runs the CoAP engine bound to a real UDP socket,
// dispatching requests against a small built-in resource tree and,
// when metrics are enabled in its config, exposing Prometheus metrics.
package main

import log "github.com/sirupsen/logrus"

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
