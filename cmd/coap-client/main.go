// Command coap-client sends a single request (confirmable unless
// --confirmable=false) to a CoAP server and prints the response.
package main

import log "github.com/sirupsen/logrus"

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
