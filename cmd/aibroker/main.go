// Command aibroker runs the cost-aware AI request broker: serve starts
// the HTTP/metrics/health surface, estimate previews a routing decision
// without dispatching, and budget reports a user's spend status.
package main

import "github.com/aixgo-dev/aibroker/internal/cli"

func main() {
	cli.Execute()
}
