// Command ws-e2e runs the WhiteSwan Android end-to-end suite.
package main

import "github.com/whiteswan/mobile-e2e/pkg/cli"

func main() {
	cli.Execute()
}
