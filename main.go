// webstack provisions a two-tier web/SQL deployment and pushes files to the
// provisioned hosts over the remote agent protocol.
package main

import "webstack/cmd"

func main() {
	cmd.Execute()
}
