// Command arbor replays operation streams onto a transactional workspace
// tree and manages the recorded transaction history.
package main

import "github.com/mesh-intelligence/arbor/internal/cli"

func main() {
	cli.Execute()
}
