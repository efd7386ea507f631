//go:build !unix

package supervisor

import "os"

func terminate(p *os.Process) error {
	return p.Kill()
}
