// Command porkbun-ddns keeps the Porkbun A records of a domain pointed at this machine's public IPv4 address.
package main

import (
	"os"

	"github.com/Travis-Britz/porkbun-ddns/internal/credentials"
)

func main() {
	if err := newRootCmd(credentials.DefaultStore()).Execute(); err != nil {
		os.Exit(1)
	}
}
