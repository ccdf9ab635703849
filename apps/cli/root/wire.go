package root

import (
	"github.com/zenGate-Global/orgsync/apps/cli/cmd/bootstrap"
	"github.com/zenGate-Global/orgsync/apps/cli/cmd/outbox"
)

func init() {
	Root().AddCommand(bootstrap.Command())
	Root().AddCommand(outbox.Command())
}
