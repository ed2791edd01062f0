package root

import (
	"github.com/amianGO/Store-Application/apps/cli/cmd/bootstrap"
	schemacmd "github.com/amianGO/Store-Application/apps/cli/cmd/schema"
)

func init() {
	Root().AddCommand(bootstrap.Command())
	Root().AddCommand(schemacmd.Command())
}
