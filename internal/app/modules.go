package app

import (
	"github.com/vk/snipweave/internal/vars"
	"github.com/vk/snipweave/modules/counter"
	"github.com/vk/snipweave/modules/datetime"
	"github.com/vk/snipweave/modules/envvar"
)

// coreModules is the definitive list of all variable providers that are
// compiled into the snipweave binary.
var coreModules = []vars.Module{
	&datetime.Module{},
	&envvar.Module{},
	&counter.Module{},
}
