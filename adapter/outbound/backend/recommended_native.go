//go:build linux || darwin || windows

package backend

import "github.com/ajkula/GoNotify/adapter/outbound/treewatcher"

const recommendedName = treewatcher.Name
