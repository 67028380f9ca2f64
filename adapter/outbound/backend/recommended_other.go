//go:build !linux && !darwin && !windows

package backend

import "github.com/ajkula/GoNotify/adapter/outbound/pollwatcher"

const recommendedName = pollwatcher.Name
