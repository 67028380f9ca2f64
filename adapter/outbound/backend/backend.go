// Package backend selects a Backend implementation by name or by platform.
package backend

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ajkula/GoNotify/adapter/outbound/filewatcher"
	"github.com/ajkula/GoNotify/adapter/outbound/nullwatcher"
	"github.com/ajkula/GoNotify/adapter/outbound/pollwatcher"
	"github.com/ajkula/GoNotify/adapter/outbound/treewatcher"
	"github.com/ajkula/GoNotify/domain/model"
	"github.com/ajkula/GoNotify/domain/port/outbound"
)

const NameRecommended = "recommended"

// Options carries the settings a backend constructor may need.
type Options struct {
	Logger       outbound.Logger
	PollInterval time.Duration
}

var constructors = map[string]func(Options) outbound.BackendFactory{
	filewatcher.Name: func(o Options) outbound.BackendFactory { return filewatcher.Factory(o.Logger) },
	treewatcher.Name: func(o Options) outbound.BackendFactory { return treewatcher.Factory(o.Logger) },
	pollwatcher.Name: func(o Options) outbound.BackendFactory { return pollwatcher.Factory(o.Logger, o.PollInterval) },
	nullwatcher.Name: func(Options) outbound.BackendFactory { return nullwatcher.Factory() },
}

// Recommended returns the factory for the preferred backend on this
// platform.
func Recommended(opts Options) outbound.BackendFactory {
	return constructors[recommendedName](opts)
}

// RecommendedName names the backend Recommended selects.
func RecommendedName() string {
	return recommendedName
}

// ByName resolves a backend name, case-insensitively. An empty name is
// treated as "recommended".
func ByName(name string, opts Options) (outbound.BackendFactory, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == NameRecommended {
		return Recommended(opts), nil
	}
	ctor, ok := constructors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", model.ErrUnknownBackend, name, strings.Join(Names(), ", "))
	}
	return ctor(opts), nil
}

// Names lists every selectable backend name.
func Names() []string {
	names := []string{NameRecommended}
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names[1:])
	return names
}
