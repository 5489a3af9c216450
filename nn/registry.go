package nn

import (
	"fmt"
	"sort"
	"strings"
)

// activationRegistry is the global registry of activations resolvable by name.
var activationRegistry = map[string]Activation{
	"sigmoid":  Sigmoid{},
	"tanh":     Tanh{},
	"relu":     ReLU{},
	"identity": Identity{},
}

// RegisterActivation makes a user-defined activation resolvable by name.
// Call it during startup; the registry is not synchronized.
func RegisterActivation(name string, act Activation) {
	activationRegistry[strings.ToLower(strings.TrimSpace(name))] = act
}

// ActivationByName returns the registered activation for a name,
// case-insensitively.
func ActivationByName(name string) (Activation, error) {
	act, ok := activationRegistry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown activation %q (available: %s)",
			name, strings.Join(ActivationNames(), ", "))
	}
	return act, nil
}

// ActivationNames lists the registered names in sorted order.
func ActivationNames() []string {
	names := make([]string, 0, len(activationRegistry))
	for name := range activationRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
