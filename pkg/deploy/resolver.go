package deploy

import (
	"github.com/cuemby/swarmroll/pkg/types"
)

// Reasons a requested service is left out of the image mapping
const (
	SkipNotRegistered = "not registered"
	SkipNotActive     = "not active"
)

// Skipped is a requested service excluded from a rollout
type Skipped struct {
	Service string `json:"service"`
	Reason  string `json:"reason"`
}

// Resolution is the image mapping for one rollout plus the requested
// services that were dropped from it
type Resolution struct {
	Mapping types.ImageMapping
	Skipped []Skipped
}

// Resolve maps every service that is both active on the platform and
// requested to the repository and tag stored in the registry. An empty
// requested set selects every registered service. Resolve has no side effects.
func Resolve(active []types.PlatformService, registered []*types.ServiceRef, requested []string) Resolution {
	refs := make(map[string]*types.ServiceRef, len(registered))
	for _, ref := range registered {
		refs[ref.Name] = ref
	}

	running := make(map[string]bool, len(active))
	for _, svc := range active {
		running[svc.Name] = true
	}

	if len(requested) == 0 {
		requested = make([]string, 0, len(registered))
		for _, ref := range registered {
			requested = append(requested, ref.Name)
		}
	}

	res := Resolution{Mapping: make(types.ImageMapping)}
	seen := make(map[string]bool, len(requested))
	for _, name := range requested {
		if seen[name] {
			continue
		}
		seen[name] = true

		ref, ok := refs[name]
		switch {
		case !ok:
			res.Skipped = append(res.Skipped, Skipped{Service: name, Reason: SkipNotRegistered})
		case !running[name]:
			res.Skipped = append(res.Skipped, Skipped{Service: name, Reason: SkipNotActive})
		default:
			res.Mapping[name] = types.ImageTarget{Repository: ref.Repository, Tag: ref.Tag}
		}
	}
	return res
}
