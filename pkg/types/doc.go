/*
Package types defines the data structures shared by every swarmroll package.

# Core Types

Registry:
  - ServiceRef: name, repository and tag a service should run
  - ServiceStatus: ServiceRef annotated with platform activity

Rollout:
  - ImageTarget: repository/tag pair a service is updated to
  - ImageMapping: per-rollout map of service name to ImageTarget
  - UpdateOutcome: result of updating a single service
  - UpdaterState: idle, updating, completed, failed

Platform:
  - PlatformService: snapshot of a live platform service
  - UpdateState: update phase reported by the platform

ImageMapping values are derived for a single rollout and are never stored.
PlatformService values are read-only snapshots: swarmroll never creates or
removes platform services, it only updates their image.

# Usage

	ref := &types.ServiceRef{Name: "api", Repository: "registry.local/api", Tag: "v2"}
	mapping := types.ImageMapping{
		ref.Name: {Repository: ref.Repository, Tag: ref.Tag},
	}
	fmt.Println(mapping["api"].Ref()) // registry.local/api:v2
*/
package types
