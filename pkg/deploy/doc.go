/*
Package deploy rolls a registered stack of Swarm services forward to new
images and back again when an update fails.

A rollout runs these steps in order:

 1. Resolve: map every requested service that is both registered and active
    on the platform to its registered <repository>:<tag>. Requested services
    outside that intersection are reported in Result.Skipped.
 2. Backup: tag the image each mapped service runs as <repository>:previous.
    The first failure stops the step and disables rollback for the rollout.
 3. Pull: fetch every target image. The first failure stops the step; the
    rollout continues and a missing image surfaces as an update failure.
 4. Update: one service at a time, in platform listing order, through
    updater.Updater.
 5. Rollback: on the first failed update, revert every attempted service
    (the failed one included) to <repository>:previous, stopping at the first
    failed revert.

Usage:

	d := deploy.NewDeployer(store, updater.NewUpdater(wait.DefaultWaiter()), broker)
	result, err := d.Rollout(ctx, platform, []string{"api", "web"})
	if err != nil {
		// could not start: ErrRolloutInProgress or a listing failure
	}
	w.WriteHeader(result.StatusCode())
	json.NewEncoder(w).Encode(result.Payload())

The platform is passed to every Rollout call. Rollouts on the same Deployer
are mutually exclusive; a concurrent call fails fast with ErrRolloutInProgress.
*/
package deploy
