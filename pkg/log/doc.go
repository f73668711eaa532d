/*
Package log provides structured logging for swarmroll using zerolog.

The package wraps a single global zerolog.Logger. It is initialized once by
the CLI from configuration and then shared by every component through child
loggers that carry a fixed set of context fields.

# Configuration

  - Level: debug, info, warn or error (default info)
  - JSONOutput: JSON lines instead of the human console format
  - Output: destination writer (default stdout)

# Context Loggers

  - WithComponent("deployer"): component=deployer
  - WithService("api"): service=api
  - WithRollout(id): rollout_id=<uuid>

Every rollout logs with a rollout_id so that the backup, pull, update and
rollback lines of one invocation can be correlated:

	{"level":"info","rollout_id":"6f1c...","service":"api","image":"registry.local/api:v2","message":"Service updated"}

# Usage

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
	})

	logger := log.WithComponent("updater")
	logger.Info().
		Str("service", "api").
		Dur("elapsed", elapsed).
		Msg("Service converged")
*/
package log
