/*
Package storage persists the service registry: the set of services swarmroll
is allowed to update and the repository and tag each one should run.

Two implementations satisfy Store:

  - BoltStore keeps the registry in an embedded BoltDB file
    (<data-dir>/swarmroll.db) with one JSON document per service in the
    "services" bucket, keyed by name.
  - PostgresStore keeps it in a "services" table, built with squirrel and
    executed through a pgx connection pool. The table is created on connect.

Both return ErrNotFound and ErrAlreadyExists wrapped with the service name, so
callers match them with errors.Is:

	if err := store.CreateService(ctx, svc); errors.Is(err, storage.ErrAlreadyExists) {
		// 409
	}

ListServices is ordered by name in both implementations.
*/
package storage
