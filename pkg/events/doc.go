/*
Package events distributes rollout and registry events.

A Broker fans events out to buffered subscriber channels from a single
distribution goroutine. Publish never blocks the caller: when the broker
queue or a subscriber buffer is full the event is dropped and counted in
swarmroll_events_dropped_total.

Events of one rollout share a RolloutID. The deployer publishes:

	rollout.started
	service.skipped          requested service not registered or not active
	backup.failed            rollback disabled for this rollout
	pull.failed
	service.updated / service.update_failed
	service.reverted / service.revert_failed
	rollout.succeeded | rollout.rolled_back | rollout.rollback_failed | rollout.rollback_impossible

Sinks consume a subscription through Run:

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	go events.Run(ctx, broker, events.NewLogSink())

	sink, err := events.NewKafkaSink([]string{"kafka:9092"}, "swarmroll.events")
	if err == nil {
		go events.Run(ctx, broker, sink)
	}

KafkaSink writes one JSON message per event, keyed by rollout ID so that the
events of one rollout stay ordered within a partition.
*/
package events
