/*
Package api serves the swarmroll HTTP API.

Routes:

	POST   /deploy             signed rollout webhook
	GET    /services           list registered services
	POST   /services           register a service
	GET    /services/status    registered services with their platform state
	GET    /services/{name}    show one service
	PUT    /services/{name}    change a service's repository or tag
	DELETE /services/{name}    unregister a service
	GET    /health, /live, /ready
	GET    /metrics

The deploy webhook must carry an X-Signature header of the form
"<alg>=<hex hmac of the raw body>", where alg is sha1 or sha256. A bad
signature is answered with 403 and an unsupported algorithm with 501. The
body is optional:

	{"services": ["api", "web"]}

An empty body or an empty list rolls out every registered service. The reply
is the rollout payload, 200 on success and 500 otherwise:

	{"error": "Stack update failed", "message": "Service web failed to update. Stack reverted", "rollout_id": "..."}

Only one rollout runs at a time; a webhook arriving during a rollout gets 409.
The rollout continues when the caller disconnects.
*/
package api
