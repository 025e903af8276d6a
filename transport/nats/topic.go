package nats

import (
	"github.com/nats-io/nats.go/micro"

	"github.com/finvoke/finvoke"
)

func AddEndpoints(group micro.Group, endpoints finvoke.EndpointSet) {
	group.AddEndpoint("dispatch", DispatchHandler(endpoints.Dispatch))
	group.AddEndpoint("list_tools", ListToolsHandler(endpoints.ListTools))
	group.AddEndpoint("ingest", IngestHandler(endpoints.Ingest))
	group.AddEndpoint("stats", StatsHandler(endpoints.Stats))
	group.AddEndpoint("reset_budget", ResetBudgetHandler(endpoints.ResetBudget))
}
