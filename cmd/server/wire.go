//go:build wireinject

package main

import (
	"relaydesk/services/channel-api/internal/domain"
	"relaydesk/services/channel-api/internal/infrastructure"
	"relaydesk/services/channel-api/internal/interfaces"
	"relaydesk/services/channel-api/internal/interfaces/httpserver/routes"

	"github.com/google/wire"
)

func CreateApplication() (*Application, error) {
	wire.Build(
		domain.ServiceProvider,
		infrastructure.InfrastructureProvider,
		routes.RouteProvider,
		interfaces.InterfacesProvider,
		wire.Struct(new(Application), "*"),
	)
	return nil, nil
}
