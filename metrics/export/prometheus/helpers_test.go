package prometheus

import "github.com/MrEthical07/netapi/registry"

type pinger struct{}

func (pinger) Ping() (string, error) { return "pong", nil }

func pingService() registry.Definition {
	svc := registry.NewService[pinger]("Ping", nil)
	registry.Method0(svc, "ping", pinger.Ping, registry.Exposed())
	return svc
}
