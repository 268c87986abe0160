// Package discovery optionally self-registers actorcore's admin HTTP and
// gRPC endpoints in Consul, for external ops tooling — purely additive
// and unrelated to the harbor cluster-routing collaborator (out of scope
// per §1). Grounded on the teacher's now-dropped webitel-go-kit/infra/
// discovery dependency; replaced here by the direct public client it
// wrapped, github.com/hashicorp/consul/api.
package discovery

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	consulapi "github.com/hashicorp/consul/api"
)

const serviceName = "actorcore"

// Registrar de/registers actorcore with a Consul agent.
type Registrar struct {
	client     *consulapi.Client
	logger     *slog.Logger
	serviceIDs []string
}

// New connects to the Consul agent at addr. An empty addr keeps the
// client's default agent address; the package's Module skips
// registration entirely when cfg.ConsulAddr is empty.
func New(addr string, logger *slog.Logger) (*Registrar, error) {
	cfg := consulapi.DefaultConfig()
	if addr != "" {
		cfg.Address = addr
	}
	client, err := consulapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("discovery: consul client: %w", err)
	}
	return &Registrar{client: client, logger: logger}, nil
}

// RegisterAddr registers one tagged endpoint (e.g. "http" or "grpc")
// listening on hostport.
func (r *Registrar) RegisterAddr(tag, hostport string) error {
	host, portStr, err := splitHostPort(hostport)
	if err != nil {
		return err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("discovery: bad port %q: %w", portStr, err)
	}

	id := serviceName + "-" + tag
	reg := &consulapi.AgentServiceRegistration{
		ID:      id,
		Name:    serviceName,
		Tags:    []string{tag},
		Address: host,
		Port:    port,
		Check: &consulapi.AgentServiceCheck{
			TCP:      hostport,
			Interval: "10s",
			Timeout:  "2s",
		},
	}

	if err := r.client.Agent().ServiceRegister(reg); err != nil {
		return fmt.Errorf("discovery: register %s: %w", id, err)
	}
	r.serviceIDs = append(r.serviceIDs, id)
	if r.logger != nil {
		r.logger.Info("discovery: registered", slog.String("id", id), slog.String("addr", hostport))
	}
	return nil
}

// Deregister removes every service id this Registrar registered.
func (r *Registrar) Deregister() {
	for _, id := range r.serviceIDs {
		if err := r.client.Agent().ServiceDeregister(id); err != nil && r.logger != nil {
			r.logger.Warn("discovery: deregister failed", slog.String("id", id), slog.String("error", err.Error()))
		}
	}
}

func splitHostPort(hostport string) (host, port string, err error) {
	i := strings.LastIndex(hostport, ":")
	if i < 0 {
		return "", "", fmt.Errorf("discovery: %q is not host:port", hostport)
	}
	return hostport[:i], hostport[i+1:], nil
}
