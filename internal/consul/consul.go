package consul

import (
	"fmt"

	consulapi "github.com/hashicorp/consul/api"
)

func NewClient(address string) (*consulapi.Client, error) {
	cfg := consulapi.DefaultConfig()
	if address != "" {
		cfg.Address = address
	}
	client, err := consulapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}
	return client, nil
}

// RegisterService announces this instance to the service catalog so the
// gateway can discover it.
func RegisterService(client *consulapi.Client, serviceID, name, address string, port int) error {
	registration := &consulapi.AgentServiceRegistration{
		ID:      serviceID,
		Name:    name,
		Address: address,
		Port:    port,
	}
	if err := client.Agent().ServiceRegister(registration); err != nil {
		return fmt.Errorf("failed to register service %s: %w", name, err)
	}
	return nil
}

func DeregisterService(client *consulapi.Client, serviceID string) error {
	return client.Agent().ServiceDeregister(serviceID)
}
