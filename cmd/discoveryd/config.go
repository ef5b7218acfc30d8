package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"discovery/model"
)

// Config is the registry process configuration, loaded from environment
// variables.
type Config struct {
	Environment    string        // tag applied to query responses
	MaxAge         time.Duration // TTL applied to every dynamic column
	Keyspace       string        // backing-store keyspace prefix
	EtcdEndpoints  []string      // backing-store / locator cluster
	ListenAddr     string        // wire server bind address
	AdvertiseAddr  string        // address announced to the replica locator
	StaticServices []model.Service
}

// LoadConfig loads configuration from environment variables.
// DISCOVERY_ENVIRONMENT, DISCOVERY_ETCD_ENDPOINTS, and
// DISCOVERY_ADVERTISE_ADDR are required.
func LoadConfig() (*Config, error) {
	environment := os.Getenv("DISCOVERY_ENVIRONMENT")
	if environment == "" {
		return nil, fmt.Errorf("DISCOVERY_ENVIRONMENT is required")
	}

	endpointsStr := os.Getenv("DISCOVERY_ETCD_ENDPOINTS")
	if endpointsStr == "" {
		return nil, fmt.Errorf("DISCOVERY_ETCD_ENDPOINTS is required")
	}

	advertiseAddr := os.Getenv("DISCOVERY_ADVERTISE_ADDR")
	if advertiseAddr == "" {
		return nil, fmt.Errorf("DISCOVERY_ADVERTISE_ADDR is required")
	}

	maxAge := 30 * time.Second
	if maxAgeStr := os.Getenv("DISCOVERY_MAX_AGE"); maxAgeStr != "" {
		parsed, err := time.ParseDuration(maxAgeStr)
		if err != nil {
			return nil, fmt.Errorf("invalid DISCOVERY_MAX_AGE: %w", err)
		}
		if parsed <= 0 {
			return nil, fmt.Errorf("DISCOVERY_MAX_AGE must be positive")
		}
		maxAge = parsed
	}

	keyspace := os.Getenv("DISCOVERY_KEYSPACE")
	if keyspace == "" {
		keyspace = "/discovery/keyspace"
	}

	listenAddr := os.Getenv("DISCOVERY_LISTEN_ADDR")
	if listenAddr == "" {
		listenAddr = ":8300"
	}

	var staticServices []model.Service
	if path := os.Getenv("DISCOVERY_STATIC_SERVICES"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read DISCOVERY_STATIC_SERVICES: %w", err)
		}
		if err := json.Unmarshal(data, &staticServices); err != nil {
			return nil, fmt.Errorf("parse DISCOVERY_STATIC_SERVICES: %w", err)
		}
	}

	return &Config{
		Environment:    environment,
		MaxAge:         maxAge,
		Keyspace:       keyspace,
		EtcdEndpoints:  strings.Split(endpointsStr, ","),
		ListenAddr:     listenAddr,
		AdvertiseAddr:  advertiseAddr,
		StaticServices: staticServices,
	}, nil
}
