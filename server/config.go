/*
 * Copyright 2025 The Pigeon Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package server

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/muni-town/pigeon/server/backend"
	"github.com/muni-town/pigeon/server/backend/resolver"
	"github.com/muni-town/pigeon/server/backend/store/mongo"
	"github.com/muni-town/pigeon/server/httpapi"
	"github.com/muni-town/pigeon/server/peers"
	"github.com/muni-town/pigeon/server/profiling"
)

// Below are the values of the default values of Pigeon config.
const (
	DefaultAPIPort       = 11000
	DefaultProfilingPort = 11001

	DefaultMongoConnectionURI     = "mongodb://localhost:27017"
	DefaultMongoConnectionTimeout = 5 * time.Second
	DefaultMongoPingTimeout       = 5 * time.Second
	DefaultMongoPigeonDatabase    = "pigeon-meta"

	DefaultKeyServerURL           = "https://keyserver.roomy.chat"
	DefaultDirectoryURL           = "https://plc.directory"
	DefaultResolverRequestTimeout = 3 * time.Second
	DefaultResolverCacheSize      = 256
	DefaultResolverCacheTTL       = 10 * time.Minute
)

// Config is the configuration for creating a Pigeon instance.
type Config struct {
	API       *httpapi.Config   `yaml:"API"`
	Profiling *profiling.Config `yaml:"Profiling"`
	Backend   *backend.Config   `yaml:"Backend"`
	Mongo     *mongo.Config     `yaml:"Mongo"`
	Resolver  *resolver.Config  `yaml:"Resolver"`
	Peers     *peers.Config     `yaml:"Peers"`
}

// NewConfig returns a Config struct that contains reasonable defaults
// for most of the configurations.
func NewConfig() *Config {
	return newConfig(DefaultAPIPort, DefaultProfilingPort)
}

// NewConfigFromFile returns a Config struct for the given conf file.
func NewConfigFromFile(path string) (*Config, error) {
	conf := &Config{}
	bytes, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err = yaml.Unmarshal(bytes, conf); err != nil {
		return nil, fmt.Errorf("unmarshal config file: %w", err)
	}

	conf.ensureDefaultValue()
	return conf, nil
}

// APIAddr returns the address of the client API.
func (c *Config) APIAddr() string {
	return fmt.Sprintf("localhost:%d", c.API.Port)
}

// Validate returns an error if the provided Config is invalidated.
func (c *Config) Validate() error {
	if err := c.API.Validate(); err != nil {
		return err
	}

	if err := c.Profiling.Validate(); err != nil {
		return err
	}

	if err := c.Backend.Validate(); err != nil {
		return err
	}

	if c.Mongo != nil {
		if err := c.Mongo.Validate(); err != nil {
			return err
		}
	}

	if err := c.Resolver.Validate(); err != nil {
		return err
	}

	if c.Peers != nil {
		if err := c.Peers.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// ensureDefaultValue sets the value of the option to which the default value
// should be applied when the user does not input it.
func (c *Config) ensureDefaultValue() {
	if c.API == nil {
		c.API = &httpapi.Config{}
	}
	if c.API.Port == 0 {
		c.API.Port = DefaultAPIPort
	}

	if c.Profiling == nil {
		c.Profiling = &profiling.Config{}
	}
	if c.Profiling.Port == 0 {
		c.Profiling.Port = DefaultProfilingPort
	}

	if c.Backend == nil {
		c.Backend = &backend.Config{}
	}

	if c.Mongo != nil {
		if c.Mongo.ConnectionURI == "" {
			c.Mongo.ConnectionURI = DefaultMongoConnectionURI
		}
		if c.Mongo.ConnectionTimeout == "" {
			c.Mongo.ConnectionTimeout = DefaultMongoConnectionTimeout.String()
		}
		if c.Mongo.PigeonDatabase == "" {
			c.Mongo.PigeonDatabase = DefaultMongoPigeonDatabase
		}
		if c.Mongo.PingTimeout == "" {
			c.Mongo.PingTimeout = DefaultMongoPingTimeout.String()
		}
	}

	if c.Resolver == nil {
		c.Resolver = &resolver.Config{}
	}
	if c.Resolver.KeyServerURL == "" {
		c.Resolver.KeyServerURL = DefaultKeyServerURL
	}
	if c.Resolver.DirectoryURL == "" {
		c.Resolver.DirectoryURL = DefaultDirectoryURL
	}
	if c.Resolver.RequestTimeout == "" {
		c.Resolver.RequestTimeout = DefaultResolverRequestTimeout.String()
	}
	if c.Resolver.CacheSize == 0 {
		c.Resolver.CacheSize = DefaultResolverCacheSize
	}
	if c.Resolver.CacheTTL == "" {
		c.Resolver.CacheTTL = DefaultResolverCacheTTL.String()
	}
}

func newConfig(port int, profilingPort int) *Config {
	conf := &Config{
		API: &httpapi.Config{
			Port: port,
		},
		Profiling: &profiling.Config{
			Port: profilingPort,
		},
	}
	conf.ensureDefaultValue()
	return conf
}
