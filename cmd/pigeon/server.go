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

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/muni-town/pigeon/server"
	"github.com/muni-town/pigeon/server/backend/store/mongo"
	"github.com/muni-town/pigeon/server/logging"
	"github.com/muni-town/pigeon/server/peers"
)

var (
	gracefulTimeout = 10 * time.Second
)

var (
	flagConfPath string
	flagLogLevel string

	mongoConnectionURI     string
	mongoConnectionTimeout time.Duration
	mongoPigeonDatabase    string
	mongoPingTimeout       time.Duration

	bridgeURL string

	resolverRequestTimeout time.Duration
	resolverCacheTTL       time.Duration

	conf = server.NewConfig()
)

func newServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "server [options]",
		Short: "Start Pigeon server",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf.Resolver.RequestTimeout = resolverRequestTimeout.String()
			conf.Resolver.CacheTTL = resolverCacheTTL.String()

			if mongoConnectionURI != "" {
				conf.Mongo = &mongo.Config{
					ConnectionURI:     mongoConnectionURI,
					ConnectionTimeout: mongoConnectionTimeout.String(),
					PigeonDatabase:    mongoPigeonDatabase,
					PingTimeout:       mongoPingTimeout.String(),
				}
			}

			if bridgeURL != "" {
				conf.Peers = &peers.Config{
					BridgeURL: bridgeURL,
				}
			}

			// If config file is given, command-line arguments will be overwritten.
			if flagConfPath != "" {
				parsed, err := server.NewConfigFromFile(flagConfPath)
				if err != nil {
					return err
				}
				conf = parsed
			}

			if err := logging.SetLogLevel(flagLogLevel); err != nil {
				return err
			}

			p, err := server.New(conf)
			if err != nil {
				return err
			}

			if err := p.Start(); err != nil {
				return err
			}

			if code := handleSignal(p); code != 0 {
				return fmt.Errorf("exit code: %d", code)
			}

			return nil
		},
	}
}

func handleSignal(p *server.Pigeon) int {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	var sig os.Signal
	select {
	case s := <-sigCh:
		sig = s
	case <-p.ShutdownCh():
		// pigeon is already shutdown
		return 0
	}

	graceful := false
	if sig == syscall.SIGINT || sig == syscall.SIGTERM {
		graceful = true
	}

	gracefulCh := make(chan struct{})
	go func() {
		if err := p.Shutdown(graceful); err != nil {
			return
		}
		close(gracefulCh)
	}()

	select {
	case <-sigCh:
		return 1
	case <-time.After(gracefulTimeout):
		return 1
	case <-gracefulCh:
		return 0
	}
}

func init() {
	cmd := newServerCmd()
	cmd.Flags().StringVarP(
		&flagConfPath,
		"config",
		"c",
		"",
		"Config path",
	)
	cmd.Flags().StringVarP(
		&flagLogLevel,
		"log-level",
		"l",
		"info",
		"Log level: debug, info, warn, error, panic, fatal",
	)
	cmd.Flags().IntVar(
		&conf.API.Port,
		"api-port",
		server.DefaultAPIPort,
		"API port",
	)
	cmd.Flags().StringVar(
		&conf.API.AccessToken,
		"api-access-token",
		"",
		"Bearer token chat clients must present",
	)
	cmd.Flags().IntVar(
		&conf.Profiling.Port,
		"profiling-port",
		server.DefaultProfilingPort,
		"Profiling port",
	)
	cmd.Flags().BoolVar(
		&conf.Profiling.EnablePprof,
		"pprof-enabled",
		false,
		"Enable runtime profiling data via HTTP server.",
	)
	cmd.Flags().StringVar(
		&conf.Backend.MemberID,
		"member-id",
		"",
		"Stable participant identifier of the local identity",
	)
	cmd.Flags().StringVar(
		&conf.Backend.PublicKey,
		"public-key",
		"",
		"Public key of the local identity",
	)
	cmd.Flags().StringVar(
		&mongoConnectionURI,
		"mongo-connection-uri",
		"",
		"MongoDB's connection URI",
	)
	cmd.Flags().DurationVar(
		&mongoConnectionTimeout,
		"mongo-connection-timeout",
		server.DefaultMongoConnectionTimeout,
		"Mongo DB's connection timeout",
	)
	cmd.Flags().StringVar(
		&mongoPigeonDatabase,
		"mongo-pigeon-database",
		server.DefaultMongoPigeonDatabase,
		"Mongo DB's database name for Pigeon",
	)
	cmd.Flags().DurationVar(
		&mongoPingTimeout,
		"mongo-ping-timeout",
		server.DefaultMongoPingTimeout,
		"Mongo DB's ping timeout",
	)
	cmd.Flags().StringVar(
		&bridgeURL,
		"bridge-url",
		"",
		"Websocket URL of the peer-connection bridge; empty disables peer networking",
	)
	cmd.Flags().StringVar(
		&conf.Resolver.KeyServerURL,
		"resolver-key-server-url",
		server.DefaultKeyServerURL,
		"Base URL of the public key service",
	)
	cmd.Flags().StringVar(
		&conf.Resolver.DirectoryURL,
		"resolver-directory-url",
		server.DefaultDirectoryURL,
		"Base URL of the identity directory",
	)
	cmd.Flags().DurationVar(
		&resolverRequestTimeout,
		"resolver-request-timeout",
		server.DefaultResolverRequestTimeout,
		"Timeout of a single directory request",
	)
	cmd.Flags().IntVar(
		&conf.Resolver.CacheSize,
		"resolver-cache-size",
		server.DefaultResolverCacheSize,
		"Cache size of directory lookups",
	)
	cmd.Flags().DurationVar(
		&resolverCacheTTL,
		"resolver-cache-ttl",
		server.DefaultResolverCacheTTL,
		"Lifespan of a cached directory lookup",
	)
	rootCmd.AddCommand(cmd)
}
