// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"io"
	"os"

	"github.com/gamekeeper/gamekeeper/internal/config"
	"github.com/gamekeeper/gamekeeper/internal/launch"
	"github.com/gamekeeper/gamekeeper/internal/provision"
	"github.com/gamekeeper/gamekeeper/internal/supervisor"
)

type (
	// App wires CLI services and shared dependencies. Command handlers get an
	// App reference and read flags and collaborators from it.
	App struct {
		Config         config.Provider
		NewProvisioner ProvisionerFactory
		Spawner        supervisor.Spawner
		LookupIP       IPLookup

		stdout io.Writer
		stderr io.Writer

		cfgFile string
		verbose bool
	}

	// Dependencies are the injection points for NewApp. Nil fields get
	// production defaults.
	Dependencies struct {
		Config         config.Provider
		NewProvisioner ProvisionerFactory
		Spawner        supervisor.Spawner
		LookupIP       IPLookup
		Stdout         io.Writer
		Stderr         io.Writer
	}

	// ProvisionerFactory builds the provisioner for a loaded config.
	ProvisionerFactory func(cfg *config.Config, profile launch.Profile, deps provision.Deps) (provision.Provisioner, error)

	// IPLookup returns the address players should join, or "" when unknown.
	IPLookup func(ctx context.Context, cfg *config.Config) string
)

// NewApp builds an App with defaults for every nil dependency.
func NewApp(deps Dependencies) *App {
	app := &App{
		Config:         deps.Config,
		NewProvisioner: deps.NewProvisioner,
		Spawner:        deps.Spawner,
		LookupIP:       deps.LookupIP,
		stdout:         deps.Stdout,
		stderr:         deps.Stderr,
	}
	if app.Config == nil {
		app.Config = config.NewProvider()
	}
	if app.NewProvisioner == nil {
		app.NewProvisioner = provision.New
	}
	if app.Spawner == nil {
		app.Spawner = supervisor.ExecSpawner{}
	}
	if app.LookupIP == nil {
		app.LookupIP = lookupPublicIP
	}
	if app.stdout == nil {
		app.stdout = os.Stdout
	}
	if app.stderr == nil {
		app.stderr = os.Stderr
	}
	return app
}

func lookupPublicIP(ctx context.Context, cfg *config.Config) string {
	return launch.PublicIP(ctx, nil, cfg.UserAgent, cfg.Minecraft.PublicIPLookup)
}
