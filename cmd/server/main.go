// Command server runs the time zones API.
//
// @title        Time Zones API
// @version      1.0
// @description  Per-user time zone selections with a home zone, catalog search and cached weather.
// @BasePath     /api/v1
package main

import "go.uber.org/fx"

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	fx.New(fx.NopLogger, app()).Run()
}
