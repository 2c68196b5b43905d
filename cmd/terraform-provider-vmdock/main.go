package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/hashicorp/terraform-plugin-framework/providerserver"

	"github.com/todoroff/terraform-provider-vmdock/internal/provider"
)

var (
	// version is set at build time through -ldflags and defaults to dev.
	version = "dev"
)

func main() {
	var debug bool
	flag.BoolVar(&debug, "debug", false, "run the provider with support for debuggers like delve")
	flag.Parse()

	opts := providerserver.ServeOpts{
		Address: "registry.terraform.io/todoroff/vmdock",
		Debug:   debug,
	}

	if err := providerserver.Serve(
		context.Background(),
		provider.New(version),
		opts,
	); err != nil {
		log.Printf("error serving provider: %v", err)
		os.Exit(1)
	}
}
