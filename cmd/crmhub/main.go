// Command crmhub serves the multi-tenant CRM access API.
package main

import (
	"context"
	"log"

	"github.com/dalemusser/crmhub/internal/app/bootstrap"
	"github.com/dalemusser/waffle/app"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("crmhub: ")
	if err := app.Run(context.Background(), bootstrap.Hooks); err != nil {
		log.Fatal(err)
	}
}
